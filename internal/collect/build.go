package collect

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"go-modguard/internal/artifact"
	"go-modguard/internal/model"
)

// Options control model construction.
type Options struct {
	Algorithm Algorithm
	Logger    *log.Logger
}

// Build collects every loaded artifact, in order, into one model. Calls into
// another loaded artifact resolve by full name once all artifacts are in.
func Build(ctx context.Context, loaded []*artifact.Loaded, opts Options) (*model.Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	b := model.NewBuilder(model.DefaultSeparator)
	for _, l := range loaded {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		c := NewCollector(l, opts.Algorithm)
		c.CollectTypes(b)
		c.CollectCalls(b)
		logger.Debug("artifact collected", "module", l.Name, "packages", len(c.own), "algorithm", c.Algorithm, "took", time.Since(start))
	}
	return b.Build(), nil
}
