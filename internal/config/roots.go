package config

import (
	"errors"
	"fmt"
)

// Pipeline types understood by the search-root resolver.
const (
	PipelineLocal       = ""
	PipelinePullRequest = "pull-request"
	PipelineNightly     = "nightly"
)

// Error is a configuration error. It is always fatal and is raised before
// any analysis starts.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return "config: " + e.Err.Error()
	}
	return fmt.Sprintf("config %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolver decides which directories hold the artifacts to check.
type Resolver interface {
	Resolve() ([]string, error)
}

// StaticRoots resolves to a fixed list of directories.
type StaticRoots []string

// Resolve implements Resolver.
func (s StaticRoots) Resolve() ([]string, error) {
	if len(s) == 0 {
		return nil, &Error{Key: "dirs", Err: errors.New("no search roots configured")}
	}
	return s, nil
}

// PipelineRoots picks search roots by the pipeline the check runs in.
type PipelineRoots struct {
	Type         string
	Dirs         []string
	CIDirs       []string
	ArtifactsDir string
}

// Resolve implements Resolver. Local runs use Dirs, pull-request runs use
// CIDirs (or Dirs when unset), and nightly runs require ArtifactsDir.
func (p PipelineRoots) Resolve() ([]string, error) {
	switch p.Type {
	case PipelineLocal:
		return StaticRoots(p.Dirs).Resolve()
	case PipelinePullRequest:
		if len(p.CIDirs) > 0 {
			return p.CIDirs, nil
		}
		return StaticRoots(p.Dirs).Resolve()
	case PipelineNightly:
		if p.ArtifactsDir == "" {
			return nil, &Error{
				Key: "artifacts_dir",
				Err: fmt.Errorf("must be set for pipeline type %q", p.Type),
			}
		}
		return []string{p.ArtifactsDir}, nil
	default:
		return nil, &Error{Key: "pipeline_type", Err: fmt.Errorf("%q is an unknown pipeline type", p.Type)}
	}
}
