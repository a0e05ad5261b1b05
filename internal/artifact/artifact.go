// Package artifact discovers and loads the Go modules a check runs over.
//
// An artifact is one module, identified by its module path. Artifacts are
// found by matching file names (go.mod by default) under one or more search
// roots and are loaded as fully type-checked package graphs.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	// DefaultGlob matches the file that marks an artifact.
	DefaultGlob = "go.mod"
	// DefaultIgnoreFile is read from each search root, in gitignore syntax.
	DefaultIgnoreFile = ".modguardignore"
)

// ErrNoRoots is returned when no search root is given.
var ErrNoRoots = errors.New("no search roots given")

// Artifact is one discovered Go module.
type Artifact struct {
	Name string // module path, the logical identity
	Path string // matched file
	Dir  string // module directory
	Root string // search root it was found under
}

// RootError reports an unusable search root. It is a configuration error.
type RootError struct {
	Root string
	Err  error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("search root %s: %v", e.Root, e.Err)
}

func (e *RootError) Unwrap() error { return e.Err }

// LoadError reports an artifact that could not be read or compiled.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsResourceContainer reports whether a module path names a module that only
// carries resources (localised strings, embedded assets).
func IsResourceContainer(name string) bool {
	return strings.HasSuffix(name, ".resources") || path.Base(name) == "resources"
}

func orDiscard(logger *log.Logger) *log.Logger {
	if logger == nil {
		return log.New(io.Discard)
	}
	return logger
}
