// Package transform is the boundary to the user-supplied transform
// capability. The pipe treats an engine as opaque: it may fail, it may be
// slow, and nothing about its implementation is assumed.
package transform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
)

// Engine turns a named transform and an input document into an output
// document. Implementations must be safe for concurrent use.
type Engine interface {
	// Name identifies the engine in synthetic source URLs
	Name() string
	// Run evaluates the transform with the given identifier against input
	Run(ctx context.Context, id, input string) (string, error)
}

// NewEngine returns the engine for the configured script path. An empty
// path yields a passthrough engine.
func NewEngine(scriptPath string) Engine {
	if scriptPath == "" {
		return passthroughEngine{}
	}
	return &scriptEngine{program: scriptPath}
}

// scriptEngine shells out to an external program: the transform id is the
// first argument, the input arrives on stdin and the output is read from
// stdout.
type scriptEngine struct {
	program string
}

func (e *scriptEngine) Name() string {
	return filepath.Base(e.program)
}

func (e *scriptEngine) Run(ctx context.Context, id, input string) (string, error) {
	cmd := exec.CommandContext(ctx, e.program, id)
	cmd.Stdin = bytes.NewReader([]byte(input))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to run transform %s: %w (stderr: %s)", id, err, stderr.String())
	}

	return stdout.String(), nil
}

// passthroughEngine stands in when no script is configured; invocations
// return their input unchanged
type passthroughEngine struct{}

func (passthroughEngine) Name() string {
	return "none"
}

func (passthroughEngine) Run(ctx context.Context, id, input string) (string, error) {
	return input, nil
}
