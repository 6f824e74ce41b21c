// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/panbanda/sieve/pkg/parser"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e *ProcessingErrors) Unwrap() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		out[i] = pe
	}
	return out
}

// sortByPath orders the collected errors for stable reporting.
func (e *ProcessingErrors) sortByPath() {
	e.mu.Lock()
	defer e.mu.Unlock()
	sort.SliceStable(e.Errors, func(i, j int) bool { return e.Errors[i].Path < e.Errors[j].Path })
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed.
type ProgressFunc func(path string)

type options struct {
	workers       int
	parserOptions []parser.Option
	onProgress    ProgressFunc
}

// Option configures MapFiles.
type Option func(*options)

// WithWorkers sets the number of concurrent workers. Values <= 0 use
// 2x NumCPU.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithParserOptions configures the parser created for each file.
func WithParserOptions(opts ...parser.Option) Option {
	return func(o *options) {
		o.parserOptions = opts
	}
}

// WithProgress sets a callback invoked after each file, failed or not.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.onProgress = fn
	}
}

// Workers returns the effective worker count for n.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU() * DefaultWorkerMultiplier
	}
	return n
}

// MapFiles processes files in parallel, calling fn for each file with a
// dedicated parser. Results of successful files are returned in input
// order. A failing file does not stop the others; its error is collected.
// Files not started before ctx is cancelled are reported with ctx.Err().
func MapFiles[T any](ctx context.Context, files []string, fn func(context.Context, *parser.Parser, string) (T, error), opts ...Option) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	type slot struct {
		value T
		ok    bool
	}
	slots := make([]slot, len(files))
	errs := &ProcessingErrors{}

	p := pool.New().WithMaxGoroutines(Workers(o.workers)).WithContext(ctx)
	for i, path := range files {
		p.Go(func(ctx context.Context) error {
			defer func() {
				if o.onProgress != nil {
					o.onProgress(path)
				}
			}()

			// Check for cancellation before processing
			if err := ctx.Err(); err != nil {
				errs.Add(path, err)
				return nil
			}

			psr := parser.New(o.parserOptions...)
			defer psr.Close()

			result, err := fn(ctx, psr, path)
			if err != nil {
				errs.Add(path, err)
				return nil // Don't stop pool on individual file errors
			}
			slots[i] = slot{value: result, ok: true}
			return nil
		})
	}
	_ = p.Wait() // Per-file errors are already captured in errs

	results := make([]T, 0, len(files))
	for _, s := range slots {
		if s.ok {
			results = append(results, s.value)
		}
	}

	if !errs.HasErrors() {
		return results, nil
	}
	errs.sortByPath()
	return results, errs
}
