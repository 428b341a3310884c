// Package provider holds the translation backends the controller can call.
//
// A Provider performs one blocking translation and may fail. Decorators
// (cache, pool) wrap other providers and are themselves providers.
package provider

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Provider translates text between two language codes.
type Provider interface {
	// Translate blocks until the provider answers or ctx is done.
	Translate(ctx context.Context, text, source, target string) (string, error)
	// Name identifies the provider in logs and error messages.
	Name() string
}

var (
	// ErrUnsupportedLanguage is returned when the provider rejects a language code
	// or pair. Retrying will not help.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrEmptyResult is returned when the provider answered without a translation.
	ErrEmptyResult = errors.New("empty translation")
	// ErrNoProvider is returned by a pool with nothing to call.
	ErrNoProvider = errors.New("no provider configured")
)

// ProviderError wraps a failure of a named provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newError(provider string, err error) error {
	return &ProviderError{Provider: provider, Err: err}
}

// Permanent reports whether err should not be retried: unsupported
// languages and caller cancellation.
func Permanent(err error) bool {
	return errors.Is(err, ErrUnsupportedLanguage) ||
		errors.Is(err, context.Canceled)
}

// Func adapts a plain function to the Provider interface.
type Func struct {
	ID string
	Fn func(ctx context.Context, text, source, target string) (string, error)
}

func (f Func) Translate(ctx context.Context, text, source, target string) (string, error) {
	return f.Fn(ctx, text, source, target)
}

func (f Func) Name() string {
	if f.ID == "" {
		return "func"
	}
	return f.ID
}
