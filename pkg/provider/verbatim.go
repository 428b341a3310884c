package provider

import (
	"context"
	"strings"
	"unicode"
)

// Verbatim returns texts that hold nothing to translate unchanged, without
// calling the wrapped provider.
type Verbatim struct {
	wrapped Provider
}

func NewVerbatim(p Provider) *Verbatim {
	return &Verbatim{wrapped: p}
}

func (v *Verbatim) Name() string { return "verbatim(" + v.wrapped.Name() + ")" }

func (v *Verbatim) Translate(ctx context.Context, text, source, target string) (string, error) {
	if !IsTranslatable(text) {
		return text, nil
	}
	return v.wrapped.Translate(ctx, text, source, target)
}

// IsTranslatable reports whether s contains anything besides numbers,
// punctuation, symbols and spaces.
func IsTranslatable(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		if !unicode.IsNumber(r) && !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

