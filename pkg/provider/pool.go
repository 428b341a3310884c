package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"quicktranslator/pkg/logger"
)

// errRaceWon stops a race group once one member succeeded.
var errRaceWon = errors.New("race won")

// Strategy decides how a Pool consults its members.
type Strategy int

const (
	// Fallback tries members in order and returns the first success.
	Fallback Strategy = iota
	// Race asks every member at once; the first success wins and the others
	// are cancelled.
	Race
)

// ParseStrategy maps a config value to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "", "fallback":
		return Fallback, nil
	case "race":
		return Race, nil
	}
	return Fallback, errors.Errorf("unknown pool strategy %q", name)
}

// Pool combines several providers into one.
type Pool struct {
	members  []Provider
	strategy Strategy
	logger   *logger.Logger
}

// NewPool creates a pool over members.
func NewPool(strategy Strategy, log *logger.Logger, members ...Provider) *Pool {
	return &Pool{members: members, strategy: strategy, logger: log.Named("pool")}
}

func (p *Pool) Name() string {
	names := make([]string, len(p.members))
	for i, m := range p.members {
		names[i] = m.Name()
	}
	return "pool(" + strings.Join(names, ",") + ")"
}

func (p *Pool) Translate(ctx context.Context, text, source, target string) (string, error) {
	if len(p.members) == 0 {
		return "", newError(p.Name(), ErrNoProvider)
	}
	if p.strategy == Race {
		return p.race(ctx, text, source, target)
	}
	return p.fallback(ctx, text, source, target)
}

func (p *Pool) fallback(ctx context.Context, text, source, target string) (string, error) {
	errs := make([]error, 0, len(p.members))
	for _, m := range p.members {
		translated, err := m.Translate(ctx, text, source, target)
		if err == nil {
			return translated, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.logger.Warnf("%s failed, trying next: %v", m.Name(), err)
		errs = append(errs, err)
	}
	return "", newError(p.Name(), allFailed(errs))
}

func (p *Pool) race(ctx context.Context, text, source, target string) (string, error) {
	// the first success ends the group and cancels gctx for the rest
	g, gctx := errgroup.WithContext(ctx)
	errs := make([]error, len(p.members))

	var (
		once   sync.Once
		winner string
	)
	for i, m := range p.members {
		i, m := i, m
		g.Go(func() error {
			translated, err := m.Translate(gctx, text, source, target)
			if err != nil {
				// member failures are collected, they must not cancel the others
				errs[i] = err
				return nil
			}
			once.Do(func() { winner = translated })
			return errRaceWon
		})
	}

	if err := g.Wait(); errors.Is(err, errRaceWon) {
		return winner, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "", newError(p.Name(), allFailed(errs))
}

// allFailed folds member errors into one. When every member rejected the
// language, the result still matches ErrUnsupportedLanguage.
func allFailed(errs []error) error {
	msgs := make([]string, 0, len(errs))
	unsupported := len(errs) > 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		msgs = append(msgs, err.Error())
		if !errors.Is(err, ErrUnsupportedLanguage) {
			unsupported = false
		}
	}
	base := errors.New("no suitable translator available")
	if unsupported {
		base = ErrUnsupportedLanguage
	}
	return errors.Wrap(base, strings.Join(msgs, "; "))
}
