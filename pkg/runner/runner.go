package runner

import (
	"context"
	"fmt"

	"quicktranslator/pkg/config"
	"quicktranslator/pkg/controller"
	"quicktranslator/pkg/logger"
	"quicktranslator/pkg/provider"
	"quicktranslator/pkg/translator"
)

// App is the application context built once at startup and handed to every
// presentation. It holds no per-request state.
type App struct {
	Config    *config.AppConfig
	Logger    *logger.Logger
	Provider  provider.Provider
	Direction translator.Direction
	Retry     translator.RetryPolicy
}

// NewApp validates cfg and assembles the provider stack.
func NewApp(cfg *config.AppConfig, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	direction, err := translator.NewDirection(cfg.Translation.Source, cfg.Translation.Target)
	if err != nil {
		return nil, err
	}

	p, err := BuildProvider(cfg, log)
	if err != nil {
		return nil, err
	}

	var retry translator.RetryPolicy = translator.NoRetry{}
	if cfg.Translation.Retries > 0 {
		retry = translator.Backoff{
			Attempts: cfg.Translation.Retries + 1,
			Delay:    cfg.RetryDelay(),
		}
	}

	log.Infof("provider %s, direction %s", p.Name(), direction)
	return &App{
		Config:    cfg,
		Logger:    log,
		Provider:  p,
		Direction: direction,
		Retry:     retry,
	}, nil
}

// NewController creates a controller for one interaction loop. wake is
// called from worker goroutines when an outcome is ready; it may be nil.
func (a *App) NewController(ctx context.Context, wake func()) *controller.Controller {
	return controller.New(ctx, a.Provider, a.Direction, controller.Options{
		Retry:   a.Retry,
		Timeout: a.Config.Timeout(),
		Wake:    wake,
	}, a.Logger)
}

// BuildProvider creates the provider named in [translation].provider,
// wrapped in the cache and the verbatim filter when enabled.
func BuildProvider(cfg *config.AppConfig, log *logger.Logger) (provider.Provider, error) {
	var (
		p   provider.Provider
		err error
	)
	if cfg.Translation.Provider == config.ProviderPool {
		p, err = buildPool(cfg, log)
	} else {
		p, err = buildSingle(cfg.Translation.Provider, cfg, log)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled {
		p = provider.NewCached(p, cfg.Cache.MaxEntries, log)
	}
	if cfg.Translation.SkipVerbatim {
		p = provider.NewVerbatim(p)
	}
	return p, nil
}

func buildPool(cfg *config.AppConfig, log *logger.Logger) (provider.Provider, error) {
	strategy, err := provider.ParseStrategy(cfg.Pool.Strategy)
	if err != nil {
		return nil, err
	}
	members := make([]provider.Provider, 0, len(cfg.Pool.Providers))
	for _, name := range cfg.Pool.Providers {
		m, err := buildSingle(name, cfg, log)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return provider.NewPool(strategy, log, members...), nil
}

func buildSingle(name string, cfg *config.AppConfig, log *logger.Logger) (provider.Provider, error) {
	switch name {
	case config.ProviderMyMemory:
		return provider.NewMyMemory(provider.MyMemoryConfig{
			BaseURL: cfg.MyMemory.BaseURL,
			Email:   cfg.MyMemory.Email,
			Timeout: cfg.Timeout(),
		}, log), nil
	case config.ProviderLLM:
		return provider.NewLLM(provider.LLMConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Prompt:  cfg.LLM.Prompt,
			Timeout: cfg.Timeout(),
		}, log), nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}
