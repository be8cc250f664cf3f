package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/EnzoMH/cradcrawl-enrich/internal/enrich"
	"github.com/EnzoMH/cradcrawl-enrich/internal/fetch"
	"github.com/EnzoMH/cradcrawl-enrich/internal/job"
	"github.com/EnzoMH/cradcrawl-enrich/internal/ratelimit"
	"github.com/EnzoMH/cradcrawl-enrich/internal/search"
	"github.com/EnzoMH/cradcrawl-enrich/internal/store"
	"github.com/EnzoMH/cradcrawl-enrich/pkg/anthropic"
	"github.com/EnzoMH/cradcrawl-enrich/pkg/naver"
)

// appEnv wires the store, enricher and orchestrator for a command run.
type appEnv struct {
	Store        store.Store
	Enricher     *enrich.Enricher
	Orchestrator *job.Orchestrator
}

// initEnv builds the full enrichment environment from config.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	var searcher search.HomepageSearcher
	if cfg.Naver.ClientID != "" && cfg.Naver.ClientSecret != "" {
		searcher = search.NewNaverSearcher(naver.NewClient(
			cfg.Naver.ClientID,
			cfg.Naver.ClientSecret,
			naver.WithDisplay(cfg.Naver.Display),
		))
	} else {
		zap.L().Warn("naver credentials missing, homepage discovery disabled")
	}

	var extractor enrich.FieldExtractor
	if cfg.Anthropic.Key != "" {
		extractor = enrich.NewClaudeExtractor(
			anthropic.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.Model,
		)
	} else {
		zap.L().Warn("anthropic key missing, ai extraction disabled")
	}

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		TokensPerMinute:   cfg.RateLimit.TokensPerMinute,
		RetryWait:         time.Duration(cfg.RateLimit.RetryWaitSecs) * time.Second,
	})

	enricher := enrich.New(st, searcher, buildFetcher(), extractor, limiter, enrich.Options{
		FetchTimeout:   time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		ExtractTimeout: time.Duration(cfg.Enrich.ExtractTimeoutSecs) * time.Second,
	})

	return &appEnv{
		Store:        st,
		Enricher:     enricher,
		Orchestrator: job.NewOrchestrator(enricher, st, job.NewRegistry()),
	}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("postgres driver requires CRADCRAWL_STORE_DATABASE_URL")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func buildFetcher() fetch.PageFetcher {
	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
	static := fetch.NewStaticFetcher(timeout, cfg.Fetch.PerHostPerSec, cfg.Fetch.UserAgent)
	browser := fetch.NewBrowserFetcher(timeout)

	switch cfg.Fetch.Mode {
	case "static":
		return static
	case "browser":
		return browser
	default:
		return fetch.NewChain(static, browser)
	}
}

func (e *appEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}
