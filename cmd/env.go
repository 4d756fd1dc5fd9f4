package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/diagnostic"
	"github.com/sells-group/prospect-cli/internal/niche"
	"github.com/sells-group/prospect-cli/internal/pipeline"
	"github.com/sells-group/prospect-cli/internal/quota"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
	"github.com/sells-group/prospect-cli/pkg/automation"
)

// pipelineEnv holds the resources built for commands that run pipelines.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Orchestrator
	Catalog  *niche.Catalog
	Redis    *redis.Client
}

// Close releases every resource held by the environment.
func (e *pipelineEnv) Close() {
	if e.Redis != nil {
		_ = e.Redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "prospect.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore validates the store settings, opens the store and migrates it.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate(config.ModeRead); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline builds the store, provider clients, pacers and orchestrator
// for the given validation mode.
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	catalog, err := niche.Load(cfg.Niche.CatalogPath)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Catalog = catalog

	pacers := pipeline.LocalPacers()
	if cfg.RateLimit.Shared {
		env.Redis = redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		if err := env.Redis.Ping(ctx).Err(); err != nil {
			env.Close()
			return nil, eris.Wrap(err, "connect redis")
		}
		pacers = pipeline.SharedPacers(env.Redis)
		zap.L().Info("shared pacing enabled", zap.String("redis", cfg.RateLimit.RedisAddr))
	}

	client := automation.NewClient(cfg.Automation.BaseURL,
		automation.WithToken(cfg.Automation.Token),
		automation.WithPaths(automation.Paths(cfg.Automation.Paths)),
	)

	env.Pipeline = pipeline.New(cfg.Pipeline, pipeline.Deps{
		Store: st,
		Quota: quota.NewValidator(quota.Limits{
			MaxAreas:   cfg.Quota.MaxAreas,
			MaxPerArea: cfg.Quota.MaxPerArea,
			MaxTotal:   cfg.Quota.MaxTotal,
		}),
		Catalog:   catalog,
		Searcher:  client,
		Ads:       client,
		Scorer:    client,
		Diagnoser: newDiagnoser(client),
		Pacers:    pacers,
	})

	zap.L().Info("pipeline ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("diagnostic", cfg.Diagnostic.Provider),
		zap.Int("niches", len(catalog.Niches)),
	)
	return env, nil
}

// newDiagnoser picks the deep-diagnostic backend. The webhook backend is the
// automation client itself.
func newDiagnoser(client *automation.Client) pipeline.Diagnoser {
	if cfg.Diagnostic.Provider == "anthropic" {
		return diagnostic.NewAnthropicDiagnoser(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic)
	}
	return client
}
