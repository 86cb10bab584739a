package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/cadastre-cli/internal/filestore"
	"github.com/sells-group/cadastre-cli/internal/pipeline"
	"github.com/sells-group/cadastre-cli/internal/store"
	"github.com/sells-group/cadastre-cli/pkg/apicarto"
)

// appEnv holds the stores and processor shared by the commands.
type appEnv struct {
	Files     filestore.Store
	Jobs      store.Store
	Processor *pipeline.Processor
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Files != nil {
		_ = e.Files.Close()
	}
	if e.Jobs != nil {
		_ = e.Jobs.Close()
	}
}

// initEnv validates the config for mode and opens the file store, the job
// store (migrated) and the processor. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &appEnv{}

	files, err := filestore.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	env.Files = files

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Jobs = st
	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, err
	}

	lookup := apicarto.NewClient(
		apicarto.WithBaseURL(cfg.Cadastre.BaseURL),
		apicarto.WithTimeout(time.Duration(cfg.Cadastre.TimeoutSecs)*time.Second),
		apicarto.WithRateLimit(cfg.Cadastre.RateLimit),
	)
	env.Processor = pipeline.NewProcessor(files, lookup, pipeline.Options{
		RetryDelay:   time.Duration(cfg.Cadastre.RetryDelayMs) * time.Millisecond,
		ColumnPrefix: cfg.Cadastre.ColumnPrefix,
		Folder:       cfg.Storage.Folder,
	})

	zap.L().Debug("environment ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("store", cfg.Store.Driver),
	)
	return env, nil
}
