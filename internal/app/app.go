package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/personaforge-backend/internal/config"
	"github.com/yungbote/personaforge-backend/internal/content"
	"github.com/yungbote/personaforge-backend/internal/data/db"
	"github.com/yungbote/personaforge-backend/internal/data/repos"
	apihttp "github.com/yungbote/personaforge-backend/internal/http"
	httpH "github.com/yungbote/personaforge-backend/internal/http/handlers"
	"github.com/yungbote/personaforge-backend/internal/jobs/cascade"
	"github.com/yungbote/personaforge-backend/internal/jobs/progress"
	"github.com/yungbote/personaforge-backend/internal/modules/companies"
	"github.com/yungbote/personaforge-backend/internal/modules/generators"
	"github.com/yungbote/personaforge-backend/internal/modules/personas"
	"github.com/yungbote/personaforge-backend/internal/modules/status"
	"github.com/yungbote/personaforge-backend/internal/observability"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
	"github.com/yungbote/personaforge-backend/internal/platform/openai"
)

const shutdownGrace = 15 * time.Second

type Options struct {
	// BaseContext parents asynchronous cascade runs.
	BaseContext context.Context
	// ForceInline ignores CASCADE_EXECUTOR; the generator CLI uses it so a
	// cascade it drives never re-executes itself.
	ForceInline bool
}

// Core is everything behind the HTTP surface: database, generators and the
// cascade engine. The generator CLI uses it directly.
type Core struct {
	Cfg       config.Config
	Log       *logger.Logger
	DB        *gorm.DB
	Repos     *repos.Set
	Registry  *generators.Registry
	Status    *status.Service
	Companies *companies.Service
	Engine    *cascade.Engine
	Progress  progress.Store
	Metrics   *observability.Metrics

	closers []func() error
}

func Bootstrap(ctx context.Context, cfg config.Config, log *logger.Logger, opts Options) (*Core, error) {
	core := &Core{Cfg: cfg, Log: log}
	ok := false
	defer func() {
		if !ok {
			_ = core.Close()
		}
	}()

	dbs, err := db.Open(log, db.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		SlowQuery:    cfg.Database.SlowQuery,
	})
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	core.closers = append(core.closers, dbs.Close)
	if err := dbs.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("database automigrate: %w", err)
	}
	core.DB = dbs.DB()
	core.Repos = repos.NewSet(core.DB, log)

	lib, err := content.Default()
	if err != nil {
		return nil, fmt.Errorf("load content tables: %w", err)
	}

	if cfg.Telemetry.MetricsEnabled {
		core.Metrics = observability.NewMetrics(cfg.Telemetry.MetricsPrefix)
	}

	deps := &generators.Deps{
		Log:         log,
		Repos:       core.Repos,
		Content:     lib,
		Backups:     cfg.Storage.BackupsEnabled,
		Concurrency: cfg.Cascade.Concurrency,
		MediaDir:    cfg.Storage.MediaDir,
	}
	if core.Metrics != nil {
		deps.Metrics = core.Metrics
	}
	if cfg.OpenAI.Enabled() {
		client, err := openai.NewClient(log, openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			ImageModel: cfg.OpenAI.ImageModel,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("init openai client: %w", err)
		}
		deps.Text = client
		deps.Images = client
	} else {
		log.Info("OPENAI_API_KEY not set, generators use template content")
	}

	objects, err := resolveObjectStore(ctx, log, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init object storage (%s): %w", storageProviderBootstrapErrorCode(err), err)
	}
	if objects != nil {
		deps.Objects = objects
		if c, isCloser := objects.(io.Closer); isCloser {
			core.closers = append(core.closers, c.Close)
		}
	}

	core.Registry = generators.NewRegistry()
	if err := core.Registry.RegisterAll(personas.NewGenerator(log, core.Repos, personas.NewSynthesizer(lib))); err != nil {
		return nil, err
	}
	if err := core.Registry.RegisterAll(generators.AttributeGenerators(deps)...); err != nil {
		return nil, err
	}

	core.Status = status.NewService(log, core.Repos)
	core.Companies = companies.NewService(log, core.Repos)

	core.Progress = resolveProgressStore(ctx, log, cfg.Redis)
	if c, isCloser := core.Progress.(io.Closer); isCloser {
		core.closers = append(core.closers, c.Close)
	}

	var executor cascade.Executor = cascade.NewInlineExecutor(core.Registry)
	if cfg.Cascade.Executor == config.ExecutorProcess && !opts.ForceInline {
		executor = cascade.NewProcessExecutor(log, cfg.Cascade.GeneratorBin)
	}
	log.Info("Cascade executor selected", "executor", cfg.Cascade.Executor, "force_inline", opts.ForceInline)

	engineDeps := cascade.EngineDeps{
		Log:       log,
		Companies: core.Repos.Companies,
		Runs:      core.Repos.Runs,
		Status:    core.Status,
		Executor:  executor,
		Progress:  core.Progress,
		Tracer:    observability.Tracer(),
	}
	if core.Metrics != nil {
		engineDeps.Metrics = core.Metrics
	}
	core.Engine = cascade.NewEngine(engineDeps, cascade.Config{
		StageTimeout: cfg.Cascade.StageTimeout,
		BaseContext:  opts.BaseContext,
	})

	ok = true
	return core, nil
}

// Close releases the database pool and the storage clients. Safe to call more
// than once.
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// App is the HTTP service.
type App struct {
	*Core
	Server *apihttp.Server

	cancel context.CancelFunc
}

func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	core, err := Bootstrap(ctx, cfg, log, Options{BaseContext: runCtx})
	if err != nil {
		cancel()
		return nil, err
	}
	sqlDB, err := core.DB.DB()
	if err != nil {
		cancel()
		_ = core.Close()
		return nil, fmt.Errorf("access sql pool: %w", err)
	}

	routerCfg := apihttp.RouterConfig{
		Log:            log,
		CORSOrigins:    cfg.CORSOrigins,
		Metrics:        core.Metrics,
		HealthHandler:  httpH.NewHealthHandler(sqlDB),
		CascadeHandler: httpH.NewCascadeHandler(log, core.Engine, core.Companies),
		CompanyHandler: httpH.NewCompanyHandler(core.Companies, core.Status),
	}
	if cfg.Telemetry.OTelEnabled {
		routerCfg.ServiceName = cfg.Telemetry.ServiceName
	}

	return &App{
		Core:   core,
		Server: apihttp.NewServer(log, net.JoinHostPort("", cfg.Port), routerCfg),
		cancel: cancel,
	}, nil
}

// Run serves until ctx is canceled. In-flight asynchronous cascades are then
// canceled and awaited so their runs are recorded as stopped.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	err := a.Server.Run(ctx, shutdownGrace)
	a.cancel()
	a.Engine.Wait()
	return err
}

func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	return a.Core.Close()
}
