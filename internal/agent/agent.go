package agent

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/mwantia/fabric/pkg/container"

	"github.com/mirelo/sdsort/internal/api"
	config "github.com/mirelo/sdsort/internal/config/server"
	"github.com/mirelo/sdsort/internal/filter"
	"github.com/mirelo/sdsort/internal/jobs"
	"github.com/mirelo/sdsort/internal/library"
	"github.com/mirelo/sdsort/internal/scanner"
	"github.com/mirelo/sdsort/internal/sorter"
	"github.com/mirelo/sdsort/internal/tagger"
	"github.com/mirelo/sdsort/pkg/db/store"
	"github.com/mirelo/sdsort/pkg/log"
)

type SdSortAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg *config.BaseServerConfig
	sc  *container.ServiceContainer
	log log.LoggerService

	store      store.ImageStore
	controller *api.Controller
}

func NewAgent(cfg *config.BaseServerConfig) *SdSortAgent {
	return &SdSortAgent{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: log.NewLoggerService("sdsort", cfg.Log),
	}
}

func (ssa *SdSortAgent) setupServices(ctx context.Context) error {
	errs := container.Errors{}

	ssa.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](ssa.sc,
		container.With[log.LoggerService](),
		container.WithInstance(ssa.log)))

	errs.Add(container.Register[log.LoggerTagProcessor](ssa.sc,
		container.WithInstance(log.NewLoggerTagProcessor())))

	ssa.log.Debug("Registering 'ImageStore'...")
	imageStore, err := store.NewSQLiteStore(store.SQLiteConfig{Path: ssa.cfg.Store.SQLite.Path})
	if err != nil {
		return fmt.Errorf("failed to create image store: %w", err)
	}
	if err := imageStore.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect image store: %w", err)
	}
	if err := imageStore.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate image store: %w", err)
	}
	ssa.store = imageStore
	errs.Add(container.Register[store.SQLiteStore](ssa.sc,
		container.With[store.ImageStore](),
		container.WithInstance(imageStore)))

	engine := filter.NewEngine(imageStore)
	scan := scanner.NewScanner(imageStore, ssa.log.Named("scanner"))
	runner := tagger.NewRunner(imageStore, tagger.DisabledFactory, ssa.log.Named("tagger"))
	sessions := sorter.NewManager(engine, scan, ssa.log.Named("sorter"))
	lib := library.NewLibrary(imageStore)
	registry := jobs.NewRegistry()

	ssa.log.Debug("Registering 'Controller'...")
	ssa.controller = api.NewController(ssa.cfg, imageStore, engine, scan, runner, sessions, lib, registry,
		ssa.log.Named("api"))

	return errs.Errors()
}

func (ssa *SdSortAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	ssa.mutex.Lock()

	if err := ssa.setupServices(ctx); err != nil {
		ssa.mutex.Unlock()
		return err
	}

	ssa.wait.Add(1)
	go func() {
		defer ssa.wait.Done()
		ssa.log.Info("Serving catalog API on '%s'", ssa.cfg.HTTP.Address)
		if err := ssa.controller.Start(); err != nil && err != http.ErrServerClosed {
			ssa.log.Error("HTTP server stopped: %v", err)
			cancel()
		}
	}()

	ssa.mutex.Unlock()
	<-ctx.Done()

	timeout, err := time.ParseDuration(ssa.cfg.ShutdownTimeout)
	if err != nil {
		// Set default of 60 seconds if error
		timeout = 60 * time.Second
	}

	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := ssa.controller.Shutdown(shutdown); err != nil {
		ssa.log.Error("Failed to shut down HTTP server: %v", err)
	}

	if err := ssa.store.Close(); err != nil {
		ssa.log.Error("Failed to close image store: %v", err)
	}

	if err := ssa.sc.Cleanup(shutdown); err != nil {
		return fmt.Errorf("failed to complete service container cleanup: %w", err)
	}

	ssa.wait.Wait()
	return nil
}
