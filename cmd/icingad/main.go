package main

import (
	"context"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-go-library/periodic"
	"github.com/icinga/icinga-go-library/utils"
	"github.com/icinga/icingad/internal"
	"github.com/icinga/icingad/internal/command"
	"github.com/icinga/icingad/pkg/checkable"
	extcmd "github.com/icinga/icingad/pkg/command"
	"github.com/icinga/icingad/pkg/history"
	"github.com/icinga/icingad/pkg/httpd"
	"github.com/icinga/icingad/pkg/maintenance"
	"github.com/okzk/sdnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

// reloadCheckInterval is how often a requested reload is picked up.
const reloadCheckInterval = time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cmd := command.New()
	logs := cmd.Logging
	logger := cmd.Logger
	defer func() { _ = logger.Sync() }()

	logger.Infof("Starting icingad daemon (%s)", internal.Version.Version)

	defs, err := cmd.Definitions()
	if err != nil {
		logger.Fatalf("%+v", err)
	}

	registry := checkable.NewRegistry(attributeChanged(logs.GetChildLogger("checkable")))
	loaded := registry.Sync(defs)
	logger.Infof("Loaded %d objects from %s", len(loaded.Added), cmd.Config.Objects)

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	g, ctx := errgroup.WithContext(ctx)

	var sink history.Sink = history.Discard
	if w := cmd.History(); w != nil {
		defer func() { _ = w.Close() }()

		sink = w
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	manager := maintenance.NewManager(ctx, registry, sink, logs.GetChildLogger("maintenance"), cmd.Config.Downtimes)
	defer manager.Close()

	processor := extcmd.NewProcessor(registry, manager, sink, logs.GetChildLogger("command"), cancelCtx)

	if path := cmd.Config.Command.Pipe; path != "" {
		pipe := extcmd.NewPipeSource(path, processor, logs.GetChildLogger("command"))
		g.Go(func() error {
			return pipe.Run(ctx)
		})
	}

	if cmd.Config.Command.Redis.Enabled {
		rc := cmd.Redis()
		defer func() { _ = rc.Close() }()

		source := extcmd.NewRedisSource(rc.Client, cmd.Config.Command.Redis.Options, processor, logs.GetChildLogger("redis"))
		g.Go(func() error {
			return source.Run(ctx)
		})
	}

	if addr := cmd.Config.HTTP.Listen; addr != "" {
		httpLogger := logs.GetChildLogger("httpd")
		router := httpd.NewRouter(manager.Ready, httpLogger)
		g.Go(func() error {
			return httpd.Serve(ctx, addr, router, httpLogger)
		})
	}

	// Builds the index, which arms the expiration sweeper.
	manager.Rebuild()

	var reloadRequested atomic.Bool
	defer periodic.Start(ctx, reloadCheckInterval, func(periodic.Tick) {
		if reloadRequested.Swap(false) {
			reload(cmd, registry, manager, logger)
		}
	}).Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sig)

	g.Go(func() error {
		for {
			select {
			case s := <-sig:
				if s == syscall.SIGHUP {
					logger.Info("Reload requested")
					reloadRequested.Store(true)
					continue
				}

				logger.Infow("Exiting due to signal", zap.String("signal", s.String()))
				cancelCtx()

				return nil
			case <-ctx.Done():
				return nil
			}
		}
	})

	_ = sdnotify.Ready()

	err = g.Wait()
	_ = sdnotify.Stopping()

	if err != nil && !utils.IsContextCanceled(err) {
		logger.Errorf("%+v", err)

		return command.ExitFailure
	}

	return command.ExitSuccess
}

// reload re-reads the object definitions and reconciles the registry with them.
func reload(cmd *command.Command, registry *checkable.Registry, manager *maintenance.Manager, logger *logging.Logger) {
	_ = sdnotify.Reloading()
	defer func() { _ = sdnotify.Ready() }()

	defer utils.Timed(time.Now(), func(elapsed time.Duration) {
		logger.Debugf("Reloaded object definitions in %s", elapsed)
	})

	defs, err := cmd.Definitions()
	if err != nil {
		logger.Errorw("Can't reload object definitions, keeping the current ones", zap.Error(errors.WithStack(err)))
		return
	}

	result := registry.Sync(defs)
	if len(result.Removed) > 0 {
		manager.Invalidate()
	}

	ReloadsTotal.Inc()
	logger.Infof("Reloaded object definitions: %d objects added, %d removed", len(result.Added), len(result.Removed))
}

func attributeChanged(logger *logging.Logger) checkable.AttributeChangedFunc {
	return func(c *checkable.Checkable, attr string) {
		AttributeChangesTotal.WithLabelValues(attr).Inc()
		logger.Debugw("Attribute changed", zap.String("object", c.Name()), zap.String("attribute", attr))
	}
}
