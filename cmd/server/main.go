package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"tinygo.org/x/bluetooth"

	"github.com/micro-ha/ble-scanner/internal/config"
	"github.com/micro-ha/ble-scanner/internal/discovery"
	devicedomain "github.com/micro-ha/ble-scanner/internal/domain/device"
	"github.com/micro-ha/ble-scanner/internal/domain/scan"
	userdomain "github.com/micro-ha/ble-scanner/internal/domain/user"
	httpapi "github.com/micro-ha/ble-scanner/internal/http"
	"github.com/micro-ha/ble-scanner/internal/http/handlers"
	"github.com/micro-ha/ble-scanner/internal/logging"
	"github.com/micro-ha/ble-scanner/internal/notify"
	"github.com/micro-ha/ble-scanner/internal/oui"
	"github.com/micro-ha/ble-scanner/internal/poller"
	"github.com/micro-ha/ble-scanner/internal/repository/postgres"
	"github.com/micro-ha/ble-scanner/internal/repository/sqlite"
	"github.com/micro-ha/ble-scanner/internal/services/device"
	"github.com/micro-ha/ble-scanner/internal/services/scanner"
	"github.com/micro-ha/ble-scanner/internal/services/user"
	"github.com/micro-ha/ble-scanner/internal/session"
	"github.com/micro-ha/ble-scanner/internal/signal"
	"github.com/micro-ha/ble-scanner/internal/stream"
)

func main() {
	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server terminated with error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

type stores struct {
	devices devicedomain.Repository
	users   userdomain.Repository
	pinger  handlers.StorePinger
	close   func()
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	if cfg.UsePostgres() {
		pool, err := postgres.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return stores{}, err
		}
		logger.Info("using postgres store")
		return stores{
			devices: postgres.NewDeviceRepository(pool),
			users:   postgres.NewUserRepository(pool),
			pinger:  pool,
			close:   pool.Close,
		}, nil
	}

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		return stores{}, fmt.Errorf("failed to create db directory: %w", err)
	}
	db, err := sqlite.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return stores{}, err
	}
	logger.Info("using sqlite store", "path", cfg.DBPath)
	return stores{
		devices: sqlite.NewDeviceRepository(db),
		users:   sqlite.NewUserRepository(db),
		pinger:  db,
		close:   func() { _ = db.Close() },
	}, nil
}

func buildNotifier(cfg config.Config, logger *slog.Logger) (notify.Notifier, func()) {
	logNotifier := notify.NewLogNotifier(logger)
	if cfg.NATS.URL == "" {
		return logNotifier, func() {}
	}
	nc, err := notify.Connect(cfg.NATS.URL, logger)
	if err != nil {
		logger.Warn("nats unavailable; target notifications are log only", "err", err)
		return logNotifier, func() {}
	}
	return notify.Multi{logNotifier, notify.NewNATSNotifier(nc, cfg.NATS.Subject)}, nc.Close
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer st.close()

	targets := oui.NewPrefixMatcher(cfg.Scan.TargetPrefix)
	deviceSvc := device.New(st.devices, targets, logger)
	userSvc := user.New(st.users, logger)

	notifier, closeNotifier := buildNotifier(cfg, logger)
	defer closeNotifier()

	sess := session.New(targets, session.WithLogger(logger))
	live := discovery.NewLiveSource(bluetooth.DefaultAdapter, nil)
	simulated := discovery.NewSimulatedSource(cfg.Scan.SimulatedInterval, nil)

	var scanSvc *scanner.Service
	hub := stream.NewHub(logger, stream.WithSnapshot(func() stream.Envelope {
		return scanSvc.Snapshot()
	}))
	scanSvc = scanner.New(scanner.Config{
		BaseContext: ctx,
		Mode:        scan.ParseMode(cfg.Scan.Mode),
		Live:        live,
		Simulated:   simulated,
		Session:     sess,
		Recorder:    deviceSvc,
		Devices:     deviceSvc,
		Notifier:    notifier,
		Broadcaster: hub,
		Classifier:  signal.NewClassifier(cfg.Scan.Thresholds),
		Logger:      logger,
	})
	sess.SetListener(scanSvc)
	defer scanSvc.Close()

	statusPoller := poller.New(scanSvc, cfg.Scan.BroadcastInterval, logger)
	scanSvc.SetRefreshTrigger(statusPoller.TriggerRefresh)

	api := handlers.New(deviceSvc, userSvc, scanSvc, hub, st.pinger, logger, cfg.FrontendDist)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		statusPoller.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		logger.Info("server starting", "addr", httpServer.Addr, "scan_mode", cfg.Scan.Mode)
		return httpapi.RunServer(groupCtx, httpServer)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		scanSvc.Stop()
		hub.Close()
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
