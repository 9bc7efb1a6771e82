// Command fsrd is the FSR pad threshold daemon. It arbitrates access to
// the pad's serial port and serves profiles, live telemetry, and the web
// UI over WebSocket. Run with --sim to use a simulated pad (no hardware
// required).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/openfsr/fsrd/internal/api"
	"github.com/openfsr/fsrd/internal/config"
	"github.com/openfsr/fsrd/internal/controller"
	"github.com/openfsr/fsrd/internal/device"
	"github.com/openfsr/fsrd/internal/events"
	"github.com/openfsr/fsrd/internal/maintenance"
	"github.com/openfsr/fsrd/internal/telemetry"
	"github.com/openfsr/fsrd/internal/zeroconf"
)

func main() {
	var (
		serialName     = flag.String("serial-port", "/dev/ttyUSB0", "serial port of the pad controller")
		addr           = flag.String("addr", "127.0.0.1:3000", "HTTP listen address")
		cfgDir         = flag.String("config-dir", "", "config directory (default: ~/.config/fsrd)")
		webDir         = flag.String("web-dir", "http", "directory with the static web UI (empty to disable)")
		defaultProfile = flag.String("default-profile", "", "default profile assigned to new players")
		sim            = flag.Bool("sim", false, "use a simulated pad (no hardware required)")
		debug          = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	// Configure logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Resolve config directory
	if *cfgDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("cannot determine home directory", "err", err)
			os.Exit(1)
		}
		*cfgDir = filepath.Join(home, ".config", "fsrd")
	}
	if err := os.MkdirAll(*cfgDir, 0755); err != nil {
		slog.Error("cannot create config directory", "path", *cfgDir, "err", err)
		os.Exit(1)
	}

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Serial port. A pad that cannot be opened degrades to a stand-in that
	// fails every read; the command surface and web UI stay up.
	var port device.Port
	if *sim {
		slog.Info("using simulated pad")
		port = device.NewSim([4]int{100, 200, 300, 400})
	} else {
		p, err := device.OpenSerial(*serialName)
		if err != nil {
			slog.Warn("serial port unavailable, running without a pad", "port", *serialName, "err", err)
			port = device.NullPort{}
		} else {
			slog.Info("serial port open", "port", *serialName)
			port = p
		}
	}
	drv := device.New(port)

	// Config store, broadcaster, stream gate
	store := config.NewJSONStore(*cfgDir)
	bus := events.NewBus()
	streamFlag := &telemetry.Flag{}

	ctrl, err := controller.New(drv, store, streamFlag)
	if err != nil {
		slog.Error("controller initialization failed", "err", err)
		os.Exit(1)
	}

	if *defaultProfile != "" {
		if ctrl.SetDefaultProfileName(*defaultProfile) {
			slog.Info("default profile set", "profile", *defaultProfile)
		} else {
			slog.Warn("default profile not found, ignoring",
				"profile", *defaultProfile, "known", ctrl.ProfileNames())
		}
	}

	// Push the current profile's thresholds so the pad matches the
	// persisted configuration from the first frame.
	if err := ctrl.SyncDevice(ctx); err != nil {
		slog.Warn("startup device sync failed", "err", err)
	} else {
		slog.Info("device thresholds synchronized")
	}

	// Watch for external edits of the profiles file. The daemon's own
	// atomic saves also fire events; LastSave filters those out.
	go func() {
		err := config.WatchFile(ctx, store.Path(), func() {
			if time.Since(store.LastSave()) < time.Second {
				return
			}
			slog.Warn("profiles file modified outside the daemon, restart to load external edits",
				"path", store.Path())
		})
		if err != nil {
			slog.Warn("config watch unavailable", "err", err)
		}
	}()

	// Background loops
	go telemetry.RunPump(ctx, drv, bus, streamFlag)
	go telemetry.RunPresence(ctx, ctrl, bus)

	// Daily profiles backups
	maint := maintenance.New(store.Path(), filepath.Join(*cfgDir, "backups"))
	go maint.Start(ctx)

	// Zeroconf mDNS registration
	hostname, _ := os.Hostname()
	webPort := 3000
	if parts := strings.SplitN(*addr, ":", 2); len(parts) == 2 && parts[1] != "" {
		if p, err := strconv.Atoi(parts[1]); err == nil {
			webPort = p
		}
	}
	zc := zeroconf.New(hostname, webPort)
	go func() {
		if err := zc.Start(ctx); err != nil {
			slog.Warn("zeroconf failed", "err", err)
		}
	}()

	// HTTP server
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.NewRouter(ctrl, bus, *webDir),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (long-lived WebSocket connections)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("fsrd listening", "addr", *addr, "sim", *sim, "config", *cfgDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	slog.Info("shutdown complete")
}
