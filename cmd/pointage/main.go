package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/qr-pointage/internal/application"
	"github.com/example/qr-pointage/internal/config"
	"github.com/example/qr-pointage/internal/geofence"
	httptransport "github.com/example/qr-pointage/internal/http"
	"github.com/example/qr-pointage/internal/logging"
	"github.com/example/qr-pointage/internal/scan"
	"github.com/example/qr-pointage/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to build logger", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	backend, err := storage.Open(ctx, storage.Options{Driver: cfg.Storage, SQLitePath: cfg.SQLitePath}, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	handler, err := buildHandler(ctx, cfg, backend, time.Now, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("attendance API listening", "addr", server.Addr, "storage", cfg.Storage, "scan_mode", cfg.ScanMode, "geofence", cfg.GeofenceEnabled)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// buildHandler wires services and transport on top of an open backend.
func buildHandler(ctx context.Context, cfg config.Config, backend *storage.Backend, now func() time.Time, logger *slog.Logger) (http.Handler, error) {
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	signer, err := application.NewJWTSigner(cfg.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("session signer: %w", err)
	}

	decoder, err := scan.NewDecoder(scan.Options{
		Mode:       scan.Mode(cfg.ScanMode),
		Marker:     cfg.ScanMarker,
		TOTPSecret: cfg.ScanTOTPSecret,
		Site:       cfg.ScanSite,
		Now:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("scan decoder: %w", err)
	}

	users := storage.NewUserStore(backend.Users)
	userService := application.NewUserServiceWithLogger(users, application.HashPassword, uuid.NewString, now,
		application.UserSettings{CompanyDomain: cfg.CompanyDomain}, logger)
	authService := application.NewAuthServiceWithLogger(users, storage.NewSessionStore(backend.Sessions), signer,
		application.VerifyPassword, uuid.NewString, now,
		application.AuthSettings{SessionTTL: cfg.SessionTTL, CompanyDomain: cfg.CompanyDomain}, logger)
	attendanceService := application.NewAttendanceServiceWithLogger(storage.NewRecordStore(backend.Records), userService, decoder,
		uuid.NewString, now, application.AttendanceSettings{
			Location:        location,
			Zone:            geofence.NewZone(geofence.Point{Latitude: cfg.ZoneLatitude, Longitude: cfg.ZoneLongitude}, cfg.ZoneTolerance),
			GeofenceEnabled: cfg.GeofenceEnabled,
			StoreTimeout:    cfg.StoreTimeout,
			HistoryDays:     cfg.HistoryDays,
			CacheTTL:        cfg.CacheTTL,
		}, logger)

	if cfg.BootstrapEnabled() {
		if _, _, err := userService.EnsureBootstrapManager(ctx, application.BootstrapManager{
			Email:       cfg.BootstrapManagerEmail,
			Password:    cfg.BootstrapManagerPassword,
			DisplayName: cfg.BootstrapManagerName,
		}); err != nil {
			return nil, fmt.Errorf("seed manager: %w", err)
		}
	}

	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(authService, logger),
		Attendance:     httptransport.NewAttendanceHandler(attendanceService, logger),
		Users:          httptransport.NewUserHandler(userService, logger),
		System:         httptransport.NewSystemHandler(decoder, backend, logger),
		RequireSession: httptransport.RequireSession(authService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Localize(),
		},
	}), nil
}
