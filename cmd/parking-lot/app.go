package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"parking-facility/internal/config"
	"parking-facility/internal/layout"
	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
	"parking-facility/internal/server"
	"parking-facility/internal/store"
)

type mode int

const (
	modeCLI mode = iota
	modeServer
	modeBoth
)

type app struct {
	cfg          *config.Config
	telemetry    *parking.TelemetryProvider
	ledger       *store.Ledger
	orchestrator *parking.InstrumentedOrchestrator
}

func run(ctx context.Context, cfg *config.Config, m mode) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logging.Init(cfg.ServiceName, cfg.Environment, cfg.LogLevel)
	log := logging.Logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	switch m {
	case modeCLI:
		go func() {
			select {
			case <-sigChan:
				log.Info().Msg("shutting down")
				cancel()
			case <-ctx.Done():
			}
		}()
		parking.NewConsole(a.orchestrator, a.telemetry, os.Stdin, os.Stdout).Run(ctx)
		return nil

	case modeServer:
		srv := a.newServer()
		go func() {
			select {
			case <-sigChan:
				log.Info().Msg("received shutdown signal")
			case <-ctx.Done():
			}
			a.shutdownServer(srv)
			cancel()
		}()
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil

	default:
		srv := a.newServer()

		serverDone := make(chan error, 1)
		go func() {
			serverDone <- srv.Start()
		}()

		consoleDone := make(chan struct{})
		go func() {
			parking.NewConsole(a.orchestrator, a.telemetry, os.Stdin, os.Stdout).Run(ctx)
			close(consoleDone)
		}()

		var runErr error
		select {
		case err := <-serverDone:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				runErr = fmt.Errorf("http server: %w", err)
			}
		case <-consoleDone:
			log.Info().Msg("console exited")
		case <-sigChan:
			log.Info().Msg("received shutdown signal")
		}

		a.shutdownServer(srv)
		cancel()
		return runErr
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logging.Logger()

	source := layout.NewFileSource(cfg.LayoutPath)
	source.ReadOnly = !cfg.PersistLayout

	lot, inst, err := source.LoadLayout(ctx)
	if err != nil {
		return nil, err
	}

	telemetry, err := parking.NewTelemetryProvider(ctx, parking.TelemetryConfig{
		ServiceName:    cfg.ServiceName,
		OTLPEndpoint:   cfg.OTelEndpoint,
		ExportInterval: cfg.MetricsInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	ledger, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		shutdownTelemetry(telemetry)
		return nil, fmt.Errorf("open ticket ledger: %w", err)
	}

	o, err := parking.NewInstrumentedOrchestrator(parking.NewOrchestrator(lot, inst), telemetry, source, ledger)
	if err != nil {
		ledger.Close()
		shutdownTelemetry(telemetry)
		return nil, err
	}

	restored, err := o.RestoreTickets(ctx)
	if err != nil {
		ledger.Close()
		shutdownTelemetry(telemetry)
		return nil, err
	}

	a := o.Availability()
	log.Info().
		Str("institution", inst.Name).
		Str("layout", cfg.LayoutPath).
		Int("capacity", a.TotalCapacity).
		Int("occupied", a.Occupied).
		Int("restored_tickets", restored).
		Msg("parking facility ready")

	return &app{
		cfg:          cfg,
		telemetry:    telemetry,
		ledger:       ledger,
		orchestrator: o,
	}, nil
}

func (a *app) newServer() *server.Server {
	srv := server.NewServer(a.orchestrator, server.Options{
		Port:        a.cfg.Port,
		ServiceName: a.cfg.ServiceName,
		HistorySize: a.cfg.DefaultHistorySize,
	})
	logging.Logger().Info().Str("address", srv.GetAddress()).Msg("serving HTTP API")
	return srv
}

func (a *app) shutdownServer(srv *server.Server) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger().Error().Err(err).Msg("server shutdown error")
	}
}

func (a *app) close() {
	if err := a.ledger.Close(); err != nil {
		logging.Logger().Error().Err(err).Msg("error closing ticket ledger")
	}
	shutdownTelemetry(a.telemetry)
}

func shutdownTelemetry(telemetry *parking.TelemetryProvider) {
	logging.Logger().Info().Msg("shutting down telemetry")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logging.Logger().Error().Err(err).Msg("error shutting down telemetry")
	}
}

// check loads the layout without touching the ledger or telemetry.
func check(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lot, inst, err := layout.NewFileSource(cfg.LayoutPath).LoadLayout(ctx)
	if err != nil {
		return err
	}
	a := parking.NewLayoutIndex(lot).Availability()

	fmt.Fprintf(out, "%s (%s)\n", inst.Name, lot.Name)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Category", "Available"})
	for _, cat := range parking.SpotCategories() {
		t.AppendRow(table.Row{cat, a.AvailableByCategory[cat]})
	}
	t.AppendFooter(table.Row{"Capacity", a.TotalCapacity})
	t.AppendFooter(table.Row{"Occupied", a.Occupied})
	t.Render()
	return nil
}
