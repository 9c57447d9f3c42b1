package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wcscanner/server/internal/config"
	"github.com/wcscanner/server/internal/mock"
	"github.com/wcscanner/server/internal/project"
	"github.com/wcscanner/server/internal/rig"
	"github.com/wcscanner/server/internal/scanner"
	"github.com/wcscanner/server/internal/session"
	"github.com/wcscanner/server/internal/sysinfo"
	"github.com/wcscanner/server/internal/upload"
	"github.com/wcscanner/server/internal/ws"
)

// mockShotDelay is how long the simulated camera takes per frame.
const mockShotDelay = 50 * time.Millisecond

func main() {
	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	projects := project.NewManager(cfg.Storage.BaseDir)
	if err := projects.EnsureBaseDir(); err != nil {
		log.Fatalf("Failed to prepare storage: %v", err)
	}
	if existing, err := projects.List(context.Background()); err != nil {
		log.Printf("Listing projects: %v", err)
	} else {
		log.Printf("Storage at %s holds %d projects", projects.Dir(), len(existing))
	}

	var (
		camera scanner.Camera
		table  scanner.Turntable
		ready  func(context.Context) error
	)
	switch cfg.Rig.Driver {
	case config.DriverCommand:
		log.Println("Starting with command rig driver")
		camera = &scanner.CommandCamera{Argv: cfg.Rig.CaptureCommand, TempDir: os.TempDir()}
		table = &scanner.CommandTurntable{Argv: cfg.Rig.RotateCommand}
		ready = func(ctx context.Context) error { return scanner.Ready(ctx, cfg.Rig.ReadyCommand) }
	default:
		log.Println("Starting in mock mode")
		sim := mock.NewRig(mockShotDelay)
		camera, table = sim, sim
		ready = func(context.Context) error { sim.Ready(); return nil }
	}
	scan := scanner.New(camera, table, projects, cfg.Rig.Passes, cfg.Rig.SettleDelay)

	services := rig.Guard(rig.Services{
		Capture:  scan,
		Rotation: scan,
		Projects: projects,
		Uploader: upload.NewMailer(cfg.Mail),
		System:   sysinfo.NewDisk(projects.Dir()),
	})

	registry := session.NewRegistry(cfg.Server.MaxConnections)
	broadcaster := ws.NewBroadcaster(registry, services.Projects, services.System, cfg.Server.SnapshotInterval)
	server := ws.NewServer(registry, broadcaster, ws.NewDispatcher(services), projects, ws.Options{
		SendBuffer:     cfg.Server.SendBuffer,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxConnections: cfg.Server.MaxConnections,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.Addr(), err)
	}
	log.Printf("Listening on ws://%s", ln.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go broadcaster.Run(ctx)

	if err := ready(ctx); err != nil {
		log.Printf("Ready signal failed: %v", err)
	}

	httpServer := &http.Server{Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down...", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Closing sessions: %v", err)
	}
}
