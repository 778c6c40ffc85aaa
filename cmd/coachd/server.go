package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/helioform/coachd/internal/api"
	"github.com/helioform/coachd/internal/backend"
	"github.com/helioform/coachd/internal/coach"
	"github.com/helioform/coachd/internal/config"
	"github.com/helioform/coachd/internal/docs"
	"github.com/helioform/coachd/internal/memory"
	"github.com/helioform/coachd/internal/persona"
	"github.com/helioform/coachd/internal/snapshot"
	"github.com/helioform/coachd/internal/sources"
	"github.com/helioform/coachd/internal/storage"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the coachd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running coachd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show coachd system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "coachd.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "coachd version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("coachd is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("coachd is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Wire the coaching pipeline.
	local := sources.NewLocalStore(cfg.Storage.DataDir)
	builder := snapshot.NewBuilder()
	builder.Profiles = local
	builder.Goals = local
	builder.Nutrition = local
	builder.Activity = local
	builder.Health = local
	builder.Cycle = local
	builder.Protocols = local
	builder.Wearables = local

	mem := memory.NewStore(store, cfg.Coach.PlanSupersede)
	personas := persona.NewRegistry()
	llm := backend.NewClient(cfg.Backend.APIKey, cfg.Backend.Model)
	orchestrator := coach.New(coach.Config{
		Snapshots:      builder,
		Memory:         mem,
		Personas:       personas,
		Backend:        llm,
		Turns:          store,
		DefaultPersona: cfg.Coach.Persona,
		PremiumUser:    cfg.Coach.PremiumUser,
		MaxTokens:      cfg.Backend.MaxTokens,
	})
	importer := docs.NewImporter(store)

	apiToken, err := config.APIToken(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	handler := api.NewHandler(api.Deps{
		Coach:    orchestrator,
		Memory:   mem,
		Personas: personas,
		Docs:     importer,
		Plans:    store,
		State:    local,
		Token:    apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Coach:     orchestrator,
		Memory:    mem,
		Snapshots: builder,
	})
	stdioSrv := mcpserver.NewStdioServer(mcpSrv)

	// Run HTTP and MCP servers until a signal arrives.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "coachd listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("MCP server started (stdio transport)")
	return g.Wait()
}

func stopServer() error {
	cfg, err := config.LoadUnchecked()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("coachd is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop coachd (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to coachd (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.LoadUnchecked()
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, colorize(ansiBold, "coachd status"))

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}
	if resp, err := client.Get(healthURL); err == nil {
		resp.Body.Close()
		printStatus("Server", "running on port %d", cfg.Server.Port)
	} else {
		printStatus("Server", "not running")
	}

	if pid, err := readPIDFile(pidFilePath(cfg.Storage.DataDir)); err == nil {
		printStatus("PID", "%d", pid)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Model", "%s", cfg.Backend.Model)
	printStatus("Persona", "%s", cfg.Coach.Persona)
	return nil
}
