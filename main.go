// Command gridrace starts the race simulator server.
//
// It supports two modes:
//  1. "serve" (default) - runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp" - runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags control the listen address, server config file, database path, track
// config directory, debug logging, and optional ngrok tunneling for easy
// external access during development.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/gridrace/gridrace/api"
	"github.com/gridrace/gridrace/race/config"
	"github.com/gridrace/gridrace/race/service"
	"github.com/gridrace/gridrace/store"
	"github.com/gridrace/gridrace/transport/mcp"
	"github.com/gridrace/gridrace/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "GridRace Server"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	cmd := &cli.Command{
		Name:    "gridrace",
		Usage:   "multi-car race simulator with per-car Q-learning",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "gridrace.yaml",
				Usage: "server config file (missing file falls back to defaults)",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides the config file",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "sqlite database path, overrides the config file",
			},
			&cli.StringFlag{
				Name:  "tracks",
				Usage: "track config directory, overrides the config file",
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "keep all state in memory instead of sqlite",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "run the HTTP server with REST API, WebSocket, and MCP endpoint",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "ngrok",
						Usage: "expose the server through an ngrok tunnel",
					},
					&cli.StringFlag{
						Name:  "ngrok-auth",
						Usage: "ngrok auth token (or use NGROK_AUTHTOKEN env var)",
					},
					&cli.StringFlag{
						Name:  "ngrok-domain",
						Usage: "custom ngrok domain (optional)",
					},
				},
				Action: runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "run an MCP stdio server backed by an internal or external HTTP API",
				Action:  runStdioMCP,
			},
		},
		// Bare invocation behaves like "serve".
		Action: runServe,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig merges the config file with command-line overrides.
func loadConfig(cmd *cli.Command) (*config.ServerConfig, error) {
	cfg, err := config.LoadServerConfig(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}

	if addr := cmd.String("addr"); addr != "" {
		cfg.Addr = addr
	}
	if db := cmd.String("db"); db != "" {
		cfg.DatabasePath = db
	}
	if tracks := cmd.String("tracks"); tracks != "" {
		cfg.TrackDir = tracks
	}
	return cfg, nil
}

// buildService wires the store, track config manager and race service.
// The returned cleanup closes the store.
func buildService(cmd *cli.Command, cfg *config.ServerConfig, notifier service.Notifier) (service.RaceService, *config.Manager, func(), error) {
	var st store.Store
	if cmd.Bool("memory") || cfg.DatabasePath == "" {
		st = store.NewMemoryStore()
		log.Println("Using in-memory store")
	} else {
		sqlStore, err := store.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open database: %w", err)
		}
		st = sqlStore
		log.Printf("Using sqlite store at %s", cfg.DatabasePath)
	}

	cleanup := func() {
		if err := st.Close(); err != nil {
			log.Printf("Store close error: %v", err)
		}
	}

	var tracks *config.Manager
	if cfg.TrackDir != "" {
		manager, err := config.NewManager(cfg.TrackDir)
		if err != nil {
			log.Printf("Warning: track config dir unavailable: %v", err)
		} else {
			tracks = manager
		}
	}

	return service.NewRaceService(st, tracks, cfg, notifier), tracks, cleanup, nil
}

// runServe starts the HTTP server with REST API, WebSocket hub, and an /mcp
// proxy endpoint. If ngrok is enabled it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	hub := websocket.NewHub()
	go hub.Run()

	raceService, tracks, cleanup, err := buildService(cmd, cfg, hub)
	if err != nil {
		return err
	}
	defer cleanup()

	apiServer := api.NewServer(raceService, tracks, hub)

	// The MCP endpoint proxies through the public API so both surfaces
	// always agree.
	baseURL := "http://" + listenHost(cfg.Addr)
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient))

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("%s v%s listening on %s", AppName, Version, cfg.Addr)
		log.Printf("REST API: http://%s/api", listenHost(cfg.Addr))
		log.Printf("WebSocket: ws://%s/ws?track_id=<track_id>", listenHost(cfg.Addr))
		log.Printf("MCP endpoint: http://%s/mcp", listenHost(cfg.Addr))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	ngrokShouldRun := cmd.Bool("ngrok")
	if !ngrokShouldRun {
		if envEnabled := os.Getenv("NGROK_ENABLED"); envEnabled == "true" || envEnabled == "1" {
			ngrokShouldRun = true
		}
	}

	if ngrokShouldRun {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(serveCtx, cmd, mainRouter)
		}()
	}

	select {
	case sig := <-stop:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")
	return nil
}

// mcpHandler serves MCP messages over plain HTTP POST.
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// runNgrokTunnel exposes the router through an ngrok tunnel until ctx ends.
func runNgrokTunnel(ctx context.Context, cmd *cli.Command, handler http.Handler) {
	authToken := cmd.String("ngrok-auth")
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
	}
	if authToken == "" {
		log.Println("WARNING: ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	domain := cmd.String("ngrok-domain")
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Printf("Using custom ngrok domain: %s", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}
	defer func() {
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server. It reuses an external API at
// http://localhost:8080 when one answers; otherwise it starts a minimal
// internal HTTP API bound to a random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	var baseURL string

	externalURL := "http://localhost:8080"
	log.Printf("Checking for external API server at %s...", externalURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Printf("External API server found at %s, using it for MCP", externalURL)
		baseURL = externalURL
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("get available port: %w", err)
		}

		internalAddr := listener.Addr().String()
		log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		hub := websocket.NewHub()
		go hub.Run()

		raceService, tracks, cleanup, err := buildService(cmd, cfg, hub)
		if err != nil {
			return err
		}
		defer cleanup()

		httpServer := &http.Server{Handler: api.NewServer(raceService, tracks, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()

		// Give the listener a beat before the first proxy call.
		time.Sleep(100 * time.Millisecond)

		baseURL = "http://" + internalAddr
	}

	mcpClient := mcp.NewClient(baseURL)

	if baseURL == externalURL {
		log.Println("MCP stdio server ready (using external HTTP server)")
	} else {
		log.Println("MCP stdio server ready (using internal HTTP server)")
	}

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

// listenHost turns a listen address like ":8080" into a dialable host:port.
func listenHost(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "::" || host == "0.0.0.0" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
