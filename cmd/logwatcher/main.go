package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/ajkula/logwatcher/adapter/inbound/console"
	"github.com/ajkula/logwatcher/adapter/inbound/grpc"
	"github.com/ajkula/logwatcher/adapter/inbound/rest"
	"github.com/ajkula/logwatcher/adapter/inbound/websocket"
	"github.com/ajkula/logwatcher/adapter/outbound/crypto"
	"github.com/ajkula/logwatcher/adapter/outbound/filewatcher"
	"github.com/ajkula/logwatcher/adapter/outbound/logging"
	"github.com/ajkula/logwatcher/adapter/outbound/machineid"
	"github.com/ajkula/logwatcher/adapter/outbound/storage/localfs"
	"github.com/ajkula/logwatcher/adapter/outbound/storage/memory"
	"github.com/ajkula/logwatcher/adapter/outbound/viewer"
	"github.com/ajkula/logwatcher/config"
	"github.com/ajkula/logwatcher/domain/port/inbound"
	"github.com/ajkula/logwatcher/domain/service"
)

const version = "1.0.0"

func main() {
	// Handle command-line arguments
	var configPath string
	var generateConfig bool
	var showVersion bool
	var interactive bool
	var quiet bool
	var tokenSubject string
	var hashPassword string

	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.BoolVar(&generateConfig, "generate-config", false, "Generate default configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&interactive, "interactive", false, "Read watch/stop commands from stdin")
	flag.BoolVar(&quiet, "quiet", false, "Do not reveal viewers of the files given on the command line")
	flag.StringVar(&tokenSubject, "token", "", "Print an API token for the given subject and exit")
	flag.StringVar(&hashPassword, "hash-password", "", "Print the argon2id hash of a password for security.users and exit")
	flag.Parse()

	configSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			configSet = true
		}
	})

	// Display version information
	if showVersion {
		fmt.Printf("logwatcher Version %s\n", version)
		os.Exit(0)
	}

	// Generate a default configuration file
	if generateConfig {
		cfg := config.DefaultConfig()
		if err := config.SaveConfig(cfg, configPath); err != nil {
			fmt.Printf("Error generating config file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration file generated at: %s\n", configPath)
		os.Exit(0)
	}

	if hashPassword != "" {
		hash, err := crypto.NewArgon2Hasher().Hash(hashPassword)
		if err != nil {
			fmt.Printf("Error hashing password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if !errors.Is(err, config.ErrConfigNotFound) || configSet {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = config.DefaultConfig()
	}

	if tokenSubject != "" {
		ttl := time.Duration(cfg.HTTP.JWT.ExpirationMinutes) * time.Minute
		token, err := rest.IssueToken(cfg.HTTP.JWT.Secret, tokenSubject, ttl)
		if err != nil {
			fmt.Printf("Error issuing token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		os.Exit(0)
	}

	logger := logging.NewSlogAdapter(cfg)
	defer logger.Shutdown()

	if cfg.General.NodeID == "" {
		nodeID, err := machineid.NewHardwareMachineID().GetMachineID()
		if err != nil {
			logger.Warn("Failed to derive node id", "error", err)
			nodeID = "logwatcher"
		}
		cfg.General.NodeID = nodeID
	}

	logger.Info("Starting logwatcher...", "nodeId", cfg.General.NodeID, "version", version)

	// Create a cancellable context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Outgoing adapters
	notifier, err := filewatcher.NewFSWatcher(logger, cfg.Watch.Debounce)
	if err != nil {
		logger.Error("Failed to create file watcher", "error", err)
		os.Exit(1)
	}

	var mirror *viewer.Console
	if cfg.Viewer.Console {
		mirror = viewer.NewConsole(os.Stdout)
	}

	watchService := service.NewWatchService(
		notifier,
		localfs.NewFileSource(),
		viewer.NewFactory(mirror, cfg.Viewer.MaxBufferBytes),
		memory.NewWatchRegistry(),
		logger,
		service.WatchServiceConfig{
			AutoShow: cfg.Watch.AutoShow,
			Presets:  cfg.Watch.Presets,
		},
	)

	// Files from the configuration are watched quietly, those given on the
	// command line are revealed unless -quiet
	for _, path := range cfg.Watch.Paths {
		if _, err := watchService.Watch(ctx, path, inbound.WatchOptions{Quiet: true}); err != nil {
			logger.Error("Failed to watch configured file", "path", path, "error", err)
		}
	}
	for _, path := range flag.Args() {
		if _, err := watchService.Watch(ctx, path, inbound.WatchOptions{Quiet: quiet}); err != nil {
			logger.Error("Failed to watch file", "path", path, "error", err)
		}
	}

	var server *http.Server
	var wsHandler *websocket.Handler

	if cfg.HTTP.Enabled {
		router := mux.NewRouter()

		authMiddleware := rest.NewAuthMiddleware(cfg.HTTP.JWT.Secret, cfg.Security.EnableAuthentication, logger)
		router.Use(authMiddleware.Middleware)

		// Request logging
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.Debug("Request", "method", r.Method, "path", r.URL.Path)
				next.ServeHTTP(w, r)
			})
		})

		restHandler := rest.NewHandler(watchService, cfg, logger)
		restHandler.SetupRoutes(router)

		ttl := time.Duration(cfg.HTTP.JWT.ExpirationMinutes) * time.Minute
		authHandler := rest.NewAuthHandler(cfg.Security.Users, crypto.NewArgon2Hasher(), cfg.HTTP.JWT.Secret, ttl, logger)
		authHandler.SetupRoutes(router)

		wsHandler = websocket.NewHandler(watchService, logger, ctx)
		router.HandleFunc("/api/ws/watch", wsHandler.HandleConnection)

		if err := config.CheckTLSCertificates(cfg, logger); err != nil {
			logger.Error("TLS configuration error", "error", err)
			os.Exit(1)
		}

		httpAddr := fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)
		server = &http.Server{
			Addr:        httpAddr,
			Handler:     router,
			ReadTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "address", httpAddr, "tls", cfg.HTTP.TLS)
			var err error
			if cfg.HTTP.TLS {
				err = server.ListenAndServeTLS(cfg.HTTP.CertFile, cfg.HTTP.KeyFile)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "error", err)
				cancel()
			}
		}()
	}

	// Configure the gRPC health adapter if enabled
	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		grpcServer = grpc.NewServer(watchService, logger, ctx)
		grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPC.Address, cfg.GRPC.Port)
		if err := grpcServer.Start(grpcAddr); err != nil {
			logger.Error("Failed to start gRPC server", "error", err)
			os.Exit(1)
		}
	}

	if interactive || cfg.Console.Interactive {
		go func() {
			c := console.NewConsole(watchService, os.Stdin, os.Stdout, logger)
			if err := c.Run(ctx); err != nil {
				logger.Error("Console stopped", "error", err)
			}
			cancel()
		}()
	}

	// Wait for signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("logwatcher started successfully")

	select {
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	// Cleanup order: inbound adapters first, then the watches they drive
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown error", "error", err)
		}
		shutdownCancel()
	}

	if wsHandler != nil {
		wsHandler.Cleanup()
	}

	if grpcServer != nil {
		grpcServer.Stop()
	}

	watchService.Cleanup()

	if err := notifier.Stop(); err != nil {
		logger.Warn("Error stopping file watcher", "error", err)
	}

	cancel()
	logger.Info("Shutdown complete")
}
