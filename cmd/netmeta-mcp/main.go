// netmeta-mcp serves network meta-analysis tools over the Model Context
// Protocol, delegating all statistics to the R netmeta package.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"netmetamcp/internal/audit"
	"netmetamcp/internal/config"
	"netmetamcp/internal/mcpserver"
	"netmetamcp/internal/rbridge"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "0.1.0"

const serverName = "netmeta-mcp"

var (
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "netmeta-mcp",
	Short: "MCP server for network meta-analysis via R netmeta",
	Long: `netmeta-mcp exposes network meta-analysis tools over the Model Context
Protocol. All statistical computation runs in an R subprocess using the
netmeta package; results flow back as JSON and the fitted analysis is
persisted between calls so league tables, rankings and forest-plot data
never recompute the model.

Run without arguments to serve MCP on stdio.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if !verbose {
			if level, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
				zapCfg.Level.SetLevel(level)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStdio()
	},
}

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Serve MCP over HTTP (POST /mcp) with CORS for browser clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveHTTP()
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the R environment and session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "netmeta-mcp.yaml", "path to YAML config file")
	rootCmd.AddCommand(serveHTTPCmd)
	rootCmd.AddCommand(doctorCmd)
}

// buildServer verifies the R environment and assembles the tool surface.
// A missing engine or missing netmeta package aborts startup here.
func buildServer(ctx context.Context) (*mcpserver.Server, func(), error) {
	timeout, err := cfg.EngineTimeout()
	if err != nil {
		return nil, nil, err
	}

	bridge, err := rbridge.New(ctx, rbridge.Options{
		EnginePath: cfg.Engine.Path,
		StatePath:  cfg.Engine.StatePath,
		Timeout:    timeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, err
	}

	var auditStore *audit.Store
	cleanup := func() {}
	if cfg.Audit.DatabasePath != "" {
		auditStore, err = audit.Open(cfg.Audit.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { _ = auditStore.Close() }
	}

	return mcpserver.New(serverName, version, bridge, auditStore, logger), cleanup, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveStdio() error {
	ctx, stop := signalContext()
	defer stop()

	server, cleanup, err := buildServer(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("serving MCP on stdio", zap.String("version", version))
	return server.ServeStdio(ctx, os.Stdin, os.Stdout)
}

func serveHTTP() error {
	ctx, stop := signalContext()
	defer stop()

	server, cleanup, err := buildServer(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return server.ServeHTTP(ctx, cfg.Server.HTTPAddr)
}

// runDoctor reports on each construction-time dependency without starting
// a server.
func runDoctor() error {
	ctx := context.Background()

	enginePath := cfg.Engine.Path
	if enginePath == "" {
		var err error
		enginePath, err = rbridge.LocateEngine()
		if err != nil {
			fmt.Println("R executable: NOT FOUND")
			return err
		}
	}
	fmt.Printf("R executable: %s\n", enginePath)

	if err := rbridge.VerifyEngine(ctx, enginePath); err != nil {
		fmt.Println("R version check: FAILED")
		return err
	}
	fmt.Println("R version check: ok")

	runner := rbridge.NewRRunner(enginePath, logger)
	for _, pkg := range []string{"netmeta", "jsonlite", "meta"} {
		if err := rbridge.VerifyPackage(ctx, runner, pkg); err != nil {
			fmt.Printf("R package %s: MISSING\n", pkg)
			return err
		}
		fmt.Printf("R package %s: ok\n", pkg)
	}

	state := rbridge.NewStateStore(cfg.Engine.StatePath)
	if state.Exists() {
		fmt.Printf("session state: present at %s\n", state.Path())
	} else {
		fmt.Printf("session state: none (will be created by runnetmeta) at %s\n", state.Path())
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
