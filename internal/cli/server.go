package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/LeJamon/goflashd/internal/config"
	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/asset"
	grpcserver "github.com/LeJamon/goflashd/internal/grpc"
	"github.com/LeJamon/goflashd/internal/rpc"
	"github.com/LeJamon/goflashd/internal/service"
	"github.com/LeJamon/goflashd/internal/storage/history"
	"github.com/LeJamon/goflashd/internal/storage/history/postgres"
	"github.com/LeJamon/goflashd/internal/storage/statestore"
	"github.com/LeJamon/goflashd/internal/types"
)

// serverCmd represents the server command (default action)
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the settlement daemon",
	Long: `Start the goflashd server which provides:
- HTTP JSON-RPC API endpoints
- WebSocket server for real-time subscriptions
- gRPC query endpoint
- Health check endpoint

This is the default command when no subcommand is specified.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Set server as the default command
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}

	if cfg.Node.DebugLogfile != "" {
		f, err := os.OpenFile(cfg.Node.DebugLogfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open debug logfile: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkpoints, err := openStateStore(cfg)
	if err != nil {
		return err
	}
	defer checkpoints.Close()

	var archive history.Store
	if cfg.History.Enabled {
		archive, err = openHistory(ctx, cfg)
		if err != nil {
			return err
		}
		defer archive.Close(context.Background())
	}

	manager := rpc.NewSubscriptionManager()
	svc := service.New(asset.NewBank(), service.Options{
		Checkpoints: checkpoints,
		History:     archive,
		Publisher:   rpc.NewPublisher(manager),
	})

	if err := bootstrapInstances(cfg, svc); err != nil {
		return err
	}

	httpServer := rpc.NewServer(svc, time.Duration(cfg.RPC.TimeoutSeconds)*time.Second, rootCmd.Version)
	wsServer := rpc.NewWebSocketServer(httpServer, manager)

	if !quiet {
		printBanner(cfg, svc)
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.RPC.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/", httpServer)
		mux.Handle("/rpc", httpServer)
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok","service":"goflashd"}`))
		})
		runHTTPServer(g, ctx, &http.Server{Addr: cfg.RPC.Address, Handler: mux})
	}

	if cfg.WebSocket.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/ws", wsServer)
		runHTTPServer(g, ctx, &http.Server{Addr: cfg.WebSocket.Address, Handler: mux})
	}

	if cfg.GRPC.Enabled {
		grpcSrv, err := grpcserver.NewServer(&grpcserver.ServerConfig{
			Address:        cfg.GRPC.Address,
			MaxRecvMsgSize: cfg.GRPC.MaxRecvMsgSize,
			MaxSendMsgSize: cfg.GRPC.MaxSendMsgSize,
		}, svc)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return grpcSrv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			grpcSrv.Stop()
			return nil
		})
	}

	if err := g.Wait(); err != nil && err != http.ErrServerClosed && err != context.Canceled {
		return err
	}
	return nil
}

func loadServerConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadConfig(configFile)
	}
	if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
		return config.LoadConfig(config.DefaultConfigPath())
	}
	return config.DefaultConfig(), nil
}

func openStateStore(cfg *config.Config) (*statestore.Store, error) {
	store, err := statestore.Open(statestore.Config{
		Backend:     cfg.StateStore.Backend,
		Path:        cfg.StateStorePath(),
		CacheSize:   cfg.StateStore.CacheSize,
		Compression: cfg.StateStore.Compression,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}

func openHistory(ctx context.Context, cfg *config.Config) (history.Store, error) {
	hcfg := history.DefaultConfig()
	hcfg.Host = cfg.History.Host
	hcfg.Port = cfg.History.Port
	hcfg.Database = cfg.History.Database
	hcfg.Username = cfg.History.Username
	hcfg.Password = cfg.History.Password
	hcfg.SSLMode = cfg.History.SSLMode
	if cfg.History.MaxOpenConns > 0 {
		hcfg.MaxOpenConns = cfg.History.MaxOpenConns
	}

	archive, err := postgres.New(hcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure history archive: %w", err)
	}
	if err := archive.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open history archive: %w", err)
	}
	return archive, nil
}

// bootstrapInstances deploys the configured instances, restoring balances
// from the latest checkpoint when one exists.
func bootstrapInstances(cfg *config.Config, svc *service.Service) error {
	for i := range cfg.Instances {
		ic := &cfg.Instances[i]
		deployer, err := types.AccountIDFromHex(ic.Deployer)
		if err != nil {
			return fmt.Errorf("instances[%d]: %w", i, err)
		}
		feeRecipient, err := types.AccountIDFromHex(ic.FeeRecipient)
		if err != nil {
			return fmt.Errorf("instances[%d]: %w", i, err)
		}

		id, err := svc.RestoreInstance(deployer, feeRecipient, amount.FeeRate(ic.FeeRate))
		if err != nil {
			return fmt.Errorf("instances[%d]: deploy failed: %w", i, err)
		}
		if !quiet {
			fmt.Printf("Instance %s ready (fee rate %d ppm)\n", id, ic.FeeRate)
		}
	}
	return nil
}

func runHTTPServer(g *errgroup.Group, ctx context.Context, srv *http.Server) {
	g.Go(func() error {
		return srv.ListenAndServe()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func printBanner(cfg *config.Config, svc *service.Service) {
	fmt.Println("Starting goflashd - custodial settlement daemon")
	fmt.Println("===============================================")
	fmt.Println("Server Configuration:")
	if cfg.RPC.Enabled {
		fmt.Printf("  - HTTP JSON-RPC: http://%s/\n", cfg.RPC.Address)
		fmt.Printf("  - Health Check:  http://%s/health\n", cfg.RPC.Address)
	}
	if cfg.WebSocket.Enabled {
		fmt.Printf("  - WebSocket:     ws://%s/ws\n", cfg.WebSocket.Address)
	}
	if cfg.GRPC.Enabled {
		fmt.Printf("  - gRPC:          %s\n", cfg.GRPC.Address)
	}
	fmt.Printf("  - State store:   %s (%s)\n", cfg.StateStore.Backend, cfg.StateStorePath())
	if cfg.History.Enabled {
		fmt.Printf("  - History:       postgres://%s:%d/%s\n", cfg.History.Host, cfg.History.Port, cfg.History.Database)
	}
	fmt.Printf("  - Instances:     %d deployed\n", svc.Info().Instances)
	fmt.Println()
}
