package grpc

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/LeJamon/goflashd/internal/core/amount"
	"github.com/LeJamon/goflashd/internal/core/ledger"
	"github.com/LeJamon/goflashd/internal/service"
	"github.com/LeJamon/goflashd/internal/types"
	"google.golang.org/grpc"
)

// SettlementQueryInterface defines the read side of the settlement service
// needed by gRPC handlers. Implemented by *service.Service.
type SettlementQueryInterface interface {
	// Instance returns the ledger instance with the given identity
	Instance(id types.AccountID) (*ledger.Ledger, error)

	// Instances returns the identities of all deployed instances
	Instances() []types.AccountID

	// MaxFlashLoan reports the largest lendable amount for an asset
	MaxFlashLoan(instanceID types.AccountID, assetID types.AssetID) (amount.Quantity, error)

	// FlashFee quotes the borrowing fee for an amount of an asset
	FlashFee(instanceID types.AccountID, assetID types.AssetID, qty amount.Quantity) (amount.Quantity, error)

	// Info returns service-level counters
	Info() service.Info
}

// Server represents the gRPC server for settlement queries.
type Server struct {
	mu sync.RWMutex

	// grpcServer is the underlying gRPC server
	grpcServer *grpc.Server

	// settlement provides access to query operations
	settlement SettlementQueryInterface

	// config holds the server configuration
	config *ServerConfig

	// listener is the network listener
	listener net.Listener

	// running indicates if the server is currently running
	running bool
}

// NewServer creates a new gRPC server with the given configuration.
func NewServer(cfg *ServerConfig, settlement SettlementQueryInterface) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
		grpc.UnaryInterceptor(UnaryServerInterceptor()),
	}

	server := &Server{
		grpcServer: grpc.NewServer(opts...),
		settlement: settlement,
		config:     cfg,
		running:    false,
	}

	return server, nil
}

// Start starts the gRPC server and begins accepting connections.
// This method blocks until the server is stopped or an error occurs.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	return s.grpcServer.Serve(listener)
}

// StartAsync starts the gRPC server in a goroutine and returns immediately.
func (s *Server) StartAsync() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	go func() {
		_ = s.grpcServer.Serve(listener)
	}()

	return nil
}

// Stop gracefully stops the gRPC server.
// It stops accepting new connections and waits for existing connections to complete.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.grpcServer.GracefulStop()
	s.running = false
}

// IsRunning returns true if the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the address the server is listening on.
// Returns empty string if the server is not running.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GetGRPCServer returns the underlying grpc.Server.
// This can be used to register additional services.
func (s *Server) GetGRPCServer() *grpc.Server {
	return s.grpcServer
}

// UnaryServerInterceptor creates an interceptor for logging and metrics.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		return handler(ctx, req)
	}
}
