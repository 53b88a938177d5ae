// Package app wires the connect services together and runs the background
// sweeper next to a gRPC health endpoint.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/socialconnect/internal/platform/timeouts"
	"github.com/louisbranch/socialconnect/internal/services/connect/audit"
	"github.com/louisbranch/socialconnect/internal/services/connect/credential"
	"github.com/louisbranch/socialconnect/internal/services/connect/keyring"
	"github.com/louisbranch/socialconnect/internal/services/connect/oauthstate"
	"github.com/louisbranch/socialconnect/internal/services/connect/socialplatform"
	connectsqlite "github.com/louisbranch/socialconnect/internal/services/connect/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name reported by the runtime.
const HealthService = "socialconnect.Connect"

const (
	defaultConnectPort = 8094
	defaultConnectDB   = "data/connect.db"
)

// RuntimeConfig controls connect startup and sweep behavior.
type RuntimeConfig struct {
	Port           int
	DBPath         string
	MasterSecret   string
	SweepInterval  time.Duration
	AuditRetention time.Duration
	KeyCacheSize   int
	KeyCacheTTL    time.Duration
	Platforms      socialplatform.Settings
	// Listener replaces the Port listener when set.
	Listener net.Listener
}

// Services is the wired connect service graph.
type Services struct {
	States      *oauthstate.Service
	Credentials *credential.Manager
	Catalog     *socialplatform.Catalog
	Keys        *keyring.Deriver
	Recorder    *audit.Recorder
}

// NewServices builds the connect services over one SQLite store.
func NewServices(store *connectsqlite.Store, cfg RuntimeConfig) (Services, error) {
	keys, err := keyring.NewDeriver(cfg.MasterSecret, keyring.WithCache(cfg.KeyCacheSize, cfg.KeyCacheTTL))
	if err != nil {
		return Services{}, err
	}
	catalog := socialplatform.NewCatalog(cfg.Platforms)
	recorder := audit.NewRecorder(store)

	var managerOpts []credential.Option
	if enabled := catalog.Enabled(); len(enabled) > 0 {
		managerOpts = append(managerOpts, credential.WithPlatforms(enabled))
	}
	return Services{
		States:      oauthstate.NewService(store, recorder, oauthstate.WithCatalog(catalog)),
		Credentials: credential.NewManager(store, keys, recorder, managerOpts...),
		Catalog:     catalog,
		Keys:        keys,
		Recorder:    recorder,
	}, nil
}

// Run opens storage, wires services, serves gRPC health and sweeps until ctx ends.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.MasterSecret) == "" {
		return keyring.ErrMasterSecretMissing
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultConnectPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultConnectDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create connect storage dir: %w", err)
		}
	}

	store, err := connectsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open connect sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close connect sqlite store: %v", closeErr)
		}
	}()

	services, err := NewServices(store, cfg)
	if err != nil {
		return err
	}
	if enabled := services.Catalog.Enabled(); len(enabled) == 0 {
		log.Printf("no platform client ids configured; authorization urls are disabled")
	} else {
		log.Printf("platforms enabled: %v", enabled)
	}

	listener := cfg.Listener
	if listener == nil {
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
		if err != nil {
			return fmt.Errorf("listen on connect port %d: %w", cfg.Port, err)
		}
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(timeouts.Shutdown):
			grpcServer.Stop()
		}
		<-serveErr
	}()

	log.Printf("connect server listening at %v", listener.Addr())
	sweeper := NewSweeper(services.States, store, cfg.SweepInterval, cfg.AuditRetention)
	return sweeper.Run(ctx)
}
