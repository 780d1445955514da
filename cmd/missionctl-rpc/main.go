// missionctl-rpc serves only the engine's gRPC API over a missionctl home, without
// the HTTP daemon. Example:
//
//	go run ./cmd/missionctl-rpc --addr=:3549 --home=$HOME/.missionctl
//
// Then call it with: missionctl rpc call ListWorkspaces --addr localhost:3549
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ankittk/missionctl/internal/capabilities"
	"github.com/ankittk/missionctl/internal/config"
	"github.com/ankittk/missionctl/internal/daemon"
	"github.com/ankittk/missionctl/internal/rpc"
)

func main() {
	addr := flag.String("addr", ":3549", "gRPC listen address")
	homeFlag := flag.String("home", "", "missionctl home (default: ~/.missionctl, env: MISSIONCTL_HOME)")
	profile := flag.String("profile", "", "Engine profile override: rich or simple")
	flag.Parse()

	home, err := config.ResolveHome(*homeFlag)
	if err != nil {
		log.Fatalf("home: %v", err)
	}
	cfg, err := config.Load(home)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *profile != "" {
		cfg.Engine.Profile = *profile
	}
	logger := daemon.NewLogger(cfg.Log, os.Stderr)

	st, err := daemon.OpenStore(home, cfg.Store)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer func() { _ = st.Close() }()
	eng, err := daemon.NewEngine(st, cfg.Engine, logger)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	sinks := capabilities.Build(daemon.SinkOptions(cfg.Sinks), logger)
	defer func() { _ = sinks.Close() }()
	eng.Publisher = sinks

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	srv := rpc.NewServer(eng, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	logger.Info("engine gRPC server listening", "addr", lis.Addr().String(), "service", rpc.ServiceName, "home", home)
	if err := srv.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
