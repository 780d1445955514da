package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ankittk/missionctl/internal/capabilities"
	"github.com/ankittk/missionctl/internal/config"
	"github.com/ankittk/missionctl/internal/httpapi"
	"github.com/ankittk/missionctl/internal/otel"
	"github.com/ankittk/missionctl/internal/rpc"
	"github.com/ankittk/missionctl/internal/workflow"
	"google.golang.org/grpc"
)

var errNotRunning = errors.New("missionctl is not running")

// sinkQueue bounds events waiting for Slack/Kafka delivery.
const sinkQueue = 1024

// Runtime is everything the daemon wires together, ready to serve.
type Runtime struct {
	App    *httpapi.App
	Engine *workflow.Engine
	Sinks  *capabilities.Registry
	RPC    *grpc.Server
	Logger *slog.Logger

	async *capabilities.Async
}

// Build opens the store and wires engine, event sinks, SSE hub, HTTP app and
// (when configured) the gRPC server. Close releases all of it.
func Build(ctx context.Context, opts StartOptions, logger *slog.Logger) (*Runtime, error) {
	cfg := opts.Config
	st, err := OpenStore(opts.Home, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	eng, err := NewEngine(st, cfg.Engine, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if opts.Seed {
		if _, err := eng.SeedDemo(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("seed demo: %w", err)
		}
	}

	sinks := capabilities.Build(SinkOptions(cfg.Sinks), logger)
	async := capabilities.NewAsync(sinks, sinkQueue, 5*time.Second, logger)
	hub := httpapi.NewSSEHub()
	eng.Publisher = workflow.FanOut{hub, async}

	srvOpts := httpapi.ServerOptions{
		Home:         opts.Home,
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Engine:       eng,
		Hub:          hub,
		Password:     cfg.Auth.Password,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       logger,
	}
	if opts.EnableOtel {
		metricsHandler, err := otel.InitMeterProvider(ctx, "missionctl")
		if err != nil {
			logger.Warn("otel init failed, using plain metrics", "err", err)
		} else {
			srvOpts.MetricsHandler = metricsHandler
			srvOpts.UseOtelHTTP = true
			if err := otel.InitMetricsWithTaskCount(ctx, eng.TaskCounts); err != nil {
				logger.Warn("otel instruments", "err", err)
			}
		}
	}
	app, err := httpapi.NewApp(srvOpts)
	if err != nil {
		_ = async.Close()
		_ = st.Close()
		return nil, err
	}
	rt := &Runtime{App: app, Engine: eng, Sinks: sinks, Logger: logger, async: async}
	if cfg.Server.RPCAddr != "" {
		rt.RPC = rpc.NewServer(eng, logger)
	}
	return rt, nil
}

// Close stops event delivery and closes sinks and the store.
func (r *Runtime) Close() error {
	return errors.Join(r.async.Close(), r.Sinks.Close(), r.Engine.Store.Close())
}

func StartForeground(ctx context.Context, opts StartOptions) error {
	if opts.Home == "" {
		return errors.New("home is required")
	}
	cfg := opts.Config
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3548
	}
	opts.Config = cfg
	logger := NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	// Ensure dirs exist.
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return err
	}

	// Acquire singleton lock (released on exit).
	lock, err := acquireLock(lockPath(opts.Home))
	if err != nil {
		return err
	}
	defer lock.release()

	// Optional pprof.
	startPprof(cfg.Server.PprofAddr, logger)

	// Early port check for clearer error.
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	if err := checkPortAvailable(addr); err != nil {
		return err
	}

	rt, err := Build(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("shutdown", "err", err)
		}
	}()

	// Write PID + addr files.
	pid := os.Getpid()
	if err := os.WriteFile(pidPath(opts.Home), []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return err
	}
	_ = os.WriteFile(addrPath(opts.Home), []byte(addr+"\n"), 0o644)
	defer func() {
		_ = os.Remove(pidPath(opts.Home))
		_ = os.Remove(addrPath(opts.Home))
	}()

	logger.Info("daemon starting", "addr", addr, "home", opts.Home, "profile", rt.Engine.Profile.Name, "store", cfg.Store.Driver)
	errCh := make(chan error, 2)
	go func() {
		errCh <- rt.App.Server.ListenAndServe()
	}()
	if rt.RPC != nil {
		lis, err := net.Listen("tcp", cfg.Server.RPCAddr)
		if err != nil {
			_ = rt.App.Server.Close()
			return fmt.Errorf("rpc listen: %w", err)
		}
		logger.Info("rpc listening", "addr", lis.Addr().String())
		go func() {
			errCh <- rt.RPC.Serve(lis)
		}()
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = rt.App.Shutdown(shutdownCtx)
		if rt.RPC != nil {
			rt.RPC.GracefulStop()
		}
	}

	select {
	case <-ctx.Done():
		shutdown()
		return ctx.Err()
	case err := <-errCh:
		shutdown()
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, http.ErrServerClosed) || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func StartBackground(ctx context.Context, opts StartOptions) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}

	// Ensure dirs exist before starting.
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return 0, err
	}

	// Best-effort: refuse to start if already running.
	if st, _ := Status(ctx, opts.Home); st.Running {
		return 0, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, st.PID)
	}

	logFile := filepath.Join(protectedDir(opts.Home), "daemon.log")
	stderr, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	// Kept open for child lifetime; closing here may break writes on some platforms.

	cmd := exec.Command(exe, daemonArgs(opts)...)
	// Store settings travel by environment so a DSN never shows up in ps.
	cmd.Env = append(os.Environ(),
		config.EnvPrefix+"_STORE_DRIVER="+opts.Config.Store.Driver,
		config.EnvPrefix+"_STORE_DSN="+opts.Config.Store.DSN,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	setDaemonSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	// Wait briefly for pid file to appear or process to die.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := Status(ctx, opts.Home); st.Running {
			return st.PID, nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Fallback to started pid even if status isn't ready yet.
	return cmd.Process.Pid, nil
}

// daemonArgs rebuilds the command line for the detached child. Settings that
// came from config.yaml or the environment are re-read by the child itself.
func daemonArgs(opts StartOptions) []string {
	args := []string{
		"daemon",
		"--home", opts.Home,
		"--port", strconv.Itoa(opts.Config.Server.Port),
		"--log-format", "json",
	}
	if opts.Config.Server.Host != "" {
		args = append(args, "--host", opts.Config.Server.Host)
	}
	if opts.Config.Server.RPCAddr != "" {
		args = append(args, "--rpc-addr", opts.Config.Server.RPCAddr)
	}
	if opts.Config.Server.PprofAddr != "" {
		args = append(args, "--pprof", opts.Config.Server.PprofAddr)
	}
	if opts.Config.Log.Level != "" {
		args = append(args, "--log-level", opts.Config.Log.Level)
	}
	if opts.Config.Engine.Profile != "" {
		args = append(args, "--profile", opts.Config.Engine.Profile)
	}
	if opts.Seed {
		args = append(args, "--seed")
	}
	if !opts.EnableOtel {
		args = append(args, "--otel=false")
	}
	return args
}

func Stop(ctx context.Context, home string) (bool, error) {
	st, err := Status(ctx, home)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return false, nil
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		// On unix FindProcess always succeeds; keep this for completeness.
		return false, errNotRunning
	}
	if err := signalTerm(proc); err != nil {
		return false, err
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if st2, _ := Status(ctx, home); !st2.Running {
			return true, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	_ = proc.Kill()
	return true, nil
}

func Status(ctx context.Context, home string) (StatusInfo, error) {
	pb, err := os.ReadFile(pidPath(home))
	if err != nil {
		return StatusInfo{Running: false}, nil
	}
	pidStr := strings.TrimSpace(string(pb))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return StatusInfo{Running: false}, nil
	}

	if !processExists(pid) {
		_ = os.Remove(pidPath(home))
		return StatusInfo{Running: false}, nil
	}

	addr := ""
	if ab, err := os.ReadFile(addrPath(home)); err == nil {
		addr = strings.TrimSpace(string(ab))
	}
	if addr == "" {
		addr = "unknown"
	}
	return StatusInfo{Running: true, PID: pid, Addr: addr}, nil
}

func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use", addr)
	}
	_ = ln.Close()
	return nil
}
