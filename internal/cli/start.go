package cli

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/ankittk/missionctl/internal/daemon"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// serverFlags are the daemon settings shared by `start` and the hidden `daemon`
// command. Only flags the user actually set override config.yaml.
type serverFlags struct {
	host       string
	port       int
	rpcAddr    string
	pprofAddr  string
	profile    string
	dbDriver   string
	dbURL      string
	logFormat  string
	seed       bool
	enableOtel bool
}

func (f *serverFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.host, "host", "127.0.0.1", "Interface for the HTTP API")
	fs.IntVar(&f.port, "port", 3548, "Port for the HTTP API")
	fs.StringVar(&f.rpcAddr, "rpc-addr", "", "Serve the gRPC API on this address (e.g. 127.0.0.1:3549)")
	fs.StringVar(&f.pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	fs.StringVar(&f.profile, "profile", "", "Engine profile: rich or simple")
	fs.StringVar(&f.dbDriver, "db-driver", "", "Store driver: sqlite, sqlite3 or postgres")
	fs.StringVar(&f.dbURL, "db-url", "", "Store DSN (required for postgres)")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	fs.BoolVar(&f.seed, "seed", false, "Create the demo workspace on first start")
	fs.BoolVar(&f.enableOtel, "otel", true, "Enable OpenTelemetry metrics (Prometheus exporter on /metrics)")
}

// options resolves the daemon config: defaults, config.yaml, MISSIONCTL_*, then flags.
func (f *serverFlags) options(cmd *cobra.Command) (daemon.StartOptions, error) {
	home, cfg, err := loadConfig(cmd)
	if err != nil {
		return daemon.StartOptions{}, err
	}
	fs := cmd.Flags()
	if fs.Changed("host") {
		cfg.Server.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Server.Port = f.port
	}
	if fs.Changed("rpc-addr") {
		cfg.Server.RPCAddr = f.rpcAddr
	}
	if fs.Changed("pprof") {
		cfg.Server.PprofAddr = f.pprofAddr
	}
	if fs.Changed("profile") {
		cfg.Engine.Profile = f.profile
	}
	if fs.Changed("db-driver") {
		cfg.Store.Driver = f.dbDriver
	}
	if fs.Changed("db-url") {
		cfg.Store.DSN = f.dbURL
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return daemon.StartOptions{}, err
	}
	return daemon.StartOptions{Home: home, Config: cfg, Seed: f.seed, EnableOtel: f.enableOtel}, nil
}

func newStartCmd() *cobra.Command {
	var (
		flags      serverFlags
		foreground bool
		envFile    string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the missionctl daemon (HTTP API, SSE stream, optional gRPC)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := loadEnvFile(envFile); err != nil {
					return err
				}
			}
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}

			host := opts.Config.Server.Host
			if host == "" || host == "0.0.0.0" {
				host = "localhost"
			}
			api := (&url.URL{Scheme: "http", Host: host + ":" + strconv.Itoa(opts.Config.Server.Port)}).String()

			if foreground {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting missionctl in foreground on %s\n", api)
				return daemon.StartForeground(cmd.Context(), opts)
			}

			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "missionctl started (pid %d)\n", pid)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "API: %s\n", api)
			if opts.Config.Server.RPCAddr != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "gRPC: %s\n", opts.Config.Server.RPCAddr)
			}
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in foreground (do not daemonize)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load env vars from file (KEY=VALUE per line) before starting")

	return cmd
}

func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.Index(line, "=")
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		if key != "" {
			_ = os.Setenv(key, value)
		}
	}
	return sc.Err()
}
