package daemon

import (
	"errors"

	"github.com/ankittk/missionctl/internal/config"
)

// ErrAlreadyRunning is returned when another daemon holds the home directory.
var ErrAlreadyRunning = errors.New("missionctl is already running")

// StartOptions configures the daemon. Config is the fully resolved configuration
// (defaults, config.yaml, environment and flags).
type StartOptions struct {
	Home   string
	Config config.Config
	// Seed creates the demo workspace when the store is empty.
	Seed bool
	// EnableOtel serves /metrics from the OpenTelemetry Prometheus exporter and
	// instruments HTTP handlers.
	EnableOtel bool
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
