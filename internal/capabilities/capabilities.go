// Package capabilities holds outbound integrations that receive engine events:
// a Slack incoming webhook and a Kafka topic.
package capabilities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	mcotel "github.com/ankittk/missionctl/internal/otel"
	"github.com/ankittk/missionctl/internal/workflow"
)

// Capability is an integration that can post a plain message (e.g. Slack, Kafka).
type Capability interface {
	Name() string
	// Notify sends a message to the default target (Slack channel, Kafka topic).
	Notify(ctx context.Context, message string) error
}

// Sink is a capability that also consumes engine events.
type Sink interface {
	Capability
	workflow.Publisher
}

// Registry holds loaded capabilities by name. It is itself a workflow.Publisher
// that forwards every event to the registered sinks.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

func (r *Registry) Register(name string, c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[name] = c
}

func (r *Registry) Get(name string) Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caps[name]
}

// Names returns the registered capability names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.caps))
	for n := range r.caps {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Notify(ctx context.Context, name, message string) error {
	c := r.Get(name)
	if c == nil {
		return fmt.Errorf("capability %q not found", name)
	}
	return c.Notify(ctx, message)
}

// Publish forwards ev to every registered Sink and joins their errors.
func (r *Registry) Publish(ctx context.Context, ev workflow.Event) error {
	r.mu.RLock()
	sinks := make(map[string]Sink, len(r.caps))
	for name, c := range r.caps {
		if s, ok := c.(Sink); ok {
			sinks[name] = s
		}
	}
	r.mu.RUnlock()

	var errs []error
	for name, s := range sinks {
		if err := s.Publish(ctx, ev); err != nil {
			mcotel.RecordSinkFailure(ctx, name)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every capability that holds resources.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for _, c := range r.caps {
		if cl, ok := c.(interface{ Close() error }); ok {
			errs = append(errs, cl.Close())
		}
	}
	return errors.Join(errs...)
}

// Options selects which sinks Build registers. Empty fields disable a sink.
type Options struct {
	SlackWebhookURL string
	SlackChannel    string
	SlackUsername   string
	// SlackEvents limits Slack posts to these event types; empty means the defaults.
	SlackEvents []string

	KafkaBrokers []string
	KafkaTopic   string
}

// Build returns a registry with the sinks enabled by opts.
func Build(opts Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	reg := NewRegistry()
	if opts.SlackWebhookURL != "" {
		reg.Register("slack", SlackWebhook{
			WebhookURL: opts.SlackWebhookURL,
			Channel:    opts.SlackChannel,
			Username:   opts.SlackUsername,
			Events:     opts.SlackEvents,
		})
		logger.Info("sink enabled", "sink", "slack")
	}
	if len(opts.KafkaBrokers) > 0 && opts.KafkaTopic != "" {
		reg.Register("kafka", NewKafkaSink(opts.KafkaBrokers, opts.KafkaTopic))
		logger.Info("sink enabled", "sink", "kafka", "topic", opts.KafkaTopic)
	}
	return reg
}
