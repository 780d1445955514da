package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce      sync.Once
	taskOpsCounter       metric.Int64Counter
	activitiesCounter    metric.Int64Counter
	notificationsCounter metric.Int64Counter
	mentionsCounter      metric.Int64Counter
	sinkFailuresCounter  metric.Int64Counter
	sseConnectionsGauge  metric.Int64ObservableGauge
	sseEventsCounter     metric.Int64Counter
	sseConnections       int64
	sseConnectionsMu     sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		taskOpsCounter, err = m.Int64Counter("missionctl_task_operations_total", metric.WithDescription("Total task operations (create, status, assign)"))
		if err != nil {
			return
		}
		activitiesCounter, err = m.Int64Counter("missionctl_activities_total", metric.WithDescription("Activities appended to the log"))
		if err != nil {
			return
		}
		notificationsCounter, err = m.Int64Counter("missionctl_notifications_total", metric.WithDescription("Notifications created, by source"))
		if err != nil {
			return
		}
		mentionsCounter, err = m.Int64Counter("missionctl_mentions_total", metric.WithDescription("@mention tokens scanned in posted messages"))
		if err != nil {
			return
		}
		sinkFailuresCounter, err = m.Int64Counter("missionctl_sink_failures_total", metric.WithDescription("Event sink deliveries that failed"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("missionctl_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("missionctl_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
	})
	return err
}

// RecordTaskOp records a task operation (create, status, assign).
func RecordTaskOp(ctx context.Context, op, workspace, status string) {
	if taskOpsCounter == nil {
		return
	}
	taskOpsCounter.Add(ctx, 1, metric.WithAttributes(
		AttrOperation.String(op),
		AttrWorkspace.String(workspace),
		AttrStatus.String(status),
	))
}

// RecordActivity records one appended activity of the given type.
func RecordActivity(ctx context.Context, activityType string) {
	if activitiesCounter != nil {
		activitiesCounter.Add(ctx, 1, metric.WithAttributes(AttrType.String(activityType)))
	}
}

// RecordNotifications records n notifications created from source ("assignment" or "mention").
func RecordNotifications(ctx context.Context, source string, n int) {
	if notificationsCounter != nil && n > 0 {
		notificationsCounter.Add(ctx, int64(n), metric.WithAttributes(AttrType.String(source)))
	}
}

// RecordMentions records n mention tokens found in one message.
func RecordMentions(ctx context.Context, n int) {
	if mentionsCounter != nil && n > 0 {
		mentionsCounter.Add(ctx, int64(n))
	}
}

// RecordSinkFailure records a failed delivery to the named event sink.
func RecordSinkFailure(ctx context.Context, sink string) {
	if sinkFailuresCounter != nil {
		sinkFailuresCounter.Add(ctx, 1, metric.WithAttributes(AttrType.String(sink)))
	}
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// TaskCountFunc returns task counts keyed by status. Used for the missionctl_tasks gauge.
type TaskCountFunc func(ctx context.Context) map[string]int64

// InitMetricsWithTaskCount creates instruments and optionally registers a callback for task gauges.
// Call after InitMeterProvider. If taskCount is nil, task gauges are not reported.
func InitMetricsWithTaskCount(ctx context.Context, taskCount TaskCountFunc) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	if taskCount == nil {
		return nil
	}
	m := Meter()
	tasksGauge, err := m.Int64ObservableGauge("missionctl_tasks", metric.WithDescription("Number of tasks by status"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		for status, n := range taskCount(ctx) {
			o.ObserveInt64(tasksGauge, n, metric.WithAttributes(AttrStatus.String(status)))
		}
		return nil
	}, tasksGauge)
	return err
}
