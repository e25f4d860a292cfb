package config

import "time"

const (
	defaultQueueName          = "repo_analysis_queue"
	defaultVisibilityTimeout  = 300 * time.Second
	defaultDispatchInterval   = 5 * time.Second
	minimumVisibilityTimeout  = 30 * time.Second
	minimumDispatchInterval   = time.Second
	defaultNotificationWindow = time.Minute
)

// DispatchConfig contains queue and dispatcher configuration.
type DispatchConfig struct {
	// QueueName is the durable queue the dispatcher reads analysis requests from.
	QueueName string `env:"DISPATCH_QUEUE_NAME" envDefault:"repo_analysis_queue"`

	// VisibilityTimeout is how long a claimed queue message stays hidden from
	// other readers. It must comfortably cover the hand-off latency so a
	// crashed dispatcher's message is eventually redelivered.
	VisibilityTimeout time.Duration `env:"DISPATCH_VISIBILITY_TIMEOUT" envDefault:"300s"`

	// LoopInterval is the tick interval of the background dispatch loop.
	LoopInterval time.Duration `env:"DISPATCH_LOOP_INTERVAL" envDefault:"5s"`

	// NotificationWindow bounds each LISTEN wait in the dispatch loop so the
	// connection is recycled periodically.
	NotificationWindow time.Duration `env:"DISPATCH_NOTIFICATION_WINDOW" envDefault:"1m"`
}

// Sanitize applies guardrails to dispatch configuration values.
func (d *DispatchConfig) Sanitize() {
	if d.QueueName == "" {
		d.QueueName = defaultQueueName
	}
	if d.VisibilityTimeout < minimumVisibilityTimeout {
		d.VisibilityTimeout = defaultVisibilityTimeout
	}
	if d.LoopInterval < minimumDispatchInterval {
		d.LoopInterval = defaultDispatchInterval
	}
	if d.NotificationWindow <= 0 {
		d.NotificationWindow = defaultNotificationWindow
	}
}
