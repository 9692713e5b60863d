package config

// EventsConfig configures reservation events over RabbitMQ. An empty URL
// disables both publishing and the audit consumer.
type EventsConfig struct {
	URL      string
	Queue    string
	AuditLog string
}

// LoadEventsConfig reads AMQP_URL (or RABBITMQ_URL), EVENTS_QUEUE and
// EVENTS_AUDIT_LOG.
func LoadEventsConfig() EventsConfig {
	return EventsConfig{
		URL:      envStr("AMQP_URL", envStr("RABBITMQ_URL", "")),
		Queue:    envStr("EVENTS_QUEUE", "reservation.events"),
		AuditLog: envStr("EVENTS_AUDIT_LOG", "logs/reservations.log"),
	}
}

// Enabled reports whether an AMQP broker is configured.
func (e EventsConfig) Enabled() bool { return e.URL != "" }
