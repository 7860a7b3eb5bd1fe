package datadog

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"
)

var (
	dogstatsd *statsd.Client
	enabled   bool
)

// InitMetrics connects the DogStatsD client. Gauges are dropped silently
// until it succeeds.
func InitMetrics(addr, namespace string, tags []string) {
	var err error
	dogstatsd, err = statsd.New(addr)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		return
	}

	dogstatsd.Namespace = namespace
	dogstatsd.Tags = tags
	enabled = true

	log.Info().
		Str("addr", addr).
		Str("namespace", namespace).
		Strs("tags", tags).
		Msg("Datadog metrics initialized")
}

func Gauge(name string, value float64, tags ...string) {
	if dogstatsd != nil {
		err := dogstatsd.Gauge(name, value, tags, 1)
		if err != nil && enabled {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
		}
	}
}

func Incr(name string, tags ...string) {
	if dogstatsd != nil {
		err := dogstatsd.Incr(name, tags, 1)
		if err != nil && enabled {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit count metric")
		}
	}
}

// Close flushes buffered metrics and releases the client. Safe to call when
// metrics were never initialised.
func Close() error {
	if dogstatsd == nil {
		return nil
	}
	err := dogstatsd.Close()
	dogstatsd = nil
	enabled = false
	return err
}
