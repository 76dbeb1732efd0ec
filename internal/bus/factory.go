package bus

import (
	"context"

	"github.com/sentinelsearch/sentinel-planner/internal/config"
	"github.com/sentinelsearch/sentinel-planner/internal/pkg/logger"
)

// noopBus discards every event. Used when eventing is disabled.
type noopBus struct{}

func (noopBus) Publish(context.Context, string, Event) error     { return nil }
func (noopBus) Subscribe(context.Context, string, Handler) error { return nil }
func (noopBus) Close() error                                     { return nil }

// New builds a bus from config: "kafka", "memory", or "none".
func New(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaBus(KafkaConfig{
			Brokers:  ParseKafkaBrokers(cfg.KafkaBrokers),
			ClientID: cfg.KafkaClient,
		}, log)
	case "memory":
		return NewMemoryBus(), nil
	default:
		return noopBus{}, nil
	}
}
