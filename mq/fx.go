package mq

import (
	"context"

	"github.com/tiagossm/Compia20251207-sub001/logger"
	"github.com/tiagossm/Compia20251207-sub001/shutdown"

	"go.uber.org/fx"
)

// Module provides a Producer when a broker is configured and nil otherwise;
// callers must check for nil.
var Module = fx.Module("mq",
	fx.Provide(ProvideProducer),
)

type ProducerParams struct {
	fx.In

	Config   *Config
	Shutdown *shutdown.Manager
	Logger   *logger.Logger
}

type ProducerResult struct {
	fx.Out

	Producer Producer
}

// ProvideProducer closes the producer after the audit queue has drained.
func ProvideProducer(params ProducerParams) (ProducerResult, error) {
	if !params.Config.Enabled() {
		params.Logger.Info("mq disabled, no producer")
		return ProducerResult{}, nil
	}
	producer, err := NewProducer(params.Config, params.Logger.Logger)
	if err != nil {
		return ProducerResult{}, err
	}

	params.Shutdown.Register("mq-producer", shutdown.PriorityClose, func(context.Context) error {
		return producer.Close()
	})
	return ProducerResult{Producer: producer}, nil
}
