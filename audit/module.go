package audit

import (
	"github.com/tiagossm/Compia20251207-sub001/logger"
	"github.com/tiagossm/Compia20251207-sub001/mq"
	"github.com/tiagossm/Compia20251207-sub001/shutdown"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("audit",
	fx.Provide(
		ProvideEmitter,
		func(e *AsyncEmitter) Emitter { return e },
	),
)

type Params struct {
	fx.In
	Config   Config
	DB       *gorm.DB
	Producer mq.Producer `optional:"true"`
	Shutdown *shutdown.Manager
	Logger   *logger.Logger
}

// ProvideEmitter always writes to the database; Kafka is added when a
// producer and topic are both configured.
func ProvideEmitter(p Params) *AsyncEmitter {
	sinks := []Sink{NewDBSink(p.DB)}
	if p.Producer != nil && p.Config.KafkaTopic != "" {
		sinks = append(sinks, NewMQSink(p.Producer, p.Config.KafkaTopic))
	}
	e := NewAsyncEmitter(p.Config, p.Logger, sinks...)
	p.Logger.Info("audit emitter started", zap.Int("sinks", len(sinks)))

	p.Shutdown.Register("audit-emitter", shutdown.PriorityDrain, e.Stop)
	return e
}
