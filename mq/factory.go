package mq

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrNoConfig    = errors.New("mq: config is required")
	ErrDisabled    = errors.New("mq: broker disabled")
	ErrUnsupported = errors.New("mq: unsupported broker type")
)

// ProducerFactory builds a Producer for one broker Type.
type ProducerFactory func(cfg *Config, logger *zap.Logger) (Producer, error)

type registry struct {
	mu        sync.RWMutex
	factories map[Type]ProducerFactory
}

func (r *registry) lookup(t Type) (ProducerFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[t]
	return f, ok
}

var brokers = &registry{factories: map[Type]ProducerFactory{}}

// RegisterProducerFactory is called from a broker package's init; importing
// the package for side effects makes its Type available.
func RegisterProducerFactory(t Type, factory ProducerFactory) {
	brokers.mu.Lock()
	defer brokers.mu.Unlock()
	brokers.factories[t] = factory
}

// NewProducer builds the producer for cfg.Type.
func NewProducer(cfg *Config, logger *zap.Logger) (Producer, error) {
	switch {
	case cfg == nil:
		return nil, ErrNoConfig
	case !cfg.Enabled():
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory, ok := brokers.lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("%w %q, registered: %v", ErrUnsupported, cfg.Type, AvailableTypes())
	}
	logger.Info("creating mq producer", zap.String("type", string(cfg.Type)))
	return factory(cfg, logger)
}

// AvailableTypes lists the registered broker types, sorted.
func AvailableTypes() []Type {
	brokers.mu.RLock()
	defer brokers.mu.RUnlock()
	return slices.Sorted(maps.Keys(brokers.factories))
}
