package shutdown

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

/* ========================================================================
 * Shutdown manager
 * ========================================================================
 * Hooks run in ascending priority; hooks sharing a priority run in
 * parallel. The process stops taking requests first, then drains
 * background work (audit queue, activity refreshes), then closes
 * producers.
 * ======================================================================== */

const (
	PriorityServer = 0
	PriorityDrain  = 10
	PriorityNormal = 50
	PriorityClose  = 100
)

type Hook func(ctx context.Context) error

type hookEntry struct {
	name     string
	hook     Hook
	priority int
}

type Manager struct {
	config *Config
	logger *logger.Logger

	mu    sync.Mutex
	hooks []hookEntry
	done  chan struct{}
	once  sync.Once
}

type ManagerParams struct {
	fx.In

	Logger *logger.Logger
	Config *Config `optional:"true"`
}

func NewManager(p ManagerParams) *Manager {
	cfg := p.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Manager{
		config: cfg,
		logger: p.Logger,
		done:   make(chan struct{}),
	}
}

func (m *Manager) Register(name string, priority int, hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hookEntry{name: name, hook: hook, priority: priority})
	m.logger.Debug("shutdown hook registered", zap.String("name", name), zap.Int("priority", priority))
}

// Shutdown runs once; later calls return immediately.
func (m *Manager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		m.run(ctx)
		close(m.done)
	})
}

func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	m.mu.Lock()
	hooks := append([]hookEntry(nil), m.hooks...)
	m.mu.Unlock()
	sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].priority < hooks[j].priority })

	m.logger.Info("graceful shutdown started", zap.Int("hooks", len(hooks)), zap.Duration("timeout", m.config.Timeout))

	failed := 0
	for start := 0; start < len(hooks); {
		end := start
		for end < len(hooks) && hooks[end].priority == hooks[start].priority {
			end++
		}
		if ctx.Err() != nil {
			m.logger.Warn("shutdown timeout reached, skipping remaining hooks", zap.Int("skipped", len(hooks)-start))
			break
		}
		failed += m.runGroup(ctx, hooks[start:end])
		start = end
	}

	if ctx.Err() != nil || failed > 0 {
		m.logger.Warn("graceful shutdown finished with problems", zap.Int("failed", failed), zap.Error(ctx.Err()))
		return
	}
	m.logger.Info("graceful shutdown completed")
}

// runGroup returns how many hooks failed or did not finish in time.
func (m *Manager) runGroup(ctx context.Context, group []hookEntry) int {
	type result struct {
		name     string
		err      error
		duration time.Duration
	}
	results := make(chan result, len(group))

	for _, h := range group {
		go func(h hookEntry) {
			hctx := ctx
			if m.config.HookTimeout > 0 {
				var cancel context.CancelFunc
				hctx, cancel = context.WithTimeout(ctx, m.config.HookTimeout)
				defer cancel()
			}
			start := time.Now()
			err := h.hook(hctx)
			results <- result{name: h.name, err: err, duration: time.Since(start)}
		}(h)
	}

	failed := 0
	for i := 0; i < len(group); i++ {
		select {
		case r := <-results:
			if r.err != nil {
				failed++
				m.logger.Error("shutdown hook failed", zap.String("name", r.name), zap.Duration("duration", r.duration), zap.Error(r.err))
				continue
			}
			m.logger.Info("shutdown hook completed", zap.String("name", r.name), zap.Duration("duration", r.duration))
		case <-ctx.Done():
			m.logger.Warn("shutdown hooks still running at deadline", zap.Int("pending", len(group)-i))
			return failed + len(group) - i
		}
	}
	return failed
}
