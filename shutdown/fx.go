package shutdown

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("shutdown",
	fx.Provide(NewManager),
)

// Attach runs the manager from the fx stop sequence. Invoke it after every
// other component so it stops first, before fx closes pools and clients.
func Attach(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			m.Shutdown(ctx)
			return nil
		},
	})
}
