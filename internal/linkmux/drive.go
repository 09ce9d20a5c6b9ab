package linkmux

import (
	"context"
	"fmt"

	"github.com/banshee-data/mpc.driver/internal/simlink"
)

// Drive runs the control loop over m until ctx is cancelled or the link
// ends. Frames that arrive while a cycle is in flight are dropped, so the
// controller always works on the freshest telemetry.
func Drive(ctx context.Context, m Mux, s *simlink.Session) error {
	id, lines := m.Subscribe()
	defer m.Unsubscribe(id)

	monitorErr := make(chan error, 1)
	go func() { monitorErr <- m.Monitor(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-monitorErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := s.Handle(line, m.Send); err != nil {
				return fmt.Errorf("link reply: %w", err)
			}
		}
	}
}
