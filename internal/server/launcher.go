package server

import (
	"context"
	"log"

	"github.com/navihq/navi/pkg/models"
)

// Launcher reacts to spawned sessions by starting the child's agent
// runtime. Actually running agents is outside this service; the server
// only guarantees the launcher sees every spawned event.
type Launcher interface {
	Launch(ctx context.Context, session *models.Session) error
}

// LogLauncher is the default no-op launcher. It records the spawn so an
// operator can wire a real runtime later.
type LogLauncher struct{}

// Launch logs the spawned session.
func (LogLauncher) Launch(_ context.Context, s *models.Session) error {
	log.Printf("[server] spawned session %s (%s) awaiting external runtime", s.ID, s.Role)
	return nil
}
