package calendar

import (
	"context"
	"sync"

	appLog "shiftplan/internal/log"
)

// StaticGate answers authorization from configuration. Once granted it
// stays granted for the life of the process.
type StaticGate struct {
	mu             sync.Mutex
	granted        bool
	grantOnRequest bool
}

func NewStaticGate(authorized, grantOnRequest bool) *StaticGate {
	return &StaticGate{granted: authorized, grantOnRequest: grantOnRequest}
}

func (g *StaticGate) CheckAuthorization(context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted
}

func (g *StaticGate) RequestAuthorization(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.grantOnRequest {
		g.granted = true
	}
	appLog.Info("calendar authorization requested", "granted", g.granted)
	return g.granted, nil
}
