package console

import (
	"context"
	"strings"
	"sync"

	appLog "shiftplan/internal/log"
)

// PromptGate asks on the terminal before calendars are touched. A grant
// holds for the rest of the process; a denial is asked again next time.
type PromptGate struct {
	term *Terminal

	mu      sync.Mutex
	granted bool
}

func NewPromptGate(t *Terminal, authorized bool) *PromptGate {
	return &PromptGate{term: t, granted: authorized}
}

func (g *PromptGate) CheckAuthorization(context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted
}

func (g *PromptGate) RequestAuthorization(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.term.Printf("Allow shiftplan to write to your calendars? [y/N] ")
	answer, err := g.term.ReadLine()
	if err != nil {
		return false, err
	}

	granted := false
	switch strings.ToLower(answer) {
	case "y", "yes":
		granted = true
	}

	g.mu.Lock()
	g.granted = granted
	g.mu.Unlock()
	appLog.Info("calendar authorization answered", "granted", granted)
	return granted, nil
}
