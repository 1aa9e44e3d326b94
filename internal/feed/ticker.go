package feed

import (
	"context"
	"time"
)

// Ticker поддерживает отсчёт свежим между серверными событиями.
type Ticker struct {
	view     *View
	interval time.Duration
}

func NewTicker(view *View, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{view: view, interval: interval}
}

// Run тикает до отмены контекста владельцем.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.view.ApplyTick()
		}
	}
}
