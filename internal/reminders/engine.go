// Package reminders finds the medicine reminders due at a minute and sends
// their push notifications.
package reminders

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Engine runs one scheduler tick: resolve the due set, then dispatch it.
// It keeps no state between ticks.
type Engine struct {
	resolver   *Resolver
	dispatcher *Dispatcher
	log        *zap.Logger
}

func NewEngine(resolver *Resolver, dispatcher *Dispatcher, log *zap.Logger) *Engine {
	return &Engine{
		resolver:   resolver,
		dispatcher: dispatcher,
		log:        log,
	}
}

// New wires the engine from its collaborators.
func New(store Store, transport Transport, payload PayloadConfig, log *zap.Logger) *Engine {
	hygiene := NewHygiene(store, log)
	return NewEngine(
		NewResolver(store, log),
		NewDispatcher(transport, hygiene, payload, log),
		log,
	)
}

func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// Tick evaluates the minute containing now. A storage error abandons the
// tick and is returned; delivery failures are handled per subscription.
func (e *Engine) Tick(ctx context.Context, now time.Time) error {
	now = truncateToMinute(now)

	due, err := e.resolver.Resolve(ctx, now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		e.log.Debug("no reminders due", zap.Time("tick", now))
		return nil
	}

	s := e.dispatcher.Dispatch(ctx, due)
	e.log.Info("reminder notifications dispatched",
		zap.Time("tick", now),
		zap.Int("due", len(due)),
		zap.Int("delivered", s.Delivered),
		zap.Int("failed", s.Failed),
		zap.Int("pruned", s.Pruned),
	)
	return nil
}

func truncateToMinute(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}
