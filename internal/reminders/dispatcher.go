package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Lakshya1002/healthmate3-sub000/internal/models"
	"github.com/Lakshya1002/healthmate3-sub000/internal/push"
)

// Transport delivers one encoded payload to one subscription.
type Transport interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) error
}

// Summary counts the outcomes of one fan-out.
type Summary struct {
	Attempted int
	Delivered int
	Failed    int
	Pruned    int
}

// Dispatcher sends notifications concurrently. Every delivery is independent:
// a failing or hanging endpoint never blocks or cancels the others.
type Dispatcher struct {
	transport Transport
	hygiene   *Hygiene
	payload   PayloadConfig
	log       *zap.Logger
}

func NewDispatcher(transport Transport, hygiene *Hygiene, payload PayloadConfig, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		hygiene:   hygiene,
		payload:   payload,
		log:       log,
	}
}

type delivery struct {
	sub        models.PushSubscription
	body       []byte
	reminderID int
}

// Dispatch sends the due-dose notification for every candidate and waits
// for all sends to finish.
func (d *Dispatcher) Dispatch(ctx context.Context, candidates []DueCandidate) Summary {
	jobs := make([]delivery, 0, len(candidates))
	encodeFailures := 0
	for _, c := range candidates {
		body, err := json.Marshal(d.payload.ForCandidate(c))
		if err != nil {
			d.log.Error("failed to encode payload", zap.Int("reminder_id", c.ReminderID), zap.Error(err))
			encodeFailures++
			continue
		}
		jobs = append(jobs, delivery{sub: c.Subscription, body: body, reminderID: c.ReminderID})
	}

	s := d.run(ctx, jobs)
	s.Attempted += encodeFailures
	s.Failed += encodeFailures
	return s
}

// Deliver sends the same payload to every subscription in subs.
func (d *Dispatcher) Deliver(ctx context.Context, subs []models.PushSubscription, p Payload) (Summary, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	jobs := make([]delivery, len(subs))
	for i, sub := range subs {
		jobs[i] = delivery{sub: sub, body: body}
	}
	return d.run(ctx, jobs), nil
}

func (d *Dispatcher) run(ctx context.Context, jobs []delivery) Summary {
	if len(jobs) == 0 {
		return Summary{}
	}

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
		failed    atomic.Int64
		pruned    atomic.Int64
		gone      sync.Map // endpoints already handed to hygiene in this run
	)

	for _, j := range jobs {
		wg.Add(1)
		go func(j delivery) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					failed.Add(1)
					d.log.Error("push delivery panicked",
						zap.Int("reminder_id", j.reminderID),
						zap.Any("panic", r),
						zap.Stack("stack"),
					)
				}
			}()

			err := d.transport.Send(ctx, j.sub, j.body)
			if err == nil {
				delivered.Add(1)
				d.log.Debug("push delivered",
					zap.Int("reminder_id", j.reminderID),
					zap.Int("user_id", j.sub.UserID),
					zap.String("endpoint", push.ShortEndpoint(j.sub.Endpoint)),
				)
				return
			}

			failed.Add(1)
			if push.IsPermanent(err) {
				if _, seen := gone.LoadOrStore(j.sub.Endpoint, struct{}{}); seen {
					return
				}
			}
			if d.hygiene.HandleDeliveryFailure(ctx, j.sub, err) {
				pruned.Add(1)
			}
		}(j)
	}
	wg.Wait()

	return Summary{
		Attempted: len(jobs),
		Delivered: int(delivered.Load()),
		Failed:    int(failed.Load()),
		Pruned:    int(pruned.Load()),
	}
}
