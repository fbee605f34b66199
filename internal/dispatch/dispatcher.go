package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/tenant"
	"github.com/relaywave/bsp-gateway/internal/webhook"
)

// PullQueue is the consumer-side contract the dispatcher drains.
// RedisQueue and MemQueue (queue.go) both implement it.
type PullQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*webhook.Job, error)
}

// TenantResolver maps a phone_number_id to its owning workspace.
type TenantResolver interface {
	Resolve(ctx context.Context, phoneID string) (*tenant.Workspace, error)
}

const (
	dequeueTimeout = 5 * time.Second
	maxAttempts    = 5
)

// Dispatcher drains the webhook job queue with a fixed pool of worker
// goroutines, classifies each change object, resolves tenant context, and
// invokes the matching handler (§4.2, §5 concurrency model).
type Dispatcher struct {
	Queue    PullQueue
	Logs     *webhook.Repo
	Tenants  TenantResolver
	Handlers Handlers

	Workers int
}

func New(queue PullQueue, logs *webhook.Repo, tenants TenantResolver, handlers Handlers, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{Queue: queue, Logs: logs, Tenants: tenants, Handlers: handlers, Workers: workers}
}

// Run blocks until ctx is cancelled, draining the queue with Workers
// goroutines. Cancellation is cooperative: in-flight jobs finish their
// current handler call before a worker exits.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.workerLoop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (d *Dispatcher) workerLoop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := d.Queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Int("worker", id).Msg("dispatch: dequeue failed")
			continue
		}
		if job == nil {
			continue
		}
		d.process(ctx, *job)
	}
}

func (d *Dispatcher) process(ctx context.Context, job webhook.Job) {
	processed, err := d.Logs.AlreadyProcessed(ctx, job.DeliveryID, job.EventType)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("dispatch: idempotency check failed")
	} else if processed {
		log.Ctx(ctx).Debug().Str("delivery_id", job.DeliveryID).Msg("dispatch: dropping already-processed job")
		return
	}

	changes, err := Classify(job.Body)
	if err != nil {
		d.finish(ctx, job, false, err)
		return
	}

	var firstErr error
	for _, change := range changes {
		if err := d.dispatchOne(ctx, job, change); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.finish(ctx, job, firstErr == nil, firstErr)
}

func (d *Dispatcher) dispatchOne(ctx context.Context, job webhook.Job, change ChangeObject) error {
	handle := func() error {
		var w *tenant.Workspace
		if change.Kind != KindTemplateStatus {
			if change.PhoneNumberID != "" {
				resolved, err := d.Tenants.Resolve(ctx, change.PhoneNumberID)
				if err != nil {
					return Retryable(err)
				}
				w = resolved
			}
			if w == nil && change.Kind != KindUnknown {
				log.Ctx(ctx).Warn().Str("kind", string(change.Kind)).Str("phone_id", change.PhoneNumberID).Msg("dispatch: unroutable change, handler will no-op")
			}
		}
		return d.invoke(ctx, w, change)
	}

	operation := func() error {
		err := handle()
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts-1)
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

func (d *Dispatcher) invoke(ctx context.Context, w *tenant.Workspace, change ChangeObject) error {
	switch change.Kind {
	case KindMessage:
		return d.Handlers.HandleMessage(ctx, w, change)
	case KindStatus:
		return d.Handlers.HandleStatus(ctx, w, change)
	case KindTemplateStatus:
		return d.Handlers.HandleTemplateStatus(ctx, change)
	case KindAccountUpdate:
		return d.Handlers.HandleAccountUpdate(ctx, w, change)
	case KindBusinessCapabilityUpdate:
		return d.Handlers.HandleBusinessCapabilityUpdate(ctx, w, change)
	case KindAdUpdate:
		return d.Handlers.HandleAdUpdate(ctx, w, change)
	default:
		log.Ctx(ctx).Warn().Str("field", change.Field).Msg("dispatch: unclassified change object ignored")
		return nil
	}
}

func (d *Dispatcher) finish(ctx context.Context, job webhook.Job, processed bool, err error) {
	if markErr := d.Logs.MarkResult(ctx, job.LogID, processed, err); markErr != nil {
		log.Ctx(ctx).Error().Err(markErr).Msg("dispatch: failed to record job result")
	}
}
