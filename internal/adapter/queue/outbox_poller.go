package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/dstein131/Main/internal/adapter/repo"
)

// Publisher is what the poller drains to. *RabbitProducer in production.
type Publisher interface {
	Publish(ctx context.Context, channel string, body []byte) error
}

// OutboxSource is the pending-row side of the outbox table.
// *repo.MySQLOutboxRepo in production.
type OutboxSource interface {
	FetchPending(ctx context.Context, limit int) ([]repo.OutboxEvent, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, backoff time.Duration) error
}

// OutboxPoller drains PENDING outbox rows to the broker. Settlement commits
// the row in the same transaction as the order, so notification delivery is
// at-least-once and never blocks or unwinds settlement.
type OutboxPoller struct {
	outbox    OutboxSource
	publisher Publisher
	log       *slog.Logger

	tick      time.Duration
	batchSize int
	backoff   time.Duration
}

func NewOutboxPoller(outbox OutboxSource, publisher Publisher, log *slog.Logger) *OutboxPoller {
	return &OutboxPoller{
		outbox:    outbox,
		publisher: publisher,
		log:       log,
		tick:      time.Second,
		batchSize: 100,
		backoff:   30 * time.Second,
	}
}

// Run blocks until ctx is cancelled. Call in a goroutine.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.drain(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) drain(ctx context.Context) {
	events, err := p.outbox.FetchPending(ctx, p.batchSize)
	if err != nil {
		p.log.Error("outbox fetch failed", "err", err)
		return
	}

	for _, ev := range events {
		if err := p.publisher.Publish(ctx, ev.Channel, ev.Payload); err != nil {
			p.log.Error("outbox publish failed", "id", ev.ID, "channel", ev.Channel, "err", err)
			if err := p.outbox.MarkFailed(ctx, ev.ID, p.backoff); err != nil {
				p.log.Error("outbox mark-failed failed", "id", ev.ID, "err", err)
			}
			continue
		}
		if err := p.outbox.MarkSent(ctx, ev.ID); err != nil {
			// Row stays PENDING and is re-published next tick; consumers
			// must tolerate the duplicate.
			p.log.Error("outbox mark-sent failed", "id", ev.ID, "err", err)
		}
	}
}
