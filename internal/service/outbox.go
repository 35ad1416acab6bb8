package service

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	outboxQueueSize   = 256
	outboxMaxAttempts = 3
	outboxBackoff     = 1 * time.Second
	outboxItemTimeout = 10 * time.Second
)

// outboxItem is one queued best-effort side effect.
type outboxItem struct {
	name string
	fn   func(ctx context.Context) error
}

// Outbox runs fire-and-forget side effects (generation logs, conversation
// turns, message embeddings) off the primary path: enqueue, retry with
// backoff, eventually drop. Failures are logged and observable but never
// propagate to the caller.
type Outbox struct {
	queue    chan outboxItem
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOutbox creates and starts an outbox worker.
func NewOutbox() *Outbox {
	o := &Outbox{
		queue: make(chan outboxItem, outboxQueueSize),
		stop:  make(chan struct{}),
	}
	o.wg.Add(1)
	go o.run()
	return o
}

// Enqueue schedules a side effect. A full queue drops the item immediately;
// the primary operation must never block on observability.
func (o *Outbox) Enqueue(name string, fn func(ctx context.Context) error) {
	select {
	case o.queue <- outboxItem{name: name, fn: fn}:
	default:
		log.Printf("WARN: outbox full, dropping %s", name)
	}
}

// Close drains nothing: pending items are abandoned, which is acceptable for
// best-effort work. It waits for the in-flight item to finish.
func (o *Outbox) Close() {
	o.stopOnce.Do(func() { close(o.stop) })
	o.wg.Wait()
}

func (o *Outbox) run() {
	defer o.wg.Done()
	for {
		select {
		case <-o.stop:
			return
		case item := <-o.queue:
			o.process(item)
		}
	}
}

func (o *Outbox) process(item outboxItem) {
	for attempt := 1; attempt <= outboxMaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), outboxItemTimeout)
		err := item.fn(ctx)
		cancel()
		if err == nil {
			return
		}
		if attempt == outboxMaxAttempts {
			log.Printf("WARN: outbox dropped %s after %d attempts: %v", item.name, attempt, err)
			return
		}
		select {
		case <-o.stop:
			return
		case <-time.After(outboxBackoff * time.Duration(attempt)):
		}
	}
}
