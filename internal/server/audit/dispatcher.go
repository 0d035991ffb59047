package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher buffers events and hands them to the sink from one goroutine.
// Events that find the buffer full, or arrive after Close, are dropped and
// counted.
type Dispatcher struct {
	sink      Sink
	log       logging.Logger
	ch        chan queued
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	mu        sync.RWMutex // guards closed against in-flight sends
	closed    bool
	closeOnce sync.Once
	onDrop    func()
	now       func() time.Time
}

// queued keeps the emitter's span so sinks can link to the request trace.
type queued struct {
	event Event
	span  trace.SpanContext
}

type DispatcherOption func(*Dispatcher)

// WithDropHook is called for every dropped event, e.g. to bump a metric.
func WithDropHook(fn func()) DispatcherOption {
	return func(d *Dispatcher) { d.onDrop = fn }
}

func NewDispatcher(sink Sink, bufferSize int, log logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if log == nil {
		log = logging.Nop{}
	}
	d := &Dispatcher{
		sink: sink,
		log:  log,
		ch:   make(chan queued, bufferSize),
		done: make(chan struct{}),
		now:  time.Now,
	}
	for _, o := range opts {
		o(d)
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case q := <-d.ch:
			d.emit(q)
		case <-d.done:
			for {
				select {
				case q := <-d.ch:
					d.emit(q)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) emit(q queued) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if q.span.IsValid() {
		ctx = trace.ContextWithSpanContext(ctx, q.span)
	}
	if err := d.sink.Emit(ctx, q.event); err != nil {
		d.log.Warn(ctx, "audit sink failed", "event_type", q.event.EventType, "error", err)
	}
}

// Emit never blocks. A zero Timestamp is filled in.
func (d *Dispatcher) Emit(ctx context.Context, e Event) {
	if d == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = d.now().UTC()
	}
	q := queued{event: e}
	if ctx != nil {
		q.span = trace.SpanContextFromContext(ctx)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop()
		return
	}
	select {
	case d.ch <- q:
	default:
		d.drop()
	}
}

func (d *Dispatcher) drop() {
	d.dropped.Add(1)
	if d.onDrop != nil {
		d.onDrop()
	}
}

// Close stops accepting events, flushes what is buffered and waits for the
// worker to exit.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.done)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
