package notify

import (
	"context"
	"sync"
	"time"

	"fablab-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

const (
	defaultQueueSize = 256
	processTimeout   = 15 * time.Second
)

// Event is one thing admins should hear about. Email, when set, goes to
// a single outside recipient such as the person who registered.
type Event struct {
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Link       string    `json:"link"`
	Resource   string    `json:"resource,omitempty"`
	ResourceID int64     `json:"resource_id,omitempty"`
	At         time.Time `json:"at"`
	Email      *Email    `json:"-"`
}

// Broadcaster is the live feed the dispatcher announces notifications on.
type Broadcaster interface {
	Broadcast(event services.LiveEvent)
}

type Options struct {
	Workers   int
	QueueSize int
	Mailer    Mailer
	Publisher Publisher
	Live      Broadcaster
}

// Dispatcher fans events out to admin notification rows, the live feed,
// the message broker and email, off the request path.
type Dispatcher struct {
	db        *sqlx.DB
	log       *zerolog.Logger
	mailer    Mailer
	publisher Publisher
	live      Broadcaster
	queue     chan Event
	workers   int

	mu      sync.RWMutex
	running bool
	closed  bool
	wg      sync.WaitGroup
}

func NewDispatcher(db *sqlx.DB, log *zerolog.Logger, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Dispatcher{
		db:        db,
		log:       log,
		mailer:    opts.Mailer,
		publisher: opts.Publisher,
		live:      opts.Live,
		queue:     make(chan Event, opts.QueueSize),
		workers:   opts.Workers,
	}
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running || d.closed {
		return
	}
	d.running = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.log.Info().Int("workers", d.workers).Msg("notification dispatcher started")
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for event := range d.queue {
		d.process(event)
	}
	d.log.Debug().Int("worker", id).Msg("notification worker stopped")
}

// Notify queues event. When the queue is full, or the dispatcher is not
// running, the event is processed on the caller's goroutine instead.
func (d *Dispatcher) Notify(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	d.mu.RLock()
	if d.running && !d.closed {
		select {
		case d.queue <- event:
			d.mu.RUnlock()
			return
		default:
		}
	}
	d.mu.RUnlock()
	d.log.Warn().Str("type", event.Type).Msg("notification queue unavailable, processing inline")
	d.process(event)
}

// Close stops accepting queued work and waits for the workers to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			d.log.Warn().Err(err).Msg("closing broker publisher")
		}
	}
	d.log.Info().Msg("notification dispatcher stopped")
}

func (d *Dispatcher) process(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	if event.Title != "" {
		n, err := services.CreateForAllAdmins(ctx, d.db, services.NotificationInput{
			Type:    event.Type,
			Title:   event.Title,
			Message: event.Message,
			Link:    event.Link,
		})
		if err != nil {
			d.log.Error().Err(err).Str("type", event.Type).Msg("creating admin notifications")
		} else {
			d.log.Debug().Str("type", event.Type).Int("recipients", n).Msg("admin notifications created")
		}
	}
	if d.live != nil {
		d.live.Broadcast(services.LiveEvent{
			Type:      "notification",
			Resource:  event.Type,
			ID:        event.ResourceID,
			At:        event.At,
			AdminOnly: true,
		})
	}
	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, event.Type, event); err != nil {
			d.log.Warn().Err(err).Str("type", event.Type).Msg("publishing event")
		}
	}
	if event.Email != nil && d.mailer != nil {
		if err := d.mailer.Send(ctx, *event.Email); err != nil {
			d.log.Warn().Err(err).Str("to", event.Email.To).Msg("sending email")
		}
	}
}
