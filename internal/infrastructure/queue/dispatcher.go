package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/getbazar/bazar-api/internal/api/metrics"
	"github.com/getbazar/bazar-api/internal/core/domain"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Dispatcher routes task messages to a fixed set of workers using consistent
// hashing on the conversation id, so messages of one conversation are
// published in submission order.
type Dispatcher struct {
	workers   []chan domain.TaskMessage
	publisher ports.TaskPublisher
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, publisher ports.TaskPublisher, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan domain.TaskMessage, numWorkers),
		publisher: publisher,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.TaskMessage, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue sends a message to the worker responsible for its conversation.
// It never blocks: a full worker buffer yields domain.ErrQueueFull.
func (d *Dispatcher) Enqueue(ctx context.Context, msg domain.TaskMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx := d.shardIndex(msg.ConversationID)
	select {
	case d.workers[idx] <- msg:
	default:
		metrics.TasksRejectedTotal.WithLabelValues(string(msg.Type)).Inc()
		return domain.ErrQueueFull
	}
	metrics.TasksQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	return nil
}

// shardIndex maps a conversation id deterministically to a worker index.
func (d *Dispatcher) shardIndex(conversationID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(conversationID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.TaskMessage) {
	defer d.wg.Done()
	depth := metrics.TasksQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			depth.Set(float64(len(ch)))
			d.publish(ctx, id, msg)
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, worker int, msg domain.TaskMessage) {
	start := time.Now()
	err := d.publisher.Publish(ctx, msg)
	metrics.TaskPublishDuration.WithLabelValues(string(msg.Type)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TaskPublishErrorsTotal.WithLabelValues(string(msg.Type)).Inc()
		d.log.Error().Err(err).
			Str("message_id", msg.ID).
			Str("conversation_id", msg.ConversationID).
			Int("worker_id", worker).
			Msg("task publish failed")
		return
	}
	metrics.TasksPublishedTotal.WithLabelValues(string(msg.Type)).Inc()
}
