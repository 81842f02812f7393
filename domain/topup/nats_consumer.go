package topup

import (
	"context"
	"errors"
	"time"

	"sim-swap-topup/infrastructure/queue"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2/log"
	"github.com/nats-io/nats.go"
)

const (
	consumerQueue = "disbursement-retry"

	defaultAckWait = 30 * time.Second
)

type IConsumer interface {
	StartProcess() error
	Close()
}

// retrier is the part of Engine the consumer drives.
type retrier interface {
	RetryDisbursement(ctx context.Context, correlationID string) (Outcome, error)
}

type ConsumerOptions struct {
	MaxDeliver    int
	MaxAckPending int
	RetryDelay    time.Duration
}

type natsConsumer struct {
	retryQueue *queue.RetryQueue
	engine     retrier
	opts       ConsumerOptions
	now        func() time.Time
	ctx        context.Context
	cancelCtx  context.CancelFunc
}

func NewNatsConsumer(retryQueue *queue.RetryQueue, engine *Engine, opts ConsumerOptions) IConsumer {
	return newNatsConsumer(retryQueue, engine, opts)
}

func newNatsConsumer(retryQueue *queue.RetryQueue, engine retrier, opts ConsumerOptions) *natsConsumer {
	if opts.MaxDeliver <= 0 {
		opts.MaxDeliver = 5
	}
	if opts.MaxAckPending <= 0 {
		opts.MaxAckPending = 40
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 30 * time.Second
	}

	ctx, cancelCtx := context.WithCancel(context.Background())
	return &natsConsumer{
		retryQueue: retryQueue,
		engine:     engine,
		opts:       opts,
		now:        time.Now,
		ctx:        ctx,
		cancelCtx:  cancelCtx,
	}
}

func (c *natsConsumer) StartProcess() error {
	sub, err := c.retryQueue.JetStream.QueueSubscribeSync(
		c.retryQueue.Subject,
		consumerQueue,
		nats.AckWait(defaultAckWait),
		nats.ManualAck(),
		nats.DeliverAll(),
		nats.MaxDeliver(c.opts.MaxDeliver),
		nats.MaxAckPending(c.opts.MaxAckPending),
	)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-c.ctx.Done():
			return nil
		default:
			msg, err := sub.NextMsgWithContext(c.ctx)
			if err != nil {
				continue
			}
			go c.processMessage(msg)
		}
	}
}

// ackAction is what the consumer does with a message after handling it.
type ackAction int

const (
	actionAck ackAction = iota
	actionNak
	actionTerm
)

func (c *natsConsumer) processMessage(msg *nats.Msg) {
	var err error
	action, delay := c.handle(msg.Data)
	switch action {
	case actionAck:
		err = msg.Ack()
	case actionNak:
		err = msg.NakWithDelay(delay)
	case actionTerm:
		err = msg.Term()
	}
	if err != nil {
		log.Errorw("acknowledging retry message", "error", err)
	}
}

// backoff is how long after scheduling an attempt may run. It grows
// linearly with the attempt number.
func (c *natsConsumer) backoff(attempt int) time.Duration {
	if attempt < 2 {
		return c.opts.RetryDelay
	}
	return c.opts.RetryDelay * time.Duration(attempt-1)
}

// handle decides what to do with a message; the duration is the redelivery
// delay when the action is actionNak.
func (c *natsConsumer) handle(data []byte) (ackAction, time.Duration) {
	var message queue.RetryMessage
	if err := json.Unmarshal(data, &message); err != nil || message.CorrelationID == "" {
		log.Warnw("dropping malformed retry message", "error", err)
		return actionTerm, 0
	}

	if due := message.ScheduledAt.Add(c.backoff(message.Attempt)); c.now().Before(due) {
		return actionNak, due.Sub(c.now())
	}

	ctx, cancel := context.WithTimeout(c.ctx, defaultAckWait)
	defer cancel()

	// A fresh DISBURSEMENT_FAILED outcome has already scheduled its own
	// follow-up message, so it is acked like a success.
	_, err := c.engine.RetryDisbursement(ctx, message.CorrelationID)
	switch {
	case err == nil:
		return actionAck, 0
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRetryExhausted):
		log.Warnw("abandoning disbursement retry", "requestId", message.CorrelationID, "error", err)
		return actionTerm, 0
	case errors.Is(err, ErrNotRetryable):
		// Still DISBURSING elsewhere; look again later.
		return actionNak, c.opts.RetryDelay
	default:
		log.Errorw("disbursement retry failed", "requestId", message.CorrelationID, "error", err)
		return actionNak, c.opts.RetryDelay
	}
}

func (c *natsConsumer) Close() {
	c.cancelCtx()
}
