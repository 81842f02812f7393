package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2/log"
	"github.com/nats-io/nats.go"
)

const (
	subject    = "topups.disbursement.retry"
	streamName = "TopUp-Disbursement-Retry"
)

// RetryMessage asks a consumer to attempt the disbursement of a top-up again.
type RetryMessage struct {
	CorrelationID string    `json:"correlationId"`
	Attempt       int       `json:"attempt"`
	ScheduledAt   time.Time `json:"scheduledAt"`
}

type RetryQueue struct {
	JetStream  nats.JetStreamContext
	NatsConn   *nats.Conn
	Subject    string
	StreamName string
}

func NewRetryQueue(natsURL string) (*RetryQueue, error) {
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}

	natsConn, err := nats.Connect(natsURL, nats.Name("sim-swap-topup"))
	if err != nil {
		return nil, err
	}

	js, err := natsConn.JetStream()
	if err != nil {
		natsConn.Close()
		return nil, err
	}

	queue := &RetryQueue{
		NatsConn:   natsConn,
		JetStream:  js,
		Subject:    subject,
		StreamName: streamName,
	}

	if err = queue.createStream(); err != nil {
		natsConn.Close()
		return nil, err
	}
	return queue, nil
}

func (q *RetryQueue) createStream() error {
	now := time.Now().UTC()
	streamCfg := nats.StreamConfig{
		Name:       streamName,
		Subjects:   []string{subject},
		Retention:  nats.WorkQueuePolicy,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	}

	stream, err := q.JetStream.StreamInfo(streamName)
	if err != nil {
		stream, err = q.JetStream.AddStream(&streamCfg)
		if err != nil {
			return err
		}
	}

	if stream.Created.After(now) {
		log.Infow("retry stream created", "stream", streamName, "subject", subject)
	}
	return nil
}

// Schedule publishes a retry request for the given correlation id. The message id
// is derived from id and attempt, so scheduling the same attempt twice is dropped.
func (q *RetryQueue) Schedule(ctx context.Context, correlationID string, attempt int) error {
	data, err := json.Marshal(RetryMessage{
		CorrelationID: correlationID,
		Attempt:       attempt,
		ScheduledAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	_, err = q.JetStream.Publish(q.Subject, data, nats.Context(ctx), nats.MsgId(fmt.Sprintf("%s-%d", correlationID, attempt)))
	return err
}

func (q *RetryQueue) Close() {
	if q.NatsConn != nil {
		q.NatsConn.Drain()
	}
}
