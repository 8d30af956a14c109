package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/common"

	"github.com/rabbitmq/amqp091-go"
)

// ErrMalformed marks a message that can never be processed. It is
// dead-lettered without retries.
var ErrMalformed = errors.New("malformed message")

type GraphSyncMsg struct {
	JobID   string `json:"job_id"`
	PaperID string `json:"paper_id"`
}

const publishTries = 3

// Publisher announces graph sync jobs on graph_sync_queue.
type Publisher struct {
	mu sync.Mutex
	ch publisher
}

func NewPublisher(ch *amqp091.Channel) *Publisher {
	return &Publisher{ch: ch}
}

func (p *Publisher) Notify(ctx context.Context, job common.GraphSyncJob) error {
	body, err := json.Marshal(GraphSyncMsg{JobID: job.ID, PaperID: job.PaperID})
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return util.RetryErrWithContext(ctx, publishTries, func(ctx context.Context) error {
		return PublishFIFO(ctx, p.ch, GraphSyncQueue, body, nil)
	})
}

type JobApplier interface {
	Apply(ctx context.Context, jobID string) error
}

// GraphSyncHandler applies the job named by a graph_sync_queue message.
func GraphSyncHandler(applier JobApplier) Handler {
	return func(ctx context.Context, body []byte) error {
		var msg GraphSyncMsg
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if msg.JobID == "" {
			return fmt.Errorf("%w: missing job_id", ErrMalformed)
		}
		return applier.Apply(ctx, msg.JobID)
	}
}
