package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type stubConfig struct {
	redisURL string
}

func (c stubConfig) GetRedisURL() string                  { return c.redisURL }
func (c stubConfig) GetRedisTLSInsecure() bool            { return false }
func (c stubConfig) GetAsynqQueueName() string            { return "outreach" }
func (c stubConfig) GetAsynqConcurrency() int             { return 1 }
func (c stubConfig) GetDispatchInterval() time.Duration   { return time.Minute }
func (c stubConfig) GetDispatchBatchSize() int            { return 50 }
func (c stubConfig) GetRetrySweepInterval() time.Duration { return time.Minute }
func (c stubConfig) GetReplyPollInterval() time.Duration  { return time.Minute }

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(stubConfig{}); err == nil {
		t.Fatalf("expected error without a redis url")
	}
}

func TestEnqueueSendDeduplicates(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(stubConfig{redisURL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	payload := OutreachSendPayload{LeadID: uuid.NewString(), Stage: "initial"}
	runAt := time.Now().Add(time.Minute)

	enqueued, err := client.EnqueueSend(ctx, payload, runAt)
	if err != nil {
		t.Fatalf("EnqueueSend: %v", err)
	}
	if !enqueued {
		t.Fatalf("first enqueue must succeed")
	}

	enqueued, err = client.EnqueueSend(ctx, payload, runAt)
	if err != nil {
		t.Fatalf("EnqueueSend duplicate: %v", err)
	}
	if enqueued {
		t.Fatalf("duplicate lead/stage task must be dropped, not enqueued twice")
	}

	// A different stage for the same lead is a distinct task.
	enqueued, err = client.EnqueueSend(ctx, OutreachSendPayload{LeadID: payload.LeadID, Stage: "followup_1"}, runAt)
	if err != nil {
		t.Fatalf("EnqueueSend other stage: %v", err)
	}
	if !enqueued {
		t.Fatalf("a different stage must enqueue its own task")
	}
}

func TestOutreachSendPayloadRoundTrip(t *testing.T) {
	payload := OutreachSendPayload{LeadID: uuid.NewString(), Stage: "followup_2"}

	task, err := NewOutreachSendTask(payload)
	if err != nil {
		t.Fatalf("NewOutreachSendTask: %v", err)
	}
	if task.Type() != TaskOutreachSend {
		t.Fatalf("task type = %q, want %q", task.Type(), TaskOutreachSend)
	}

	got, err := ParseOutreachSendPayload(task)
	if err != nil {
		t.Fatalf("ParseOutreachSendPayload: %v", err)
	}
	if got != payload {
		t.Fatalf("payload = %+v, want %+v", got, payload)
	}
}

func TestParseOutreachSendPayloadRejectsGarbage(t *testing.T) {
	task := asynq.NewTask(TaskOutreachSend, []byte("not json"))
	if _, err := ParseOutreachSendPayload(task); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
