package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingAcknowledger struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue []bool
}

func (a *recordingAcknowledger) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *recordingAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *recordingAcknowledger) Reject(uint64, bool) error { return nil }

type processorFunc func(ctx context.Context, payload ChapterStoryTaskPayload) error

func (f processorFunc) Handle(ctx context.Context, payload ChapterStoryTaskPayload) error {
	return f(ctx, payload)
}

func delivery(ack amqp.Acknowledger, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body)}
}

func TestHandleDelivery_AcksOnSuccess(t *testing.T) {
	var got ChapterStoryTaskPayload
	c := NewTaskConsumer(nil, "tasks", processorFunc(func(_ context.Context, p ChapterStoryTaskPayload) error {
		got = p
		return nil
	}), zap.NewNop())
	ack := &recordingAcknowledger{}

	c.handleDelivery(context.Background(), delivery(ack, `{"taskId":"t1","userId":"u1","chapterId":"C1","force":true}`))

	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.nacks)
	assert.Equal(t, ChapterStoryTaskPayload{TaskID: "t1", UserID: "u1", ChapterID: "C1", Force: true}, got)
}

func TestHandleDelivery_NacksWithoutRequeue(t *testing.T) {
	cases := map[string]struct {
		body      string
		processor processorFunc
	}{
		"malformed body": {
			body:      `{"taskId":`,
			processor: func(context.Context, ChapterStoryTaskPayload) error { t.Fatal("processor must not run"); return nil },
		},
		"processor error": {
			body:      `{"taskId":"t1","chapterId":"C1"}`,
			processor: func(context.Context, ChapterStoryTaskPayload) error { return errors.New("boom") },
		},
		"processor panic": {
			body:      `{"taskId":"t1","chapterId":"C1"}`,
			processor: func(context.Context, ChapterStoryTaskPayload) error { panic("boom") },
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewTaskConsumer(nil, "tasks", tc.processor, zap.NewNop())
			ack := &recordingAcknowledger{}

			require.NotPanics(t, func() {
				c.handleDelivery(context.Background(), delivery(ack, tc.body))
			})

			assert.Equal(t, 0, ack.acks)
			assert.Equal(t, 1, ack.nacks)
			assert.Equal(t, []bool{false}, ack.requeue)
		})
	}
}
