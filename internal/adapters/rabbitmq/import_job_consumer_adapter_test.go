package rabbitmq_adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"property-import-service/internal/constants"
	"property-import-service/internal/contextkeys"
	"property-import-service/internal/contracts"
	"property-import-service/internal/core/domain"
	"property-import-service/schemas"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	err  error
	jobs []domain.ImportJob
	seen string
}

func (f *fakeProcessor) Process(ctx context.Context, job domain.ImportJob) error {
	f.jobs = append(f.jobs, job)
	f.seen = contextkeys.TraceIDFromContext(ctx)
	return f.err
}

type fakeMarkFailed struct {
	reasons map[string]string
}

func (f *fakeMarkFailed) MarkFailed(_ context.Context, job domain.ImportJob, reason string) error {
	if f.reasons == nil {
		f.reasons = map[string]string{}
	}
	f.reasons[job.ID] = reason
	return nil
}

func newTestConsumer(t *testing.T, proc *fakeProcessor, mf *fakeMarkFailed) *ImportJobConsumerAdapter {
	t.Helper()
	registry, err := contracts.NewRegistry(schemas.SchemasFS)
	require.NoError(t, err)
	return &ImportJobConsumerAdapter{
		processor:  proc,
		markFailed: mf,
		validator:  registry,
		queueName:  constants.QueueImportJobs,
		logger:     testLogger{},
	}
}

func delivery(t *testing.T, job domain.ImportJob) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(toImportJobMessageDTO(job))
	require.NoError(t, err)
	return amqp.Delivery{
		Body:      body,
		MessageId: job.ID,
		Headers: amqp.Table{
			constants.HeaderEventType:    constants.EventImportJobRequested,
			constants.HeaderEventVersion: constants.EventVersionV1,
			constants.HeaderTraceID:      "trace-7",
		},
	}
}

func TestMessageHandler_ProcessesValidJob(t *testing.T) {
	proc := &fakeProcessor{}
	c := newTestConsumer(t, proc, &fakeMarkFailed{})

	require.NoError(t, c.messageHandler(context.Background(), delivery(t, sampleJob())))
	require.Len(t, proc.jobs, 1)
	assert.Equal(t, sampleJob(), proc.jobs[0])
	assert.Equal(t, "trace-7", proc.seen)
}

func TestMessageHandler_TransientErrorIsReturnedForRetry(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("connection reset")}
	mf := &fakeMarkFailed{}
	c := newTestConsumer(t, proc, mf)

	err := c.messageHandler(context.Background(), delivery(t, sampleJob()))
	assert.Error(t, err)
	assert.Empty(t, mf.reasons)
}

func TestMessageHandler_MissingSourceIsTerminal(t *testing.T) {
	proc := &fakeProcessor{err: fmt.Errorf("open source: %w", domain.ErrSourceNotFound)}
	mf := &fakeMarkFailed{}
	c := newTestConsumer(t, proc, mf)

	job := sampleJob()
	require.NoError(t, c.messageHandler(context.Background(), delivery(t, job)))
	assert.Contains(t, mf.reasons[job.ID], domain.ErrSourceNotFound.Error())
}

func TestMessageHandler_ExpiredInQueueIsFailedNotProcessed(t *testing.T) {
	proc := &fakeProcessor{}
	mf := &fakeMarkFailed{}
	c := newTestConsumer(t, proc, mf)

	job := sampleJob()
	d := delivery(t, job)
	// истечение x-message-ttl основной очереди, возврат через retry-wait
	d.Headers["x-death"] = []interface{}{
		amqp.Table{"queue": constants.ImportRetryQueue, "count": int64(1), "reason": "expired"},
		amqp.Table{"queue": constants.QueueImportJobs, "count": int64(1), "reason": "expired"},
	}

	require.NoError(t, c.messageHandler(context.Background(), d))
	assert.Empty(t, proc.jobs)
	assert.Equal(t, msgExpiredInQueue, mf.reasons[job.ID])
}

func TestMessageHandler_RetriedJobIsProcessed(t *testing.T) {
	proc := &fakeProcessor{}
	mf := &fakeMarkFailed{}
	c := newTestConsumer(t, proc, mf)

	d := delivery(t, sampleJob())
	d.Headers["x-death"] = []interface{}{
		amqp.Table{"queue": constants.ImportRetryQueue, "count": int64(2), "reason": "expired"},
		amqp.Table{"queue": constants.QueueImportJobs, "count": int64(2), "reason": "rejected"},
	}

	require.NoError(t, c.messageHandler(context.Background(), d))
	assert.Len(t, proc.jobs, 1)
	assert.Empty(t, mf.reasons)
}

func TestMessageHandler_SchemaViolationIsAckedAndFailed(t *testing.T) {
	proc := &fakeProcessor{}
	mf := &fakeMarkFailed{}
	c := newTestConsumer(t, proc, mf)

	job := sampleJob()
	d := delivery(t, job)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(d.Body, &raw))
	raw["totalRows"] = -1
	d.Body, _ = json.Marshal(raw)

	require.NoError(t, c.messageHandler(context.Background(), d))
	assert.Empty(t, proc.jobs)
	assert.Contains(t, mf.reasons, job.ID)
}

func TestMessageHandler_GarbageBodyIsDropped(t *testing.T) {
	proc := &fakeProcessor{}
	mf := &fakeMarkFailed{}
	c := newTestConsumer(t, proc, mf)

	d := amqp.Delivery{Body: []byte("not json")}
	require.NoError(t, c.messageHandler(context.Background(), d))
	assert.Empty(t, proc.jobs)
	assert.Empty(t, mf.reasons)
}

func TestDLQHandler_MarksJobFailedWithLastError(t *testing.T) {
	mf := &fakeMarkFailed{}
	a := &DLQConsumerAdapter{markFailed: mf, logger: testLogger{}}

	job := sampleJob()
	d := delivery(t, job)
	d.Headers[constants.HeaderLastError] = "csv read: unexpected EOF"

	other := delivery(t, domain.ImportJob{ID: "x"})
	delete(other.Headers, constants.HeaderLastError)

	require.NoError(t, a.batchMessageHandler(context.Background(), []amqp.Delivery{d, other}))
	assert.Equal(t, "csv read: unexpected EOF", mf.reasons[job.ID])
	assert.Equal(t, defaultDeadLetterReason, mf.reasons["x"])
}
