package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "dibs-assistant/internal/common/errors"
	"dibs-assistant/internal/common/logger"
	"dibs-assistant/internal/common/metrics"
	"dibs-assistant/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type failure struct {
	task string
	err  error
}

type sinkRecorder struct {
	mu       sync.Mutex
	failures []failure
}

func (s *sinkRecorder) sink(t Task, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{task: t.Name, err: err})
}

func (s *sinkRecorder) all() []failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]failure(nil), s.failures...)
}

func TestQueue_RunsAllTasksBeforeClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue(2, 8, nil, logger.NewNoOpLogger())
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		ok := q.Submit(Task{Name: "count", Role: models.RoleUser, Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}})
		require.True(t, ok)
	}

	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int32(5), ran.Load())
}

func TestQueue_FailuresAndPanicsReachSink(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &sinkRecorder{}
	q := NewQueue(1, 4, rec.sink, logger.NewNoOpLogger())
	before := testutil.ToFloat64(metrics.ChatPersistenceFailures.WithLabelValues("assistant"))

	q.Submit(Task{Name: "fails", Role: models.RoleAssistant, Run: func(context.Context) error {
		return errors.New("insert failed")
	}})
	q.Submit(Task{Name: "panics", Role: models.RoleAssistant, Run: func(context.Context) error {
		panic("nil map")
	}})
	require.NoError(t, q.Close(context.Background()))

	got := rec.all()
	require.Len(t, got, 2)
	assert.Equal(t, "fails", got[0].task)
	assert.EqualError(t, got[0].err, "insert failed")
	assert.Equal(t, "panics", got[1].task)
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.AsStandard(got[1].err).Code)
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.ChatPersistenceFailures.WithLabelValues("assistant")))
}

func TestQueue_DropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &sinkRecorder{}
	q := NewQueue(1, 1, rec.sink, logger.NewNoOpLogger())
	before := testutil.ToFloat64(metrics.ChatPersistenceDropped)

	started := make(chan struct{})
	release := make(chan struct{})
	q.Submit(Task{Name: "blocking", Role: models.RoleUser, Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	assert.True(t, q.Submit(Task{Name: "buffered", Run: func(context.Context) error { return nil }}))
	assert.False(t, q.Submit(Task{Name: "overflow", Run: func(context.Context) error { return nil }}))

	close(release)
	require.NoError(t, q.Close(context.Background()))

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, "overflow", got[0].task)
	assert.Equal(t, apperrors.ErrCodePersistenceQueueFull, apperrors.AsStandard(got[0].err).Code)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ChatPersistenceDropped))
}

func TestQueue_SubmitAfterCloseIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &sinkRecorder{}
	q := NewQueue(1, 1, rec.sink, logger.NewNoOpLogger())
	require.NoError(t, q.Close(context.Background()))
	require.NoError(t, q.Close(context.Background()))

	assert.False(t, q.Submit(Task{Name: "late", Run: func(context.Context) error { return nil }}))
	require.Len(t, rec.all(), 1)
}

func TestQueue_CloseHonoursDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue(1, 1, nil, logger.NewNoOpLogger())
	release := make(chan struct{})
	started := make(chan struct{})
	q.Submit(Task{Name: "slow", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, q.Close(context.Background()))
}
