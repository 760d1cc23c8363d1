package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-assistant/internal/application"
)

func TestTask_ResolvesOnce(t *testing.T) {
	task := application.NewTask[string](nil)

	assert.False(t, task.Resolved())
	assert.True(t, task.Resolve("first", nil))
	assert.False(t, task.Resolve("second", nil))
	assert.False(t, task.Cancel())

	v, err := task.Result()
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.True(t, task.Resolved())
}

func TestTask_CancelStopsProducer(t *testing.T) {
	stopped := false
	task := application.NewTask[int](func() { stopped = true })

	assert.True(t, task.Cancel())
	assert.True(t, stopped)
	assert.False(t, task.Resolve(1, nil))

	_, err := task.Result()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGo_CancelPropagatesToWork(t *testing.T) {
	started := make(chan struct{})
	task := application.Go(context.Background(), func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "late", ctx.Err()
	})

	<-started
	task.Cancel()

	v, err := task.Result()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, v)
}

func TestGo_ReturnsResult(t *testing.T) {
	wantErr := errors.New("boom")
	task := application.Go(context.Background(), func(context.Context) (int, error) {
		return 7, wantErr
	})

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task never resolved")
	}

	v, err := task.Result()
	assert.Equal(t, 7, v)
	assert.ErrorIs(t, err, wantErr)
}

func TestCompleted(t *testing.T) {
	task := application.Completed(struct{}{}, nil)
	select {
	case <-task.Done():
	default:
		t.Fatal("completed task should be done")
	}
}
