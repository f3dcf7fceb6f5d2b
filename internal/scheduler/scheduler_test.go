package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/KotFed0t/ttwo_investment_bot/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIntervalJob_StartsImmediately(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	ran := make(chan string, 1)
	err = s.NewIntervalJob("test job", func(ctx context.Context) error {
		select {
		case ran <- utils.GetRequestIDFromCtx(ctx):
		default:
		}
		return nil
	}, time.Hour, true)
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case rqID := <-ran:
		assert.NotEmpty(t, rqID)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestTaskWithRecover_SwallowsPanic(t *testing.T) {
	s := &Scheduler{}

	task := s.taskWithRecover(func(ctx context.Context) error {
		panic("boom")
	}, "panicking job")

	assert.NotPanics(t, func() { task(context.Background()) })
}
