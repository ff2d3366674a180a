package router

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/agentbot/internal/boterr"
)

type funcRunner func(context.Context) error

func (f funcRunner) Run(ctx context.Context) error {
	return f(ctx)
}

func (funcRunner) String() string {
	return "test action"
}

func (funcRunner) LogFields() []zap.Field {
	return []zap.Field{zap.String("action", "test")}
}

func TestRetryerDefaultTimeout(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer()
	t.Cleanup(r.Stop)

	r.defTimeout = time.Second

	start := time.Now()
	err := r.Run(context.Background(), funcRunner(func(context.Context) error {
		return boterr.NewRetryableAnytimeError(errors.New("err"))
	}))

	assert.ErrorIsf(t, err, context.DeadlineExceeded, "err: %+v", err)
	assert.Less(t, time.Since(start), r.defTimeout+5*time.Second)
}

func TestRetryAfterInThePast(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer()
	r.backoffInitialInterval = 100 * time.Millisecond
	t.Cleanup(r.Stop)

	ctx, cancelFunc := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelFunc()

	var retryTimes []time.Time

	err := r.Run(ctx, funcRunner(func(context.Context) error {
		retryTimes = append(retryTimes, time.Now())
		return boterr.NewRetryableError(errors.New("err"), time.Now().Add(-time.Second))
	}))

	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.GreaterOrEqual(t, len(retryTimes), 2)
	assertMinRetryInterval(t, r, retryTimes)
}

func TestBackoffInterval(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer()
	r.backoffInitialInterval = 500 * time.Millisecond
	t.Cleanup(r.Stop)

	ctx, cancelFunc := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFunc()

	var retryTimes []time.Time

	err := r.Run(ctx, funcRunner(func(context.Context) error {
		retryTimes = append(retryTimes, time.Now())
		return boterr.NewRetryableAnytimeError(errors.New("err"))
	}))

	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.GreaterOrEqual(t, len(retryTimes), 2)
	assertMinRetryInterval(t, r, retryTimes)
}

func TestRetryAfterBeyondDeadlineFailsImmediately(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer()
	t.Cleanup(r.Stop)

	ctx, cancelFunc := context.WithTimeout(context.Background(), time.Second)
	defer cancelFunc()

	var tries int
	err := r.Run(ctx, funcRunner(func(context.Context) error {
		tries++
		return boterr.NewRetryableError(errors.New("rate limited"), time.Now().Add(time.Hour))
	}))

	var retryErr *boterr.RetryableError
	assert.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 1, tries)
}

func TestNonRetryableErrorIsReturned(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer()
	t.Cleanup(r.Stop)

	wantErr := errors.New("not found")

	var tries int
	err := r.Run(context.Background(), funcRunner(func(context.Context) error {
		tries++
		return wantErr
	}))

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, tries)
}

func TestRetryerStop(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	r := NewRetryer()
	r.backoffInitialInterval = time.Minute
	r.backoffRandomizationFactor = 0

	tried := make(chan struct{})
	errCh := make(chan error, 1)

	go func() {
		var once bool
		errCh <- r.Run(context.Background(), funcRunner(func(context.Context) error {
			if !once {
				once = true
				close(tried)
			}
			return boterr.NewRetryableAnytimeError(errors.New("err"))
		}))
	}()

	<-tried
	r.Stop()
	// calling it twice must not panic
	r.Stop()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, errRetryerStopped)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func assertMinRetryInterval(t *testing.T, r *Retryer, retryTimes []time.Time) {
	t.Helper()

	for i := 1; i < len(retryTimes); i++ {
		d := retryTimes[i].Sub(retryTimes[i-1])
		require.GreaterOrEqualf(t, d, minInterval(r),
			"time between retry %d and %d is %s, expected >=%s",
			i-1, i, d, minInterval(r),
		)
	}
}

func minInterval(retryer *Retryer) time.Duration {
	return time.Duration(math.Floor(float64(retryer.backoffInitialInterval) * (1 - retryer.backoffRandomizationFactor)))
}
