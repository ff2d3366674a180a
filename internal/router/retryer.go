package router

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/agentbot/internal/action"
	"github.com/simplesurance/agentbot/internal/boterr"
	"github.com/simplesurance/agentbot/internal/logfields"
)

const (
	defRetryTimeout               = 2 * time.Minute
	defBackoffInitialInterval     = 2 * time.Second
	defBackoffRandomizationFactor = backoff.DefaultRandomizationFactor
	defBackoffMaxInterval         = 30 * time.Second
	backoffMultiplier             = backoff.DefaultMultiplier
)

var errRetryerStopped = errors.New("retryer stopped")

// Retryer executes actions repeatedly until they were successful or a cancel
// condition happened.
type Retryer struct {
	logger *zap.Logger
	// defTimeout is the max. duration an action is retried when the
	// passed context has no deadline.
	defTimeout                 time.Duration
	backoffInitialInterval     time.Duration
	backoffRandomizationFactor float64
	shutdownChan               chan struct{}
}

func NewRetryer() *Retryer {
	return &Retryer{
		logger:                     zap.L().Named("retryer"),
		defTimeout:                 defRetryTimeout,
		backoffInitialInterval:     defBackoffInitialInterval,
		backoffRandomizationFactor: defBackoffRandomizationFactor,
		shutdownChan:               make(chan struct{}),
	}
}

func (r *Retryer) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.backoffInitialInterval
	bo.RandomizationFactor = r.backoffRandomizationFactor
	bo.Multiplier = backoffMultiplier
	bo.MaxInterval = defBackoffMaxInterval
	// the retry duration is limited by the context
	bo.MaxElapsedTime = 0
	bo.Reset()

	return bo
}

// Run executes the action until it was successful, it returned an error that
// does not wrap boterr.RetryableError, the context expired or the Retryer was
// stopped.
// If ctx has no deadline, the execution is aborted after defTimeout.
func (r *Retryer) Run(ctx context.Context, act action.Runner) error {
	var tryCnt uint

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.defTimeout)
		defer cancel()
	}

	deadline, _ := ctx.Deadline()

	retryTimer := time.NewTimer(0)
	defer retryTimer.Stop()

	bo := r.newBackoff()
	logger := r.logger.With(act.LogFields()...)

	for {
		select {
		case <-ctx.Done():
			logger.Info(
				"action execution cancelled",
				logfields.Event("action_execution_cancelled"),
				logFieldActionResult("cancelled"),
				zap.Uint("try_count", tryCnt),
				zap.Error(ctx.Err()),
			)

			return ctx.Err()

		case <-r.shutdownChan:
			logger.Info(
				"retryer terminating, action not executed",
				logfields.Event("action_execution_cancelled_retryer_terminated"),
				logFieldActionResult("cancelled"),
			)

			return errRetryerStopped

		case <-retryTimer.C:
			tryCnt++
			logger := logger.With(zap.Uint("try_count", tryCnt))

			logger.Debug(
				"running action",
				logfields.Event("action_running"),
				zap.Duration("age", bo.GetElapsedTime()),
			)

			err := act.Run(ctx)
			if err == nil {
				logger.Info(
					"action executed successfully",
					logfields.Event("action_executed_successfully"),
					logFieldActionResult("success"),
				)

				return nil
			}

			logger = logger.With(zap.Error(err))

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Error(
					"action cancelled",
					logfields.Event("action_cancelled"),
					logFieldActionResult("cancelled"),
				)

				return err
			}

			var retryError *boterr.RetryableError
			if !errors.As(err, &retryError) {
				logger.Error(
					"action failed, not retryable",
					logfields.Event("action_failed"),
					logFieldActionResult("failure"),
				)

				return err
			}

			if retryError.After.After(deadline) {
				logger.Error(
					"action failed, next possible retry time is after timeout expiration",
					logfields.Event("action_failed"),
					logFieldActionResult("failure"),
					zap.Time("earliest_allowed_retry", retryError.After),
				)

				return err
			}

			retryIn := bo.NextBackOff()
			if untilAfter := time.Until(retryError.After); untilAfter > retryIn {
				retryIn = untilAfter
			}

			retryTimer.Reset(retryIn)
			logger.Warn(
				"action failed, retry scheduled",
				logfields.Event("action_retry_scheduled"),
				zap.Duration("retry_in", retryIn),
			)
		}
	}
}

// Stop notifies all Run() methods to terminate.
// It does not wait for their termination.
func (r *Retryer) Stop() {
	r.logger.Debug("retryer terminating", logfields.Event("retryer_terminating"))

	select {
	case <-r.shutdownChan:
		return // already closed
	default:
		close(r.shutdownChan)
	}
}

func logFieldActionResult(val string) zap.Field {
	return zap.String("action_result", val)
}
