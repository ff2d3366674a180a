// Package action provides operations that report the result of an event on
// GitHub. Runners are executed by a retryer and therefore must be idempotent
// or safe to repeat after a failed attempt.
package action

import (
	"context"

	"go.uber.org/zap"
)

type Runner interface {
	Run(ctx context.Context) error
	String() string
	LogFields() []zap.Field
}
