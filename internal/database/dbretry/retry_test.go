package dbretry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robalyx/bailiff/internal/database/dbretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPermanent = errors.New("syntax error")

func init() {
	dbretry.SetPolicy(dbretry.Policy{
		MaxElapsedTime:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxRetries:      3,
	})
}

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	assert.False(t, dbretry.IsRetryableError(nil))
	assert.False(t, dbretry.IsRetryableError(errPermanent))
	assert.False(t, dbretry.IsRetryableError(context.Canceled))
	assert.True(t, dbretry.IsRetryableError(errors.New("read tcp: connection reset by peer")))
	assert.True(t, dbretry.IsRetryableError(errors.New("dial tcp: connection refused")))
}

func TestOperationRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	attempts := 0
	result, err := dbretry.Operation(t.Context(), func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("write: broken pipe")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, attempts)
}

func TestOperationStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := dbretry.NoResult(t.Context(), func(context.Context) error {
		attempts++
		return errPermanent
	})

	require.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, attempts)
}

func TestOperationGivesUp(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := dbretry.NoResult(t.Context(), func(context.Context) error {
		attempts++
		return errors.New("i/o timeout")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after retries")
	assert.Equal(t, 4, attempts)
}
