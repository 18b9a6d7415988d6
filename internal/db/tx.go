package db

import (
	"context"
	"database/sql"
	"log/slog"
	"math"
	prand "math/rand"
	"time"
)

const (
	// DefaultNumTxRetries is the default number of times a transaction
	// is retried on a serialization or deadlock error.
	DefaultNumTxRetries = 10

	// DefaultInitialRetryDelay is the base delay before the first
	// retry.
	DefaultInitialRetryDelay = 50 * time.Millisecond

	// DefaultMaxRetryDelay caps the backoff between retries.
	DefaultMaxRetryDelay = time.Second
)

// txOptions holds the retry options for ExecTx.
type txOptions struct {
	numRetries        int
	initialRetryDelay time.Duration
	maxRetryDelay     time.Duration
}

func defaultTxOptions() *txOptions {
	return &txOptions{
		numRetries:        DefaultNumTxRetries,
		initialRetryDelay: DefaultInitialRetryDelay,
		maxRetryDelay:     DefaultMaxRetryDelay,
	}
}

// randRetryDelay returns a random retry delay between -50% and +50% of
// the configured delay that is doubled for each attempt and capped at a
// max value.
func (t *txOptions) randRetryDelay(attempt int) time.Duration {
	halfDelay := t.initialRetryDelay / 2
	randDelay := prand.Int63n(int64(t.initialRetryDelay)) //nolint:gosec

	// 50% plus 0%-100% gives us the range of 50%-150%.
	initialDelay := halfDelay + time.Duration(randDelay)

	if attempt == 0 {
		return initialDelay
	}

	// Each subsequent retry doubles the delay, capped at the max. The
	// power is limited to 32 to avoid overflows.
	factor := time.Duration(math.Pow(2, math.Min(float64(attempt), 32)))
	//nolint:durationcheck
	actualDelay := initialDelay * factor

	if actualDelay > t.maxRetryDelay {
		return t.maxRetryDelay
	}

	return actualDelay
}

// TxOption is a functional option for ExecTx.
type TxOption func(*txOptions)

// WithTxRetries sets the number of times a transaction is retried if it
// fails with a repeatable error.
func WithTxRetries(numRetries int) TxOption {
	return func(o *txOptions) {
		o.numRetries = numRetries
	}
}

// WithTxRetryDelay sets the base delay to wait before a transaction is
// retried.
func WithTxRetryDelay(delay time.Duration) TxOption {
	return func(o *txOptions) {
		o.initialRetryDelay = delay
	}
}

// ExecTx runs txBody inside a transaction, retrying with jittered
// backoff when sqlite reports the database busy or locked. Any other
// failure rolls back and returns immediately.
func ExecTx(ctx context.Context, sqlDB *sql.DB, log *slog.Logger,
	txBody func(tx *sql.Tx) error, opts ...TxOption) error {

	txOpts := defaultTxOptions()
	for _, opt := range opts {
		opt(txOpts)
	}

	waitBeforeRetry := func(attempt int) {
		retryDelay := txOpts.randRetryDelay(attempt)

		log.DebugContext(ctx,
			"Retrying transaction after busy error",
			"attempt_number", attempt,
			"delay", retryDelay,
		)

		time.Sleep(retryDelay)
	}

	for i := 0; i < txOpts.numRetries; i++ {
		tx, err := sqlDB.BeginTx(ctx, nil)
		if err != nil {
			dbErr := MapSQLError(err)
			if IsSerializationOrDeadlockError(dbErr) {
				waitBeforeRetry(i)
				continue
			}

			return dbErr
		}

		if err := txBody(tx); err != nil {
			_ = tx.Rollback()

			dbErr := MapSQLError(err)
			if IsSerializationOrDeadlockError(dbErr) {
				waitBeforeRetry(i)
				continue
			}

			return dbErr
		}

		if err := tx.Commit(); err != nil {
			_ = tx.Rollback()

			dbErr := MapSQLError(err)
			if IsSerializationOrDeadlockError(dbErr) {
				waitBeforeRetry(i)
				continue
			}

			return dbErr
		}

		return nil
	}

	return ErrRetriesExceeded
}
