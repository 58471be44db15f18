// Package worker implements background task handlers for async snapshot persistence.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/copperexchange/controllers/internal/repository"
	"github.com/copperexchange/controllers/internal/tracker"
)

// TaskTypePersistSnapshot is the Asynq task type for snapshot persistence jobs.
const TaskTypePersistSnapshot = "snapshot:persist"

// PersistSnapshotPayload is the payload structure for snapshot persistence Asynq tasks.
type PersistSnapshotPayload struct {
	ConversionDate         int64    `json:"conversion_date"`
	ConversionRate         float64  `json:"conversion_rate"`
	CurrentCurrency        string   `json:"current_currency"`
	NativeCurrency         string   `json:"native_currency"`
	PendingCurrentCurrency string   `json:"pending_current_currency,omitempty"`
	PendingNativeCurrency  string   `json:"pending_native_currency,omitempty"`
	USDConversionRate      *float64 `json:"usd_conversion_rate,omitempty"`
}

// NewSnapshotPersistHandler returns a function to handle snapshot persistence tasks.
func NewSnapshotPersistHandler(repo repository.SnapshotRepository, logger *zap.SugaredLogger) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PersistSnapshotPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Errorw("Invalid task payload", "type", t.Type(), "error", err)
			return nil
		}

		err := repo.Save(ctx, repository.Snapshot{
			ConversionDate:         payload.ConversionDate,
			ConversionRate:         payload.ConversionRate,
			CurrentCurrency:        payload.CurrentCurrency,
			NativeCurrency:         payload.NativeCurrency,
			PendingCurrentCurrency: payload.PendingCurrentCurrency,
			PendingNativeCurrency:  payload.PendingNativeCurrency,
			USDConversionRate:      payload.USDConversionRate,
		})
		if err != nil {
			logger.Errorw("Snapshot persistence failed",
				"pair", payload.NativeCurrency+"/"+payload.CurrentCurrency, "error", err)
			return err
		}

		logger.Debugw("Snapshot persisted",
			"pair", payload.NativeCurrency+"/"+payload.CurrentCurrency,
			"rate", payload.ConversionRate,
		)
		return nil
	}
}

// SnapshotEnqueuer enqueues snapshot persistence tasks to an Asynq queue with
// specific configurations for retries and timeouts.
type SnapshotEnqueuer struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

// NewSnapshotEnqueuer creates a new SnapshotEnqueuer with the given client, retry limit, and task timeout duration.
func NewSnapshotEnqueuer(client *asynq.Client, maxRetry int, timeout time.Duration) *SnapshotEnqueuer {
	return &SnapshotEnqueuer{
		client:   client,
		maxRetry: maxRetry,
		timeout:  timeout,
	}
}

// EnqueueSnapshot enqueues a persistence task for the given conversion state.
func (e *SnapshotEnqueuer) EnqueueSnapshot(ctx context.Context, state tracker.ConversionState) error {
	data, err := json.Marshal(PersistSnapshotPayload{
		ConversionDate:         state.ConversionDate,
		ConversionRate:         state.ConversionRate,
		CurrentCurrency:        state.CurrentCurrency,
		NativeCurrency:         state.NativeCurrency,
		PendingCurrentCurrency: state.PendingCurrentCurrency,
		PendingNativeCurrency:  state.PendingNativeCurrency,
		USDConversionRate:      state.USDConversionRate,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePersistSnapshot, data,
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(e.timeout),
	)

	_, err = e.client.EnqueueContext(ctx, task)
	return err
}
