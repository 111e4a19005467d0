package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/quillfeed/quillfeed/internal/ledger"
	"github.com/quillfeed/quillfeed/internal/observability"
)

// MirrorReplayJob re-issues audit-ledger writes that failed inline. Keys in
// the payload are fully namespaced, so the job writes straight to the store
// rather than going back through the Mirror. A store failure here returns the
// error and lets Asynq retry with backoff.
type MirrorReplayJob struct {
	Store   ledger.Ledger
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewMirrorReplayJob initialises the replay handler.
func NewMirrorReplayJob(store ledger.Ledger, logger *slog.Logger, metrics *observability.Metrics) *MirrorReplayJob {
	return &MirrorReplayJob{Store: store, Logger: logger, Metrics: metrics}
}

// HandlePut replays one ledger put.
func (j *MirrorReplayJob) HandlePut(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("mirror replay: store not configured")
	}
	var payload MirrorPutPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Key == "" {
		return asynq.SkipRetry
	}
	err := j.Store.Put(ctx, payload.Key, payload.Value)
	j.Metrics.ObserveMirrorWrite("replay_put", err)
	if err != nil {
		j.logger().Error("mirror put replay failed", slog.String("key", payload.Key), slog.Any("error", err))
		return err
	}
	j.logger().Info("replayed mirror put", slog.String("key", payload.Key))
	return nil
}

// HandleDelete replays one ledger delete.
func (j *MirrorReplayJob) HandleDelete(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("mirror replay: store not configured")
	}
	var payload MirrorDeletePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Key == "" {
		return asynq.SkipRetry
	}
	err := j.Store.Delete(ctx, payload.Key)
	j.Metrics.ObserveMirrorWrite("replay_delete", err)
	if err != nil {
		j.logger().Error("mirror delete replay failed", slog.String("key", payload.Key), slog.Any("error", err))
		return err
	}
	j.logger().Info("replayed mirror delete", slog.String("key", payload.Key))
	return nil
}

func (j *MirrorReplayJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", "mirror_replay"))
	}
	return slog.Default().With(slog.String("job", "mirror_replay"))
}
