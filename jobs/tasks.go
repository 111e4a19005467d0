package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueMirror holds replay work for audit-ledger writes that failed
	// inline.
	QueueMirror = "mirror"
	// TaskTypeMirrorPut replays a failed ledger put.
	TaskTypeMirrorPut = "mirror:put"
	// TaskTypeMirrorDelete replays a failed ledger delete.
	TaskTypeMirrorDelete = "mirror:delete"
)

// MirrorPutPayload carries one ledger put. Key is already namespaced.
type MirrorPutPayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MirrorDeletePayload carries one ledger delete. Key is already namespaced.
type MirrorDeletePayload struct {
	Key string `json:"key"`
}

// NewMirrorPutTask constructs an Asynq task replaying a ledger put.
func NewMirrorPutTask(payload MirrorPutPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeMirrorPut, body, asynq.Queue(QueueMirror)), nil
}

// NewMirrorDeleteTask constructs an Asynq task replaying a ledger delete.
func NewMirrorDeleteTask(payload MirrorDeletePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeMirrorDelete, body, asynq.Queue(QueueMirror)), nil
}
