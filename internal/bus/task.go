package bus

import (
	"context"
	"errors"
	"time"
)

// TaskStatus is the lifecycle state of a claimable task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskBlocked    TaskStatus = "blocked"
)

// Task is a unit of claimable work published to a topic board. An unclaimed
// task is owned by the bus; a claimed task is owned by its worker until
// completion, failure, or version conflict (spec §3 "Ownership").
type Task struct {
	ID          string
	Topic       string
	Type        string
	Priority    int // 1-10, higher claims first
	Status      TaskStatus
	WorkerID    string
	Payload     any
	Summary     string
	Err         string
	CreatedAt   time.Time
	ClaimedAt   time.Time
	Version     int
}

// ErrTaskVersionConflict indicates a complete/fail call's expected version
// no longer matches the stored task (another writer raced the claim).
var ErrTaskVersionConflict = errors.New("bus: task version conflict")

// ErrTaskNotFound indicates no task exists with the given id.
var ErrTaskNotFound = errors.New("bus: task not found")

// TaskBoard is the optimistic task-claim contract (spec §4.11, §4.12).
// Implementations must serialize claims so two workers never observe the
// same pending task as claimable: request_task is a single atomic
// read-and-claim, not a separate peek-then-claim.
type TaskBoard interface {
	// PublishTask adds a new pending task to topic.
	PublishTask(ctx context.Context, topic string, task Task) (Task, error)

	// RequestTask atomically claims and returns the highest-priority
	// pending task on topic whose Type is in allowedTypes (any type if
	// allowedTypes is empty), breaking priority ties by age ascending. It
	// moves the task to in-progress under workerID and returns
	// (Task{}, false, nil) if none is available.
	RequestTask(ctx context.Context, topic, workerID string, allowedTypes []string) (Task, bool, error)

	// CompleteTask transitions a claimed task to completed if version
	// matches the task's current version, else ErrTaskVersionConflict.
	CompleteTask(ctx context.Context, taskID string, version int, summary string) error

	// FailTask transitions a claimed task to failed if version matches,
	// else ErrTaskVersionConflict.
	FailTask(ctx context.Context, taskID string, version int, errMsg string) error

	// Clear removes all tasks on topic, used by the epic orchestrator's
	// FRESH_START transition.
	Clear(ctx context.Context, topic string) error

	// ListTasks returns all tasks currently on topic, in creation order.
	ListTasks(ctx context.Context, topic string) ([]Task, error)
}
