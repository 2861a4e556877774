package tasks

import "github.com/hibiken/asynq"

// TaskEnqueuer is the enqueue side of the task queue. Implemented by
// asynq.Client; handlers and HTTP endpoints depend on this so tests can
// capture dispatched tasks.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
