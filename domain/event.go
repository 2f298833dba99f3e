package domain

// Event types published after a successful store mutation.
const (
	EventTaskCreated   = "task-created"
	EventTaskUpdated   = "task-updated"
	EventTaskCompleted = "task-completed"
	EventTaskReopened  = "task-reopened"
	EventTaskDeleted   = "task-deleted"
)

// TaskEvent describes a change to the task collection.
type TaskEvent struct {
	Type   string `json:"type"`
	TaskID int64  `json:"taskId"`
	Task   *Task  `json:"task,omitempty"`
	Time   int64  `json:"time"`
}
