package domain

import "strconv"

// ValidationError is returned when a request is missing required fields.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError is returned when no task matches the requested identifier.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string { return "Task not found" }

// ParseID converts a path identifier. Identifiers that are not base-10 integers
// never match a task.
func ParseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
