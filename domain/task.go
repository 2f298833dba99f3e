package domain

import (
	"math"
	"strconv"
	"time"
)

// Task represents a single to-do record held by the store.
type Task struct {
	ID          int64    `json:"id"`
	Text        string   `json:"text"`
	Description string   `json:"description"`
	Completed   bool     `json:"completed"`
	DueDate     *DueDate `json:"dueDate"`
}

// NewTask is the payload accepted when creating a task.
type NewTask struct {
	Text        string `json:"text"`
	Description string `json:"description"`
	DueDate     any    `json:"dueDate,omitempty"`
}

// Validate reports a ValidationError when a required field is empty.
func (n NewTask) Validate() error {
	if n.Text == "" || n.Description == "" {
		return &ValidationError{Message: "Task text and description are required"}
	}
	return nil
}

// TaskChanges carries the optional fields of an update request. Empty values are
// ignored.
type TaskChanges struct {
	Description string `json:"description,omitempty"`
	DueDate     any    `json:"dueDate,omitempty"`
}

// DueDate is a due date rendered the way browsers serialize Date values.
type DueDate struct {
	time.Time
}

const (
	dueDateLayout = "2006-01-02T15:04:05.000Z"

	// maxDueDateMillis is the largest epoch offset a browser Date accepts.
	maxDueDateMillis = 8.64e15
)

// MarshalJSON renders the date in UTC with millisecond precision.
func (d DueDate) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.UTC().Format(dueDateLayout))), nil
}

// UnmarshalJSON accepts RFC 3339 strings only. Use ParseDueDate for request input.
func (d *DueDate) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	d.Time = t.UTC()
	return nil
}

var dueDateLayouts = []struct {
	layout string
	local  bool
}{
	{time.RFC3339Nano, false},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02T15:04", true},
	{"2006-01-02", false},
}

// ParseDueDate normalizes a raw JSON dueDate value. The second return value is
// false when no value was provided (null, missing, "", 0 or false). A provided
// value that cannot be interpreted yields (nil, true).
func ParseDueDate(raw any) (*DueDate, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case bool:
		if !v {
			return nil, false
		}
		return nil, true
	case float64:
		if v == 0 {
			return nil, false
		}
		if math.IsNaN(v) || math.Abs(v) > maxDueDateMillis {
			return nil, true
		}
		t := time.UnixMilli(int64(v)).UTC()
		if t.Year() < 0 || t.Year() > 9999 {
			// not representable in RFC 3339
			return nil, true
		}
		return &DueDate{Time: t}, true
	case string:
		if v == "" {
			return nil, false
		}
		for _, l := range dueDateLayouts {
			loc := time.UTC
			if l.local {
				loc = time.Local
			}
			if t, err := time.ParseInLocation(l.layout, v, loc); err == nil {
				return &DueDate{Time: t.UTC().Truncate(time.Millisecond)}, true
			}
		}
		return nil, true
	default:
		return nil, true
	}
}
