package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestTaskMarshalIncludesNullDueDate(t *testing.T) {
	task := Task{ID: 1, Text: "Buy milk", Description: "2%"}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}

	for _, want := range []string{`"dueDate":null`, `"completed":false`, `"id":1`} {
		if !strings.Contains(string(payload), want) {
			t.Fatalf("expected %s in payload, got %s", want, payload)
		}
	}
}

func TestDueDateMarshalUsesMillisecondUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	task := Task{ID: 1, DueDate: &DueDate{Time: time.Date(2024, 5, 1, 12, 30, 0, 0, loc)}}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	if !strings.Contains(string(payload), `"dueDate":"2024-05-01T10:30:00.000Z"`) {
		t.Fatalf("unexpected due date encoding: %s", payload)
	}

	var decoded Task
	if err := sonic.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if decoded.DueDate == nil || !decoded.DueDate.Equal(task.DueDate.Time) {
		t.Fatalf("due date did not round trip: %#v", decoded.DueDate)
	}
}

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		provided bool
		want     time.Time
	}{
		{name: "nil", raw: nil},
		{name: "empty", raw: ""},
		{name: "zero", raw: float64(0)},
		{name: "false", raw: false},
		{name: "rfc3339", raw: "2024-05-01T10:30:00Z", provided: true, want: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{name: "fraction", raw: "2024-05-01T10:30:00.123456Z", provided: true, want: time.Date(2024, 5, 1, 10, 30, 0, 123000000, time.UTC)},
		{name: "offset", raw: "2024-05-01T12:30:00+02:00", provided: true, want: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{name: "date only", raw: "2024-05-01", provided: true, want: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{name: "epoch millis", raw: float64(1714559400000), provided: true, want: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{name: "millis beyond date range", raw: float64(1e20), provided: true},
		{name: "negative millis beyond date range", raw: float64(-1e20), provided: true},
		{name: "millis beyond four digit years", raw: float64(8.64e15), provided: true},
		{name: "garbage", raw: "next tuesday", provided: true},
		{name: "object", raw: map[string]any{"a": 1}, provided: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, provided := ParseDueDate(tt.raw)
			if provided != tt.provided {
				t.Fatalf("provided = %v, want %v", provided, tt.provided)
			}
			if tt.want.IsZero() {
				if got != nil {
					t.Fatalf("expected nil due date, got %v", got)
				}
				return
			}
			if got == nil || !got.Equal(tt.want) {
				t.Fatalf("ParseDueDate(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDueDateLocalDateTime(t *testing.T) {
	got, provided := ParseDueDate("2024-05-01T10:30")
	if !provided || got == nil {
		t.Fatalf("expected local date time to parse")
	}
	want := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseDueDateLatestMillisRoundTrips(t *testing.T) {
	due, provided := ParseDueDate(float64(253402300799999))
	if !provided || due == nil {
		t.Fatalf("expected the last millisecond of year 9999 to parse")
	}
	data, err := sonic.Marshal(due)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"9999-12-31T23:59:59.999Z"` {
		t.Fatalf("unexpected encoding %s", data)
	}
	var back DueDate
	if err := sonic.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(due.Time) {
		t.Fatalf("round trip changed value: %v != %v", back, due)
	}
}

func TestNewTaskValidate(t *testing.T) {
	cases := map[string]NewTask{
		"missing text":        {Description: "d"},
		"missing description": {Text: "t"},
		"missing both":        {},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			err := in.Validate()
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Message != "Task text and description are required" {
				t.Fatalf("unexpected message: %q", vErr.Message)
			}
		})
	}
	if err := (NewTask{Text: "t", Description: "d"}).Validate(); err != nil {
		t.Fatalf("expected valid task, got %v", err)
	}
}

func TestParseID(t *testing.T) {
	if id, ok := ParseID("1714559400000"); !ok || id != 1714559400000 {
		t.Fatalf("unexpected parse result: %d %v", id, ok)
	}
	for _, raw := range []string{"", "abc", "1.5", "12abc"} {
		if _, ok := ParseID(raw); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
