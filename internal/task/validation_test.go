package task

import (
	"errors"
	"testing"
	"time"
)

func TestNewTask(t *testing.T) {
	task, err := NewTask(CreateInput{ProjectID: "prj-1", Name: " plan "})
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.Name != "plan" || task.Priority != PriorityMedium || task.Status != StatusTodo {
		t.Errorf("defaults = %+v", task)
	}

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"no name", CreateInput{ProjectID: "prj-1"}, ErrInvalidName},
		{"no project", CreateInput{Name: "plan"}, ErrProjectNotFound},
		{"bad priority", CreateInput{ProjectID: "prj-1", Name: "plan", Priority: "URGENT"}, ErrInvalidPriority},
		{"bad status", CreateInput{ProjectID: "prj-1", Name: "plan", Status: "BLOCKED"}, ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTask(tt.in); !errors.Is(err, tt.want) {
				t.Errorf("NewTask() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewTask_DueDateNormalised(t *testing.T) {
	due := time.Date(2026, 5, 1, 19, 30, 15, 999, time.FixedZone("CEST", 2*3600))
	task, err := NewTask(CreateInput{ProjectID: "prj-1", Name: "plan", DueDate: &due})
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.DueDate.Location() != time.UTC || task.DueDate.Nanosecond() != 0 {
		t.Errorf("DueDate = %v, want whole-second UTC", task.DueDate)
	}
	if !task.DueDate.Equal(due.Truncate(time.Second)) {
		t.Errorf("DueDate instant changed: %v", task.DueDate)
	}
}

func TestApplyAdmin(t *testing.T) {
	task := &Task{Name: "plan", Status: StatusTodo}

	status := "done"
	if err := task.ApplyAdmin(AdminUpdateInput{Status: &status}); err != nil {
		t.Fatalf("ApplyAdmin() error = %v", err)
	}
	if task.Status != StatusDone {
		t.Errorf("Status = %s, want DONE", task.Status)
	}

	empty := ""
	if err := task.ApplyAdmin(AdminUpdateInput{Name: &empty}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("ApplyAdmin() error = %v, want ErrInvalidName", err)
	}
	if task.Name != "plan" {
		t.Errorf("Name = %q, want unchanged", task.Name)
	}
}
