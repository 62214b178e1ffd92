package task

import (
	"strings"
	"time"
)

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Status is the progress state of a task.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// ParsePriority matches s against the known priorities, ignoring case.
func ParsePriority(s string) (Priority, bool) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh} {
		if strings.EqualFold(s, string(p)) {
			return p, true
		}
	}
	return "", false
}

// ParseStatus matches s against the known statuses, ignoring case.
func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{StatusTodo, StatusInProgress, StatusDone} {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Task is one unit of work within a project.
type Task struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	Priority    Priority
	Status      Status
	DueDate     *time.Time
	AssigneeID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Joined for display; not written.
	ProjectName       string
	ManagerID         string
	ManagerName       string
	AssigneeFirstName string
	AssigneeLastName  string
}

// CreateInput is the data needed to create a task.
type CreateInput struct {
	ProjectID   string
	Name        string
	Description string
	// Priority and Status default to MEDIUM and TODO when empty.
	Priority   string
	Status     string
	DueDate    *time.Time
	AssigneeID string
}

// UpdateInput is a manager's partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	Priority    *string
	DueDate     *time.Time
	AssigneeID  *string
}

// AdminUpdateInput is the administrative override of name and status.
type AdminUpdateInput struct {
	Name   *string
	Status *string
}
