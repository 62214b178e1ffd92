package task

import (
	"fmt"
	"strings"
	"time"
)

const maxNameLength = 200

// ValidateName checks that a task name is present and bounded.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// NewTask validates in and builds an unsaved task.
func NewTask(in CreateInput) (*Task, error) {
	if err := ValidateName(in.Name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ProjectID) == "" {
		return nil, fmt.Errorf("%w: project_id is required", ErrProjectNotFound)
	}

	t := &Task{
		ProjectID:   in.ProjectID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Priority:    PriorityMedium,
		Status:      StatusTodo,
		DueDate:     utcPtr(in.DueDate),
		AssigneeID:  strings.TrimSpace(in.AssigneeID),
	}
	if in.Priority != "" {
		p, ok := ParsePriority(in.Priority)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, in.Priority)
		}
		t.Priority = p
	}
	if in.Status != "" {
		st, ok := ParseStatus(in.Status)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
		}
		t.Status = st
	}
	return t, nil
}

// Apply copies the non-nil fields of in onto t after validating them.
// An empty AssigneeID unassigns the task.
func (t *Task) Apply(in UpdateInput) error {
	next := *t

	if in.Name != nil {
		if err := ValidateName(*in.Name); err != nil {
			return err
		}
		next.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		next.Description = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		p, ok := ParsePriority(*in.Priority)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidPriority, *in.Priority)
		}
		next.Priority = p
	}
	if in.DueDate != nil {
		next.DueDate = utcPtr(in.DueDate)
	}
	if in.AssigneeID != nil {
		next.AssigneeID = strings.TrimSpace(*in.AssigneeID)
	}

	*t = next
	return nil
}

// ApplyAdmin applies an administrative name and status change.
func (t *Task) ApplyAdmin(in AdminUpdateInput) error {
	next := *t

	if in.Name != nil {
		if err := ValidateName(*in.Name); err != nil {
			return err
		}
		next.Name = strings.TrimSpace(*in.Name)
	}
	if in.Status != nil {
		st, ok := ParseStatus(*in.Status)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, *in.Status)
		}
		next.Status = st
	}

	*t = next
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC().Truncate(time.Second)
	return &u
}
