package task

import "errors"

var (
	// ErrTaskNotFound is returned when a task ID does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrProjectNotFound is returned when the task's project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrAssigneeNotFound is returned when the assignee ID is not a user.
	ErrAssigneeNotFound = errors.New("assignee not found")

	// ErrInvalidName is returned for empty or oversized names.
	ErrInvalidName = errors.New("invalid task name")

	// ErrInvalidPriority is returned for an unknown priority.
	ErrInvalidPriority = errors.New("invalid task priority")

	// ErrInvalidStatus is returned for an unknown status.
	ErrInvalidStatus = errors.New("invalid task status")
)
