package project

import "errors"

var (
	// ErrProjectNotFound is returned when a project ID or name does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrNameExists is returned when another project already uses the name.
	ErrNameExists = errors.New("project name already exists")

	// ErrManagerNotFound is returned when the manager ID is not a user.
	ErrManagerNotFound = errors.New("manager not found")

	// ErrMemberNotFound is returned when a member ID is not a user.
	ErrMemberNotFound = errors.New("member not found")

	// ErrInvalidName is returned for empty or oversized names.
	ErrInvalidName = errors.New("invalid project name")

	// ErrInvalidStatus is returned for an unknown status value.
	ErrInvalidStatus = errors.New("invalid project status")

	// ErrInvalidDate is returned when a date is not MM/DD/YYYY.
	ErrInvalidDate = errors.New("invalid date: expected MM/DD/YYYY")
)
