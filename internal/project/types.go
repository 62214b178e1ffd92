package project

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a project.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusOnHold     Status = "ON_HOLD"
)

// AllStatuses lists every valid Status.
var AllStatuses = []Status{StatusNotStarted, StatusInProgress, StatusCompleted, StatusOnHold}

// ParseStatus matches s against the known statuses, ignoring case.
func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Date layouts. Input end dates use InputDateLayout; everything stored or
// returned uses DateLayout.
const (
	InputDateLayout = "01/02/2006"
	DateLayout      = "2006-01-02"
)

// Project is a unit of work owned by one manager.
type Project struct {
	ID          string
	Name        string
	Description string
	Status      Status

	// StartDate and EndDate carry a calendar day in UTC. A zero EndDate
	// means none was set.
	StartDate time.Time
	EndDate   time.Time

	ManagerID       string
	ManagerUsername string

	MemberIDs       []string
	MemberUsernames []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasMember reports whether userID is in the member set.
func (p *Project) HasMember(userID string) bool {
	for _, id := range p.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CreateInput is the data needed to create a project.
type CreateInput struct {
	Name        string
	Description string
	ManagerID   string
	MemberIDs   []string
	// EndDate is MM/DD/YYYY; empty leaves it unset.
	EndDate string
}

// UpdateInput is a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	Status      *string
	ManagerID   *string
	MemberIDs   *[]string
	EndDate     *string
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	// NameContains matches a case-insensitive substring of the name.
	NameContains string
	// ManagerID matches the manager exactly.
	ManagerID string
	// ManagerUsername matches the manager's username, ignoring case.
	ManagerUsername string
	Status          Status
	// EndDate matches the calendar day exactly.
	EndDate time.Time
}
