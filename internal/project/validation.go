package project

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const maxNameLength = 100

// ValidateName checks that a project name is present and bounded.
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

// ParseInputDate parses an MM/DD/YYYY date as a UTC calendar day.
func ParseInputDate(s string) (time.Time, error) {
	d, err := time.Parse(InputDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// FormatDate renders a calendar day as YYYY-MM-DD, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// NewProject validates in and builds a NOT_STARTED project starting today.
func NewProject(in CreateInput, today time.Time) (*Project, error) {
	if err := ValidateName(in.Name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ManagerID) == "" {
		return nil, fmt.Errorf("%w: manager_id is required", ErrManagerNotFound)
	}

	p := &Project{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Status:      StatusNotStarted,
		StartDate:   truncateDay(today),
		ManagerID:   in.ManagerID,
		MemberIDs:   dedupe(in.MemberIDs),
	}
	if in.EndDate != "" {
		end, err := ParseInputDate(in.EndDate)
		if err != nil {
			return nil, err
		}
		p.EndDate = end
	}
	return p, nil
}

// Apply copies the non-nil fields of in onto p after validating them.
// p is left untouched when any field is invalid.
func (p *Project) Apply(in UpdateInput) error {
	next := *p
	next.MemberIDs = slices.Clone(p.MemberIDs)

	if in.Name != nil {
		if err := ValidateName(*in.Name); err != nil {
			return err
		}
		next.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		next.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		st, ok := ParseStatus(*in.Status)
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, *in.Status)
		}
		next.Status = st
	}
	if in.ManagerID != nil {
		if strings.TrimSpace(*in.ManagerID) == "" {
			return fmt.Errorf("%w: manager_id cannot be empty", ErrManagerNotFound)
		}
		next.ManagerID = *in.ManagerID
	}
	if in.MemberIDs != nil {
		next.MemberIDs = dedupe(*in.MemberIDs)
	}
	if in.EndDate != nil {
		if *in.EndDate == "" {
			next.EndDate = time.Time{}
		} else {
			end, err := ParseInputDate(*in.EndDate)
			if err != nil {
				return err
			}
			next.EndDate = end
		}
	}

	*p = next
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dedupe drops blanks and repeats while keeping first-seen order.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
