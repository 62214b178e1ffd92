package auth

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// Target is the ownership view of a resource that rules are checked against.
type Target struct {
	UserID     string
	ManagerID  string
	MemberIDs  []string
	AssigneeID string
}

// TargetResolver loads the Target for a resource ID (the owner lookup for
// projects and tasks). Implementations return their own not-found error.
type TargetResolver interface {
	ResolveTarget(ctx context.Context, id string) (Target, error)
}

// DenyReason records which check rejected a request. Only logged and
// counted; callers see ErrForbidden either way.
type DenyReason string

const (
	DenyUnknownOperation DenyReason = "unknown_operation"
	DenyRole             DenyReason = "role"
	DenyRelation         DenyReason = "relation"
)

// DenyFunc is notified of every denial.
type DenyFunc func(ctx context.Context, p *Principal, op Operation, reason DenyReason)

// Enforcer applies a Policy to authenticated principals.
type Enforcer struct {
	policy    Policy
	resolvers map[ResourceKind]TargetResolver
	logger    *slog.Logger
	onDeny    DenyFunc
}

// NewEnforcer creates an enforcer for policy. A nil logger discards output.
func NewEnforcer(policy Policy, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Enforcer{
		policy:    policy,
		resolvers: make(map[ResourceKind]TargetResolver),
		logger:    logger,
	}
}

// RegisterResolver sets how IDs of the given kind are resolved.
// Call during setup, before serving requests.
func (e *Enforcer) RegisterResolver(kind ResourceKind, r TargetResolver) {
	e.resolvers[kind] = r
}

// OnDeny installs a denial hook. Call during setup.
func (e *Enforcer) OnDeny(fn DenyFunc) {
	e.onDeny = fn
}

// Check decides op for p against an already known target.
//
// Returns:
//   - nil: allowed
//   - ErrUnauthenticated: p is nil
//   - ErrForbidden (wrapped): any rule failure
func (e *Enforcer) Check(ctx context.Context, p *Principal, op Operation, target Target) error {
	if p == nil {
		return ErrUnauthenticated
	}
	rule, ok := e.policy[op]
	if !ok {
		return e.deny(ctx, p, op, DenyUnknownOperation)
	}
	if !rule.allowsRole(p.Role) {
		return e.deny(ctx, p, op, DenyRole)
	}
	if !rule.needsTarget(p.Role) {
		return nil
	}
	if !holds(rule.Relation, p, target) {
		return e.deny(ctx, p, op, DenyRelation)
	}
	return nil
}

// Authorize decides op for p against the resource identified by id,
// resolving its Target only when the rule needs one. The role check runs
// first, so a disallowed role never triggers a lookup.
//
// Resolver errors (for example a not-found) are wrapped, so errors.Is still
// matches them.
func (e *Enforcer) Authorize(ctx context.Context, p *Principal, op Operation, id string) error {
	if p == nil {
		return ErrUnauthenticated
	}
	rule, ok := e.policy[op]
	if !ok {
		return e.deny(ctx, p, op, DenyUnknownOperation)
	}
	if !rule.allowsRole(p.Role) {
		return e.deny(ctx, p, op, DenyRole)
	}
	if !rule.needsTarget(p.Role) {
		return nil
	}

	target, err := e.resolve(ctx, rule.Resource, id)
	if err != nil {
		return err
	}
	return e.Check(ctx, p, op, target)
}

func (e *Enforcer) resolve(ctx context.Context, kind ResourceKind, id string) (Target, error) {
	switch kind {
	case ResourceUser:
		return Target{UserID: id}, nil
	case ResourceManagedBy:
		return Target{ManagerID: id}, nil
	}

	r, ok := e.resolvers[kind]
	if !ok {
		return Target{}, fmt.Errorf("no target resolver registered for %q", kind)
	}
	target, err := r.ResolveTarget(ctx, id)
	if err != nil {
		return Target{}, fmt.Errorf("resolving %s %s: %w", kind, id, err)
	}
	return target, nil
}

func (e *Enforcer) deny(ctx context.Context, p *Principal, op Operation, reason DenyReason) error {
	e.logger.Warn("access denied",
		"user_id", p.UserID,
		"role", string(p.Role),
		"operation", string(op),
		"reason", string(reason),
	)
	if e.onDeny != nil {
		e.onDeny(ctx, p, op, reason)
	}
	return fmt.Errorf("%w: %s", ErrForbidden, op)
}

// holds evaluates a relation. Empty IDs never match.
func holds(rel Relation, p *Principal, t Target) bool {
	id := p.UserID
	if id == "" {
		return false
	}
	isManager := t.ManagerID == id
	isAssignee := t.AssigneeID == id

	switch rel {
	case RelationNone:
		return true
	case RelationSelf:
		return t.UserID == id
	case RelationManager:
		return isManager
	case RelationManagerOrAssignee:
		return isManager || isAssignee
	case RelationParticipant:
		return isManager || isAssignee || slices.Contains(t.MemberIDs, id)
	default:
		return false
	}
}
