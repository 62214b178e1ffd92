package auth

// Operation names a protected action. The HTTP layer passes one per handler.
type Operation string

// Operations guarded by the access control table.
const (
	OpUserReadSelf    Operation = "user.read_self"
	OpUserUpdateSelf  Operation = "user.update_self"
	OpUserList        Operation = "user.list"
	OpUserListByRole  Operation = "user.list_by_role"
	OpUserAdminUpdate Operation = "user.admin_update"

	OpProjectCreate       Operation = "project.create"
	OpProjectList         Operation = "project.list"
	OpProjectRead         Operation = "project.read"
	OpProjectReadByName   Operation = "project.read_by_name"
	OpProjectUpdate       Operation = "project.update"
	OpProjectUpdateByName Operation = "project.update_by_name"
	OpProjectDelete       Operation = "project.delete"
	OpProjectDeleteByName Operation = "project.delete_by_name"
	OpProjectFilter       Operation = "project.filter"
	OpProjectCount        Operation = "project.count"

	OpProjectManagerList   Operation = "project.manager_list"
	OpProjectManagerFilter Operation = "project.manager_filter"
	OpProjectManagerRead   Operation = "project.manager_read"
	OpProjectManagerCount  Operation = "project.manager_count"

	OpTaskCreate        Operation = "task.create"
	OpTaskRead          Operation = "task.read"
	OpTaskListByProject Operation = "task.list_by_project"
	OpTaskListByUser    Operation = "task.list_by_user"
	OpTaskUpdateStatus  Operation = "task.update_status"
	OpTaskAssign        Operation = "task.assign"
	OpTaskUpdate        Operation = "task.update"
	OpTaskAdminUpdate   Operation = "task.admin_update"
	OpTaskDelete        Operation = "task.delete"

	OpAuditList Operation = "audit.list"
)

// ResourceKind says how the resource ID handed to Enforcer.Authorize is
// turned into a Target.
type ResourceKind string

const (
	// ResourceNone: the operation has no per-resource check.
	ResourceNone ResourceKind = ""
	// ResourceUser: the ID is a user; Target.UserID is set to it.
	ResourceUser ResourceKind = "user"
	// ResourceManagedBy: the ID is a manager's user ID; Target.ManagerID is set to it.
	ResourceManagedBy ResourceKind = "managed_by"
	// ResourceProject and ResourceTask are resolved through a TargetResolver.
	ResourceProject ResourceKind = "project"
	ResourceTask    ResourceKind = "task"
)

// Relation is the dynamic check between the principal and the target.
type Relation int

const (
	RelationNone Relation = iota
	// RelationSelf: principal is the target user.
	RelationSelf
	// RelationManager: principal is the target's manager.
	RelationManager
	// RelationParticipant: principal is the manager, a member, or the assignee.
	RelationParticipant
	// RelationManagerOrAssignee: principal is the manager or the assignee.
	RelationManagerOrAssignee
)

func (r Relation) String() string {
	switch r {
	case RelationSelf:
		return "self"
	case RelationManager:
		return "manager"
	case RelationParticipant:
		return "participant"
	case RelationManagerOrAssignee:
		return "manager_or_assignee"
	default:
		return "none"
	}
}

// Rule is the access requirement for one Operation.
type Rule struct {
	Resource ResourceKind

	// Roles allowed to attempt the operation. Empty means any authenticated role.
	Roles []Role

	Relation Relation

	// AdminOverride lets ADMIN skip the relation check.
	AdminOverride bool
}

// allowsRole reports whether role passes the static role check.
func (r Rule) allowsRole(role Role) bool {
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if role == allowed {
			return true
		}
	}
	return false
}

// needsTarget reports whether evaluating the rule for role requires a
// resolved Target.
func (r Rule) needsTarget(role Role) bool {
	if r.Relation == RelationNone {
		return false
	}
	return !(r.AdminOverride && role == RoleAdmin)
}

// Policy maps every protected operation to its rule. Operations missing
// from the table are denied.
type Policy map[Operation]Rule

var (
	adminOnly      = []Role{RoleAdmin}
	adminOrManager = []Role{RoleAdmin, RoleProjectManager}
	managerOnly    = []Role{RoleProjectManager}
)

// DefaultPolicy returns the access control table for the HTTP API.
// Each call returns a fresh map so callers may extend it safely.
func DefaultPolicy() Policy {
	return Policy{
		OpUserReadSelf:    {Resource: ResourceUser, Relation: RelationSelf},
		OpUserUpdateSelf:  {Resource: ResourceUser, Relation: RelationSelf},
		OpUserList:        {Roles: adminOnly},
		OpUserListByRole:  {Roles: adminOnly},
		OpUserAdminUpdate: {Roles: adminOnly},

		OpProjectCreate:       {Roles: adminOnly},
		OpProjectList:         {Roles: adminOnly},
		OpProjectRead:         {Roles: adminOnly},
		OpProjectReadByName:   {Roles: adminOnly},
		OpProjectUpdate:       {Roles: adminOnly},
		OpProjectUpdateByName: {Roles: adminOnly},
		OpProjectDelete:       {Roles: adminOnly},
		OpProjectDeleteByName: {Roles: adminOnly},
		OpProjectFilter:       {Roles: adminOnly},
		OpProjectCount:        {Roles: adminOnly},

		OpProjectManagerList:   {Resource: ResourceManagedBy, Roles: managerOnly, Relation: RelationManager},
		OpProjectManagerFilter: {Resource: ResourceManagedBy, Roles: managerOnly, Relation: RelationManager},
		OpProjectManagerRead:   {Resource: ResourceProject, Roles: managerOnly, Relation: RelationManager},
		OpProjectManagerCount:  {Resource: ResourceManagedBy, Roles: managerOnly, Relation: RelationManager},

		OpTaskCreate:        {Resource: ResourceProject, Roles: adminOrManager, Relation: RelationManager, AdminOverride: true},
		OpTaskRead:          {Resource: ResourceTask, Relation: RelationParticipant, AdminOverride: true},
		OpTaskListByProject: {Resource: ResourceProject, Relation: RelationParticipant, AdminOverride: true},
		OpTaskListByUser:    {Resource: ResourceUser, Relation: RelationSelf, AdminOverride: true},
		OpTaskUpdateStatus:  {Resource: ResourceTask, Relation: RelationManagerOrAssignee, AdminOverride: true},
		OpTaskAssign:        {Resource: ResourceTask, Roles: adminOrManager, Relation: RelationManager, AdminOverride: true},
		OpTaskUpdate:        {Resource: ResourceTask, Roles: adminOrManager, Relation: RelationManager, AdminOverride: true},
		OpTaskAdminUpdate:   {Roles: adminOnly},
		OpTaskDelete:        {Resource: ResourceTask, Roles: adminOrManager, Relation: RelationManager, AdminOverride: true},

		OpAuditList: {Roles: adminOnly},
	}
}
