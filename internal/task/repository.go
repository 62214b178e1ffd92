package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/pmflow-core/internal/auth"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/database"
)

// Repository defines task persistence.
type Repository interface {
	auth.TargetResolver

	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id string) (*Task, error)
	ListByProject(ctx context.Context, projectID string) ([]Task, error)
	ListByAssignee(ctx context.Context, userID string) ([]Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed task repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectTasks = `SELECT t.id, t.project_id, t.name, t.description, t.priority, t.status,
		t.due_date, t.assignee_id, t.created_at, t.updated_at,
		p.name, p.manager_id, m.first_name, m.last_name,
		a.first_name, a.last_name
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		JOIN users m ON m.id = p.manager_id
		LEFT JOIN users a ON a.id = t.assignee_id`

// Create inserts t. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = "tsk-" + uuid.NewString()[:8]
	}
	now := time.Now().UTC().Truncate(time.Second)
	t.CreatedAt = now
	t.UpdatedAt = now
	ts := now.Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, name, description, priority, status, due_date, assignee_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Name, t.Description, string(t.Priority), string(t.Status),
		nullTime(t.DueDate), nullStr(t.AssigneeID), ts, ts)
	if err != nil {
		return r.writeError(ctx, err, t, "inserting task "+t.ID)
	}
	return nil
}

// GetByID returns a task with its project and assignee names joined in.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Task, error) {
	return scanTask(r.db.QueryRowContext(ctx, selectTasks+" WHERE t.id = ?", id))
}

// ListByProject returns the tasks of one project, earliest first.
func (r *SQLiteRepository) ListByProject(ctx context.Context, projectID string) ([]Task, error) {
	return r.queryTasks(ctx, selectTasks+" WHERE t.project_id = ? ORDER BY t.created_at, t.name", projectID)
}

// ListByAssignee returns the tasks assigned to userID, earliest first.
func (r *SQLiteRepository) ListByAssignee(ctx context.Context, userID string) ([]Task, error) {
	return r.queryTasks(ctx, selectTasks+" WHERE t.assignee_id = ? ORDER BY t.created_at, t.name", userID)
}

// Update writes every mutable field of t.
func (r *SQLiteRepository) Update(ctx context.Context, t *Task) error {
	now := time.Now().UTC().Truncate(time.Second)

	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET name = ?, description = ?, priority = ?, status = ?, due_date = ?, assignee_id = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, t.Description, string(t.Priority), string(t.Status), nullTime(t.DueDate),
		nullStr(t.AssigneeID), now.Format(time.RFC3339), t.ID)
	if err != nil {
		return r.writeError(ctx, err, t, "updating task "+t.ID)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating task %s: %w", t.ID, err)
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	t.UpdatedAt = now
	return nil
}

// Delete removes a task.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ResolveTarget implements auth.TargetResolver. The target carries the
// owning project's manager and members plus the task's assignee.
func (r *SQLiteRepository) ResolveTarget(ctx context.Context, id string) (auth.Target, error) {
	var projectID, managerID string
	var assigneeID sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT t.project_id, p.manager_id, t.assignee_id
		 FROM tasks t JOIN projects p ON p.id = t.project_id WHERE t.id = ?`, id).
		Scan(&projectID, &managerID, &assigneeID)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Target{}, ErrTaskNotFound
	}
	if err != nil {
		return auth.Target{}, fmt.Errorf("resolving task %s: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, "SELECT user_id FROM project_members WHERE project_id = ?", projectID)
	if err != nil {
		return auth.Target{}, fmt.Errorf("querying members of %s: %w", projectID, err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return auth.Target{}, fmt.Errorf("scanning member row: %w", err)
		}
		members = append(members, uid)
	}
	if err := rows.Err(); err != nil {
		return auth.Target{}, fmt.Errorf("iterating member rows: %w", err)
	}

	return auth.Target{
		ManagerID:  managerID,
		MemberIDs:  members,
		AssigneeID: assigneeID.String,
	}, nil
}

func (r *SQLiteRepository) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task rows: %w", err)
	}
	return tasks, nil
}

// writeError maps a foreign key failure to the missing side. SQLite does
// not say which key failed, so the project is checked first.
func (r *SQLiteRepository) writeError(ctx context.Context, err error, t *Task, op string) error {
	if !database.IsForeignKeyViolation(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var exists int
	qerr := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE id = ?", t.ProjectID).Scan(&exists)
	if qerr == nil && exists == 0 {
		return ErrProjectNotFound
	}
	return ErrAssigneeNotFound
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var priority, status, createdAt, updatedAt string
	var dueDate, assigneeID, assigneeFirst, assigneeLast sql.NullString
	var managerFirst, managerLast string

	err := s.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Description, &priority, &status,
		&dueDate, &assigneeID, &createdAt, &updatedAt,
		&t.ProjectName, &t.ManagerID, &managerFirst, &managerLast,
		&assigneeFirst, &assigneeLast)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	t.Priority = Priority(priority)
	t.Status = Status(status)
	t.AssigneeID = assigneeID.String
	t.AssigneeFirstName = assigneeFirst.String
	t.AssigneeLastName = assigneeLast.String
	t.ManagerName = strings.TrimSpace(managerFirst + " " + managerLast)
	if dueDate.Valid {
		if d, err := time.Parse(time.RFC3339, dueDate.String); err == nil {
			t.DueDate = &d
		}
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by this repository
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by this repository
	return &t, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
