package project

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

// Repository defines project persistence.
type Repository interface {
	auth.TargetResolver

	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id string) (*Project, error)
	GetByName(ctx context.Context, name string) (*Project, error)
	List(ctx context.Context, f Filter) ([]Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, status Status, managerID string) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed project repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectProjects = `SELECT p.id, p.name, p.description, p.status, p.start_date, p.end_date,
		p.manager_id, u.username, p.created_at, p.updated_at
		FROM projects p JOIN users u ON u.id = p.manager_id`

// Create inserts p and its members in one transaction. The ID is generated
// if empty.
func (r *SQLiteRepository) Create(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = "prj-" + uuid.NewString()[:8]
	}
	if p.Status == "" {
		p.Status = StatusNotStarted
	}
	now := time.Now().UTC().Truncate(time.Second)
	if p.StartDate.IsZero() {
		p.StartDate = truncateDay(now)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	ts := now.Format(time.RFC3339)

	return database.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, name, description, status, start_date, end_date, manager_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Description, string(p.Status), FormatDate(p.StartDate),
			nullDate(p.EndDate), p.ManagerID, ts, ts)
		if err != nil {
			return projectWriteError(err, "inserting project "+p.ID)
		}
		return replaceMembers(ctx, tx, p.ID, p.MemberIDs)
	})
}

// GetByID returns a project with its members.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Project, error) {
	return r.getOne(ctx, selectProjects+" WHERE p.id = ?", id)
}

// GetByName returns the project with exactly this name.
func (r *SQLiteRepository) GetByName(ctx context.Context, name string) (*Project, error) {
	return r.getOne(ctx, selectProjects+" WHERE p.name = ?", name)
}

// List returns projects matching f ordered by name, members included.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]Project, error) {
	var where []string
	var args []any

	if f.NameContains != "" {
		where = append(where, "instr(lower(p.name), lower(?)) > 0")
		args = append(args, f.NameContains)
	}
	if f.ManagerID != "" {
		where = append(where, "p.manager_id = ?")
		args = append(args, f.ManagerID)
	}
	if f.ManagerUsername != "" {
		where = append(where, "lower(u.username) = lower(?)")
		args = append(args, f.ManagerUsername)
	}
	if f.Status != "" {
		where = append(where, "p.status = ?")
		args = append(args, string(f.Status))
	}
	if !f.EndDate.IsZero() {
		where = append(where, "p.end_date = ?")
		args = append(args, FormatDate(f.EndDate))
	}

	query := selectProjects
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.name"

	projects, err := r.queryProjects(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if err := r.loadMembers(ctx, &projects[i]); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

// Update writes every mutable field of p and replaces its member set.
func (r *SQLiteRepository) Update(ctx context.Context, p *Project) error {
	now := time.Now().UTC().Truncate(time.Second)

	err := database.RunInTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE projects SET name = ?, description = ?, status = ?, end_date = ?, manager_id = ?, updated_at = ?
			 WHERE id = ?`,
			p.Name, p.Description, string(p.Status), nullDate(p.EndDate), p.ManagerID,
			now.Format(time.RFC3339), p.ID)
		if err != nil {
			return projectWriteError(err, "updating project "+p.ID)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating project %s: %w", p.ID, err)
		}
		if n == 0 {
			return ErrProjectNotFound
		}
		return replaceMembers(ctx, tx, p.ID, p.MemberIDs)
	})
	if err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// Delete removes a project. Its tasks and member rows cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	if n == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// CountByStatus counts projects in status, limited to one manager when
// managerID is set.
func (r *SQLiteRepository) CountByStatus(ctx context.Context, status Status, managerID string) (int, error) {
	query := "SELECT COUNT(*) FROM projects WHERE status = ?"
	args := []any{string(status)}
	if managerID != "" {
		query += " AND manager_id = ?"
		args = append(args, managerID)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting projects: %w", err)
	}
	return count, nil
}

// ResolveTarget implements auth.TargetResolver.
func (r *SQLiteRepository) ResolveTarget(ctx context.Context, id string) (auth.Target, error) {
	var managerID string
	err := r.db.QueryRowContext(ctx, "SELECT manager_id FROM projects WHERE id = ?", id).Scan(&managerID)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Target{}, ErrProjectNotFound
	}
	if err != nil {
		return auth.Target{}, fmt.Errorf("resolving project %s: %w", id, err)
	}

	memberIDs, err := r.memberIDs(ctx, id)
	if err != nil {
		return auth.Target{}, err
	}
	return auth.Target{ManagerID: managerID, MemberIDs: memberIDs}, nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, args ...any) (*Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadMembers(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// queryProjects reads every row before returning; the pool has a single
// connection, so member lookups must wait until rows is closed.
func (r *SQLiteRepository) queryProjects(ctx context.Context, query string, args ...any) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}
	return projects, nil
}

func (r *SQLiteRepository) loadMembers(ctx context.Context, p *Project) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.username FROM project_members pm
		 JOIN users u ON u.id = pm.user_id
		 WHERE pm.project_id = ? ORDER BY u.username`, p.ID)
	if err != nil {
		return fmt.Errorf("querying members of %s: %w", p.ID, err)
	}
	defer rows.Close()

	p.MemberIDs = []string{}
	p.MemberUsernames = []string{}
	for rows.Next() {
		var id, username string
		if err := rows.Scan(&id, &username); err != nil {
			return fmt.Errorf("scanning member row: %w", err)
		}
		p.MemberIDs = append(p.MemberIDs, id)
		p.MemberUsernames = append(p.MemberUsernames, username)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating member rows: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) memberIDs(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT user_id FROM project_members WHERE project_id = ?", projectID)
	if err != nil {
		return nil, fmt.Errorf("querying members of %s: %w", projectID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning member row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating member rows: %w", err)
	}
	return ids, nil
}

// replaceMembers rewrites the member set of projectID inside tx.
func replaceMembers(ctx context.Context, tx *sql.Tx, projectID string, memberIDs []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM project_members WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("clearing members of %s: %w", projectID, err)
	}
	for _, uid := range memberIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO project_members (project_id, user_id) VALUES (?, ?)", projectID, uid)
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s", ErrMemberNotFound, uid)
		}
		if err != nil {
			return fmt.Errorf("adding member %s to %s: %w", uid, projectID, err)
		}
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*Project, error) {
	var p Project
	var status, createdAt, updatedAt string
	var startDate, endDate sql.NullString

	err := s.Scan(&p.ID, &p.Name, &p.Description, &status, &startDate, &endDate,
		&p.ManagerID, &p.ManagerUsername, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("scanning project: %w", err)
	}

	p.Status = Status(status)
	p.StartDate = parseDate(startDate)
	p.EndDate = parseDate(endDate)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by this repository
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by this repository
	return &p, nil
}

func parseDate(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(DateLayout, ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatDate(t), Valid: true}
}

// projectWriteError maps constraint failures on the projects table.
func projectWriteError(err error, op string) error {
	switch {
	case database.IsUniqueViolation(err) && database.ViolatesColumn(err, "projects.name"):
		return ErrNameExists
	case database.IsForeignKeyViolation(err):
		return ErrManagerNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
