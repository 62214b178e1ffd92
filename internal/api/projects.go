package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pmflow-core/internal/auth"
	"github.com/nerrad567/pmflow-core/internal/events"
	"github.com/nerrad567/pmflow-core/internal/project"
)

// ─── Request/Response Types ────────────────────────────────────────

type createProjectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ManagerID   string   `json:"manager_id"`
	MemberIDs   []string `json:"member_ids"`
	// EndDate is MM/DD/YYYY.
	EndDate string `json:"end_date"`
}

type updateProjectRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	ManagerID   *string   `json:"manager_id"`
	MemberIDs   *[]string `json:"member_ids"`
	EndDate     *string   `json:"end_date"`
}

// projectSummary is the list view of a project.
type projectSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date,omitempty"`
	ManagerUsername string `json:"manager_username"`
}

type userRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// projectDetail is the full view of a project.
type projectDetail struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date,omitempty"`
	Manager     userRef   `json:"manager"`
	Members     []userRef `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProjectSummary(p *project.Project) projectSummary {
	return projectSummary{
		ID:              p.ID,
		Name:            p.Name,
		Status:          string(p.Status),
		StartDate:       project.FormatDate(p.StartDate),
		EndDate:         project.FormatDate(p.EndDate),
		ManagerUsername: p.ManagerUsername,
	}
}

func toProjectSummaries(projects []project.Project) []projectSummary {
	out := make([]projectSummary, 0, len(projects))
	for i := range projects {
		out = append(out, toProjectSummary(&projects[i]))
	}
	return out
}

func toProjectDetail(p *project.Project) projectDetail {
	members := make([]userRef, 0, len(p.MemberIDs))
	for i, id := range p.MemberIDs {
		ref := userRef{ID: id}
		if i < len(p.MemberUsernames) {
			ref.Username = p.MemberUsernames[i]
		}
		members = append(members, ref)
	}
	return projectDetail{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		StartDate:   project.FormatDate(p.StartDate),
		EndDate:     project.FormatDate(p.EndDate),
		Manager:     userRef{ID: p.ManagerID, Username: p.ManagerUsername},
		Members:     members,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// parseProjectFilter reads name, status and end_date from the query string.
// The manager parameter is only honoured when withManager is set.
func parseProjectFilter(r *http.Request, withManager bool) (project.Filter, error) {
	q := r.URL.Query()
	f := project.Filter{NameContains: q.Get("name")}
	if withManager {
		f.ManagerUsername = q.Get("manager")
	}
	if v := q.Get("status"); v != "" {
		st, ok := project.ParseStatus(v)
		if !ok {
			return f, fmt.Errorf("%w: %q", project.ErrInvalidStatus, v)
		}
		f.Status = st
	}
	if v := q.Get("end_date"); v != "" {
		d, err := project.ParseInputDate(v)
		if err != nil {
			return f, err
		}
		f.EndDate = d
	}
	return f, nil
}

// requiredStatus parses the mandatory status query parameter.
func requiredStatus(r *http.Request) (project.Status, error) {
	v := r.URL.Query().Get("status")
	st, ok := project.ParseStatus(v)
	if !ok {
		return "", fmt.Errorf("%w: status must be one of NOT_STARTED, IN_PROGRESS, COMPLETED, ON_HOLD", project.ErrInvalidStatus)
	}
	return st, nil
}

// ─── Admin Handlers ────────────────────────────────────────────────

// handleCreateProject creates a NOT_STARTED project starting today.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpProjectCreate, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var req createProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := project.NewProject(project.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		ManagerID:   req.ManagerID,
		MemberIDs:   req.MemberIDs,
		EndDate:     req.EndDate,
	}, s.now())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.projects.Create(r.Context(), p); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	created, err := s.projects.GetByID(r.Context(), p.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.logger.Info("project created", "project_id", p.ID, "manager_id", p.ManagerID)
	s.recordMutation(r, "create", events.EntityProject, p.ID, map[string]any{
		"name":       p.Name,
		"manager_id": p.ManagerID,
	})

	writeJSON(w, http.StatusCreated, toProjectDetail(created))
}

// handleListProjects returns every project as a summary.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpProjectList, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	projects, err := s.projects.List(r.Context(), project.Filter{})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectSummaries(projects))
}

// handleGetProject returns one project in detail.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpProjectRead, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	p, err := s.projects.GetByID(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDetail(p))
}

// handleGetProjectByName returns a project by exact name; detailed=true
// selects the full view.
func (s *Server) handleGetProjectByName(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpProjectReadByName, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		writeBadRequest(w, "name is required")
		return
	}
	detailed := false
	if v := q.Get("detailed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "detailed must be true or false")
			return
		}
		detailed = b
	}

	p, err := s.projects.GetByName(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if detailed {
		writeJSON(w, http.StatusOK, toProjectDetail(p))
		return
	}
	writeJSON(w, http.StatusOK, toProjectSummary(p))
}

// handleUpdateProject applies a partial update by ID.
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpProjectUpdate, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	p, err := s.projects.GetByID(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.updateProject(w, r, p)
}

// handleUpdateProjectByName applies a partial update by exact name.
func (s *Server) handleUpdateProjectByName(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpProjectUpdateByName, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	p, err := s.projects.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.updateProject(w, r, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request, p *project.Project) {
	var req updateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := p.Apply(project.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		ManagerID:   req.ManagerID,
		MemberIDs:   req.MemberIDs,
		EndDate:     req.EndDate,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.projects.Update(r.Context(), p); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	updated, err := s.projects.GetByID(r.Context(), p.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.logger.Info("project updated", "project_id", p.ID)
	s.recordMutation(r, "update", events.EntityProject, p.ID, map[string]any{
		"name":   updated.Name,
		"status": string(updated.Status),
	})

	writeJSON(w, http.StatusOK, toProjectDetail(updated))
}

// handleDeleteProject removes a project and its tasks by ID.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpProjectDelete, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.deleteProject(w, r, chi.URLParam(r, "projectID"), "")
}

// handleDeleteProjectByName removes a project and its tasks by exact name.
func (s *Server) handleDeleteProjectByName(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpProjectDeleteByName, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	name := chi.URLParam(r, "name")
	p, err := s.projects.GetByName(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.deleteProject(w, r, p.ID, name)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request, id, name string) {
	if err := s.projects.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.logger.Warn("project deleted", "project_id", id)
	var details map[string]any
	if name != "" {
		details = map[string]any{"name": name}
	}
	s.recordMutation(r, "delete", events.EntityProject, id, details)

	w.WriteHeader(http.StatusNoContent)
}

// handleFilterProjects lists projects matching name, manager, status and
// end_date query parameters.
func (s *Server) handleFilterProjects(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpProjectFilter, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	f, err := parseProjectFilter(r, true)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	projects, err := s.projects.List(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectSummaries(projects))
}

// handleCountProjects counts all projects in one status.
func (s *Server) handleCountProjects(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpProjectCount, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	st, err := requiredStatus(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	n, err := s.projects.CountByStatus(r.Context(), st, "")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": st, "count": n})
}

// ─── Manager Handlers ──────────────────────────────────────────────

// managerIDFromPath resolves the {username} path segment. An unknown
// username yields "", which never satisfies the manager relation, so the
// caller sees the same 403 as for someone else's username.
func (s *Server) managerIDFromPath(r *http.Request) (string, error) {
	u, err := s.users.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if errors.Is(err, auth.ErrUserNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// authorizeManagerView runs op for the manager named in the path and
// returns that manager's ID.
func (s *Server) authorizeManagerView(w http.ResponseWriter, r *http.Request, op auth.Operation) (string, bool) {
	p := principalFromContext(r.Context())

	// Role check before the username lookup.
	if err := s.enforcer.Check(r.Context(), p, op, auth.Target{ManagerID: p.UserID}); err != nil {
		s.writeServiceError(w, r, err)
		return "", false
	}

	managerID, err := s.managerIDFromPath(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return "", false
	}
	if err := s.enforcer.Check(r.Context(), p, op, auth.Target{ManagerID: managerID}); err != nil {
		s.writeServiceError(w, r, err)
		return "", false
	}
	return managerID, true
}

// handleManagerProjects lists the caller's own projects.
func (s *Server) handleManagerProjects(w http.ResponseWriter, r *http.Request) {
	managerID, ok := s.authorizeManagerView(w, r, auth.OpProjectManagerList)
	if !ok {
		return
	}

	projects, err := s.projects.List(r.Context(), project.Filter{ManagerID: managerID})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectSummaries(projects))
}

// handleManagerFilterProjects filters within the caller's own projects.
func (s *Server) handleManagerFilterProjects(w http.ResponseWriter, r *http.Request) {
	managerID, ok := s.authorizeManagerView(w, r, auth.OpProjectManagerFilter)
	if !ok {
		return
	}

	f, err := parseProjectFilter(r, false)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	f.ManagerID = managerID

	projects, err := s.projects.List(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectSummaries(projects))
}

// handleManagerProjectByName returns one of the caller's projects in
// detail. A project managed by someone else is reported as not found.
func (s *Server) handleManagerProjectByName(w http.ResponseWriter, r *http.Request) {
	managerID, ok := s.authorizeManagerView(w, r, auth.OpProjectManagerRead)
	if !ok {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	p, err := s.projects.GetByName(r.Context(), name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if p.ManagerID != managerID {
		s.writeServiceError(w, r, project.ErrProjectNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDetail(p))
}

// handleManagerCountProjects counts the caller's projects in one status.
func (s *Server) handleManagerCountProjects(w http.ResponseWriter, r *http.Request) {
	managerID, ok := s.authorizeManagerView(w, r, auth.OpProjectManagerCount)
	if !ok {
		return
	}

	st, err := requiredStatus(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	n, err := s.projects.CountByStatus(r.Context(), st, managerID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": st, "count": n})
}
