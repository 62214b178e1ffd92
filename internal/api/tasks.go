package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pmflow-core/internal/auth"
	"github.com/nerrad567/pmflow-core/internal/events"
	"github.com/nerrad567/pmflow-core/internal/task"
)

// ─── Request/Response Types ────────────────────────────────────────

type createTaskRequest struct {
	ProjectID   string     `json:"project_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
	AssigneeID  string     `json:"assignee_id"`
}

type updateTaskRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	AssigneeID  *string    `json:"assignee_id"`
}

type adminUpdateTaskRequest struct {
	Name   *string `json:"name"`
	Status *string `json:"status"`
}

type taskResponse struct {
	ID                string     `json:"id"`
	ProjectID         string     `json:"project_id"`
	ProjectName       string     `json:"project_name"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	Priority          string     `json:"priority"`
	Status            string     `json:"status"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	AssigneeID        string     `json:"assignee_id,omitempty"`
	AssigneeFirstName string     `json:"assignee_first_name,omitempty"`
	AssigneeLastName  string     `json:"assignee_last_name,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toTaskResponse(t *task.Task) taskResponse {
	return taskResponse{
		ID:                t.ID,
		ProjectID:         t.ProjectID,
		ProjectName:       t.ProjectName,
		Name:              t.Name,
		Description:       t.Description,
		Priority:          string(t.Priority),
		Status:            string(t.Status),
		DueDate:           t.DueDate,
		AssigneeID:        t.AssigneeID,
		AssigneeFirstName: t.AssigneeFirstName,
		AssigneeLastName:  t.AssigneeLastName,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func toTaskResponses(tasks []task.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	return out
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleCreateTask adds a task to a project the caller manages.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "project_id is required")
		return
	}

	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpTaskCreate, req.ProjectID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	t, err := task.NewTask(task.CreateInput{
		ProjectID:   req.ProjectID,
		Name:        req.Name,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		DueDate:     req.DueDate,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.tasks.Create(r.Context(), t); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.logger.Info("task created", "task_id", t.ID, "project_id", t.ProjectID)
	s.recordMutation(r, "create", events.EntityTask, t.ID, map[string]any{
		"project_id":  t.ProjectID,
		"assignee_id": t.AssigneeID,
	})

	s.respondTask(w, r, http.StatusCreated, t.ID)
}

// handleGetTask returns a task to any participant of its project.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpTaskRead, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.respondTask(w, r, http.StatusOK, id)
}

// handleListProjectTasks lists a project's tasks for its participants.
func (s *Server) handleListProjectTasks(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpTaskListByProject, projectID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	tasks, err := s.tasks.ListByProject(r.Context(), projectID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponses(tasks))
}

// handleListUserTasks lists the tasks assigned to a user. Only that user
// and admins may ask.
func (s *Server) handleListUserTasks(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpTaskListByUser, userID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	tasks, err := s.tasks.ListByAssignee(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponses(tasks))
}

// handleUpdateTaskStatus moves a task to the status in the query string.
// The project manager and the assignee may do this.
func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpTaskUpdateStatus, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	raw := r.URL.Query().Get("status")
	status, ok := task.ParseStatus(raw)
	if !ok {
		s.writeServiceError(w, r, fmt.Errorf("%w: status must be one of TODO, IN_PROGRESS, DONE", task.ErrInvalidStatus))
		return
	}

	t, err := s.tasks.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	previous := t.Status
	t.Status = status
	s.saveTask(w, r, t, "update", map[string]any{
		"status":          string(status),
		"previous_status": string(previous),
	})
}

// handleAssignTask sets the assignee named by the user_id query parameter.
func (s *Server) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpTaskAssign, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}

	t, err := s.tasks.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := t.Apply(task.UpdateInput{AssigneeID: &userID}); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.saveTask(w, r, t, "assign", map[string]any{"assignee_id": userID})
}

// handleUpdateTask applies a manager's partial update.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpTaskUpdate, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var req updateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := s.tasks.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	err = t.Apply(task.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.saveTask(w, r, t, "update", nil)
}

// handleAdminUpdateTask applies the administrative name and status override.
func (s *Server) handleAdminUpdateTask(w http.ResponseWriter, r *http.Request) {
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpTaskAdminUpdate, ""); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var req adminUpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := s.tasks.GetByID(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := t.ApplyAdmin(task.AdminUpdateInput{Name: req.Name, Status: req.Status}); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.saveTask(w, r, t, "update", map[string]any{"admin_override": true})
}

// handleDeleteTask removes a task.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	if err := s.enforcer.Authorize(r.Context(), principalFromContext(r.Context()), auth.OpTaskDelete, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.tasks.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.logger.Info("task deleted", "task_id", id)
	s.recordMutation(r, "delete", events.EntityTask, id, nil)

	w.WriteHeader(http.StatusNoContent)
}

// saveTask persists t, records the mutation and responds with the fresh row.
func (s *Server) saveTask(w http.ResponseWriter, r *http.Request, t *task.Task, action string, details map[string]any) {
	if err := s.tasks.Update(r.Context(), t); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.logger.Info("task updated", "task_id", t.ID, "action", action)
	s.recordMutation(r, action, events.EntityTask, t.ID, details)

	s.respondTask(w, r, http.StatusOK, t.ID)
}

// respondTask reloads a task so joined names are current, then writes it.
func (s *Server) respondTask(w http.ResponseWriter, r *http.Request, status int, id string) {
	t, err := s.tasks.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, toTaskResponse(t))
}
