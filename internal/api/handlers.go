package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/crestbank/notifyd/internal/catalog"
	"github.com/crestbank/notifyd/internal/session"
	"github.com/crestbank/notifyd/internal/variables"
)

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// ErrorResponse is the error response. Rule and Tokens are set for
// category-constraint violations so the dashboard can point at the
// offending placeholders.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Field  string   `json:"field,omitempty"`
	Rule   string   `json:"rule,omitempty"`
	Tokens []string `json:"tokens,omitempty"`
}

// TemplateSummary is one row of a group's template listing
type TemplateSummary struct {
	Definition catalog.Definition `json:"definition"`
	Status     catalog.Status     `json:"status"`
}

// CreateGroupRequest is the request body for POST /groups
type CreateGroupRequest struct {
	Channel     string `json:"channel"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateTemplateRequest is the request body for POST /templates
type CreateTemplateRequest struct {
	GroupID   string `json:"groupId"`
	Name      string `json:"name"`
	Body      string `json:"body"`
	Subject   string `json:"subject,omitempty"`
	CompanyID string `json:"companyId,omitempty"`
}

// SaveContentRequest is the request body for POST /templates/{id}/content
type SaveContentRequest struct {
	Locale string `json:"locale"`
	Body   string `json:"body"`
}

// PreviewRequest is the request body for POST /templates/{id}/preview.
// Body overrides the stored text when set; otherwise the template's
// content for the locale is rendered.
type PreviewRequest struct {
	Locale string `json:"locale,omitempty"`
	Body   string `json:"body,omitempty"`
}

// PreviewResponse is the rendered preview
type PreviewResponse struct {
	Rendered string `json:"rendered"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleListGroups handles GET /api/v1/groups
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	var channel catalog.Channel
	if q := r.URL.Query().Get("channel"); q != "" {
		parsed, err := catalog.ParseChannel(q)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		channel = parsed
	}
	s.sendJSON(w, http.StatusOK, s.catalog.Groups(channel))
}

// handleCreateGroup handles POST /api/v1/groups
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	channel, err := catalog.ParseChannel(req.Channel)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	group, err := s.catalog.AddGroup(catalog.Group{
		Name:        req.Name,
		Channel:     channel,
		Description: req.Description,
	})
	if err != nil {
		s.sendError(w, http.StatusConflict, err.Error())
		return
	}
	s.sendJSON(w, http.StatusCreated, group)
}

// handleListTemplates handles GET /api/v1/groups/{groupID}/templates.
// Listing a group is the navigation event that refreshes its remote
// snapshot; the refresh is best effort and a failure degrades to
// locally derived statuses.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	group, ok := s.catalog.GroupByID(groupID)
	if !ok {
		s.sendError(w, http.StatusNotFound, "group not found")
		return
	}

	if _, err := s.snapshots.Refresh(r.Context(), group); err != nil {
		s.logger.Debug("snapshot refresh failed", "group", groupID, "error", err)
	}

	defs := s.catalog.Definitions(groupID)
	summaries := make([]TemplateSummary, 0, len(defs))
	for _, def := range defs {
		def = s.sessions.ApplyOverrides(def)
		summaries = append(summaries, TemplateSummary{
			Definition: def,
			Status:     s.sessions.DeriveStatus(def),
		})
	}
	s.sendJSON(w, http.StatusOK, summaries)
}

// handleGetTemplate handles GET /api/v1/templates/{id}
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Open(chi.URLParam(r, "id"))
	if err != nil {
		s.sendError(w, http.StatusNotFound, err.Error())
		return
	}

	view, err := sess.Load(r.Context())
	if err != nil {
		s.sendError(w, http.StatusNotFound, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, view)
}

// handleCreateTemplate handles POST /api/v1/templates
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	def, err := s.sessions.CreateTemplate(r.Context(), session.CreateTemplateRequest{
		GroupID:   req.GroupID,
		Name:      req.Name,
		Body:      req.Body,
		Subject:   req.Subject,
		CompanyID: req.CompanyID,
	})
	if err != nil {
		s.sendOperationError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, def)
}

// handleSaveContent handles POST /api/v1/templates/{id}/content
func (s *Server) handleSaveContent(w http.ResponseWriter, r *http.Request) {
	var req SaveContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.sessions.Open(chi.URLParam(r, "id"))
	if err != nil {
		s.sendError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := sess.BeginEdit(); err != nil {
		s.sendError(w, http.StatusConflict, err.Error())
		return
	}
	if err := sess.Save(r.Context(), req.Locale, req.Body); err != nil {
		s.sendOperationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleActivate handles POST /api/v1/templates/{id}/activate
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Open(chi.URLParam(r, "id"))
	if err != nil {
		s.sendError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := sess.Activate(r.Context()); err != nil {
		s.sendOperationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreview handles POST /api/v1/templates/{id}/preview
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	def, ok := s.catalog.FindDefinition(chi.URLParam(r, "id"))
	if !ok {
		s.sendError(w, http.StatusNotFound, "template not found")
		return
	}
	def = s.sessions.ApplyOverrides(def)

	text := req.Body
	if text == "" {
		locale := req.Locale
		if locale == "" {
			locale = catalog.DefaultLocales[0]
		}
		text = def.Body[locale]
	}

	s.sendJSON(w, http.StatusOK, PreviewResponse{
		Rendered: variables.Render(text, def.Variables),
	})
}

// sendOperationError maps session and gateway errors onto the API's
// error surface: validation failures are field-addressable 422s,
// everything the gateway refused or failed to answer is a uniform 502.
func (s *Server) sendOperationError(w http.ResponseWriter, err error) {
	var constraint *variables.ConstraintError
	if errors.As(err, &constraint) {
		s.sendJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  constraint.Error(),
			Field:  "body",
			Rule:   string(constraint.Rule),
			Tokens: constraint.Tokens,
		})
		return
	}

	var validation *session.ValidationError
	if errors.As(err, &validation) {
		s.sendJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: validation.Message,
			Field: validation.Field,
		})
		return
	}

	if errors.Is(err, session.ErrTemplateNotFound) || errors.Is(err, session.ErrGroupNotFound) {
		s.sendError(w, http.StatusNotFound, err.Error())
		return
	}

	s.sendError(w, http.StatusBadGateway, "the template service did not accept the request")
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
