package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/progressor-api/internal/api/shared"
	"github.com/phrazzld/progressor-api/internal/domain"
	"github.com/phrazzld/progressor-api/internal/platform/logger"
	"github.com/phrazzld/progressor-api/internal/service"
)

// SkillHandler serves skills, projects and experience awards.
type SkillHandler struct {
	skills service.SkillService
	logger *slog.Logger
}

// NewSkillHandler creates a new SkillHandler.
func NewSkillHandler(skills service.SkillService, logger *slog.Logger) *SkillHandler {
	if skills == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("skill service cannot be nil for SkillHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SkillHandler{
		skills: skills,
		logger: logger.With(slog.String("component", "skill_handler")),
	}
}

// CreateSkill handles POST /api/skills.
func (h *SkillHandler) CreateSkill(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateSkillRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	skill, err := h.skills.CreateSkill(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create skill")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, skill)
}

// ListSkills handles GET /api/skills.
func (h *SkillHandler) ListSkills(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	skills, err := h.skills.ListSkills(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list skills")
		return
	}
	if skills == nil {
		skills = []*domain.Skill{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, skills)
}

// GetSkillProgress handles GET /api/skills/progress.
func (h *SkillHandler) GetSkillProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	progress, err := h.skills.GetUserSkillProgress(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get skill progress")
		return
	}
	if progress == nil {
		progress = []domain.UserSkillProgress{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, progress)
}

// GetSkill handles GET /api/skills/{id}.
func (h *SkillHandler) GetSkill(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, skillID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	skill, err := h.skills.GetSkill(r.Context(), userID, skillID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get skill")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, skill)
}

// UpdateSkill handles PUT /api/skills/{id}.
func (h *SkillHandler) UpdateSkill(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, skillID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req UpdateSkillRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	skill, err := h.skills.UpdateSkill(r.Context(), userID, skillID, domain.SkillUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update skill")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, skill)
}

// DeleteSkill handles DELETE /api/skills/{id}.
func (h *SkillHandler) DeleteSkill(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, skillID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	if err := h.skills.DeleteSkill(r.Context(), userID, skillID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete skill")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAwards handles GET /api/awards.
func (h *SkillHandler) ListAwards(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	awards, err := h.skills.ListAwards(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list awards")
		return
	}
	if awards == nil {
		awards = []*domain.ExperienceAward{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, awards)
}

// TotalExperience handles GET /api/awards/total.
func (h *SkillHandler) TotalExperience(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	total, err := h.skills.TotalExperience(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to total experience")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TotalExperienceResponse{Experience: total})
}

// CreateProject handles POST /api/projects.
func (h *SkillHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	project, err := h.skills.CreateProject(r.Context(), userID, req.Name)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create project")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, project)
}

// ListProjects handles GET /api/projects.
func (h *SkillHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	projects, err := h.skills.ListProjects(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list projects")
		return
	}
	if projects == nil {
		projects = []*domain.Project{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, projects)
}

// GetProject handles GET /api/projects/{id}.
func (h *SkillHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, projectID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	project, err := h.skills.GetProject(r.Context(), userID, projectID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get project")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, project)
}

// ProjectSkills handles GET /api/projects/{id}/skills.
func (h *SkillHandler) ProjectSkills(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, projectID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	skills, err := h.skills.ProjectSkills(r.Context(), userID, projectID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list project skills")
		return
	}
	if skills == nil {
		skills = []*domain.Skill{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, skills)
}

// LinkSkill handles POST /api/projects/{id}/skills/{skillId}.
func (h *SkillHandler) LinkSkill(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, projectID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}
	skillID, err := getPathUUID(r, "skillId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.skills.LinkSkill(r.Context(), userID, projectID, skillID); err != nil {
		HandleAPIError(w, r, err, "Failed to link skill")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnlinkSkill handles DELETE /api/projects/{id}/skills/{skillId}.
func (h *SkillHandler) UnlinkSkill(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, projectID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}
	skillID, err := getPathUUID(r, "skillId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.skills.UnlinkSkill(r.Context(), userID, projectID, skillID); err != nil {
		HandleAPIError(w, r, err, "Failed to unlink skill")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
