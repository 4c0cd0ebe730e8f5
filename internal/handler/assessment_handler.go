package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/assessly/assessly-backend/internal/middleware"
	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/response"
	"github.com/assessly/assessly-backend/internal/service"
	"github.com/assessly/assessly-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AssessmentHandler handles instructor-facing authoring endpoints.
type AssessmentHandler struct {
	assessmentService *service.AssessmentService
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(assessmentService *service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessmentService: assessmentService}
}

// CreateAssessment godoc
// POST /api/v1/assessments
func (h *AssessmentHandler) CreateAssessment(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assessment, err := h.assessmentService.Create(c.Request.Context(), user.ID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"assessment": assessment})
}

// ListAssessments godoc
// GET /api/v1/assessments?page=&per_page=
func (h *AssessmentHandler) ListAssessments(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	assessments, pagination, err := h.assessmentService.ListByOwner(c.Request.Context(), user.ID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"assessments": assessments}, pagination)
}

// GetAssessment godoc
// GET /api/v1/assessments/:assessment_id
func (h *AssessmentHandler) GetAssessment(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	assessment, err := h.assessmentService.GetOwned(c.Request.Context(), user.ID, id)
	if err != nil {
		failAuthoringError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assessment": assessment})
}

// UpdateAssessment godoc
// PUT /api/v1/assessments/:assessment_id
func (h *AssessmentHandler) UpdateAssessment(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	assessment, err := h.assessmentService.Update(c.Request.Context(), user.ID, id, &req)
	if err != nil {
		failAuthoringError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assessment": assessment})
}

// GetQuestions godoc
// GET /api/v1/assessments/:assessment_id/questions
// Returns the question set with correctness flags (owner view).
func (h *AssessmentHandler) GetQuestions(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questions, err := h.assessmentService.Questions(c.Request.Context(), user.ID, id)
	if err != nil {
		failAuthoringError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// ReplaceQuestions godoc
// PUT /api/v1/assessments/:assessment_id/questions
// Replaces the entire question set atomically.
func (h *AssessmentHandler) ReplaceQuestions(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.assessmentService.ReplaceQuestions(c.Request.Context(), user.ID, id, &req); err != nil {
		if errors.Is(err, service.ErrNoCorrectOption) {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"questions": service.ErrNoCorrectOption.Error()})
			return
		}
		failAuthoringError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "replaced"})
}

// GetResults godoc
// GET /api/v1/assessments/:assessment_id/results?page=&per_page=
func (h *AssessmentHandler) GetResults(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	results, pagination, err := h.assessmentService.Results(c.Request.Context(), user.ID, id, page, perPage)
	if err != nil {
		failAuthoringError(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// failAuthoringError maps authoring service errors to API error codes.
func failAuthoringError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAssessmentNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotAssessmentOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotAssessmentOwner)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
