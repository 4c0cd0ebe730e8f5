package handler

import (
	"errors"
	"net/http"

	"github.com/assessly/assessly-backend/internal/middleware"
	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/response"
	"github.com/assessly/assessly-backend/internal/service"
	"github.com/assessly/assessly-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AttemptHandler handles learner-facing attempt endpoints.
type AttemptHandler struct {
	attemptService    *service.AttemptService
	assessmentService *service.AssessmentService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, assessmentService *service.AssessmentService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService, assessmentService: assessmentService}
}

// ListAvailableAssessments godoc
// GET /api/v1/assessments/available
// Returns assessments the learner may currently attempt.
func (h *AttemptHandler) ListAvailableAssessments(c *gin.Context) {
	assessments, err := h.assessmentService.ListAvailable(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"assessments": assessments})
}

// StartAttempt godoc
// POST /api/v1/assessments/:assessment_id/attempts
// Starts a new attempt if the guard passes. At most one live attempt per
// (user, assessment) at any time.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), user, assessmentID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": attempt})
}

// GetLiveAttempt godoc
// GET /api/v1/assessments/:assessment_id/attempts/live
// Returns the learner's in-progress attempt for the assessment, if any, so a
// reloaded client can resume instead of starting over.
func (h *AttemptHandler) GetLiveAttempt(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Live(c.Request.Context(), user, assessmentID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// SubmitAttempt godoc
// POST /api/v1/attempts/:attempt_id/submit
// Grades the submission and completes the attempt. Terminal: a second submit
// observes ATTEMPT_ALREADY_COMPLETED, a late one ATTEMPT_TIME_EXPIRED.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), user, attemptID, req.Answers)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetAttempt godoc
// GET /api/v1/attempts/:attempt_id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), user, attemptID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// ListMyAttempts godoc
// GET /api/v1/attempts
func (h *AttemptHandler) ListMyAttempts(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.attemptService.ListMine(c.Request.Context(), user)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetPaper godoc
// GET /api/v1/attempts/:attempt_id/paper
// Returns the question set for a live attempt, correctness stripped.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	questions, err := h.attemptService.Paper(c.Request.Context(), user, attemptID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// SaveDraft godoc
// PUT /api/v1/attempts/:attempt_id/answers
// Autosaves in-progress answers. Never graded; submit carries its own payload.
func (h *AttemptHandler) SaveDraft(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveDraftRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.SaveDraft(c.Request.Context(), user, attemptID, req.Answers); err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// GetDraft godoc
// GET /api/v1/attempts/:attempt_id/answers
// Returns the last autosaved draft, if any.
func (h *AttemptHandler) GetDraft(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	draft, err := h.attemptService.Draft(c.Request.Context(), user, attemptID)
	if err != nil {
		failAttemptError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answers": draft})
}

// failAttemptError maps lifecycle service errors to API error codes.
func failAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAssessmentNotFound), errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrAssessmentNotAvailable):
		response.Fail(c, http.StatusConflict, response.ErrAssessmentNotAvailable)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, service.ErrAttemptInProgress):
		response.Fail(c, http.StatusConflict, response.ErrAttemptInProgress)
	case errors.Is(err, service.ErrNotAttemptOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrAttemptAlreadyCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptCompleted)
	case errors.Is(err, service.ErrAttemptTimeExpired):
		response.Fail(c, http.StatusGone, response.ErrAttemptExpired)
	case errors.Is(err, service.ErrAttemptNotLive):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotLive)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
