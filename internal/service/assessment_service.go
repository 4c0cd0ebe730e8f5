package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/repository"
	"github.com/assessly/assessly-backend/internal/response"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Authoring errors.
var (
	ErrNotAssessmentOwner = errors.New("not the owner of this assessment")
	ErrNoCorrectOption    = errors.New("every question needs at least one correct option")
)

// AssessmentService handles the authoring side: assessments, their question
// sets, and owner-facing result listings.
type AssessmentService struct {
	assessmentRepo *repository.AssessmentRepository
	attemptRepo    *repository.AttemptRepository
	log            zerolog.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(
	assessmentRepo *repository.AssessmentRepository,
	attemptRepo *repository.AttemptRepository,
	log zerolog.Logger,
) *AssessmentService {
	return &AssessmentService{
		assessmentRepo: assessmentRepo,
		attemptRepo:    attemptRepo,
		log:            log.With().Str("component", "assessment_service").Logger(),
	}
}

// Create inserts a new assessment owned by the given user. New assessments
// start inactive and unpublished.
func (s *AssessmentService) Create(ctx context.Context, ownerID int, req *model.CreateAssessmentRequest) (*model.Assessment, error) {
	assessment := &model.Assessment{
		OwnerID:         ownerID,
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
	}
	if err := s.assessmentRepo.Create(ctx, assessment); err != nil {
		return nil, fmt.Errorf("create assessment: %w", err)
	}

	s.log.Info().
		Str("assessment_id", assessment.ID.String()).
		Int("owner_id", ownerID).
		Msg("Assessment created")

	return assessment, nil
}

// GetOwned retrieves an assessment and verifies ownership.
func (s *AssessmentService) GetOwned(ctx context.Context, ownerID int, id uuid.UUID) (*model.Assessment, error) {
	assessment, err := s.assessmentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	if assessment.OwnerID != ownerID {
		return nil, ErrNotAssessmentOwner
	}
	return assessment, nil
}

// Update applies the provided fields to an owned assessment.
func (s *AssessmentService) Update(ctx context.Context, ownerID int, id uuid.UUID, req *model.UpdateAssessmentRequest) (*model.Assessment, error) {
	assessment, err := s.GetOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		assessment.Title = req.Title
	}
	if req.Description != nil {
		assessment.Description = *req.Description
	}
	if req.DurationMinutes != nil {
		assessment.DurationMinutes = req.DurationMinutes
	}
	if req.Active != nil {
		assessment.Active = *req.Active
	}
	if req.Published != nil {
		assessment.Published = *req.Published
	}

	if err := s.assessmentRepo.Update(ctx, assessment); err != nil {
		return nil, fmt.Errorf("update assessment: %w", err)
	}
	return assessment, nil
}

// ListByOwner retrieves the owner's assessments with pagination.
func (s *AssessmentService) ListByOwner(ctx context.Context, ownerID, page, perPage int) ([]model.Assessment, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	offset := (page - 1) * perPage

	assessments, total, err := s.assessmentRepo.ListByOwnerPaginated(ctx, ownerID, perPage, offset)
	if err != nil {
		return nil, nil, err
	}
	if assessments == nil {
		assessments = []model.Assessment{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return assessments, pagination, nil
}

// ListAvailable retrieves the assessments a learner may currently attempt.
func (s *AssessmentService) ListAvailable(ctx context.Context) ([]model.Assessment, error) {
	assessments, err := s.assessmentRepo.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	if assessments == nil {
		assessments = []model.Assessment{}
	}
	return assessments, nil
}

// Questions retrieves the full question set of an owned assessment,
// correctness flags included.
func (s *AssessmentService) Questions(ctx context.Context, ownerID int, id uuid.UUID) ([]model.Question, error) {
	if _, err := s.GetOwned(ctx, ownerID, id); err != nil {
		return nil, err
	}
	questions, err := s.assessmentRepo.ListQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// ReplaceQuestions swaps the entire question set of an owned assessment.
// Each question must mark at least one option correct; otherwise grading by
// set equality could never award its points.
func (s *AssessmentService) ReplaceQuestions(ctx context.Context, ownerID int, id uuid.UUID, req *model.ReplaceQuestionsRequest) error {
	if _, err := s.GetOwned(ctx, ownerID, id); err != nil {
		return err
	}

	for _, q := range req.Questions {
		hasCorrect := false
		for _, o := range q.Options {
			if o.Correct {
				hasCorrect = true
				break
			}
		}
		if !hasCorrect {
			return ErrNoCorrectOption
		}
	}

	if err := s.assessmentRepo.ReplaceQuestions(ctx, id, req.Questions); err != nil {
		return fmt.Errorf("replace questions: %w", err)
	}

	s.log.Info().
		Str("assessment_id", id.String()).
		Int("questions", len(req.Questions)).
		Msg("Question set replaced")

	return nil
}

// Results retrieves paginated attempt results for an owned assessment.
func (s *AssessmentService) Results(ctx context.Context, ownerID int, id uuid.UUID, page, perPage int) ([]repository.AttemptResult, *response.Pagination, error) {
	if _, err := s.GetOwned(ctx, ownerID, id); err != nil {
		return nil, nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	offset := (page - 1) * perPage

	results, total, err := s.attemptRepo.ListByAssessment(ctx, id, perPage, offset)
	if err != nil {
		return nil, nil, err
	}
	if results == nil {
		results = []repository.AttemptResult{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return results, pagination, nil
}
