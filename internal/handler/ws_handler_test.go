package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/assessly/assessly-backend/internal/middleware"
	"github.com/assessly/assessly-backend/internal/model"
	"github.com/assessly/assessly-backend/internal/scoring"
	"github.com/assessly/assessly-backend/internal/service"
)

type clockAttemptStore struct {
	attempt *model.Attempt
}

func (s *clockAttemptStore) Create(ctx context.Context, a *model.Attempt) error { return nil }

func (s *clockAttemptStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	if s.attempt != nil && s.attempt.ID == id {
		return s.attempt, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *clockAttemptStore) GetInProgress(ctx context.Context, userID int, assessmentID uuid.UUID) (*model.Attempt, error) {
	return nil, pgx.ErrNoRows
}

func (s *clockAttemptStore) Complete(ctx context.Context, id uuid.UUID, answers json.RawMessage, score float64, correctAnswers int) (bool, error) {
	return false, nil
}

func (s *clockAttemptStore) Expire(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (s *clockAttemptStore) SaveDraft(ctx context.Context, id uuid.UUID, draft json.RawMessage) error {
	return nil
}

func (s *clockAttemptStore) ListByUser(ctx context.Context, userID int) ([]model.Attempt, error) {
	return nil, nil
}

type clockAssessmentStore struct {
	assessment *model.Assessment
}

func (s *clockAssessmentStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	if s.assessment != nil && s.assessment.ID == id {
		return s.assessment, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *clockAssessmentStore) CountQuestions(ctx context.Context, assessmentID uuid.UUID) (int, error) {
	return 0, nil
}

func (s *clockAssessmentStore) ListQuestions(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error) {
	return nil, nil
}

func (s *clockAssessmentStore) LoadSnapshot(ctx context.Context, assessmentID uuid.UUID) (*scoring.Snapshot, error) {
	return &scoring.Snapshot{}, nil
}

type wsEnvelope struct {
	Event string `json:"event"`
}

// TestAttemptClockStreamPingDuringTicks hammers the clock stream with pings
// while the per-second countdown is running. Tick and pong writes share one
// connection, so they must come out as well-formed frames with no write
// overlap. Run with -race to catch any regression to concurrent writes.
func TestAttemptClockStreamPingDuringTicks(t *testing.T) {
	gin.SetMode(gin.TestMode)

	duration := 30
	assessmentID := uuid.New()
	attemptID := uuid.New()
	attempts := &clockAttemptStore{attempt: &model.Attempt{
		ID:           attemptID,
		UserID:       7,
		AssessmentID: assessmentID,
		StartedAt:    time.Now(),
		Status:       model.AttemptStatusInProgress,
	}}
	assessments := &clockAssessmentStore{assessment: &model.Assessment{
		ID:              assessmentID,
		OwnerID:         1,
		Title:           "Timed quiz",
		DurationMinutes: &duration,
		Active:          true,
		Published:       true,
	}}

	svc := service.NewAttemptService(attempts, assessments, nil, zerolog.Nop())
	h := NewWSHandler(svc, zerolog.Nop(), nil)

	engine := gin.New()
	engine.GET("/ws/v1/attempts/:attempt_id/clock", func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{
			UserID:    7,
			Name:      "Learner",
			TokenType: service.TokenTypeLearner,
		})
		h.AttemptClockStream(c)
	})

	srv := httptest.NewServer(engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/attempts/" + attemptID.String() + "/clock"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Flood pings from a second goroutine while the server keeps ticking.
	stop := make(chan struct{})
	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := conn.WriteJSON(map[string]string{"action": "ping"}); err != nil {
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	var ticks, pongs int
	deadline := time.Now().Add(5 * time.Second)
	for ticks < 3 || pongs < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("stream stalled: got %d ticks and %d pongs", ticks, pongs)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("malformed frame %q: %v", data, err)
		}
		switch env.Event {
		case "tick":
			ticks++
		case "pong":
			pongs++
		case "ended", "error":
			t.Fatalf("unexpected %s frame: %s", env.Event, data)
		}
	}

	close(stop)
	<-pingDone
}
