package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/assessly/assessly-backend/internal/config"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	draftBatchSize    = 50
	draftBatchTimeout = 2 * time.Second
	draftPollTimeout  = time.Second
)

// AutosaveWorker drains persist_drafts_queue and writes draft answers through
// to PostgreSQL, so a learner's progress survives a Redis flush. Drafts never
// feed grading; submit grades only its own payload.
type AutosaveWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
}

type draftPayload struct {
	AttemptID string          `json:"attempt_id"`
	Answers   json.RawMessage `json:"answers"`
}

// Start begins the worker loop with batching. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AutosaveWorker started")

	batch := make([]*draftPayload, 0, draftBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= draftBatchSize || time.Since(lastFlush) >= draftBatchTimeout) {

			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flush(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, draftPollTimeout, config.WorkerKey.PersistDraftsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p draftPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// flush writes a batch in one statement, falling back to row-at-a-time when
// the bulk update fails. Unpersistable payloads are requeued.
func (w *AutosaveWorker) flush(ctx context.Context, batch []*draftPayload) {
	if len(batch) == 0 {
		return
	}

	// Later revisions of the same attempt supersede earlier ones.
	latest := make(map[string]*draftPayload, len(batch))
	for _, p := range batch {
		latest[p.AttemptID] = p
	}

	deduped := make([]*draftPayload, 0, len(latest))
	for _, p := range latest {
		deduped = append(deduped, p)
	}

	if err := w.bulkPersist(ctx, deduped); err != nil {
		w.log.Warn().Err(err).Msg("bulk draft update failed, using fallback")

		for _, p := range deduped {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Str("attempt_id", p.AttemptID).Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistDraftsQueue, raw)
			}
		}
	}
}

func (w *AutosaveWorker) bulkPersist(ctx context.Context, batch []*draftPayload) error {
	n := len(batch)

	attemptIDs := make([]uuid.UUID, 0, n)
	drafts := make([][]byte, 0, n)

	for _, p := range batch {
		id, err := uuid.Parse(p.AttemptID)
		if err != nil {
			return err
		}
		attemptIDs = append(attemptIDs, id)
		drafts = append(drafts, []byte(p.Answers))
	}

	// Only live attempts take drafts; completed and expired rows are immutable.
	query := `
		UPDATE attempts AS a
		SET draft_answers = t.draft
		FROM (
			SELECT u.attempt_id, u.draft
			FROM UNNEST($1::uuid[], $2::jsonb[]) AS u (attempt_id, draft)
		) AS t
		WHERE a.id = t.attempt_id
		  AND a.status = 'in_progress'
	`

	_, err := w.pool.Exec(ctx, query, attemptIDs, drafts)
	return err
}

func (w *AutosaveWorker) persistSingle(ctx context.Context, p *draftPayload) error {
	id, err := uuid.Parse(p.AttemptID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`UPDATE attempts
		 SET draft_answers = $1
		 WHERE id = $2 AND status = 'in_progress'`,
		[]byte(p.Answers), id,
	)
	return err
}
