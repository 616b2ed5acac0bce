package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"miniquest-server/shared/interfaces"
	"miniquest-server/shared/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	questFields = `id, user_id, branch, challenge_complete, challenge_type, created_at, completed_at`

	insertQuestQuery = `
        INSERT INTO quests (id, user_id, branch, challenge_complete, challenge_type)
        VALUES ($1, $2, $3, FALSE, NULL)
    `
	lockQuestQuery = `SELECT id FROM quests WHERE id = $1 FOR UPDATE`
	// Numbering is derived from the history itself, under the quest row lock.
	appendStepQuery = `
        INSERT INTO quest_steps (quest_id, step_number, narration, child_input)
        SELECT $1, COALESCE(MAX(step_number), 0) + 1, $2, $3
        FROM quest_steps
        WHERE quest_id = $1
        RETURNING step_number
    `
	getQuestByIDQuery = `
        SELECT ` + questFields + `
        FROM quests
        WHERE id = $1
    `
	listQuestStepsQuery = `
        SELECT quest_id, step_number, narration, child_input, created_at
        FROM quest_steps
        WHERE quest_id = $1
        ORDER BY step_number ASC
    `
	updateQuestStateQuery = `
        UPDATE quests SET
            branch = $2,
            challenge_complete = $3,
            challenge_type = $4
        WHERE id = $1
    `
	completeQuestQuery = `
        UPDATE quests SET completed_at = COALESCE(completed_at, NOW())
        WHERE id = $1
    `
	listQuestSummariesByUserQuery = `
        SELECT q.id, q.branch, COUNT(s.step_number) AS step_count, q.created_at, q.completed_at
        FROM quests q
        LEFT JOIN quest_steps s ON s.quest_id = q.id
        WHERE q.user_id = $1
        GROUP BY q.id
        ORDER BY q.created_at DESC
    `
)

// Compile-time check to ensure pgQuestRepository implements the interface
var _ interfaces.QuestRepository = (*pgQuestRepository)(nil)

// questRow mirrors the quests table; challenge_type is nullable there.
type questRow struct {
	ID                uuid.UUID  `db:"id"`
	UserID            string     `db:"user_id"`
	Branch            string     `db:"branch"`
	ChallengeComplete bool       `db:"challenge_complete"`
	ChallengeType     *string    `db:"challenge_type"`
	CreatedAt         time.Time  `db:"created_at"`
	CompletedAt       *time.Time `db:"completed_at"`
}

func (r questRow) toSession() *models.QuestSession {
	session := &models.QuestSession{
		ID:     r.ID,
		UserID: r.UserID,
		State: models.QuestState{
			Branch:            models.Branch(r.Branch),
			ChallengeComplete: r.ChallengeComplete,
		},
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.ChallengeType != nil {
		session.State.ChallengeType = *r.ChallengeType
	}
	return session
}

// pgQuestRepository is the PostgreSQL implementation of QuestRepository.
type pgQuestRepository struct {
	db     interfaces.DBTX // *pgxpool.Pool or pgx.Tx
	pool   *pgxpool.Pool   // nil when bound to a transaction
	logger *zap.Logger
}

// NewPgQuestRepository creates a repository backed by the pool.
func NewPgQuestRepository(pool *pgxpool.Pool, logger *zap.Logger) interfaces.QuestRepository {
	return &pgQuestRepository{
		db:     pool,
		pool:   pool,
		logger: logger.Named("PgQuestRepo"),
	}
}

// RunInTx binds a copy of the repository to one transaction. Nested calls reuse the
// transaction that is already open.
func (r *pgQuestRepository) RunInTx(ctx context.Context, fn func(repo interfaces.QuestRepository) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgQuestRepository{db: tx, logger: r.logger})
	})
}

// inTx runs fn on the current transaction, or opens one when the repository is pool-bound.
func (r *pgQuestRepository) inTx(ctx context.Context, fn func(q interfaces.DBTX) error) error {
	if r.pool == nil {
		return fn(r.db)
	}
	return WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

// Create inserts the quest and its opening step atomically.
func (r *pgQuestRepository) Create(ctx context.Context, userID string, initialNarration string) (uuid.UUID, error) {
	questID := uuid.New()
	log := r.logger.With(zap.String("questID", questID.String()), zap.String("userID", userID))
	log.Debug("Creating quest")

	err := r.inTx(ctx, func(q interfaces.DBTX) error {
		if _, err := q.Exec(ctx, insertQuestQuery, questID, userID, models.BranchStart); err != nil {
			return fmt.Errorf("insert quest: %w", err)
		}
		var stepNumber int
		if err := q.QueryRow(ctx, appendStepQuery, questID, initialNarration, models.InitialStepMarker).Scan(&stepNumber); err != nil {
			return fmt.Errorf("insert opening step: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to create quest", zap.Error(err))
		return uuid.Nil, fmt.Errorf("failed to create quest: %w", err)
	}

	log.Info("Quest created")
	return questID, nil
}

// AppendStep locks the quest row, then inserts max(step_number)+1.
func (r *pgQuestRepository) AppendStep(ctx context.Context, questID uuid.UUID, narration, childInput string) (int, error) {
	log := r.logger.With(zap.String("questID", questID.String()))

	var stepNumber int
	err := r.inTx(ctx, func(q interfaces.DBTX) error {
		var lockedID uuid.UUID
		if err := q.QueryRow(ctx, lockQuestQuery, questID).Scan(&lockedID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrQuestNotFound
			}
			return fmt.Errorf("lock quest row: %w", err)
		}
		return q.QueryRow(ctx, appendStepQuery, questID, narration, childInput).Scan(&stepNumber)
	})
	if err != nil {
		if errors.Is(err, models.ErrQuestNotFound) {
			log.Warn("Cannot append step: quest not found")
			return 0, err
		}
		log.Error("Failed to append quest step", zap.Error(err))
		return 0, fmt.Errorf("failed to append step to quest %s: %w", questID, err)
	}

	log.Debug("Quest step appended", zap.Int("stepNumber", stepNumber))
	return stepNumber, nil
}

// Load reads the quest row and its full history.
func (r *pgQuestRepository) Load(ctx context.Context, questID uuid.UUID) (*models.QuestSession, error) {
	log := r.logger.With(zap.String("questID", questID.String()))

	var row questRow
	if err := pgxscan.Get(ctx, r.db, &row, getQuestByIDQuery, questID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debug("Quest not found")
			return nil, models.ErrQuestNotFound
		}
		log.Error("Failed to load quest", zap.Error(err))
		return nil, fmt.Errorf("failed to load quest %s: %w", questID, err)
	}

	session := row.toSession()
	if err := session.State.Validate(); err != nil {
		log.Error("Stored quest state is invalid", zap.Error(err))
		return nil, err
	}

	steps := make([]models.QuestStep, 0)
	if err := pgxscan.Select(ctx, r.db, &steps, listQuestStepsQuery, questID); err != nil {
		log.Error("Failed to load quest steps", zap.Error(err))
		return nil, fmt.Errorf("failed to load steps of quest %s: %w", questID, err)
	}
	session.Steps = steps
	return session, nil
}

// UpdateState replaces branch, challenge flag and challenge type.
func (r *pgQuestRepository) UpdateState(ctx context.Context, questID uuid.UUID, state models.QuestState) error {
	log := r.logger.With(zap.String("questID", questID.String()), zap.String("branch", string(state.Branch)))

	if err := state.Validate(); err != nil {
		log.Warn("Refusing to save invalid quest state", zap.Error(err))
		return err
	}

	var challengeType *string
	if state.ChallengeType != "" {
		challengeType = models.StringPtr(state.ChallengeType)
	}

	tag, err := r.db.Exec(ctx, updateQuestStateQuery, questID, state.Branch, state.ChallengeComplete, challengeType)
	if err != nil {
		log.Error("Failed to update quest state", zap.Error(err))
		return fmt.Errorf("failed to update state of quest %s: %w", questID, err)
	}
	if tag.RowsAffected() == 0 {
		log.Warn("Quest not found for state update")
		return models.ErrQuestNotFound
	}
	log.Debug("Quest state updated")
	return nil
}

// Complete stamps completed_at on the first call only.
func (r *pgQuestRepository) Complete(ctx context.Context, questID uuid.UUID) error {
	log := r.logger.With(zap.String("questID", questID.String()))

	tag, err := r.db.Exec(ctx, completeQuestQuery, questID)
	if err != nil {
		log.Error("Failed to complete quest", zap.Error(err))
		return fmt.Errorf("failed to complete quest %s: %w", questID, err)
	}
	if tag.RowsAffected() == 0 {
		log.Warn("Quest not found for completion")
		return models.ErrQuestNotFound
	}
	log.Info("Quest marked as completed")
	return nil
}

// ListByUser returns an empty slice when the user has no quests.
func (r *pgQuestRepository) ListByUser(ctx context.Context, userID string) ([]models.QuestSummary, error) {
	summaries := make([]models.QuestSummary, 0)
	if err := pgxscan.Select(ctx, r.db, &summaries, listQuestSummariesByUserQuery, userID); err != nil {
		r.logger.Error("Failed to list quests by user", zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list quests of user %s: %w", userID, err)
	}
	return summaries, nil
}
