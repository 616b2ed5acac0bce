package database_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"miniquest-server/pkg/migration"
	"miniquest-server/shared/database"
	"miniquest-server/shared/interfaces"
	"miniquest-server/shared/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const openingNarration = "Your MiniQuest begins in a magical forest. Which path will you take? Left or Right?"

// PgRepositorySuite runs the repositories against a real PostgreSQL.
type PgRepositorySuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
	quests      interfaces.QuestRepository
	telemetry   interfaces.TelemetryRepository
}

func TestPgRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration tests in short mode.")
	}
	suite.Run(t, new(PgRepositorySuite))
}

func (s *PgRepositorySuite) SetupSuite() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("miniquest-test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(s.T(), err)
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.pool, err = pgxpool.New(ctx, connStr)
	require.NoError(s.T(), err)

	migrator := migration.NewMigrator(migration.Config{
		MigrationsFS:   database.MigrationsFS,
		MigrationsPath: database.MigrationsDir,
	}, s.pool)
	require.NoError(s.T(), migrator.Up(ctx))

	s.quests = database.NewPgQuestRepository(s.pool, zap.NewNop())
	s.telemetry = database.NewPgTelemetryRepository(s.pool, zap.NewNop())
}

func (s *PgRepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(context.Background())
	}
}

func (s *PgRepositorySuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE quest_steps, quests, telemetry_events`)
	require.NoError(s.T(), err)
}

func (s *PgRepositorySuite) TestCreateAndLoad() {
	ctx := context.Background()

	questID, err := s.quests.Create(ctx, "player1", openingNarration)
	require.NoError(s.T(), err)

	session, err := s.quests.Load(ctx, questID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "player1", session.UserID)
	assert.Equal(s.T(), models.InitialQuestState(), session.State)
	assert.Nil(s.T(), session.CompletedAt)
	require.Len(s.T(), session.Steps, 1)
	assert.Equal(s.T(), 1, session.Steps[0].StepNumber)
	assert.Equal(s.T(), openingNarration, session.Steps[0].Narration)
	assert.True(s.T(), session.Steps[0].IsInitial())
}

func (s *PgRepositorySuite) TestLoadUnknownQuest() {
	_, err := s.quests.Load(context.Background(), uuid.New())
	assert.ErrorIs(s.T(), err, models.ErrQuestNotFound)
}

func (s *PgRepositorySuite) TestAppendStepUnknownQuest() {
	_, err := s.quests.AppendStep(context.Background(), uuid.New(), "text", "left")
	assert.ErrorIs(s.T(), err, models.ErrQuestNotFound)
}

func (s *PgRepositorySuite) TestConcurrentAppendsAreContiguous() {
	ctx := context.Background()
	questID, err := s.quests.Create(ctx, "player1", openingNarration)
	require.NoError(s.T(), err)

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.quests.AppendStep(ctx, questID, "narration", "input")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(s.T(), err)
	}

	session, err := s.quests.Load(ctx, questID)
	require.NoError(s.T(), err)
	require.Len(s.T(), session.Steps, writers+1)
	for i, step := range session.Steps {
		assert.Equal(s.T(), i+1, step.StepNumber)
	}
}

func (s *PgRepositorySuite) TestUpdateStateRoundTrip() {
	ctx := context.Background()
	questID, err := s.quests.Create(ctx, "kid", openingNarration)
	require.NoError(s.T(), err)

	state := models.QuestState{Branch: models.BranchRiverChallenge, ChallengeType: models.ChallengeTypeRiddle}
	require.NoError(s.T(), s.quests.UpdateState(ctx, questID, state))

	session, err := s.quests.Load(ctx, questID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), state, session.State)

	err = s.quests.UpdateState(ctx, questID, models.QuestState{Branch: "mountain"})
	assert.ErrorIs(s.T(), err, models.ErrInvalidQuestState)

	err = s.quests.UpdateState(ctx, uuid.New(), state)
	assert.ErrorIs(s.T(), err, models.ErrQuestNotFound)
}

func (s *PgRepositorySuite) TestCompleteIsIdempotent() {
	ctx := context.Background()
	questID, err := s.quests.Create(ctx, "kid", openingNarration)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.quests.Complete(ctx, questID))
	first, err := s.quests.Load(ctx, questID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), first.CompletedAt)
	assert.False(s.T(), first.CompletedAt.Before(first.CreatedAt))

	require.NoError(s.T(), s.quests.Complete(ctx, questID))
	second, err := s.quests.Load(ctx, questID)
	require.NoError(s.T(), err)
	assert.True(s.T(), first.CompletedAt.Equal(*second.CompletedAt))

	assert.ErrorIs(s.T(), s.quests.Complete(ctx, uuid.New()), models.ErrQuestNotFound)
}

func (s *PgRepositorySuite) TestRunInTxRollsBackEverything() {
	ctx := context.Background()
	questID, err := s.quests.Create(ctx, "kid", openingNarration)
	require.NoError(s.T(), err)

	err = s.quests.RunInTx(ctx, func(repo interfaces.QuestRepository) error {
		if err := repo.UpdateState(ctx, questID, models.QuestState{Branch: models.BranchCaveChallenge, ChallengeType: models.ChallengeTypeColor}); err != nil {
			return err
		}
		if _, err := repo.AppendStep(ctx, questID, "A dragon appears", "right"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(s.T(), err, assert.AnError)

	session, err := s.quests.Load(ctx, questID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.BranchStart, session.State.Branch)
	assert.Len(s.T(), session.Steps, 1)
}

func (s *PgRepositorySuite) TestListByUser() {
	ctx := context.Background()
	first, err := s.quests.Create(ctx, "alice", openingNarration)
	require.NoError(s.T(), err)
	_, err = s.quests.AppendStep(ctx, first, "You reach the river", "left")
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.quests.Complete(ctx, first))
	second, err := s.quests.Create(ctx, "alice", openingNarration)
	require.NoError(s.T(), err)
	_, err = s.quests.Create(ctx, "bob", openingNarration)
	require.NoError(s.T(), err)

	summaries, err := s.quests.ListByUser(ctx, "alice")
	require.NoError(s.T(), err)
	require.Len(s.T(), summaries, 2)
	assert.Equal(s.T(), second, summaries[0].ID)
	assert.Equal(s.T(), models.QuestStatusInProgress, summaries[0].Status())
	assert.Equal(s.T(), 1, summaries[0].StepCount)
	assert.Equal(s.T(), first, summaries[1].ID)
	assert.Equal(s.T(), models.QuestStatusCompleted, summaries[1].Status())
	assert.Equal(s.T(), 2, summaries[1].StepCount)

	none, err := s.quests.ListByUser(ctx, "nobody")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), none)
}

func (s *PgRepositorySuite) TestTelemetryInsertWithoutQuest() {
	ctx := context.Background()
	orphan := uuid.New()
	event := &models.TelemetryEvent{
		EventType:  "button_click",
		QuestID:    &orphan,
		ChildInput: models.StringPtr("left"),
		Payload:    map[string]interface{}{"screen": "story"},
	}
	require.NoError(s.T(), s.telemetry.Insert(ctx, event))
	assert.NotEqual(s.T(), uuid.Nil, event.ID)

	var count int
	require.NoError(s.T(), s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM telemetry_events WHERE quest_id = $1`, orphan).Scan(&count))
	assert.Equal(s.T(), 1, count)
}
