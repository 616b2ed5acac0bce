package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"miniquest-server/internal/config"
	"miniquest-server/internal/narrative"
	"miniquest-server/internal/safety"
	"miniquest-server/shared/interfaces"
	"miniquest-server/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultHistorySteps        = 4
	defaultGenerationTimeout   = 10 * time.Second
	defaultStoreRetryBaseDelay = 100 * time.Millisecond
	defaultStoreMaxRetries     = 3
)

// Where the narration of a turn came from.
const (
	narrationGenerated = "generated"
	narrationFallback  = "generation_fallback"
	narrationUnsafe    = "unsafe_output_fallback"
)

var errEmptyGeneration = errors.New("generator returned empty text")

// QuestService drives quests: creation, turns, dashboards and recaps.
type QuestService interface {
	StartQuest(ctx context.Context, userID string) (*StartResult, error)
	ProcessTurn(ctx context.Context, questID string, childInput string) (*TurnResult, error)
	GetDashboard(ctx context.Context, questID string) (*Dashboard, error)
	Recap(ctx context.Context, questID string) (string, error)
	ListProgress(ctx context.Context, userID string) ([]models.QuestSummary, error)
	LogEvent(ctx context.Context, payload map[string]interface{})
}

// Options tunes QuestService. Zero values fall back to defaults.
type Options struct {
	HistorySteps        int
	GenerationTimeout   time.Duration
	StoreMaxRetries     uint64
	StoreRetryBaseDelay time.Duration
}

// StartResult is returned by StartQuest.
type StartResult struct {
	QuestID   uuid.UUID
	Narration string
}

// TurnResult is returned by ProcessTurn. Branch and StepNumber are empty for a
// safety redirect since nothing is loaded or stored.
type TurnResult struct {
	QuestID    uuid.UUID
	Narration  string
	Branch     models.Branch
	Completed  bool
	StepNumber int
	Redirected bool
}

type questServiceImpl struct {
	repo      interfaces.QuestRepository
	generator interfaces.TextGenerator
	locker    interfaces.SessionLocker
	filter    *safety.Filter
	telemetry TelemetrySink
	content   config.Content
	opts      Options
	logger    *zap.Logger
}

// NewQuestService creates a new QuestService.
func NewQuestService(
	repo interfaces.QuestRepository,
	generator interfaces.TextGenerator,
	locker interfaces.SessionLocker,
	filter *safety.Filter,
	telemetry TelemetrySink,
	content config.Content,
	opts Options,
	logger *zap.Logger,
) QuestService {
	if opts.HistorySteps <= 0 {
		opts.HistorySteps = defaultHistorySteps
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = defaultGenerationTimeout
	}
	if opts.StoreMaxRetries == 0 {
		opts.StoreMaxRetries = defaultStoreMaxRetries
	}
	if opts.StoreRetryBaseDelay <= 0 {
		opts.StoreRetryBaseDelay = defaultStoreRetryBaseDelay
	}
	return &questServiceImpl{
		repo:      repo,
		generator: generator,
		locker:    locker,
		filter:    filter,
		telemetry: telemetry,
		content:   content,
		opts:      opts,
		logger:    logger.Named("QuestService"),
	}
}

// StartQuest creates a quest with the fixed opening narration as its first step.
func (s *questServiceImpl) StartQuest(ctx context.Context, userID string) (*StartResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = s.content.DefaultUserID
	}

	var questID uuid.UUID
	err := s.withStoreRetry(ctx, "create", func() error {
		var err error
		questID, err = s.repo.Create(ctx, userID, s.content.OpeningNarration)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to create quest", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Quest started", zap.Stringer("quest_id", questID), zap.String("user_id", userID))
	s.telemetry.Record(&models.TelemetryEvent{
		EventType:  models.EventTypeQuestStarted,
		QuestID:    &questID,
		ChildID:    models.StringPtr(userID),
		TurnNumber: models.IntPtr(1),
		AIResponse: models.StringPtr(s.content.OpeningNarration),
	})
	return &StartResult{QuestID: questID, Narration: s.content.OpeningNarration}, nil
}

// ProcessTurn applies one turn of child input to a quest.
func (s *questServiceImpl) ProcessTurn(ctx context.Context, rawQuestID string, childInput string) (*TurnResult, error) {
	started := time.Now()
	questID, err := parseQuestID(rawQuestID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.Stringer("quest_id", questID))

	if s.filter.Classify(childInput) {
		matched := s.filter.MatchedTerms(childInput)
		log.Info("Child input blocked by safety filter", zap.Strings("matched_terms", matched))
		safetyBlocksTotal.WithLabelValues(safetyStageInput).Inc()
		turnsTotal.WithLabelValues(turnOutcomeRedirect).Inc()
		s.telemetry.Record(&models.TelemetryEvent{
			EventType:  models.EventTypeSafetyRedirect,
			QuestID:    &questID,
			LatencyMs:  models.Int64Ptr(time.Since(started).Milliseconds()),
			AIResponse: models.StringPtr(s.content.SafetyRedirectNarration),
			Payload:    map[string]interface{}{"stage": safetyStageInput, "matched_terms": matched},
		})
		return &TurnResult{
			QuestID:    questID,
			Narration:  s.content.SafetyRedirectNarration,
			Redirected: true,
		}, nil
	}

	unlock, err := s.locker.Lock(ctx, questID)
	if err != nil {
		turnsTotal.WithLabelValues(turnOutcomeFailed).Inc()
		return nil, fmt.Errorf("failed to lock quest %s: %w", questID, err)
	}
	defer unlock()

	var session *models.QuestSession
	err = s.withStoreRetry(ctx, "load", func() error {
		var err error
		session, err = s.repo.Load(ctx, questID)
		return err
	})
	if err != nil {
		turnsTotal.WithLabelValues(turnOutcomeFailed).Inc()
		if !errors.Is(err, models.ErrQuestNotFound) {
			log.Error("Failed to load quest", zap.Error(err))
		}
		return nil, err
	}
	if session.IsCompleted() {
		log.Info("Turn rejected, quest already completed")
		return nil, ErrQuestCompleted
	}

	outcome := narrative.Transition(session.State, childInput)
	log.Debug("Transition computed",
		zap.String("from", string(session.State.Branch)),
		zap.String("to", string(outcome.State.Branch)),
		zap.Stringer("intent", outcome.Intent),
		zap.Bool("terminal", outcome.Terminal),
	)

	prompt := buildTurnPrompt(outcome.Directive, session.RecentSteps(s.opts.HistorySteps), childInput)
	narration, source := s.narrate(ctx, s.content.SystemPrompt, prompt, &questID)

	// Nothing has been written yet; a cancelled request leaves the quest untouched.
	if err := ctx.Err(); err != nil {
		turnsTotal.WithLabelValues(turnOutcomeFailed).Inc()
		return nil, err
	}

	var stepNumber int
	err = s.withStoreRetry(ctx, "commit_turn", func() error {
		return s.repo.RunInTx(ctx, func(tx interfaces.QuestRepository) error {
			if outcome.Changed {
				if err := tx.UpdateState(ctx, questID, outcome.State); err != nil {
					return fmt.Errorf("update state: %w", err)
				}
			}
			n, err := tx.AppendStep(ctx, questID, narration, childInput)
			if err != nil {
				return fmt.Errorf("append step: %w", err)
			}
			if outcome.Terminal {
				if err := tx.Complete(ctx, questID); err != nil {
					return fmt.Errorf("complete quest: %w", err)
				}
			}
			stepNumber = n
			return nil
		})
	})
	if err != nil {
		turnsTotal.WithLabelValues(turnOutcomeFailed).Inc()
		log.Error("Failed to store turn", zap.Error(err))
		return nil, err
	}

	switch {
	case outcome.Terminal:
		turnsTotal.WithLabelValues(turnOutcomeEnded).Inc()
	case outcome.Changed:
		turnsTotal.WithLabelValues(turnOutcomeAdvanced).Inc()
	default:
		turnsTotal.WithLabelValues(turnOutcomeReprompt).Inc()
	}

	s.telemetry.Record(&models.TelemetryEvent{
		EventType:  models.EventTypeTurnProcessed,
		QuestID:    &questID,
		ChildID:    models.StringPtr(session.UserID),
		TurnNumber: models.IntPtr(stepNumber),
		LatencyMs:  models.Int64Ptr(time.Since(started).Milliseconds()),
		ChildInput: models.StringPtr(childInput),
		AIResponse: models.StringPtr(narration),
		Payload: map[string]interface{}{
			"branch":           string(outcome.State.Branch),
			"intent":           outcome.Intent.String(),
			"narration_source": source,
		},
	})
	if outcome.Terminal {
		s.telemetry.Record(&models.TelemetryEvent{
			EventType:  models.EventTypeQuestCompleted,
			QuestID:    &questID,
			ChildID:    models.StringPtr(session.UserID),
			TurnNumber: models.IntPtr(stepNumber),
			Payload:    map[string]interface{}{"branch": string(outcome.State.Branch)},
		})
		log.Info("Quest completed", zap.String("branch", string(outcome.State.Branch)))
	}

	return &TurnResult{
		QuestID:    questID,
		Narration:  narration,
		Branch:     outcome.State.Branch,
		Completed:  outcome.Terminal,
		StepNumber: stepNumber,
	}, nil
}

// GetDashboard loads a quest and derives its dashboard.
func (s *questServiceImpl) GetDashboard(ctx context.Context, rawQuestID string) (*Dashboard, error) {
	session, err := s.loadSession(ctx, rawQuestID)
	if err != nil {
		return nil, err
	}
	dashboard := DeriveDashboard(session)
	return &dashboard, nil
}

// Recap asks the generator to retell the quest so far.
func (s *questServiceImpl) Recap(ctx context.Context, rawQuestID string) (string, error) {
	session, err := s.loadSession(ctx, rawQuestID)
	if err != nil {
		return "", err
	}
	// The opening narration alone is not an adventure yet.
	if len(session.Steps) <= 1 {
		return "", ErrNoHistory
	}

	recap, _ := s.narrate(ctx, s.content.RecapPrompt, buildRecapPrompt(session.Steps), &session.ID)
	return recap, nil
}

// ListProgress returns the quests of a user, newest first.
func (s *questServiceImpl) ListProgress(ctx context.Context, userID string) ([]models.QuestSummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = s.content.DefaultUserID
	}

	var summaries []models.QuestSummary
	err := s.withStoreRetry(ctx, "list_by_user", func() error {
		var err error
		summaries, err = s.repo.ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to list quests", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if summaries == nil {
		summaries = []models.QuestSummary{}
	}
	return summaries, nil
}

// LogEvent records a client supplied telemetry event. Known fields are lifted out of
// the payload; the payload itself is stored as is.
func (s *questServiceImpl) LogEvent(_ context.Context, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	event := &models.TelemetryEvent{
		EventType: clientEventType(payload),
		Payload:   payload,
	}
	if raw, ok := payload["quest_id"].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			event.QuestID = &id
		}
	}
	if childID, ok := payload["child_id"].(string); ok && childID != "" {
		event.ChildID = models.StringPtr(childID)
	}
	if turn, ok := payload["turn_number"].(float64); ok {
		event.TurnNumber = models.IntPtr(int(turn))
	}
	if latency, ok := payload["latency_ms"].(float64); ok {
		event.LatencyMs = models.Int64Ptr(int64(latency))
	}
	if childInput, ok := payload["child_input"].(string); ok {
		event.ChildInput = models.StringPtr(childInput)
	}
	if aiResponse, ok := payload["ai_response"].(string); ok {
		event.AIResponse = models.StringPtr(aiResponse)
	}
	s.telemetry.Record(event)
}

func clientEventType(payload map[string]interface{}) string {
	for _, key := range []string{"eventType", "event_type"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return "client_event"
}

func (s *questServiceImpl) loadSession(ctx context.Context, rawQuestID string) (*models.QuestSession, error) {
	questID, err := parseQuestID(rawQuestID)
	if err != nil {
		return nil, err
	}
	var session *models.QuestSession
	err = s.withStoreRetry(ctx, "load", func() error {
		var err error
		session, err = s.repo.Load(ctx, questID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// narrate calls the generator under the generation timeout and applies the output
// filter. It never fails: errors and unsafe text turn into fixed narrations.
func (s *questServiceImpl) narrate(ctx context.Context, systemPrompt, userPrompt string, questID *uuid.UUID) (string, string) {
	genCtx, cancel := context.WithTimeout(ctx, s.opts.GenerationTimeout)
	defer cancel()

	type generation struct {
		text string
		err  error
	}
	done := make(chan generation, 1)
	go func() {
		text, err := s.generator.GenerateText(genCtx, systemPrompt, userPrompt)
		done <- generation{text: text, err: err}
	}()

	var text string
	var err error
	select {
	case g := <-done:
		text, err = g.text, g.err
	case <-genCtx.Done():
		err = genCtx.Err()
	}
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = errEmptyGeneration
	}

	if err != nil {
		s.logger.Warn("Generation failed, using fallback narration", zap.Stringer("quest_id", questID), zap.Error(err))
		generationFallbacksTotal.Inc()
		s.telemetry.Record(&models.TelemetryEvent{
			EventType: models.EventTypeGenerationError,
			QuestID:   questID,
			Payload:   map[string]interface{}{"error": err.Error()},
		})
		return s.content.GenerationFallbackNarration, narrationFallback
	}

	if s.filter.Classify(text) {
		s.logger.Warn("Generated narration blocked by safety filter",
			zap.Stringer("quest_id", questID),
			zap.Strings("matched_terms", s.filter.MatchedTerms(text)),
		)
		safetyBlocksTotal.WithLabelValues(safetyStageOutput).Inc()
		return s.content.UnsafeOutputFallbackNarration, narrationUnsafe
	}
	return text, narrationGenerated
}

func parseQuestID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, ErrMissingQuestID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidQuestID, raw)
	}
	return id, nil
}
