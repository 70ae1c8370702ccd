package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-selection-api/internal/database"
	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/models"
	"github.com/noah-isme/gema-selection-api/internal/repository"
	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

var (
	admin = NewActor(1, RoleAdmin)
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type testEnv struct {
	db          *gorm.DB
	redis       *redis.Client
	miniredis   *miniredis.Miniredis
	students    repository.StudentRepository
	quizzes     repository.QuizRepository
	attempts    repository.QuizAttemptRepository
	videos      repository.VideoSubmissionRepository
	ledger      repository.LedgerRepository
	runs        repository.SelectionRunRepository
	activityLog repository.ActivityLogRepository
	activity    ActivityService
	coordinator *Coordinator
	cache       *SelectionCache
	validator   *validator.Validate
}

func newTestEnv(t *testing.T, policy repository.AttemptPolicy) *testEnv {
	t.Helper()

	db, err := database.Open(database.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	activityLog := repository.NewActivityLogRepository(db)
	return &testEnv{
		db:          db,
		redis:       client,
		miniredis:   server,
		students:    repository.NewStudentRepository(db),
		quizzes:     repository.NewQuizRepository(db),
		attempts:    repository.NewQuizAttemptRepository(db, policy),
		videos:      repository.NewVideoSubmissionRepository(db),
		ledger:      repository.NewLedgerRepository(db, repository.LedgerOptions{}),
		runs:        repository.NewSelectionRunRepository(db),
		activityLog: activityLog,
		activity:    NewActivityService(activityLog, testLogger()),
		coordinator: NewCoordinator(),
		cache:       NewSelectionCache(client, "test", time.Minute, testLogger()),
		validator:   validator.New(),
	}
}

func (e *testEnv) gradingService() GradingService {
	return NewGradingService(GradingDeps{
		Students:    e.students,
		Quizzes:     e.quizzes,
		Attempts:    e.attempts,
		Ledger:      e.ledger,
		Coordinator: e.coordinator,
		Cache:       e.cache,
		Activity:    e.activity,
		Validator:   e.validator,
	}, testLogger())
}

func (e *testEnv) videoService(storage VideoStorage, analyzer videoAnalyzerFunc, maxMB int) VideoService {
	deps := VideoDeps{
		Students:    e.students,
		Videos:      e.videos,
		Ledger:      e.ledger,
		Coordinator: e.coordinator,
		Cache:       e.cache,
		Activity:    e.activity,
		Validator:   e.validator,
		Storage:     storage,
		MaxUploadMB: maxMB,
	}
	if analyzer != nil {
		deps.Analyzer = analyzer
	}
	return NewVideoService(deps, testLogger())
}

func (e *testEnv) selectionService(publisher ResultPublisher) SelectionService {
	return NewSelectionService(SelectionDeps{
		Ledger:      e.ledger,
		Runs:        e.runs,
		Coordinator: e.coordinator,
		Cache:       e.cache,
		Publisher:   publisher,
		Activity:    e.activity,
		Validator:   e.validator,
	}, testLogger())
}

func (e *testEnv) aggregationService() AggregationService {
	return NewAggregationService(e.students, e.ledger, e.coordinator, e.cache, e.activity, e.validator, testLogger())
}

func (e *testEnv) seedStudent(t *testing.T, name string) models.Student {
	t.Helper()
	student := models.Student{Name: name, Email: name + "@example.com"}
	require.NoError(t, e.students.Create(context.Background(), &student))
	return student
}

// seedQuiz publishes a four-question quiz worth 10 points.
func (e *testEnv) seedQuiz(t *testing.T) dto.QuizResponse {
	t.Helper()
	svc := NewQuizService(e.quizzes, e.validator, e.activity, testLogger())
	quiz, err := svc.Create(context.Background(), admin, dto.QuizCreateRequest{
		Title: "Go basics",
		Questions: []dto.QuizKeyEntryRequest{
			{QuestionID: "q1", Type: "mcq", Answer: "B", Points: 2},
			{QuestionID: "q2", Type: "true_false", Answer: "true", Points: 2},
			{QuestionID: "q3", Type: "mcq", Answer: "C", Points: 2},
			{QuestionID: "q4", Type: "short_answer", Answer: "goroutines share memory by communicating", Keywords: []string{"goroutine", "channel"}, Points: 4},
		},
	})
	require.NoError(t, err)
	return quiz
}

// seedEligible stores an eligible result with the given final score.
func (e *testEnv) seedEligible(t *testing.T, studentID uint, score float64) {
	t.Helper()
	s := score
	require.NoError(t, e.ledger.Upsert(context.Background(), &models.FinalResult{
		StudentID:  studentID,
		QuizScore:  &s,
		VideoScore: &s,
		FinalScore: &s,
		Status:     "eligible",
	}))
}

func answers(pairs ...string) []dto.QuizAnswerRequest {
	out := make([]dto.QuizAnswerRequest, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, dto.QuizAnswerRequest{QuestionID: pairs[i], Response: pairs[i+1]})
	}
	return out
}

func floatPtr(v float64) *float64 {
	return &v
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ResultEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...ResultEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) snapshot() []ResultEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ResultEvent, len(p.events))
	copy(out, p.events)
	return out
}

var errCommitFailed = errors.New("commit failed")

// brokenLedger runs every multi-row write through an aggregation that fails
// after the source rows were written inside the transaction.
type brokenLedger struct {
	repository.LedgerRepository
}

func failAggregate(uint, *float64, *float64) (scoring.FinalResult, error) {
	return scoring.FinalResult{}, errCommitFailed
}

func (l brokenLedger) CommitAttempt(ctx context.Context, attempt *models.QuizAttempt, policy repository.AttemptPolicy, score *models.QuizScore, _ repository.AggregateFunc) (models.FinalResult, error) {
	return l.LedgerRepository.CommitAttempt(ctx, attempt, policy, score, failAggregate)
}

func (l brokenLedger) FailVideo(ctx context.Context, submissionID uint, reason string, at time.Time, _ repository.AggregateFunc) (models.FinalResult, error) {
	return l.LedgerRepository.FailVideo(ctx, submissionID, reason, at, failAggregate)
}

// withBrokenLedger returns a copy of the env sharing its storage whose ledger
// fails every commit.
func (e *testEnv) withBrokenLedger() *testEnv {
	broken := *e
	broken.ledger = brokenLedger{LedgerRepository: e.ledger}
	return &broken
}
