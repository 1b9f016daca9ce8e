package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cognivue/cognivue-backend/internal/data/repos"
	"github.com/cognivue/cognivue-backend/internal/data/repos/testutil"
	types "github.com/cognivue/cognivue-backend/internal/domain"
	"github.com/cognivue/cognivue-backend/internal/domain/interview"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/ctxutil"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/platform/gemini"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type interviewFixture struct {
	svc  *interviewService
	repo repos.SessionRepo
	gen  *fakeGenerator
	dbc  dbctx.Context
	user uuid.UUID
	db   *gorm.DB
}

func newInterviewFixture(t *testing.T) *interviewFixture {
	t.Helper()
	db := testutil.DB(t)
	log := logger.Nop()
	gen := &fakeGenerator{}
	repo := repos.NewSessionRepo(db, log)
	svc := NewInterviewService(log, repo, NewQuestionWorkflow(log, gen), NewFeedbackWorkflow(log, gen)).(*interviewService)
	user := uuid.New()
	ctx := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: user})
	return &interviewFixture{svc: svc, repo: repo, gen: gen, dbc: dbctx.Context{Ctx: ctx}, user: user, db: db}
}

func (f *interviewFixture) start(t *testing.T) *types.InterviewSession {
	t.Helper()
	f.gen.results = append(f.gen.results, okResult(fullQuestionSet()))
	s, err := f.svc.Start(f.dbc, StartInput{Mode: "role", Difficulty: "intermediate", Role: "SRE"})
	require.NoError(t, err)
	return s
}

func feedbackResult(score float64) gemini.Result {
	return okResult(map[string]any{
		"overall_score":     score,
		"category_scores":   map[string]any{"hr_performance": 70, "technical_performance": 80, "cultural_fit": 90},
		"strengths":         []string{"a", "b", "c"},
		"improvements":      []string{"x", "y"},
		"detailed_feedback": "fine",
	})
}

func TestInterviewStartValidation(t *testing.T) {
	f := newInterviewFixture(t)
	cases := []StartInput{
		{Difficulty: "beginner"},
		{Mode: "role"},
		{Mode: "panel", Difficulty: "beginner"},
		{Mode: "role", Difficulty: "expert"},
	}
	for _, in := range cases {
		_, err := f.svc.Start(f.dbc, in)
		assert.True(t, apierr.Is(err, apierr.CodeValidation), "input %+v: %v", in, err)
	}
	assert.Empty(t, f.gen.prompts)

	_, err := f.svc.Start(dbctx.Context{Ctx: context.Background()}, StartInput{Mode: "role", Difficulty: "beginner"})
	assert.True(t, apierr.Is(err, apierr.CodeUnauthenticated))
}

func TestInterviewStartPersistsResumeProfile(t *testing.T) {
	f := newInterviewFixture(t)
	f.gen.results = []gemini.Result{okResult(fullQuestionSet())}

	s, err := f.svc.Start(f.dbc, StartInput{
		Mode: "resume", Difficulty: "beginner", ResumeFilename: "cv.pdf",
		Analysis: &ResumeAnalysis{TechnicalSkills: []string{"Go"}, SoftSkills: []string{"teamwork"}, ExperienceLevel: "mid", Summary: "Engineer"},
	})
	require.NoError(t, err)
	assert.Equal(t, interview.StatusActive, s.Status)

	stored, err := f.repo.GetForUser(f.dbc, s.ID, f.user)
	require.NoError(t, err)
	require.NotNil(t, stored)
	tech, soft, projects := stored.SkillLists()
	assert.Equal(t, []string{"Go"}, tech)
	assert.Equal(t, []string{"teamwork"}, soft)
	assert.Empty(t, projects)
	assert.Equal(t, "mid", stored.ExperienceLevel)
	assert.Equal(t, "cv.pdf", stored.ResumeFilename)
	assert.Contains(t, f.gen.prompts[0], "Technical skills: Go")
}

func TestInterviewStartGenerationFailureStoresNothing(t *testing.T) {
	f := newInterviewFixture(t)
	f.gen.results = []gemini.Result{{Failure: &gemini.Failure{Kind: gemini.KindServiceUnavailable, Details: "All retry attempts exhausted"}}}

	_, err := f.svc.Start(f.dbc, StartInput{Mode: "role", Difficulty: "beginner", Role: "QA"})
	require.True(t, apierr.Is(err, apierr.CodeServiceUnavailable))

	rows, err := f.repo.List(f.dbc, repos.SessionListFilter{UserID: f.user})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestInterviewRecordAnswer(t *testing.T) {
	f := newInterviewFixture(t)
	s := f.start(t)

	require.NoError(t, f.svc.RecordAnswer(f.dbc, s.ID, 2, "third"))
	require.NoError(t, f.svc.RecordAnswer(f.dbc, s.ID, 0, "first"))

	stored, err := f.repo.GetByID(f.dbc, s.ID)
	require.NoError(t, err)
	answers, err := stored.AnswerList()
	require.NoError(t, err)
	require.Len(t, answers, 3)
	assert.Equal(t, "first", answers.At(0))
	assert.Nil(t, answers[1])
	assert.Equal(t, "third", answers.At(2))
	assert.Equal(t, interview.StatusActive, stored.Status)

	assert.True(t, apierr.Is(f.svc.RecordAnswer(f.dbc, s.ID, -1, "x"), apierr.CodeValidation))
	assert.True(t, apierr.Is(f.svc.RecordAnswer(f.dbc, s.ID, 10, "x"), apierr.CodeValidation))
	assert.True(t, apierr.Is(f.svc.RecordAnswer(f.dbc, s.ID+100, 0, "x"), apierr.CodeNotFound))

	other := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: uuid.New()})
	assert.True(t, apierr.Is(f.svc.RecordAnswer(dbctx.Context{Ctx: other}, s.ID, 0, "x"), apierr.CodeNotFound))
}

// racingRepo lets a competing writer land first on the first answer write.
type racingRepo struct {
	repos.SessionRepo
	raced bool
}

func (r *racingRepo) UpdateAnswers(dbc dbctx.Context, id uint64, expectedVersion int, answers datatypes.JSON) (bool, error) {
	if !r.raced {
		r.raced = true
		if _, err := r.SessionRepo.UpdateAnswers(dbc, id, expectedVersion, datatypes.JSON(`["competitor"]`)); err != nil {
			return false, err
		}
	}
	return r.SessionRepo.UpdateAnswers(dbc, id, expectedVersion, answers)
}

func TestInterviewRecordAnswerRetriesOnVersionConflict(t *testing.T) {
	f := newInterviewFixture(t)
	s := f.start(t)
	f.svc.sessionRepo = &racingRepo{SessionRepo: f.repo}

	require.NoError(t, f.svc.RecordAnswer(f.dbc, s.ID, 1, "mine"))

	stored, err := f.repo.GetByID(f.dbc, s.ID)
	require.NoError(t, err)
	answers, err := stored.AnswerList()
	require.NoError(t, err)
	assert.Equal(t, "competitor", answers.At(0))
	assert.Equal(t, "mine", answers.At(1))
	assert.Equal(t, 2, stored.Version)
}

func TestInterviewComplete(t *testing.T) {
	f := newInterviewFixture(t)
	s := f.start(t)
	require.NoError(t, f.svc.RecordAnswer(f.dbc, s.ID, 0, "hello"))

	created := s.CreatedAt
	f.svc.now = func() time.Time { return created.Add(12*time.Minute + 20*time.Second) }
	f.gen.results = []gemini.Result{feedbackResult(81)}

	fb, err := f.svc.Complete(f.dbc, s.ID)
	require.NoError(t, err)
	require.NotNil(t, fb.OverallScore)
	assert.Equal(t, 81, *fb.OverallScore)

	detail, err := f.svc.Detail(f.dbc, s.ID)
	require.NoError(t, err)
	assert.Equal(t, interview.StatusCompleted, detail.Status)
	require.NotNil(t, detail.CompletedAt)
	require.NotNil(t, detail.OverallScore)
	assert.Equal(t, 81, *detail.OverallScore)
	require.NotNil(t, detail.DurationMinutes)
	assert.InDelta(t, 12.3, *detail.DurationMinutes, 0.001)
	assert.Len(t, detail.Questions, 10)
	assert.Equal(t, "Hr Questions", detail.Questions[0].Category)
	assert.Equal(t, 81, detail.Feedback["overall_score"])

	_, err = f.svc.Complete(f.dbc, s.ID)
	assert.True(t, apierr.Is(err, apierr.CodeConflict))
	assert.True(t, apierr.Is(f.svc.RecordAnswer(f.dbc, s.ID, 1, "late"), apierr.CodeConflict))
}

func TestInterviewCompleteFailureLeavesSessionActive(t *testing.T) {
	f := newInterviewFixture(t)
	s := f.start(t)
	failed := gemini.Result{Failure: &gemini.Failure{Kind: gemini.KindGenerationFailed, Details: "no JSON object in reply"}}
	f.gen.results = []gemini.Result{failed, failed, feedbackResult(80)}

	for attempt := 1; attempt <= 2; attempt++ {
		_, err := f.svc.Complete(f.dbc, s.ID)
		require.True(t, apierr.Is(err, apierr.CodeGenerationFailed), "attempt %d: %v", attempt, err)

		stored, err := f.repo.GetByID(f.dbc, s.ID)
		require.NoError(t, err)
		assert.Equal(t, interview.StatusActive, stored.Status)
		assert.Nil(t, stored.CompletedAt)
		assert.Nil(t, stored.OverallScore())
	}

	fb, err := f.svc.Complete(f.dbc, s.ID)
	require.NoError(t, err)
	require.NotNil(t, fb.OverallScore)
	assert.Equal(t, 80, *fb.OverallScore)
}

func TestInterviewHistoryAndAnalytics(t *testing.T) {
	f := newInterviewFixture(t)

	empty, err := f.svc.Analytics(f.dbc)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalSessions)
	assert.Nil(t, empty.AverageScore)
	assert.Empty(t, empty.ByDifficulty)

	for i, score := range []float64{60, 75} {
		s := f.start(t)
		require.False(t, s.CreatedAt.IsZero())
		completedAt := s.CreatedAt.Add(time.Duration(i+1) * time.Hour)
		f.svc.now = func() time.Time { return completedAt }
		f.gen.results = []gemini.Result{feedbackResult(score)}
		_, err := f.svc.Complete(f.dbc, s.ID)
		require.NoError(t, err)
	}
	f.start(t) // still active

	history, err := f.svc.History(f.dbc, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].OverallScore)
	assert.Equal(t, 75, *history[0].OverallScore)
	assert.Equal(t, []string{"a", "b"}, history[0].FeedbackSummary.Strengths)
	require.NotNil(t, history[0].Role)
	assert.Equal(t, "SRE", *history[0].Role)
	for _, item := range history {
		require.NotNil(t, item.CompletedAt)
		assert.True(t, item.CompletedAt.After(item.CreatedAt))
		require.NotNil(t, item.DurationMinutes)
		assert.Greater(t, *item.DurationMinutes, 0.0)
	}

	stats, err := f.svc.Analytics(f.dbc)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSessions)
	require.NotNil(t, stats.AverageScore)
	assert.Equal(t, 67.5, *stats.AverageScore)
	require.NotNil(t, stats.BestScore)
	assert.Equal(t, 75, *stats.BestScore)
	assert.Equal(t, 2, stats.RoleCount)
	assert.Equal(t, 0, stats.ResumeCount)
	assert.Equal(t, 2, stats.ByDifficulty["intermediate"].Count)
	assert.Nil(t, stats.ByDifficulty["advanced"].AverageScore)
}

func TestInterviewUnreadableFeedbackIsLogged(t *testing.T) {
	f := newInterviewFixture(t)
	core, logs := observer.New(zapcore.WarnLevel)
	f.svc.log = logger.FromZap(zap.New(core))

	s := f.start(t)
	f.gen.results = []gemini.Result{feedbackResult(70)}
	_, err := f.svc.Complete(f.dbc, s.ID)
	require.NoError(t, err)

	err = f.db.Exec("UPDATE interviews_session SET feedback = ? WHERE id = ?", "{broken", s.ID).Error
	if err != nil {
		t.Skipf("database rejects malformed JSON: %v", err)
	}

	detail, err := f.svc.Detail(f.dbc, s.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Feedback)

	history, err := f.svc.History(f.dbc, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Empty(t, history[0].FeedbackSummary.Strengths)

	warned := logs.FilterMessage("Stored feedback is unreadable")
	assert.Equal(t, 2, warned.Len())
}

func TestAverageRoundsToOneDecimal(t *testing.T) {
	assert.Nil(t, average(nil))
	got := average([]int{70, 71, 71})
	require.NotNil(t, got)
	assert.Equal(t, 70.7, *got)
}
