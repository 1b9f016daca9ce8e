package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cognivue/cognivue-backend/internal/data/repos"
	types "github.com/cognivue/cognivue-backend/internal/domain"
	"github.com/cognivue/cognivue-backend/internal/domain/interview"
	"github.com/cognivue/cognivue-backend/internal/observability"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/ctxutil"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

const (
	defaultHistoryLimit = 20
	maxAnswerAttempts   = 3
)

// ResumeAnalysis is the structured profile returned by resume upload and
// echoed back when starting a resume-mode session.
type ResumeAnalysis struct {
	TechnicalSkills []string `json:"technical_skills"`
	SoftSkills      []string `json:"soft_skills"`
	Projects        []string `json:"projects"`
	ExperienceLevel string   `json:"experience_level"`
	Summary         string   `json:"summary"`
}

func (a *ResumeAnalysis) empty() bool {
	return a == nil || (len(a.TechnicalSkills) == 0 && len(a.SoftSkills) == 0 && len(a.Projects) == 0 &&
		strings.TrimSpace(a.Summary) == "")
}

type StartInput struct {
	Mode           string
	Difficulty     string
	Role           string
	Keywords       []string
	ResumeFilename string
	Analysis       *ResumeAnalysis
}

type HistoryItem struct {
	ID              uint64            `json:"id"`
	Mode            string            `json:"mode"`
	Difficulty      string            `json:"difficulty"`
	Role            *string           `json:"role"`
	ExperienceLevel *string           `json:"experience_level"`
	OverallScore    *int              `json:"overall_score"`
	DurationMinutes *float64          `json:"duration_minutes"`
	CreatedAt       time.Time         `json:"created_at"`
	CompletedAt     *time.Time        `json:"completed_at"`
	FeedbackSummary interview.Summary `json:"feedback_summary"`
}

type SessionDetail struct {
	ID              uint64                 `json:"id"`
	Mode            string                 `json:"mode"`
	Difficulty      string                 `json:"difficulty"`
	Role            string                 `json:"role"`
	Status          string                 `json:"status"`
	ExperienceLevel string                 `json:"experience_level"`
	ResumeSummary   string                 `json:"resume_summary"`
	Questions       []types.FlatQuestion   `json:"questions"`
	Answers         types.Answers          `json:"answers"`
	Feedback        map[string]interface{} `json:"feedback"`
	OverallScore    *int                   `json:"overall_score"`
	DurationMinutes *float64               `json:"duration_minutes"`
	CreatedAt       time.Time              `json:"created_at"`
	CompletedAt     *time.Time             `json:"completed_at"`
}

type DifficultyStats struct {
	Count        int      `json:"count"`
	AverageScore *float64 `json:"average_score"`
}

type Analytics struct {
	TotalSessions int                        `json:"total_sessions"`
	AverageScore  *float64                   `json:"average_score"`
	BestScore     *int                       `json:"best_score"`
	ResumeCount   int                        `json:"resume_count"`
	RoleCount     int                        `json:"role_count"`
	ByDifficulty  map[string]DifficultyStats `json:"by_difficulty"`
}

type InterviewService interface {
	Start(dbc dbctx.Context, in StartInput) (*types.InterviewSession, error)
	RecordAnswer(dbc dbctx.Context, sessionID uint64, index int, answer string) error
	Complete(dbc dbctx.Context, sessionID uint64) (*types.Feedback, error)
	Detail(dbc dbctx.Context, sessionID uint64) (*SessionDetail, error)
	History(dbc dbctx.Context, limit int) ([]HistoryItem, error)
	Analytics(dbc dbctx.Context) (*Analytics, error)
}

type interviewService struct {
	log         *logger.Logger
	sessionRepo repos.SessionRepo
	questions   QuestionWorkflow
	feedback    FeedbackWorkflow
	now         func() time.Time
}

func NewInterviewService(log *logger.Logger, sessionRepo repos.SessionRepo, questions QuestionWorkflow, feedback FeedbackWorkflow) InterviewService {
	return &interviewService{
		log:         log.With("service", "InterviewService"),
		sessionRepo: sessionRepo,
		questions:   questions,
		feedback:    feedback,
		now:         time.Now,
	}
}

func callerID(dbc dbctx.Context) (uuid.UUID, error) {
	id := ctxutil.UserID(dbc.Ctx)
	if id == uuid.Nil {
		return uuid.Nil, apierr.Unauthenticated("Authentication required")
	}
	return id, nil
}

func (s *interviewService) Start(dbc dbctx.Context, in StartInput) (*types.InterviewSession, error) {
	userID, err := callerID(dbc)
	if err != nil {
		return nil, err
	}
	mode := strings.ToLower(strings.TrimSpace(in.Mode))
	difficulty := strings.ToLower(strings.TrimSpace(in.Difficulty))
	if mode == "" || difficulty == "" {
		return nil, apierr.Validation("mode and difficulty are required")
	}
	if !interview.ValidMode(mode) {
		return nil, apierr.Validation(fmt.Sprintf("invalid mode %q", in.Mode))
	}
	if !interview.ValidDifficulty(difficulty) {
		return nil, apierr.Validation(fmt.Sprintf("invalid difficulty %q", in.Difficulty))
	}

	session := &types.InterviewSession{
		UserID:     userID,
		Mode:       mode,
		Difficulty: difficulty,
		Role:       strings.TrimSpace(in.Role),
		Status:     interview.StatusActive,
	}
	qin := QuestionInput{
		Mode:       mode,
		Difficulty: difficulty,
		Role:       session.Role,
		Keywords:   in.Keywords,
	}
	if mode == interview.ModeResume && !in.Analysis.empty() {
		a := in.Analysis
		session.ResumeFilename = strings.TrimSpace(in.ResumeFilename)
		session.TechnicalSkills = interview.EncodeStrings(a.TechnicalSkills)
		session.SoftSkills = interview.EncodeStrings(a.SoftSkills)
		session.Projects = interview.EncodeStrings(a.Projects)
		session.ExperienceLevel = strings.TrimSpace(a.ExperienceLevel)
		session.ResumeSummary = strings.TrimSpace(a.Summary)
		qin.TechnicalSkills = a.TechnicalSkills
		qin.SoftSkills = a.SoftSkills
		qin.Projects = a.Projects
	}

	questions, err := s.questions.Generate(dbc.Ctx, qin)
	if err != nil {
		return nil, err
	}
	if err := session.SetQuestions(questions); err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	created, err := s.sessionRepo.Create(dbc, session)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	observability.Current().IncSessionStarted(mode, difficulty)
	s.log.Info("Interview session started", "session_id", created.ID, "mode", mode, "difficulty", difficulty)
	return created, nil
}

func (s *interviewService) loadOwned(dbc dbctx.Context, sessionID uint64) (*types.InterviewSession, error) {
	userID, err := callerID(dbc)
	if err != nil {
		return nil, err
	}
	session, err := s.sessionRepo.GetForUser(dbc, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, apierr.NotFound("Interview session not found")
	}
	return session, nil
}

// RecordAnswer writes one answer slot. The write is a compare-and-swap on
// the session version and is retried from a fresh read when it loses.
func (s *interviewService) RecordAnswer(dbc dbctx.Context, sessionID uint64, index int, answer string) error {
	if index < 0 {
		return apierr.Validation("question_index must be a non-negative integer")
	}
	for attempt := 1; attempt <= maxAnswerAttempts; attempt++ {
		session, err := s.loadOwned(dbc, sessionID)
		if err != nil {
			return err
		}
		if session.IsCompleted() {
			return apierr.Conflict("Interview session is already completed")
		}
		questions, err := session.QuestionSet()
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
		if index >= questions.Total() {
			return apierr.Validation(fmt.Sprintf("question_index must be less than %d", questions.Total()))
		}
		version := session.Version
		if err := session.RecordAnswer(index, answer); err != nil {
			return apierr.Validation(err.Error())
		}
		ok, err := s.sessionRepo.UpdateAnswers(dbc, session.ID, version, session.Answers)
		if err != nil {
			return fmt.Errorf("save answer: %w", err)
		}
		if ok {
			observability.Current().IncAnswerRecorded()
			return nil
		}
		observability.Current().IncAnswerConflict()
		s.log.Debug("Answer write lost a race, retrying", "session_id", sessionID, "attempt", attempt)
	}
	return apierr.Conflict("Interview session was modified concurrently. Please retry.")
}

// Complete generates feedback and finalizes the session. A failed
// generation leaves the session untouched.
func (s *interviewService) Complete(dbc dbctx.Context, sessionID uint64) (*types.Feedback, error) {
	session, err := s.loadOwned(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, apierr.Conflict("Interview session is already completed")
	}
	questions, err := session.QuestionSet()
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	answers, err := session.AnswerList()
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	fb, err := s.feedback.Generate(dbc.Ctx, FeedbackInput{
		Mode:       session.Mode,
		Difficulty: session.Difficulty,
		Role:       session.Role,
		Questions:  questions,
		Answers:    answers,
	})
	if err != nil {
		return nil, err
	}

	if err := session.Complete(fb, s.now()); err != nil {
		return nil, fmt.Errorf("apply feedback: %w", err)
	}
	ok, err := s.sessionRepo.MarkCompleted(dbc, session.ID, session.Feedback, *session.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	if !ok {
		return nil, apierr.Conflict("Interview session is already completed")
	}
	observability.Current().IncSessionCompleted(session.Mode)
	s.log.Info("Interview session completed", "session_id", session.ID, "overall_score", session.OverallScore())
	return &fb, nil
}

func (s *interviewService) Detail(dbc dbctx.Context, sessionID uint64) (*SessionDetail, error) {
	session, err := s.loadOwned(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	questions, err := session.QuestionSet()
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	answers, err := session.AnswerList()
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	feedback := map[string]interface{}{}
	if report := s.report(session); report != nil {
		feedback = feedbackMap(report)
	}
	return &SessionDetail{
		ID:              session.ID,
		Mode:            session.Mode,
		Difficulty:      session.Difficulty,
		Role:            session.Role,
		Status:          session.Status,
		ExperienceLevel: session.ExperienceLevel,
		ResumeSummary:   session.ResumeSummary,
		Questions:       questions.Titled(),
		Answers:         answers,
		Feedback:        feedback,
		OverallScore:    session.OverallScore(),
		DurationMinutes: session.DurationMinutes(),
		CreatedAt:       session.CreatedAt,
		CompletedAt:     session.CompletedAt,
	}, nil
}

// report decodes the stored feedback. An unreadable column is logged and
// treated as no feedback.
func (s *interviewService) report(session *types.InterviewSession) *types.Feedback {
	r, err := session.Report()
	if err != nil {
		s.log.Warn("Stored feedback is unreadable", "session_id", session.ID, "error", err)
		return nil
	}
	return r
}

func feedbackMap(f *types.Feedback) map[string]interface{} {
	out := map[string]interface{}{
		"category_scores":   f.CategoryScores,
		"strengths":         f.Strengths,
		"improvements":      f.Improvements,
		"detailed_feedback": f.DetailedFeedback,
	}
	if f.OverallScore != nil {
		out["overall_score"] = *f.OverallScore
	}
	return out
}

func (s *interviewService) completedSessions(dbc dbctx.Context, limit int) ([]*types.InterviewSession, error) {
	userID, err := callerID(dbc)
	if err != nil {
		return nil, err
	}
	rows, err := s.sessionRepo.List(dbc, repos.SessionListFilter{
		UserID:         userID,
		Status:         interview.StatusCompleted,
		CompletedFirst: true,
		Limit:          limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return rows, nil
}

func (s *interviewService) History(dbc dbctx.Context, limit int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := s.completedSessions(dbc, limit)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryItem, 0, len(rows))
	for _, row := range rows {
		report := s.report(row)
		out = append(out, HistoryItem{
			ID:              row.ID,
			Mode:            row.Mode,
			Difficulty:      row.Difficulty,
			Role:            nonEmpty(row.Role),
			ExperienceLevel: nonEmpty(row.ExperienceLevel),
			OverallScore:    row.OverallScore(),
			DurationMinutes: row.DurationMinutes(),
			CreatedAt:       row.CreatedAt,
			CompletedAt:     row.CompletedAt,
			FeedbackSummary: report.Summary(),
		})
	}
	return out, nil
}

func nonEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func (s *interviewService) Analytics(dbc dbctx.Context) (*Analytics, error) {
	rows, err := s.completedSessions(dbc, 0)
	if err != nil {
		return nil, err
	}
	out := &Analytics{TotalSessions: len(rows), ByDifficulty: map[string]DifficultyStats{}}
	if len(rows) == 0 {
		return out, nil
	}

	var all []int
	perDiff := map[string][]int{}
	counts := map[string]int{}
	for _, row := range rows {
		switch row.Mode {
		case interview.ModeResume:
			out.ResumeCount++
		case interview.ModeRole:
			out.RoleCount++
		}
		counts[row.Difficulty]++
		if score := row.OverallScore(); score != nil {
			all = append(all, *score)
			perDiff[row.Difficulty] = append(perDiff[row.Difficulty], *score)
		}
	}
	out.AverageScore = average(all)
	for _, v := range all {
		if out.BestScore == nil || v > *out.BestScore {
			best := v
			out.BestScore = &best
		}
	}
	for _, d := range []string{interview.DifficultyBeginner, interview.DifficultyIntermediate, interview.DifficultyAdvanced} {
		out.ByDifficulty[d] = DifficultyStats{Count: counts[d], AverageScore: average(perDiff[d])}
	}
	return out, nil
}

// average rounds to one decimal; nil for no scores.
func average(scores []int) *float64 {
	if len(scores) == 0 {
		return nil
	}
	sum := 0
	for _, v := range scores {
		sum += v
	}
	avg := math.Round(float64(sum)/float64(len(scores))*10) / 10
	return &avg
}
