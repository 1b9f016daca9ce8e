package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	types "github.com/cognivue/cognivue-backend/internal/domain"
	"github.com/cognivue/cognivue-backend/internal/observability"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/gemini"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

const (
	feedbackFailureMessage = "Unable to generate feedback at this time. Please try again."
	maxFeedbackItems       = 3
)

type FeedbackInput struct {
	Mode       string
	Difficulty string
	Role       string
	Questions  types.Questions
	Answers    types.Answers
}

type FeedbackWorkflow interface {
	Generate(ctx context.Context, in FeedbackInput) (types.Feedback, error)
}

type feedbackWorkflow struct {
	log *logger.Logger
	gen Generator
}

func NewFeedbackWorkflow(log *logger.Logger, gen Generator) FeedbackWorkflow {
	return &feedbackWorkflow{log: log.With("service", "FeedbackWorkflow"), gen: gen}
}

func (w *feedbackWorkflow) Generate(ctx context.Context, in FeedbackInput) (types.Feedback, error) {
	prompt, err := feedbackPrompt(in.Mode, in.Difficulty, in.Role, buildTranscript(in.Questions, in.Answers))
	if err != nil {
		return types.Feedback{}, err
	}

	res := w.gen.Generate(ctx, gemini.Request{Prompt: prompt})
	if !res.OK() {
		return types.Feedback{}, failureToAPIError("feedback", res.Failure, feedbackFailureMessage)
	}

	fb, err := parseFeedback(res.Object)
	if err != nil {
		w.log.Warn("Model returned unusable feedback", "error", err)
		observability.Current().IncGenerationFailure("feedback", string(gemini.KindGenerationFailed))
		return types.Feedback{}, apierr.GenerationFailed(feedbackFailureMessage, err.Error())
	}
	return fb, nil
}

// buildTranscript pairs each question, in canonical order, with its answer.
func buildTranscript(q types.Questions, answers types.Answers) []transcriptEntry {
	titled := q.Titled()
	out := make([]transcriptEntry, 0, len(titled))
	for i, fq := range titled {
		ans := strings.TrimSpace(answers.At(i))
		if ans == "" {
			ans = noAnswerSentinel
		}
		out = append(out, transcriptEntry{Category: fq.Category, Question: fq.Text, Answer: ans})
	}
	return out
}

type rawFeedback struct {
	OverallScore   *float64 `json:"overall_score"`
	CategoryScores struct {
		HRPerformance        *float64 `json:"hr_performance"`
		TechnicalPerformance *float64 `json:"technical_performance"`
		CulturalFit          *float64 `json:"cultural_fit"`
	} `json:"category_scores"`
	Strengths        []string `json:"strengths"`
	Improvements     []string `json:"improvements"`
	DetailedFeedback string   `json:"detailed_feedback"`
}

func parseFeedback(raw json.RawMessage) (types.Feedback, error) {
	var rf rawFeedback
	if err := json.Unmarshal(raw, &rf); err != nil {
		return types.Feedback{}, fmt.Errorf("decode feedback: %w", err)
	}
	if rf.OverallScore == nil {
		return types.Feedback{}, fmt.Errorf("missing overall_score")
	}
	overall := clampScore(*rf.OverallScore)
	return types.Feedback{
		OverallScore: &overall,
		CategoryScores: types.CategoryScores{
			HRPerformance:        scoreOrZero(rf.CategoryScores.HRPerformance),
			TechnicalPerformance: scoreOrZero(rf.CategoryScores.TechnicalPerformance),
			CulturalFit:          scoreOrZero(rf.CategoryScores.CulturalFit),
		},
		Strengths:        cleanItems(rf.Strengths, maxFeedbackItems),
		Improvements:     cleanItems(rf.Improvements, maxFeedbackItems),
		DetailedFeedback: strings.TrimSpace(rf.DetailedFeedback),
	}, nil
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

func scoreOrZero(v *float64) int {
	if v == nil {
		return 0
	}
	return clampScore(*v)
}

func cleanItems(in []string, max int) []string {
	out := make([]string, 0, max)
	for _, it := range in {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
			if len(out) == max {
				break
			}
		}
	}
	return out
}
