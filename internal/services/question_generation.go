package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	types "github.com/cognivue/cognivue-backend/internal/domain"
	"github.com/cognivue/cognivue-backend/internal/domain/interview"
	"github.com/cognivue/cognivue-backend/internal/observability"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/gemini"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

const questionFailureMessage = "Unable to generate interview questions at this time. Please try again."

type QuestionInput struct {
	Mode       string
	Difficulty string
	Role       string

	TechnicalSkills []string
	SoftSkills      []string
	Projects        []string
	// Keywords seed resume mode when no structured analysis is available.
	Keywords []string
}

func (in QuestionInput) hasSkills() bool {
	return len(in.TechnicalSkills) > 0 || len(in.SoftSkills) > 0 || len(in.Projects) > 0
}

// QuestionWorkflow returns a full 3/4/3 question set or an *apierr.Error.
type QuestionWorkflow interface {
	Generate(ctx context.Context, in QuestionInput) (types.Questions, error)
}

type questionWorkflow struct {
	log *logger.Logger
	gen Generator
}

func NewQuestionWorkflow(log *logger.Logger, gen Generator) QuestionWorkflow {
	return &questionWorkflow{log: log.With("service", "QuestionWorkflow"), gen: gen}
}

func (w *questionWorkflow) Generate(ctx context.Context, in QuestionInput) (types.Questions, error) {
	prompt, err := questionPromptFor(in)
	if err != nil {
		return types.Questions{}, err
	}

	res := w.gen.Generate(ctx, gemini.Request{Prompt: prompt})
	if !res.OK() {
		return types.Questions{}, failureToAPIError("questions", res.Failure, questionFailureMessage)
	}

	q, err := parseQuestions(res.Object)
	if err != nil {
		w.log.Warn("Model returned an unusable question set", "mode", in.Mode, "error", err)
		observability.Current().IncGenerationFailure("questions", string(gemini.KindGenerationFailed))
		return types.Questions{}, apierr.GenerationFailed(questionFailureMessage, err.Error())
	}
	return q, nil
}

func questionPromptFor(in QuestionInput) (string, error) {
	switch in.Mode {
	case interview.ModeResume:
		if in.hasSkills() {
			return resumeQuestionPrompt(in.Difficulty, in.TechnicalSkills, in.SoftSkills, in.Projects), nil
		}
		return keywordQuestionPrompt(in.Difficulty, in.Keywords), nil
	case interview.ModeRole:
		if strings.TrimSpace(in.Role) == "" {
			return "", apierr.Validation("role is required for role-based interviews")
		}
		return roleQuestionPrompt(in.Difficulty, strings.TrimSpace(in.Role)), nil
	default:
		return "", apierr.Validation(fmt.Sprintf("unsupported mode %q", in.Mode))
	}
}

// parseQuestions accepts only a complete set; extra keys are dropped.
func parseQuestions(raw json.RawMessage) (types.Questions, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return types.Questions{}, fmt.Errorf("decode questions: %w", err)
	}
	var q types.Questions
	targets := map[string]*[]string{
		interview.CategoryHR:        &q.HR,
		interview.CategoryTechnical: &q.Technical,
		interview.CategoryCultural:  &q.Cultural,
	}
	for key, dst := range targets {
		v, ok := fields[key]
		if !ok {
			return types.Questions{}, fmt.Errorf("missing %s", key)
		}
		var items []string
		if err := json.Unmarshal(v, &items); err != nil {
			return types.Questions{}, fmt.Errorf("decode %s: %w", key, err)
		}
		for i := range items {
			items[i] = strings.TrimSpace(items[i])
		}
		*dst = items
	}
	if !q.Complete() {
		return types.Questions{}, fmt.Errorf("expected %d/%d/%d questions, got %d/%d/%d",
			interview.HRQuestionCount, interview.TechnicalQuestionCount, interview.CulturalQuestionCount,
			len(q.HR), len(q.Technical), len(q.Cultural))
	}
	return q, nil
}
