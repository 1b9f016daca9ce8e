package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/cognivue/cognivue-backend/internal/domain"
	"github.com/cognivue/cognivue-backend/internal/domain/interview"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/gemini"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type fakeGenerator struct {
	results []gemini.Result
	prompts []string
	reqs    []gemini.Request
}

func (f *fakeGenerator) Generate(ctx context.Context, req gemini.Request) gemini.Result {
	f.prompts = append(f.prompts, req.Prompt)
	f.reqs = append(f.reqs, req)
	if len(f.results) == 0 {
		return gemini.Result{Failure: &gemini.Failure{Kind: gemini.KindGenerationFailed, Details: "no scripted result"}}
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r
}

func okResult(v any) gemini.Result {
	raw, _ := json.Marshal(v)
	return gemini.Result{Object: raw}
}

func fullQuestionSet() map[string]any {
	return map[string]any{
		"hr_questions":        []string{"h1", "h2", "h3"},
		"technical_questions": []string{"t1", "t2", "t3", "t4"},
		"cultural_questions":  []string{"c1", "c2", "c3"},
	}
}

func TestQuestionWorkflowRoleMode(t *testing.T) {
	gen := &fakeGenerator{results: []gemini.Result{okResult(fullQuestionSet())}}
	w := NewQuestionWorkflow(logger.Nop(), gen)

	q, err := w.Generate(context.Background(), QuestionInput{
		Mode: interview.ModeRole, Difficulty: interview.DifficultyAdvanced, Role: " Backend Engineer ",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h2", "h3", "t1", "t2", "t3", "t4", "c1", "c2", "c3"}, q.Flatten())
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "advanced level Backend Engineer position")
}

func TestQuestionWorkflowRoleModeRequiresRole(t *testing.T) {
	gen := &fakeGenerator{}
	w := NewQuestionWorkflow(logger.Nop(), gen)

	_, err := w.Generate(context.Background(), QuestionInput{Mode: interview.ModeRole, Difficulty: "beginner"})
	require.True(t, apierr.Is(err, apierr.CodeValidation))
	assert.Empty(t, gen.prompts)
}

func TestQuestionWorkflowPromptSelection(t *testing.T) {
	cases := []struct {
		name string
		in   QuestionInput
		want string
	}{
		{
			name: "resume with skills",
			in:   QuestionInput{Mode: interview.ModeResume, Difficulty: "beginner", TechnicalSkills: []string{"Go", "SQL"}, Projects: []string{"billing service"}},
			want: "Technical skills: Go, SQL",
		},
		{
			name: "resume keywords only",
			in:   QuestionInput{Mode: interview.ModeResume, Difficulty: "beginner", Keywords: []string{"python", "docker"}},
			want: "skills from the candidate's resume: python, docker",
		},
		{
			name: "resume with nothing",
			in:   QuestionInput{Mode: interview.ModeResume, Difficulty: "beginner"},
			want: "skills from the candidate's resume: general programming",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &fakeGenerator{results: []gemini.Result{okResult(fullQuestionSet())}}
			_, err := NewQuestionWorkflow(logger.Nop(), gen).Generate(context.Background(), tc.in)
			require.NoError(t, err)
			assert.Contains(t, gen.prompts[0], tc.want)
		})
	}
}

func TestQuestionWorkflowRejectsIncompleteSets(t *testing.T) {
	short := fullQuestionSet()
	short["technical_questions"] = []string{"t1", "t2", "t3"}
	blank := fullQuestionSet()
	blank["hr_questions"] = []string{"h1", "  ", "h3"}
	missing := fullQuestionSet()
	delete(missing, "cultural_questions")

	for name, payload := range map[string]map[string]any{"short": short, "blank": blank, "missing": missing} {
		t.Run(name, func(t *testing.T) {
			gen := &fakeGenerator{results: []gemini.Result{okResult(payload)}}
			_, err := NewQuestionWorkflow(logger.Nop(), gen).Generate(context.Background(), QuestionInput{
				Mode: interview.ModeRole, Difficulty: "beginner", Role: "QA",
			})
			ae, ok := apierr.As(err)
			require.True(t, ok)
			assert.Equal(t, apierr.CodeGenerationFailed, ae.Code)
			assert.Equal(t, questionFailureMessage, ae.Error())
			assert.NotEmpty(t, ae.Details)
		})
	}
}

func TestQuestionWorkflowMapsOverload(t *testing.T) {
	gen := &fakeGenerator{results: []gemini.Result{{Failure: &gemini.Failure{
		Kind: gemini.KindServiceUnavailable, Details: "All retry attempts exhausted",
	}}}}
	_, err := NewQuestionWorkflow(logger.Nop(), gen).Generate(context.Background(), QuestionInput{
		Mode: interview.ModeRole, Difficulty: "beginner", Role: "QA",
	})
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeServiceUnavailable, ae.Code)
	assert.Equal(t, overloadedMessage, ae.Error())
	assert.Equal(t, "All retry attempts exhausted", ae.Details)
}

func strp(s string) *string { return &s }

func TestBuildTranscriptFillsMissingAnswers(t *testing.T) {
	q := types.Questions{
		HR:        []string{"h1", "h2", "h3"},
		Technical: []string{"t1", "t2", "t3", "t4"},
		Cultural:  []string{"c1", "c2", "c3"},
	}
	answers := types.Answers{strp("first"), nil, strp("   "), strp("tech one")}

	got := buildTranscript(q, answers)
	require.Len(t, got, 10)
	assert.Equal(t, transcriptEntry{Category: "Hr Questions", Question: "h1", Answer: "first"}, got[0])
	assert.Equal(t, noAnswerSentinel, got[1].Answer)
	assert.Equal(t, noAnswerSentinel, got[2].Answer)
	assert.Equal(t, "Technical Questions", got[3].Category)
	assert.Equal(t, "tech one", got[3].Answer)
	assert.Equal(t, noAnswerSentinel, got[9].Answer)
	assert.Equal(t, "Cultural Questions", got[9].Category)
}

func TestFeedbackWorkflowNormalizesScores(t *testing.T) {
	gen := &fakeGenerator{results: []gemini.Result{okResult(map[string]any{
		"overall_score": 87.6,
		"category_scores": map[string]any{
			"hr_performance":        120,
			"technical_performance": -4,
			"cultural_fit":          70.2,
		},
		"strengths":         []string{" clear ", "", "structured", "calm", "extra"},
		"improvements":      []string{"depth"},
		"detailed_feedback": " Good overall. ",
	})}}
	w := NewFeedbackWorkflow(logger.Nop(), gen)

	fb, err := w.Generate(context.Background(), FeedbackInput{
		Mode: interview.ModeRole, Difficulty: "intermediate",
		Questions: types.Questions{HR: []string{"h1"}},
	})
	require.NoError(t, err)
	require.NotNil(t, fb.OverallScore)
	assert.Equal(t, 88, *fb.OverallScore)
	assert.Equal(t, types.CategoryScores{HRPerformance: 100, TechnicalPerformance: 0, CulturalFit: 70}, fb.CategoryScores)
	assert.Equal(t, []string{"clear", "structured", "calm"}, fb.Strengths)
	assert.Equal(t, []string{"depth"}, fb.Improvements)
	assert.Equal(t, "Good overall.", fb.DetailedFeedback)
	assert.Contains(t, gen.prompts[0], "Role: General")
	assert.True(t, strings.Contains(gen.prompts[0], `"answer": "No answer provided"`))
}

func TestFeedbackWorkflowRequiresOverallScore(t *testing.T) {
	gen := &fakeGenerator{results: []gemini.Result{okResult(map[string]any{"strengths": []string{"x"}})}}
	_, err := NewFeedbackWorkflow(logger.Nop(), gen).Generate(context.Background(), FeedbackInput{Mode: "role", Difficulty: "beginner"})
	require.True(t, apierr.Is(err, apierr.CodeGenerationFailed))
}

func TestFeedbackWorkflowPassesThroughFailure(t *testing.T) {
	gen := &fakeGenerator{results: []gemini.Result{{Failure: &gemini.Failure{Kind: gemini.KindGenerationFailed, Details: "no JSON object in reply"}}}}
	_, err := NewFeedbackWorkflow(logger.Nop(), gen).Generate(context.Background(), FeedbackInput{Mode: "role", Difficulty: "beginner"})
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, feedbackFailureMessage, ae.Error())
	assert.Equal(t, "no JSON object in reply", ae.Details)
}
