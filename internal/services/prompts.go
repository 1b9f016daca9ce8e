package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

const noAnswerSentinel = "No answer provided"

const questionSchema = `{
    "hr_questions": ["q1", "q2", "q3"],
    "technical_questions": ["q1", "q2", "q3", "q4"],
    "cultural_questions": ["q1", "q2", "q3"]
}`

const feedbackSchema = `{
    "overall_score": <0-100>,
    "category_scores": {
        "hr_performance": <0-100>,
        "technical_performance": <0-100>,
        "cultural_fit": <0-100>
    },
    "strengths": ["strength1", "strength2", "strength3"],
    "improvements": ["area1", "area2", "area3"],
    "detailed_feedback": "comprehensive paragraph feedback"
}`

func firstStrings(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}

func joinOr(items []string, fallback string) string {
	clean := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) == 0 {
		return fallback
	}
	return strings.Join(clean, ", ")
}

func resumeQuestionPrompt(difficulty string, technical, soft, projects []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert technical interviewer conducting a %s level interview.\n\n", difficulty)
	b.WriteString("Candidate profile extracted from their resume:\n")
	fmt.Fprintf(&b, "- Technical skills: %s\n", joinOr(technical, "not listed"))
	fmt.Fprintf(&b, "- Soft skills: %s\n", joinOr(soft, "not listed"))
	fmt.Fprintf(&b, "- Projects: %s\n\n", joinOr(projects, "not listed"))
	b.WriteString("Generate exactly:\n")
	b.WriteString("- 3 behavioral/HR questions assessing the candidate's soft skills\n")
	fmt.Fprintf(&b, "- 4 technical questions testing: %s\n", joinOr(firstStrings(technical, 5), "general programming"))
	b.WriteString("- 3 situational questions testing problem-solving, grounded in their projects where possible\n\n")
	b.WriteString("Return ONLY a JSON object:\n")
	b.WriteString(questionSchema)
	return b.String()
}

func keywordQuestionPrompt(difficulty string, keywords []string) string {
	return fmt.Sprintf(`You are an expert technical interviewer conducting a %s level interview.

Based on these skills from the candidate's resume: %s

Generate exactly:
- 3 behavioral/HR questions assessing soft skills
- 4 technical questions testing: %s
- 3 situational questions testing problem-solving

Return ONLY a JSON object:
%s`, difficulty, joinOr(keywords, "general programming"), joinOr(firstStrings(keywords, 5), "general programming"), questionSchema)
}

func roleQuestionPrompt(difficulty, role string) string {
	return fmt.Sprintf(`You are an expert technical interviewer for a %[1]s level %[2]s position.

Generate exactly:
- 3 behavioral/HR questions for a %[2]s
- 4 technical questions for core %[2]s competencies
- 3 situational questions for %[2]s scenarios

Return ONLY a JSON object:
%[3]s`, difficulty, role, questionSchema)
}

type transcriptEntry struct {
	Category string `json:"category"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func feedbackPrompt(mode, difficulty, role string, transcript []transcriptEntry) (string, error) {
	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}
	if strings.TrimSpace(role) == "" {
		role = "General"
	}
	return fmt.Sprintf(`You are an expert HR interviewer and career coach. Analyze this interview session and provide detailed feedback.

Interview Mode: %s
Difficulty Level: %s
Role: %s

Interview Questions and Answers:
%s

Provide feedback in this JSON format:
%s

Be constructive, specific, and encouraging while providing actionable feedback.
`, mode, difficulty, role, string(data), feedbackSchema), nil
}

const resumeAnalysisPrompt = `You are an expert recruiter. Read the attached resume and extract a structured profile.

Return ONLY a JSON object:
{
    "technical_skills": ["skill1", "skill2"],
    "soft_skills": ["skill1", "skill2"],
    "projects": ["short project description"],
    "experience_level": "entry | mid | senior",
    "summary": "two or three sentence professional summary"
}`
