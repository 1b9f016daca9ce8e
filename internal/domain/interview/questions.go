package interview

import "strings"

const (
	CategoryHR        = "hr_questions"
	CategoryTechnical = "technical_questions"
	CategoryCultural  = "cultural_questions"
)

const (
	HRQuestionCount        = 3
	TechnicalQuestionCount = 4
	CulturalQuestionCount  = 3
)

// Questions is the generated question set. Field order is the canonical
// category order used for flattening and answer alignment.
type Questions struct {
	HR        []string `json:"hr_questions"`
	Technical []string `json:"technical_questions"`
	Cultural  []string `json:"cultural_questions"`
}

type Category struct {
	Key   string
	Items []string
}

type FlatQuestion struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

func (q Questions) Categories() []Category {
	return []Category{
		{Key: CategoryHR, Items: q.HR},
		{Key: CategoryTechnical, Items: q.Technical},
		{Key: CategoryCultural, Items: q.Cultural},
	}
}

// Flatten concatenates every category in canonical order. Answer index i
// refers to Flatten()[i].
func (q Questions) Flatten() []string {
	out := make([]string, 0, q.Total())
	for _, c := range q.Categories() {
		out = append(out, c.Items...)
	}
	return out
}

func (q Questions) Total() int {
	return len(q.HR) + len(q.Technical) + len(q.Cultural)
}

// Titled flattens like Flatten but tags each question with its display
// category ("Hr Questions", "Technical Questions", ...).
func (q Questions) Titled() []FlatQuestion {
	out := make([]FlatQuestion, 0, q.Total())
	for _, c := range q.Categories() {
		title := CategoryTitle(c.Key)
		for _, text := range c.Items {
			out = append(out, FlatQuestion{Category: title, Text: text})
		}
	}
	return out
}

// Complete reports whether every category has exactly the expected number
// of non-blank questions.
func (q Questions) Complete() bool {
	return countOK(q.HR, HRQuestionCount) &&
		countOK(q.Technical, TechnicalQuestionCount) &&
		countOK(q.Cultural, CulturalQuestionCount)
}

func countOK(items []string, want int) bool {
	if len(items) != want {
		return false
	}
	for _, it := range items {
		if strings.TrimSpace(it) == "" {
			return false
		}
	}
	return true
}

// CategoryTitle turns "hr_questions" into "Hr Questions".
func CategoryTitle(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		lower := strings.ToLower(w)
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}
