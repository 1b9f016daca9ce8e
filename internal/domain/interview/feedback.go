package interview

type CategoryScores struct {
	HRPerformance        int `json:"hr_performance"`
	TechnicalPerformance int `json:"technical_performance"`
	CulturalFit          int `json:"cultural_fit"`
}

type Feedback struct {
	OverallScore     *int           `json:"overall_score,omitempty"`
	CategoryScores   CategoryScores `json:"category_scores"`
	Strengths        []string       `json:"strengths"`
	Improvements     []string       `json:"improvements"`
	DetailedFeedback string         `json:"detailed_feedback"`
}

// Summary is the trimmed view shown in session history.
type Summary struct {
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

func (f *Feedback) Summary() Summary {
	if f == nil {
		return Summary{Strengths: []string{}, Improvements: []string{}}
	}
	return Summary{
		Strengths:    firstN(f.Strengths, 2),
		Improvements: firstN(f.Improvements, 2),
	}
}

func firstN(in []string, n int) []string {
	if len(in) <= n {
		out := make([]string, len(in))
		copy(out, in)
		return out
	}
	out := make([]string, n)
	copy(out, in[:n])
	return out
}
