package interview

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ModeResume = "resume"
	ModeRole   = "role"

	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"

	StatusActive    = "active"
	StatusCompleted = "completed"

	DefaultExperienceLevel = "entry"
)

var ErrNegativeIndex = errors.New("question index must be non-negative")

func ValidMode(m string) bool {
	return m == ModeResume || m == ModeRole
}

func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	default:
		return false
	}
}

// Session is one interview attempt. Resume-derived columns are written at
// creation only; Answers and Feedback evolve through the lifecycle.
type Session struct {
	ID     uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null;column:user_id" json:"user_id"`

	Mode       string `gorm:"not null;column:mode" json:"mode"`
	Difficulty string `gorm:"not null;column:difficulty" json:"difficulty"`
	Role       string `gorm:"column:role" json:"role"`

	ResumeFilename  string         `gorm:"column:resume_filename" json:"resume_filename"`
	TechnicalSkills datatypes.JSON `gorm:"column:technical_skills" json:"technical_skills"`
	SoftSkills      datatypes.JSON `gorm:"column:soft_skills" json:"soft_skills"`
	Projects        datatypes.JSON `gorm:"column:projects" json:"projects"`
	ExperienceLevel string         `gorm:"not null;default:entry;column:experience_level" json:"experience_level"`
	ResumeSummary   string         `gorm:"type:text;column:resume_summary" json:"resume_summary"`

	Questions datatypes.JSON `gorm:"column:questions" json:"questions"`
	Answers   datatypes.JSON `gorm:"column:answers" json:"answers"`
	Feedback  datatypes.JSON `gorm:"column:feedback" json:"feedback"`

	Status      string     `gorm:"not null;default:active;index;column:status" json:"status"`
	Version     int        `gorm:"not null;default:0;column:version" json:"-"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
	CompletedAt *time.Time `gorm:"index;column:completed_at" json:"completed_at,omitempty"`
}

func (Session) TableName() string { return "interviews_session" }

func (s *Session) IsCompleted() bool {
	return s != nil && s.Status == StatusCompleted
}

func (s *Session) QuestionSet() (Questions, error) {
	var q Questions
	if isEmptyJSON(s.Questions) {
		return q, nil
	}
	if err := json.Unmarshal(s.Questions, &q); err != nil {
		return q, fmt.Errorf("decode questions: %w", err)
	}
	return q, nil
}

func (s *Session) SetQuestions(q Questions) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	s.Questions = datatypes.JSON(raw)
	return nil
}

func (s *Session) AnswerList() (Answers, error) {
	if isEmptyJSON(s.Answers) {
		return Answers{}, nil
	}
	var a Answers
	if err := json.Unmarshal(s.Answers, &a); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return a, nil
}

func (s *Session) SetAnswers(a Answers) error {
	if a == nil {
		a = Answers{}
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	s.Answers = datatypes.JSON(raw)
	return nil
}

// Report decodes the stored feedback; nil when none has been produced.
func (s *Session) Report() (*Feedback, error) {
	if isEmptyJSON(s.Feedback) || bytes.Equal(bytes.TrimSpace(s.Feedback), []byte("{}")) {
		return nil, nil
	}
	var f Feedback
	if err := json.Unmarshal(s.Feedback, &f); err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}
	return &f, nil
}

func (s *Session) SetReport(f Feedback) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	s.Feedback = datatypes.JSON(raw)
	return nil
}

// RecordAnswer stores value at position index, growing the answer list with
// nulls as needed. Only Answers is touched.
func (s *Session) RecordAnswer(index int, value string) error {
	current, err := s.AnswerList()
	if err != nil {
		return err
	}
	next, err := current.Record(index, value)
	if err != nil {
		return err
	}
	return s.SetAnswers(next)
}

// Complete applies a finished feedback report. Callers persist the result
// as a single write.
func (s *Session) Complete(f Feedback, at time.Time) error {
	if err := s.SetReport(f); err != nil {
		return err
	}
	at = at.UTC()
	s.Status = StatusCompleted
	s.CompletedAt = &at
	return nil
}

// OverallScore is the feedback's overall score, or nil if there is none.
func (s *Session) OverallScore() *int {
	f, err := s.Report()
	if err != nil || f == nil || f.OverallScore == nil {
		return nil
	}
	v := *f.OverallScore
	return &v
}

// DurationMinutes is completed_at - created_at in minutes, one decimal.
// Nil until the session completes.
func (s *Session) DurationMinutes() *float64 {
	if s == nil || s.CompletedAt == nil {
		return nil
	}
	mins := s.CompletedAt.Sub(s.CreatedAt).Minutes()
	v := math.Round(mins*10) / 10
	return &v
}

func (s *Session) SkillLists() (technical, soft, projects []string) {
	return DecodeStrings(s.TechnicalSkills), DecodeStrings(s.SoftSkills), DecodeStrings(s.Projects)
}

// Answers is positional; nil entries are unanswered questions.
type Answers []*string

func (a Answers) Record(index int, value string) (Answers, error) {
	if index < 0 {
		return nil, ErrNegativeIndex
	}
	size := len(a)
	if index >= size {
		size = index + 1
	}
	out := make(Answers, size)
	copy(out, a)
	v := value
	out[index] = &v
	return out, nil
}

// At returns the answer at i, or "" when missing.
func (a Answers) At(i int) string {
	if i < 0 || i >= len(a) || a[i] == nil {
		return ""
	}
	return *a[i]
}

func EncodeStrings(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return datatypes.JSON(raw)
}

func DecodeStrings(raw datatypes.JSON) []string {
	if isEmptyJSON(raw) {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return []string{}
	}
	return out
}

func isEmptyJSON(raw datatypes.JSON) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
