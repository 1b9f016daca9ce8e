package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/cognivue/cognivue-backend/internal/observability"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/platform/gcp"
	"github.com/cognivue/cognivue-backend/internal/platform/gemini"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

const (
	DefaultMaxUploadSize = 16 << 20

	maxTechnicalSkills = 10
	maxSoftSkills      = 8
	maxProjects        = 5
	maxKeywords        = 10

	pdfMIMEType = "application/pdf"
)

var (
	defaultKeywords         = []string{"general programming"}
	extractFailureKeywords  = []string{"general programming", "software development"}
	resumeSkillPatterns     = compileSkillPatterns()
	unsafeFilenameCharacter = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
)

func compileSkillPatterns() []*regexp.Regexp {
	raw := []string{
		`\b(?:python|java|javascript|typescript|c\+\+|c#|php|ruby|go|rust|swift|kotlin)\b`,
		`\b(?:react|angular|vue|node\.?js|express|django|flask|spring|laravel)\b`,
		`\b(?:html|css|sass|scss|bootstrap|tailwind)\b`,
		`\b(?:sql|mysql|postgresql|mongodb|redis|elasticsearch)\b`,
		`\b(?:aws|azure|gcp|docker|kubernetes|jenkins|git|github|gitlab)\b`,
		`\b(?:machine learning|data science|ai|tensorflow|pytorch|pandas|numpy)\b`,
		`\b(?:agile|scrum|devops|ci/cd|microservices|api|rest|graphql)\b`,
	}
	out := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

type ResumeUpload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

type ResumeUploadResult struct {
	Message  string          `json:"message"`
	Filename string          `json:"filename"`
	Analysis *ResumeAnalysis `json:"analysis,omitempty"`
	Keywords []string        `json:"keywords"`
	Note     string          `json:"note,omitempty"`
}

type ResumeService interface {
	Upload(dbc dbctx.Context, in ResumeUpload) (*ResumeUploadResult, error)
}

type resumeService struct {
	log       *logger.Logger
	store     gcp.ObjectStore
	gen       Generator
	extractor gcp.TextExtractor
	maxSize   int64
	now       func() time.Time
}

// NewResumeService wires upload storage and analysis. extractor may be nil,
// in which case the keyword fallback has no text to scan.
func NewResumeService(log *logger.Logger, store gcp.ObjectStore, gen Generator, extractor gcp.TextExtractor, maxSize int64) ResumeService {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	return &resumeService{
		log:       log.With("service", "ResumeService"),
		store:     store,
		gen:       gen,
		extractor: extractor,
		maxSize:   maxSize,
		now:       time.Now,
	}
}

func (s *resumeService) Upload(dbc dbctx.Context, in ResumeUpload) (*ResumeUploadResult, error) {
	metrics := observability.Current()
	userID, err := callerID(dbc)
	if err != nil {
		return nil, err
	}
	if in.Body == nil {
		return nil, apierr.Validation("No resume file provided")
	}
	if strings.TrimSpace(in.Filename) == "" {
		metrics.IncResumeUpload("rejected")
		return nil, apierr.Validation("No file selected")
	}
	if !strings.EqualFold(filepath.Ext(in.Filename), ".pdf") {
		metrics.IncResumeUpload("rejected")
		return nil, apierr.Validation("Invalid file format. Please upload a PDF.")
	}
	if in.Size > s.maxSize {
		metrics.IncResumeUpload("rejected")
		return nil, apierr.Validation(fmt.Sprintf("File too large. Maximum size is %d MB.", s.maxSize>>20))
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		metrics.IncResumeUpload("rejected")
		return nil, apierr.Validation(fmt.Sprintf("File too large. Maximum size is %d MB.", s.maxSize>>20))
	}

	key := fmt.Sprintf("%s_%d_%s", userID, s.now().Unix(), secureFilename(in.Filename))
	uri, err := s.store.Put(dbc.Ctx, key, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("store resume: %w", err)
	}
	s.log.Info("Resume stored", "key", key, "uri", uri, "bytes", len(data))

	analysis, aerr := s.analyze(dbc.Ctx, data)
	if aerr == nil {
		metrics.IncResumeUpload("analyzed")
		return &ResumeUploadResult{
			Message:  "Resume uploaded and analyzed successfully",
			Filename: key,
			Analysis: analysis,
			Keywords: firstStrings(analysis.TechnicalSkills, maxKeywords),
		}, nil
	}

	s.log.Warn("Resume analysis failed, using keyword fallback", "error", aerr)
	metrics.IncResumeUpload("fallback")
	return &ResumeUploadResult{
		Message:  "Resume uploaded successfully (basic analysis)",
		Filename: key,
		Keywords: s.fallbackKeywords(dbc.Ctx, data),
		Note:     "Basic analysis used due to processing error",
	}, nil
}

func (s *resumeService) analyze(ctx context.Context, pdf []byte) (*ResumeAnalysis, error) {
	if s.gen == nil {
		return nil, fmt.Errorf("resume analysis not configured")
	}
	res := s.gen.Generate(ctx, gemini.Request{
		Prompt:      resumeAnalysisPrompt,
		Attachments: []gemini.Attachment{{MIMEType: pdfMIMEType, Data: pdf}},
	})
	var a ResumeAnalysis
	if err := res.Decode(&a); err != nil {
		return nil, err
	}
	a.TechnicalSkills = cleanItems(a.TechnicalSkills, maxTechnicalSkills)
	a.SoftSkills = cleanItems(a.SoftSkills, maxSoftSkills)
	a.Projects = cleanItems(a.Projects, maxProjects)
	a.ExperienceLevel = strings.ToLower(strings.TrimSpace(a.ExperienceLevel))
	if a.ExperienceLevel == "" {
		a.ExperienceLevel = "entry"
	}
	a.Summary = strings.TrimSpace(a.Summary)
	if a.empty() {
		return nil, fmt.Errorf("analysis returned no profile data")
	}
	return &a, nil
}

func (s *resumeService) fallbackKeywords(ctx context.Context, pdf []byte) []string {
	if s.extractor == nil {
		return append([]string(nil), extractFailureKeywords...)
	}
	text, err := s.extractor.ExtractText(ctx, pdfMIMEType, pdf)
	if err != nil {
		s.log.Warn("Resume text extraction failed", "error", err)
		return append([]string(nil), extractFailureKeywords...)
	}
	return ExtractKeywords(text)
}

// ExtractKeywords returns the ten most frequent known skill terms in text,
// ties broken by first match.
func ExtractKeywords(text string) []string {
	lower := strings.ToLower(text)
	counts := map[string]int{}
	var order []string
	for _, re := range resumeSkillPatterns {
		for _, m := range re.FindAllString(lower, -1) {
			if counts[m] == 0 {
				order = append(order, m)
			}
			counts[m]++
		}
	}
	if len(order) == 0 {
		return append([]string(nil), defaultKeywords...)
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	return firstStrings(order, maxKeywords)
}

// secureFilename reduces name to an ASCII basename safe for object keys.
func secureFilename(name string) string {
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	cleaned := strings.NewReplacer("/", " ", "\\", " ").Replace(b.String())
	cleaned = strings.Join(strings.Fields(cleaned), "_")
	cleaned = unsafeFilenameCharacter.ReplaceAllString(cleaned, "")
	cleaned = strings.Trim(cleaned, "._")
	if cleaned == "" {
		return "resume.pdf"
	}
	return cleaned
}
