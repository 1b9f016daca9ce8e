package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/ctxutil"
	"github.com/cognivue/cognivue-backend/internal/platform/dbctx"
	"github.com/cognivue/cognivue-backend/internal/platform/gcp"
	"github.com/cognivue/cognivue-backend/internal/platform/gemini"
	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(ctx context.Context, mimeType string, data []byte) (string, error) {
	return f.text, f.err
}

func (f *fakeExtractor) Close() error { return nil }

func newResumeFixture(t *testing.T, gen Generator, extractor gcp.TextExtractor) (*resumeService, gcp.ObjectStore, dbctx.Context, uuid.UUID) {
	t.Helper()
	store, err := gcp.NewObjectStore(context.Background(), gcp.ObjectStorageConfig{
		Mode:     gcp.ObjectStorageModeLocal,
		LocalDir: t.TempDir(),
	}, logger.Nop())
	require.NoError(t, err)
	svc := NewResumeService(logger.Nop(), store, gen, extractor, 1024).(*resumeService)
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }
	user := uuid.New()
	ctx := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: user})
	return svc, store, dbctx.Context{Ctx: ctx}, user
}

func TestResumeUploadValidation(t *testing.T) {
	svc, _, dbc, _ := newResumeFixture(t, &fakeGenerator{}, nil)
	cases := []struct {
		name string
		in   ResumeUpload
		msg  string
	}{
		{"no body", ResumeUpload{Filename: "cv.pdf"}, "No resume file provided"},
		{"no name", ResumeUpload{Body: strings.NewReader("x")}, "No file selected"},
		{"not pdf", ResumeUpload{Filename: "cv.docx", Body: strings.NewReader("x")}, "Invalid file format. Please upload a PDF."},
		{"declared too large", ResumeUpload{Filename: "cv.pdf", Size: 4096, Body: strings.NewReader("x")}, "File too large. Maximum size is 0 MB."},
		{"actually too large", ResumeUpload{Filename: "cv.pdf", Body: bytes.NewReader(make([]byte, 2048))}, "File too large. Maximum size is 0 MB."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(dbc, tc.in)
			ae, ok := apierr.As(err)
			require.True(t, ok)
			assert.Equal(t, apierr.CodeValidation, ae.Code)
			assert.Equal(t, tc.msg, ae.Error())
		})
	}
}

func TestResumeUploadAnalyzed(t *testing.T) {
	skills := make([]string, 14)
	for i := range skills {
		skills[i] = "skill" + string(rune('a'+i))
	}
	gen := &fakeGenerator{results: []gemini.Result{okResult(map[string]any{
		"technical_skills": skills,
		"soft_skills":      []string{"communication"},
		"projects":         []string{"p1", "p2", "p3", "p4", "p5", "p6"},
		"experience_level": " Mid ",
		"summary":          "Backend developer",
	})}}
	svc, store, dbc, user := newResumeFixture(t, gen, nil)

	res, err := svc.Upload(dbc, ResumeUpload{Filename: "My Résumé.PDF", Size: 3, Body: strings.NewReader("pdf")})
	require.NoError(t, err)
	assert.Equal(t, "Resume uploaded and analyzed successfully", res.Message)
	assert.Equal(t, user.String()+"_1700000000_My_Resume.PDF", res.Filename)
	require.NotNil(t, res.Analysis)
	assert.Len(t, res.Analysis.TechnicalSkills, 10)
	assert.Len(t, res.Analysis.Projects, 5)
	assert.Equal(t, "mid", res.Analysis.ExperienceLevel)
	assert.Len(t, res.Keywords, 10)

	require.Len(t, gen.reqs, 1)
	require.Len(t, gen.reqs[0].Attachments, 1)
	assert.Equal(t, "application/pdf", gen.reqs[0].Attachments[0].MIMEType)

	rc, err := store.Open(context.Background(), res.Filename)
	require.NoError(t, err)
	defer rc.Close()
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(stored))
}

func TestResumeUploadFallsBackToKeywords(t *testing.T) {
	failing := func() *fakeGenerator {
		return &fakeGenerator{results: []gemini.Result{{Failure: &gemini.Failure{Kind: gemini.KindGenerationFailed, Details: "bad"}}}}
	}

	svc, _, dbc, _ := newResumeFixture(t, failing(), &fakeExtractor{text: "Go, Docker and Go. Python too; docker docker"})
	res, err := svc.Upload(dbc, ResumeUpload{Filename: "cv.pdf", Body: strings.NewReader("pdf")})
	require.NoError(t, err)
	assert.Nil(t, res.Analysis)
	assert.Equal(t, "Basic analysis used due to processing error", res.Note)
	assert.Equal(t, []string{"docker", "go", "python"}, res.Keywords)

	svc, _, dbc, _ = newResumeFixture(t, failing(), &fakeExtractor{err: errors.New("ocr down")})
	res, err = svc.Upload(dbc, ResumeUpload{Filename: "cv.pdf", Body: strings.NewReader("pdf")})
	require.NoError(t, err)
	assert.Equal(t, []string{"general programming", "software development"}, res.Keywords)
}

func TestExtractKeywords(t *testing.T) {
	assert.Equal(t, []string{"general programming"}, ExtractKeywords("nothing relevant here"))
	assert.Equal(t, []string{"react", "node.js", "machine learning"},
		ExtractKeywords("React developer. React hooks. Node.js services, some machine learning."))
}

func TestSecureFilename(t *testing.T) {
	cases := map[string]string{
		"resume.pdf":            "resume.pdf",
		"../../etc/passwd.pdf":  "etc_passwd.pdf",
		"My Résumé (final).pdf": "My_Resume_final.pdf",
		"...":                   "resume.pdf",
	}
	for in, want := range cases {
		assert.Equal(t, want, secureFilename(in), in)
	}
}
