package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/cognivue/cognivue-backend/internal/platform/logger"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	// Vertex routes through Vertex AI instead of the Gemini API; Project and
	// Location are then required and APIKey is ignored.
	Vertex   bool   `yaml:"vertex"`
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
}

// Attachment is inline binary content sent next to the prompt.
type Attachment struct {
	MIMEType string
	Data     []byte
}

type Request struct {
	Prompt      string
	Attachments []Attachment
}

// Endpoint is a single model call with no retry or parsing.
type Endpoint interface {
	Call(ctx context.Context, model string, req Request) (string, error)
}

type genaiEndpoint struct {
	client *genai.Client
	log    *logger.Logger
}

func NewEndpoint(ctx context.Context, cfg Config, log *logger.Logger) (Endpoint, error) {
	cc := &genai.ClientConfig{}
	if cfg.Vertex {
		if strings.TrimSpace(cfg.Project) == "" || strings.TrimSpace(cfg.Location) == "" {
			return nil, fmt.Errorf("gemini vertex backend needs project and location")
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	} else {
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("missing GEMINI_API_KEY")
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &genaiEndpoint{client: client, log: log.With("client", "GeminiEndpoint")}, nil
}

func (e *genaiEndpoint) Call(ctx context.Context, model string, req Request) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Attachments)+1)
	for _, a := range req.Attachments {
		parts = append(parts, genai.NewPartFromBytes(a.Data, a.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	res, err := e.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}
