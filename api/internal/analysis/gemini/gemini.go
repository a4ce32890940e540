package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"healthtech/api/internal/analysis"
	"healthtech/api/internal/util"
)

// Engine talks to Gemini through the generative-ai-go SDK. The SDK takes the
// raw bytes and base64-encodes them on the wire.
type Engine struct {
	APIKey string
	Model  string
	Prompt string
	// Opts are appended after the API key, e.g. a custom endpoint.
	Opts []option.ClientOption
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
		Prompt: analysis.Prompt,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Analyze(ctx context.Context, img analysis.Image) (string, error) {
	if e.APIKey == "" {
		return "", analysis.ErrMissingAPIKey
	}
	if img.Size() == 0 {
		return "", analysis.ErrEmptyImage
	}
	opts := append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.Opts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}

	parts := []genai.Part{
		genai.Text(e.Prompt),
		genai.Blob{MIMEType: util.PickMIME(img.MIMEType, img.Data), Data: img.Data},
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	txt := strings.TrimSpace(collectText(resp))
	if txt == "" {
		return "", analysis.ErrEmptyResponse
	}
	return txt, nil
}

// collectText joins every text part of the first candidate that has any.
func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
