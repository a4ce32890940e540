package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"healthtech/api/internal/analysis"
	"healthtech/api/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// RESTEngine calls :generateContent directly with the image as base64
// inline_data. No client timeout: a hung upstream hangs the request.
type RESTEngine struct {
	APIKey  string
	Model   string
	BaseURL string
	Prompt  string
	httpc   *http.Client
}

func NewREST(apiKey, model, baseURL string, httpc *http.Client) *RESTEngine {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &RESTEngine{
		APIKey:  strings.TrimSpace(apiKey),
		Model:   strings.TrimSpace(model),
		BaseURL: strings.TrimRight(baseURL, "/"),
		Prompt:  analysis.Prompt,
		httpc:   httpc,
	}
}

func (e *RESTEngine) Name() string     { return "gemini-rest" }
func (e *RESTEngine) GetModel() string { return e.Model }

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// buildRequest pairs the fixed prompt with the base64 image and its media type.
func (e *RESTEngine) buildRequest(img analysis.Image) generateRequest {
	return generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: e.Prompt},
				{InlineData: &inlineData{
					MimeType: util.PickMIME(img.MIMEType, img.Data),
					Data:     util.EncodeBase64(img.Data),
				}},
			},
		}},
	}
}

func (e *RESTEngine) Analyze(ctx context.Context, img analysis.Image) (string, error) {
	if e.APIKey == "" {
		return "", analysis.ErrMissingAPIKey
	}
	if img.Size() == 0 {
		return "", analysis.ErrEmptyImage
	}
	payload, err := json.Marshal(e.buildRequest(img))
	if err != nil {
		return "", fmt.Errorf("gemini: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		e.BaseURL, url.PathEscape(e.Model), url.QueryEscape(e.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", redactKey(err, e.APIKey)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}
	var out generateResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("gemini %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("gemini %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("gemini: decode response: %w", decodeErr)
	}

	for _, c := range out.Candidates {
		var b strings.Builder
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
		if txt := strings.TrimSpace(b.String()); txt != "" {
			return txt, nil
		}
	}
	return "", analysis.ErrEmptyResponse
}

// redactKey keeps the API key out of *url.Error messages that end up in
// client-facing envelopes.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	msg := strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED")
	msg = strings.ReplaceAll(msg, key, "REDACTED")
	if msg == err.Error() {
		return err
	}
	return errors.New(msg)
}
