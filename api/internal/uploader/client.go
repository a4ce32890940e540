package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"healthtech/api/internal/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	AnalyzePath = "/api/analyze-prescription"
	formField   = "image"
	failureText = "Failed to analyze prescription"
)

// File is one image picked by the user.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// ReadFile loads path from disk; the media type is sniffed from the bytes.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return File{
		Name:     filepath.Base(path),
		MIMEType: util.SniffMimeHTTP(data),
		Data:     data,
	}, nil
}

type envelope struct {
	Analysis string `json:"analysis"`
	Error    string `json:"error"`
}

// Client posts images to the analyze endpoint of a running server.
type Client struct {
	BaseURL string
	httpc   *http.Client
}

func NewClient(baseURL string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), httpc: httpc}
}

// Analyze uploads f and returns the raw analysis text.
func (c *Client) Analyze(ctx context.Context, f File) (string, error) {
	body, contentType, err := encodeForm(f)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+AnalyzePath, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && env.Error != "" {
			return "", errors.New(env.Error)
		}
		return "", errors.New(failureText)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}
	return env.Analysis, nil
}

func encodeForm(f File) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, formField, f.Name))
	h.Set("Content-Type", util.PickMIME(f.MIMEType, f.Data))
	pw, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := pw.Write(f.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
