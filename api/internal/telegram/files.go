package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"

	"healthtech/api/internal/analysis"
)

// fetch downloads a chat file into an Image. Photos carry no filename, so the
// last segment of the download path is used.
func (r *Router) fetch(ctx context.Context, fileID, name, mimeType string) (analysis.Image, error) {
	link, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return analysis.Image{}, fmt.Errorf("get file: %w", redactToken(err))
	}
	data, err := r.download(ctx, link)
	if err != nil {
		return analysis.Image{}, fmt.Errorf("download file: %w", redactToken(err))
	}
	if name == "" {
		if u, perr := url.Parse(link); perr == nil {
			name = path.Base(u.Path)
		}
	}
	return analysis.Image{Name: name, MIMEType: mimeType, Data: data}, nil
}

func (r *Router) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

// Bot API URLs carry the token as /bot<token>/ or /file/bot<token>/.
var reBotToken = regexp.MustCompile(`bot\d+(?::|%3A)[A-Za-z0-9_-]+`)

// redactToken scrubs the bot token from err, which ends up in chat replies
// and audit rows.
func redactToken(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !reBotToken.MatchString(msg) {
		return err
	}
	return errors.New(reBotToken.ReplaceAllString(msg, "bot<redacted>"))
}
