package analysis

import (
	"errors"
	"strings"
)

// Prompt is the instruction sent alongside every uploaded image.
const Prompt = "Analyze the uploaded prescription image, summarizing the medications, dosages, and their uses. " +
	"Explain what symptoms or conditions each medication treats, and provide key safety instructions or precautions."

var (
	ErrMissingAPIKey = errors.New("GEMINI_API_KEY is empty")
	ErrEmptyResponse = errors.New("model returned no text")
	ErrEmptyImage    = errors.New("image is empty")
)

// Image is one uploaded file. It lives for a single request and is never stored.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

func (i Image) Size() int { return len(i.Data) }

// CleanText strips markdown emphasis and heading marks the model tends to emit.
func CleanText(s string) string {
	return strings.TrimSpace(strings.NewReplacer("*", " ", "#", " ").Replace(s))
}
