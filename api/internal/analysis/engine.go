package analysis

import (
	"context"
	"fmt"
	"strings"
)

// Analyzer sends one image with the fixed prompt to an external model and
// returns its plain-text answer.
type Analyzer interface {
	Name() string
	GetModel() string
	Analyze(ctx context.Context, img Image) (string, error)
}

type Engines struct {
	SDK  Analyzer
	REST Analyzer
}

// Get picks an engine by transport name: "sdk" (default) or "rest".
func (e *Engines) Get(name string) (Analyzer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sdk", "genai":
		if e.SDK != nil {
			return e.SDK, nil
		}
	case "rest", "http":
		if e.REST != nil {
			return e.REST, nil
		}
	default:
		return nil, fmt.Errorf("unknown gemini transport %q; use 'sdk' or 'rest'", name)
	}
	return nil, fmt.Errorf("gemini transport %q is not configured", name)
}
