package uploader

import (
	"context"
	"errors"
	"sync"

	"healthtech/api/internal/analysis"
)

const NoFileMessage = "No image selected. Please upload an image first."

var (
	ErrNoFile   = errors.New(NoFileMessage)
	ErrInFlight = errors.New("analysis already in progress")
)

// State is a snapshot of the widget.
type State struct {
	File     *File
	InFlight bool
	Result   string
	Error    string
}

// Display is the result as shown to the user.
func (s State) Display() string {
	return analysis.CleanText(s.Result)
}

type analyzeClient interface {
	Analyze(ctx context.Context, f File) (string, error)
}

// Widget holds one selected file and at most one request in flight.
type Widget struct {
	client analyzeClient

	mu    sync.Mutex
	state State
}

func NewWidget(c analyzeClient) *Widget {
	return &Widget{client: c}
}

// Drop selects the first of files and clears the previous result and error.
func (w *Widget) Drop(files ...File) {
	if len(files) == 0 {
		return
	}
	f := files[0]
	w.mu.Lock()
	w.state.File = &f
	w.state.Result = ""
	w.state.Error = ""
	w.mu.Unlock()
}

// Submit sends the selected file. The outcome is stored in the state and
// also returned.
func (w *Widget) Submit(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.state.File == nil {
		w.state.Error = NoFileMessage
		w.mu.Unlock()
		return "", ErrNoFile
	}
	if w.state.InFlight {
		w.mu.Unlock()
		return "", ErrInFlight
	}
	f := *w.state.File
	w.state.InFlight = true
	w.state.Error = ""
	w.mu.Unlock()

	text, err := w.client.Analyze(ctx, f)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.InFlight = false
	if err != nil {
		w.state.Error = "An error occurred: " + err.Error()
		return "", err
	}
	w.state.Result = text
	return text, nil
}

func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state
	if s.File != nil {
		f := *s.File
		s.File = &f
	}
	return s
}
