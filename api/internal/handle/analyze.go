package handle

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"healthtech/api/internal/analysis"
	"healthtech/api/internal/middleware"
	"healthtech/api/internal/relay"
	"healthtech/api/internal/store"
)

// FormField is the multipart field carrying the image.
const FormField = "image"

// NoImageMessage is the client-facing text for ErrNoImage.
const NoImageMessage = "No image provided"

var ErrNoImage = errors.New("no image provided")

// multipart parts above this size spill to temp files, removed after the response
const maxFormMemory = 8 << 20

// Analyze is the relay endpoint: one multipart image in, {analysis} or {error} out.
func (h *Handle) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, Envelope{Error: "POST only"})
		return
	}
	ctx := r.Context()
	log.Ctx(ctx).Info().Msg("received request to analyze prescription")

	req := relay.Request{
		Source:    store.SourceHTTP,
		RequestID: w.Header().Get(middleware.RequestIDHeader),
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	img, err := h.readImage(r)
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, ErrNoImage):
		h.relay.Reject(ctx, req, err)
		writeJSON(w, http.StatusBadRequest, Envelope{Error: NoImageMessage})
		return
	case err != nil:
		if errors.As(err, &tooLarge) {
			// the rest of the body is never read, so the connection cannot be reused
			w.Header().Set("Connection", "close")
		}
		h.relay.Fail(ctx, req, err)
		writeJSON(w, http.StatusInternalServerError, Envelope{Error: relay.Message(err)})
		return
	}

	req.Image = img
	text, err := h.relay.Analyze(ctx, req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Envelope{Error: relay.Message(err)})
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Analysis: text})
}

// readImage pulls the single image part out of the form. Absent, empty or
// non-multipart submissions are ErrNoImage; anything else is a processing error.
func (h *Handle) readImage(r *http.Request) (analysis.Image, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return analysis.Image{}, ErrNoImage
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return analysis.Image{}, fmt.Errorf("image exceeds %d bytes: %w", tooLarge.Limit, err)
		}
		return analysis.Image{}, fmt.Errorf("read form: %w", err)
	}
	file, header, err := r.FormFile(FormField)
	if errors.Is(err, http.ErrMissingFile) {
		return analysis.Image{}, ErrNoImage
	}
	if err != nil {
		return analysis.Image{}, fmt.Errorf("read form: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return analysis.Image{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return analysis.Image{}, ErrNoImage
	}
	return analysis.Image{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
