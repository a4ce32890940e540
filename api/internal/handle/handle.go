package handle

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"healthtech/api/internal/relay"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultMaxUpload = 20 << 20

// Envelope is the only response body of the relay endpoint: exactly one of
// Analysis or Error is set.
type Envelope struct {
	Analysis string `json:"analysis,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Handle struct {
	relay     *relay.Relay
	maxUpload int64
}

// New builds the HTTP handlers. maxUpload caps the multipart body; <= 0 means 20 MiB.
func New(r *relay.Relay, maxUpload int64) *Handle {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handle{
		relay:     r,
		maxUpload: maxUpload,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
