// Package handlers implements the HTTP surface of the vault: file lifecycle,
// analysis, secure streaming, and audio summaries.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/walletvault/server/internal/analyzer"
	"github.com/walletvault/server/internal/audio"
	"github.com/walletvault/server/internal/cidcipher"
	"github.com/walletvault/server/internal/metadata"
	"github.com/walletvault/server/internal/pinning"
	"github.com/walletvault/server/internal/tokens"
	"github.com/walletvault/server/internal/tts"
	"github.com/walletvault/server/internal/utils"
)

// Pinner is the slice of the pinning client handlers use directly; registry
// traffic goes through metadata.Store instead.
type Pinner interface {
	PinFile(ctx context.Context, name string, content io.Reader, keyvalues map[string]string) (string, error)
	PinJSON(ctx context.Context, name string, payload any, keyvalues map[string]string) (string, error)
	Fetch(ctx context.Context, cid string, maxBytes int64) (*http.Response, error)
}

// AudioStore is the slice of the audio bucket handlers need.
type AudioStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) (*audio.Object, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Handlers carries every dependency a route needs. Wiring lives in
// cmd/server; tests inject stubs.
type Handlers struct {
	Store      *metadata.Store
	Tokens     *tokens.Table
	Cipher     *cidcipher.Cipher
	Pinner     Pinner
	Summarizer analyzer.Summarizer
	Speech     tts.Speech
	Audio      AudioStore
	Gateway    string // gateway base for download URLs

	now func() time.Time
}

// New assembles the handler set.
func New(store *metadata.Store, table *tokens.Table, cipher *cidcipher.Cipher, pinner Pinner, summarizer analyzer.Summarizer, speech tts.Speech, audioStore AudioStore, gateway string) *Handlers {
	return &Handlers{
		Store:      store,
		Tokens:     table,
		Cipher:     cipher,
		Pinner:     pinner,
		Summarizer: summarizer,
		Speech:     speech,
		Audio:      audioStore,
		Gateway:    gateway,
		now:        time.Now,
	}
}

// writeStoreError maps a registry read failure onto the upstream error
// class, distinct from a plain not-found.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, metadata.ErrStoreUnavailable) {
		utils.WriteErrorDetails(w, http.StatusBadGateway, "Metadata store unreachable", err.Error())
		return
	}
	utils.WriteErrorDetails(w, http.StatusInternalServerError, "Metadata read failed", err.Error())
}

// writeUpstreamError passes informative upstream statuses (429, 401)
// through to the client; everything else becomes a 502.
func writeUpstreamError(w http.ResponseWriter, msg string, err error) {
	var pe *pinning.UpstreamError
	if errors.As(err, &pe) {
		switch pe.Status {
		case http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusNotFound:
			utils.WriteErrorDetails(w, pe.Status, msg, err.Error())
			return
		}
	}
	var te *tts.UpstreamError
	if errors.As(err, &te) {
		switch te.Status {
		case http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusBadRequest:
			utils.WriteErrorDetails(w, te.Status, msg, err.Error())
			return
		}
	}
	utils.WriteErrorDetails(w, http.StatusBadGateway, msg, err.Error())
}
