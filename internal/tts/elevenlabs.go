// Package tts synthesizes speech from summary text through the ElevenLabs
// API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Speech converts text to an audio stream. Handlers depend on the interface
// so tests can stub synthesis.
type Speech interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
	Probe(ctx context.Context) error
}

const (
	apiBase      = "https://api.elevenlabs.io"
	defaultVoice = "pNInz6obpgDQGcFmaJgB"

	// MaxTextLength is the API's practical input cap; longer text is
	// truncated before synthesis.
	MaxTextLength = 5000

	probeTimeout     = 10 * time.Second
	synthesisTimeout = 60 * time.Second
)

// UpstreamError carries the TTS API status for pass-through (401, 429).
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tts: upstream status %d", e.Status)
}

// ElevenLabs is the production Speech implementation.
type ElevenLabs struct {
	apiKey string
	voice  string
	base   string
	http   *http.Client
}

// New builds a client for the given API key and the default voice.
func New(apiKey string) (*ElevenLabs, error) {
	if len(apiKey) < 10 {
		return nil, errors.New("tts: ELEVENLABS_API_KEY missing or malformed")
	}
	return &ElevenLabs{
		apiKey: apiKey,
		voice:  defaultVoice,
		base:   apiBase,
		http:   &http.Client{},
	}, nil
}

// Probe checks the API key against the user endpoint before an expensive
// synthesis call.
func (e *ElevenLabs) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.base+"/v1/user", nil)
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("tts: probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Status: resp.StatusCode}
	}
	return nil
}

// Truncate caps text at the synthesis input limit.
func Truncate(text string) string {
	if len(text) > MaxTextLength {
		return text[:MaxTextLength] + "..."
	}
	return text
}

// Synthesize streams MP3 audio for the text. The caller owns the returned
// reader.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	body, err := json.Marshal(map[string]any{
		"text": Truncate(text),
		"voice_settings": map[string]any{
			"stability":         0.5,
			"similarity_boost":  0.7,
			"style":             0.2,
			"use_speaker_boost": true,
		},
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v1/text-to-speech/%s", e.base, e.voice), bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("tts: synthesize: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, &UpstreamError{Status: resp.StatusCode}
	}
	return &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}
