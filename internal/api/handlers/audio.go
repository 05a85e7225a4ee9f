package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/walletvault/server/internal/api/middleware"
	"github.com/walletvault/server/internal/audio"
	"github.com/walletvault/server/internal/utils"
)

type generateAudioRequest struct {
	Text     string `json:"text"`
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
	Lang     string `json:"lang"`
}

// GenerateAudio godoc
// @Summary Synthesize an audio summary for a file
// @Description Converts summary text to speech and stores the MP3 in the audio bucket. Rate limited per wallet.
// @Tags Audio
// @Accept json
// @Produce json
// @Param request body generateAudioRequest true "Text and file id"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorBody
// @Failure 429 {object} utils.ErrorBody
// @Router /audio/GenerateAudio [post]
func (h *Handlers) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)

	var req generateAudioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		utils.WriteErrorDetails(w, http.StatusBadRequest,
			"Missing or invalid 'text' field", "Text must be a non-empty string")
		return
	}
	if len(wallet) != 42 {
		utils.WriteErrorDetails(w, http.StatusBadRequest,
			"Invalid wallet address", "x-evm-address header must be a valid 42-character wallet address")
		return
	}
	if !utils.ValidFileID(req.FileID) {
		utils.WriteErrorDetails(w, http.StatusBadRequest,
			"Invalid fileId", "fileId is required and must be in the format file_XXXXXXXXXXXXX")
		return
	}

	// Cheap key probe before paying for synthesis.
	if err := h.Speech.Probe(r.Context()); err != nil {
		writeUpstreamError(w, "TTS service unavailable", err)
		return
	}

	file, err := h.Store.VerifyOwnership(r.Context(), req.FileID, wallet)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if file == nil {
		utils.WriteError(w, http.StatusNotFound, "File not found or unauthorized")
		return
	}

	stream, err := h.Speech.Synthesize(r.Context(), req.Text)
	if err != nil {
		writeUpstreamError(w, "Audio generation failed", err)
		return
	}
	defer stream.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(stream, audio.MaxAudioSize+1))
	if err != nil {
		writeUpstreamError(w, "Failed to receive audio data", err)
		return
	}
	if n > audio.MaxAudioSize {
		utils.WriteError(w, http.StatusRequestEntityTooLarge, "Audio file too large")
		return
	}
	if n == 0 {
		utils.WriteError(w, http.StatusInternalServerError, "Generated audio file is empty")
		return
	}

	name := audio.ObjectName(wallet, req.FileID, file.Filename, h.now())
	if err := h.Audio.Put(r.Context(), name, &buf, "audio/mpeg"); err != nil {
		utils.WriteErrorDetails(w, http.StatusInternalServerError, "Failed to save audio file", err.Error())
		return
	}

	log.Printf("Audio saved: %s (%d bytes)", name, n)
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"url":          "/audio/serve/" + name,
		"filename":     name,
		"originalFile": file.Filename,
		"fileId":       req.FileID,
		"size":         n,
	})
}

// verifyAudioAccess checks the extension, recovers the embedded file id, and
// confirms the wallet still owns the underlying file. Returns the original
// filename for download naming.
func (h *Handlers) verifyAudioAccess(w http.ResponseWriter, r *http.Request, filename string) (string, bool) {
	wallet := middleware.Wallet(r)

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if audio.ContentTypes[ext] == "" {
		utils.WriteError(w, http.StatusBadRequest, "Invalid audio file type")
		return "", false
	}

	fileID, err := audio.FileIDFromName(filename)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Could not extract file id from filename")
		return "", false
	}

	file, err := h.Store.VerifyOwnership(r.Context(), fileID, wallet)
	if err != nil {
		writeStoreError(w, err)
		return "", false
	}
	if file == nil {
		utils.WriteErrorDetails(w, http.StatusForbidden, "Access denied", "file not found or unauthorized")
		return "", false
	}
	return file.Filename, true
}

// ServeAudio streams a generated audio object inline to its owner.
func (h *Handlers) ServeAudio(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if filename == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing wallet address or filename")
		return
	}

	original, ok := h.verifyAudioAccess(w, r, filename)
	if !ok {
		return
	}

	obj, err := h.Audio.Get(r.Context(), filename)
	if err != nil {
		if err == audio.ErrNotFound {
			utils.WriteError(w, http.StatusNotFound, "Audio file not found")
			return
		}
		utils.WriteErrorDetails(w, http.StatusInternalServerError, "Failed to serve audio", err.Error())
		return
	}
	defer obj.Body.Close()

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	w.Header().Set("Content-Type", audio.ContentTypes[ext])
	if obj.ContentLength > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", obj.ContentLength))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", original+"_audio."+ext))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if obj.ETag != "" {
		w.Header().Set("ETag", obj.ETag)
	}

	if _, err := io.Copy(w, obj.Body); err != nil {
		log.Printf("Audio stream error: %v", err)
	}
}

// DownloadAudio streams a generated audio object as an attachment.
func (h *Handlers) DownloadAudio(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if filename == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing wallet address or filename")
		return
	}

	original, ok := h.verifyAudioAccess(w, r, filename)
	if !ok {
		return
	}

	obj, err := h.Audio.Get(r.Context(), filename)
	if err != nil {
		if err == audio.ErrNotFound {
			utils.WriteError(w, http.StatusNotFound, "Audio file not found")
			return
		}
		utils.WriteErrorDetails(w, http.StatusInternalServerError, "Download failed", err.Error())
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	if obj.ContentLength > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", obj.ContentLength))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", original+"_audio_summary.mp3"))

	if _, err := io.Copy(w, obj.Body); err != nil {
		log.Printf("Download stream error: %v", err)
	}
}

// MyAudioFiles lists the wallet's active records that are audio files.
func (h *Handlers) MyAudioFiles(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)

	files := h.Store.ReadOrEmpty(r.Context(), wallet)
	out := make([]any, 0)
	for i := range files {
		f := &files[i]
		if !f.Active() || !f.OwnedBy(wallet) {
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(path.Ext(f.Filename)), ".")
		if audio.ContentTypes[ext] == "" {
			continue
		}
		out = append(out, f.Sanitize())
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{"files": out, "count": len(out)})
}

// AudioDebugInfo reports audio bucket and registry diagnostics.
func (h *Handlers) AudioDebugInfo(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)

	files := h.Store.ReadOrEmpty(r.Context(), wallet)

	keys, err := h.Audio.List(r.Context(), strings.ToLower(wallet))
	if err != nil {
		keys = []string{}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"wallet":         wallet,
		"metadataExists": len(files) > 0,
		"totalFiles":     len(files),
		"audioFiles":     keys,
		"hasTTSKey":      h.Speech != nil,
	})
}
