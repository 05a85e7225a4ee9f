package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/walletvault/server/internal/analyzer"
	"github.com/walletvault/server/internal/api/middleware"
	"github.com/walletvault/server/internal/models"
	"github.com/walletvault/server/internal/utils"
)

// maxAnalyzeBytes bounds how much file content is pulled for analysis.
const maxAnalyzeBytes = 10 << 20 // 10 MB

// Analyze godoc
// @Summary Summarize a file's content
// @Description Returns the cached summary when one exists; otherwise fetches the content, summarizes it, and persists the result on the record.
// @Tags Files
// @Accept json
// @Produce json
// @Param request body fileIDRequest true "File id"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorBody
// @Failure 404 {object} utils.ErrorBody
// @Router /Analyze [post]
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)

	var req fileIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing required parameters")
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

	// Once written, the cached analysis is returned forever; it is only
	// recomputed if the record is deleted and re-created.
	if file.Analysis != "" {
		utils.WriteJSON(w, http.StatusOK, map[string]any{"summary": file.Analysis, "cached": true})
		return
	}

	if file.IPFSCid == "" {
		utils.WriteError(w, http.StatusBadRequest, "No IPFS CID available for this file")
		return
	}

	ext := analyzer.Extension(file.Filename)
	if !analyzer.SupportedExtension(ext) {
		utils.WriteError(w, http.StatusBadRequest,
			fmt.Sprintf("File type .%s is not supported for analysis", ext))
		return
	}

	cid, err := h.Cipher.Decrypt(file.IPFSCid)
	if err != nil {
		log.Printf("Failed to decrypt CID for file %s: %v", req.FileID, err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to decrypt file reference")
		return
	}

	resp, err := h.Pinner.Fetch(r.Context(), cid, maxAnalyzeBytes)
	if err != nil {
		writeUpstreamError(w, "Failed to download file for analysis", err)
		return
	}
	content, err := io.ReadAll(io.LimitReader(resp.Body, maxAnalyzeBytes))
	resp.Body.Close()
	if err != nil {
		writeUpstreamError(w, "Failed to download file for analysis", err)
		return
	}

	summary, err := h.Summarizer.Summarize(r.Context(), analyzer.BuildPrompt(file.Filename, string(content)))
	if err != nil {
		writeUpstreamError(w, "Failed to analyze file", err)
		return
	}
	summary = analyzer.CleanSummary(summary)

	err = h.Store.Update(r.Context(), wallet, func(files []models.FileRecord) ([]models.FileRecord, error) {
		for i := range files {
			if files[i].ID == req.FileID {
				files[i].Analysis = summary
			}
		}
		return files, nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	log.Printf("Analysis completed and saved for %s", req.FileID)
	utils.WriteJSON(w, http.StatusOK, map[string]any{"summary": summary, "cached": false})
}

type exportSummaryRequest struct {
	FileID  string `json:"fileId"`
	Summary string `json:"summary"`
}

// ExportSummary pins a summary as its own JSON document and returns its CID.
func (h *Handlers) ExportSummary(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)

	var req exportSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID == "" || req.Summary == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing fileId, summary, or wallet address")
		return
	}

	cid, err := h.Pinner.PinJSON(r.Context(),
		fmt.Sprintf("summary_%s_%s", req.FileID, strings.ToLower(wallet)),
		map[string]any{
			"summary":    req.Summary,
			"fileId":     req.FileID,
			"owner":      wallet,
			"exportedAt": models.Timestamp(h.now()),
		},
		map[string]string{
			"fileId": req.FileID,
			"owner":  strings.ToLower(wallet),
			"type":   "summary",
		},
	)
	if err != nil {
		writeUpstreamError(w, "Failed to export summary", err)
		return
	}

	log.Printf("Summary exported: %s", cid)
	utils.WriteJSON(w, http.StatusOK, map[string]any{"status": "exported", "cid": cid})
}
