package handlers

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/walletvault/server/internal/api/middleware"
	"github.com/walletvault/server/internal/models"
	"github.com/walletvault/server/internal/utils"
)

// errNotFound aborts a registry mutation without writing.
var errNotFound = errors.New("file not found or unauthorized")

type uploadRequest struct {
	Filename string `json:"filename"`
	Base64   string `json:"base64"`
	Size     int64  `json:"size"`
	Project  string `json:"project"`
}

// Upload godoc
// @Summary Upload a file to the vault
// @Description Pins the file bytes, encrypts the resulting CID, and appends a record to the wallet's registry.
// @Tags Files
// @Accept json
// @Produce json
// @Param request body uploadRequest true "File payload (base64)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorBody
// @Router /Upload [post]
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(wallet) != 42 || req.Filename == "" || req.Base64 == "" || req.Size == 0 {
		utils.WriteError(w, http.StatusBadRequest, "Invalid input - missing required fields")
		return
	}

	buf, err := base64.StdEncoding.DecodeString(req.Base64)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid base64 payload")
		return
	}

	filename := utils.SanitizeFilename(req.Filename)
	sum := sha256.Sum256(buf)
	now := h.now()

	log.Printf("Uploading file: %s for wallet: %s", filename, wallet)

	cid, err := h.Pinner.PinFile(r.Context(), filename, bytes.NewReader(buf), nil)
	if err != nil {
		writeUpstreamError(w, "Upload failed", err)
		return
	}

	encryptedCid, err := h.Cipher.Encrypt(cid)
	if err != nil {
		utils.WriteErrorDetails(w, http.StatusInternalServerError, "Failed to encrypt file reference", err.Error())
		return
	}

	project := req.Project
	if project == "" {
		project = "default"
	}
	record := models.FileRecord{
		ID:        utils.NewFileID(now),
		Filename:  filename,
		Size:      req.Size,
		Owner:     wallet, // keep original case from request
		Hash:      hex.EncodeToString(sum[:]),
		Project:   project,
		CreatedAt: models.Timestamp(now),
		IPFSCid:   encryptedCid,
	}

	err = h.Store.Update(r.Context(), wallet, func(files []models.FileRecord) ([]models.FileRecord, error) {
		return append(files, record), nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	log.Printf("File uploaded: %s for %s", record.ID, wallet)

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "uploaded",
		"file":   record.Sanitize(),
	})
}

type listRequest struct {
	Project string `json:"project"`
}

// List godoc
// @Summary List the wallet's active files
// @Tags Files
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /List [post]
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)

	var req listRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	// Fail-open: index or gateway trouble degrades to an empty listing.
	allFiles := h.Store.ReadOrEmpty(r.Context(), wallet)

	sanitized := make([]models.SanitizedFile, 0, len(allFiles))
	for i := range allFiles {
		f := &allFiles[i]
		if !f.OwnedBy(wallet) || !f.Active() {
			continue
		}
		if req.Project != "" && f.Project != req.Project {
			continue
		}
		sanitized = append(sanitized, f.Sanitize())
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"files":      sanitized,
		"count":      len(sanitized),
		"totalFiles": len(allFiles),
		"timestamp":  models.Timestamp(h.now()),
	})
}

func (h *Handlers) ListDeleted(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)

	allFiles := h.Store.ReadOrEmpty(r.Context(), wallet)

	sanitized := make([]models.SanitizedFile, 0)
	for i := range allFiles {
		f := &allFiles[i]
		if f.OwnedBy(wallet) && f.IsDeleted {
			sanitized = append(sanitized, f.Sanitize())
		}
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"files":     sanitized,
		"count":     len(sanitized),
		"timestamp": models.Timestamp(h.now()),
	})
}

type idRequest struct {
	ID string `json:"id"`
}

// Delete marks a file deleted without removing the pinned bytes. Deleting an
// already-deleted file succeeds and leaves deleted_at untouched.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)

	var req idRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing file ID")
		return
	}

	var filename string
	err := h.Store.Update(r.Context(), wallet, func(files []models.FileRecord) ([]models.FileRecord, error) {
		for i := range files {
			if files[i].ID == req.ID && files[i].OwnedBy(wallet) {
				filename = files[i].Filename
				if !files[i].IsDeleted {
					deletedAt := models.Timestamp(h.now())
					files[i].IsDeleted = true
					files[i].DeletedAt = &deletedAt
				}
				return files, nil
			}
		}
		return nil, errNotFound
	})
	if errors.Is(err, errNotFound) {
		utils.WriteError(w, http.StatusNotFound, "File not found or unauthorized")
		return
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}

	log.Printf("File deleted: %s by %s", req.ID, wallet)
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "deleted",
		"id":       req.ID,
		"filename": filename,
	})
}

var errAlreadyActive = errors.New("file is already active")

// Restore brings a soft-deleted file back. It scans the full registry
// (deleted records included, unlike the live-only ownership check) and, after
// writing, polls the read path until the restored state is visible.
func (h *Handlers) Restore(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)

	var req idRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing file ID")
		return
	}
	if len(wallet) != 42 {
		utils.WriteError(w, http.StatusBadRequest, "Missing or invalid wallet address")
		return
	}

	err := h.Store.Update(r.Context(), wallet, func(files []models.FileRecord) ([]models.FileRecord, error) {
		for i := range files {
			if files[i].ID != req.ID || !files[i].OwnedBy(wallet) {
				continue
			}
			if !files[i].IsDeleted {
				return nil, errAlreadyActive
			}
			restoredAt := models.Timestamp(h.now())
			files[i].IsDeleted = false
			files[i].DeletedAt = nil
			files[i].RestoredAt = &restoredAt
			return files, nil
		}
		return nil, errNotFound
	})
	switch {
	case errors.Is(err, errNotFound):
		utils.WriteError(w, http.StatusNotFound, "File not found or unauthorized")
		return
	case errors.Is(err, errAlreadyActive):
		utils.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "File is already active",
			"status": "already_active",
		})
		return
	case err != nil:
		writeStoreError(w, err)
		return
	}

	// The read path lags writes; confirm visibility before reporting success.
	restored, err := h.Store.WaitForActive(r.Context(), wallet, req.ID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  "File restore could not be verified",
			"status": "verification_failed",
		})
		return
	}

	log.Printf("File restored: %s (%s)", restored.Filename, restored.ID)
	utils.WriteJSON(w, http.StatusOK, map[string]any{"restored": restored.Sanitize()})
}

type purgeRequest struct {
	ID string `json:"id"`
}

// EmptyRecycleBin permanently removes one record by id, or every deleted
// record the wallet owns when no id is given.
func (h *Handlers) EmptyRecycleBin(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)

	var req purgeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	var deletedIDs []string
	var remaining int
	err := h.Store.Update(r.Context(), wallet, func(files []models.FileRecord) ([]models.FileRecord, error) {
		updated := files[:0:0]
		if req.ID != "" {
			found := false
			for _, f := range files {
				if f.ID == req.ID && f.OwnedBy(wallet) {
					found = true
					deletedIDs = append(deletedIDs, f.ID)
					continue
				}
				updated = append(updated, f)
			}
			if !found {
				return nil, errNotFound
			}
		} else {
			for _, f := range files {
				if f.IsDeleted && f.OwnedBy(wallet) {
					deletedIDs = append(deletedIDs, f.ID)
					continue
				}
				updated = append(updated, f)
			}
		}
		remaining = len(updated)
		return updated, nil
	})
	if errors.Is(err, errNotFound) {
		utils.WriteError(w, http.StatusNotFound, "File not found or unauthorized")
		return
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if deletedIDs == nil {
		deletedIDs = []string{}
	}
	log.Printf("Recycle bin cleared for %s: removed %d files", wallet, len(deletedIDs))
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "recycle_bin_cleared",
		"deletedCount":   len(deletedIDs),
		"remainingFiles": remaining,
		"deletedIds":     deletedIDs,
	})
}

type fileIDRequest struct {
	FileID string `json:"fileId"`
}

// Download resolves a gateway URL for a file the wallet owns.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
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
	if file.IPFSCid == "" {
		utils.WriteError(w, http.StatusBadRequest, "No IPFS CID available for this file")
		return
	}

	cid, err := h.Cipher.Decrypt(file.IPFSCid)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to decrypt file reference")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"downloadUrl": fmt.Sprintf("%s/ipfs/%s", strings.TrimRight(h.Gateway, "/"), cid),
		"filename":    file.Filename,
		"size":        file.Size,
		"created_at":  file.CreatedAt,
	})
}

// Debug echoes wallet diagnostics.
func (h *Handlers) Debug(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"wallet":     wallet,
		"safeWallet": strings.ToLower(wallet),
	})
}
