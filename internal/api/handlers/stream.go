package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/walletvault/server/internal/api/middleware"
	"github.com/walletvault/server/internal/tokens"
	"github.com/walletvault/server/internal/utils"
)

// SecureFile godoc
// @Summary Issue a short-lived access token for a file
// @Description Verifies ownership, then returns a bearer token valid for five minutes of streaming.
// @Tags Streaming
// @Produce json
// @Param fileId path string true "File id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorBody
// @Router /secure-file/{fileId} [get]
func (h *Handlers) SecureFile(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)
	fileID := r.PathValue("fileId")

	if fileID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	file, err := h.Store.VerifyOwnership(r.Context(), fileID, wallet)
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

	// The CID stays encrypted in the token; decryption happens at stream time.
	key, tok, err := h.Tokens.Issue(fileID, wallet, file.IPFSCid, file.Filename, file.Size)
	if err != nil {
		if errors.Is(err, tokens.ErrTableFull) {
			utils.WriteError(w, http.StatusServiceUnavailable, "Too many outstanding access tokens")
			return
		}
		utils.WriteErrorDetails(w, http.StatusInternalServerError, "Failed to generate secure access", err.Error())
		return
	}

	log.Printf("Generated secure access token for file: %s by %s", fileID, wallet)
	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"accessToken": key,
		"expires":     tok.Expires.UnixMilli(),
		"filename":    tok.Filename,
		"size":        tok.Size,
	})
}

// StreamFile redeems an access token under a second, independently signed
// request. Validation order: token exists, not expired, bound wallet matches
// this request's verified signer, ownership still holds, then decrypt and
// stream.
func (h *Handlers) StreamFile(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r)
	key := r.PathValue("accessToken")

	if key == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing access token")
		return
	}

	tok, err := h.Tokens.Lookup(key)
	if err != nil {
		if errors.Is(err, tokens.ErrExpired) {
			utils.WriteError(w, http.StatusUnauthorized, "Access token expired")
			return
		}
		utils.WriteError(w, http.StatusUnauthorized, "Invalid or expired access token")
		return
	}

	if !strings.EqualFold(wallet, tok.OwnerWallet) {
		log.Printf("Security violation: wallet %s tried to use token owned by %s", wallet, tok.OwnerWallet)
		utils.WriteError(w, http.StatusForbidden, "Token belongs to different wallet address")
		return
	}

	// Re-check against current metadata: the file may have been deleted
	// between issuance and redemption.
	file, err := h.Store.VerifyOwnership(r.Context(), tok.FileID, wallet)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if file == nil {
		log.Printf("Security violation: file ownership changed for %s", tok.FileID)
		h.Tokens.Delete(key)
		utils.WriteError(w, http.StatusForbidden, "File ownership verification failed")
		return
	}

	h.streamToken(w, r, tok)
	log.Printf("File streamed via secure token: %s for %s", tok.Filename, wallet)

	// Tokens survive a successful stream so range requests inside the
	// five-minute window can reuse them.
}

// StreamFileSimple is the low-security variant for simpler clients: no
// second signature, only table membership and expiry are checked.
func (h *Handlers) StreamFileSimple(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("accessToken")

	tok, err := h.Tokens.Lookup(key)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid or expired access token")
		return
	}

	h.streamToken(w, r, tok)
}

func (h *Handlers) streamToken(w http.ResponseWriter, r *http.Request, tok tokens.Token) {
	cid, err := h.Cipher.Decrypt(tok.EncryptedCid)
	if err != nil {
		log.Printf("Failed to decrypt CID for token: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to decrypt file reference")
		return
	}

	resp, err := h.Pinner.Fetch(r.Context(), cid, 0)
	if err != nil {
		writeUpstreamError(w, "Failed to stream file", err)
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", tok.Filename))
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("Stream interrupted for %s: %v", tok.Filename, err)
	}
}
