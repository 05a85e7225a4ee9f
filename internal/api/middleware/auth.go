package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/walletvault/server/internal/utils"
)

type contextKey string

const walletKey contextKey = "wallet"

// Authentication headers carried by every protected request.
const (
	HeaderAddress   = "x-evm-address"
	HeaderMessage   = "x-evm-message"
	HeaderSignature = "x-evm-signature"
)

var errBadSignature = errors.New("malformed signature")

// RecoverAddress recovers the signing address from a personal_sign
// signature over message. The digest is
// keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func RecoverAddress(message, signature string) (string, error) {
	if !strings.HasPrefix(signature, "0x") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != 65 {
		return "", errBadSignature
	}
	// Wallets emit V as 27/28; SigToPub wants 0/1.
	sig = append([]byte(nil), sig...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] != 0 && sig[64] != 1 {
		return "", errBadSignature
	}

	digest := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)))
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// RequireSignature gates a route on a wallet signature over the endpoint's
// fixed message string. Each scope has exactly one expected message; a valid
// signature over any other message is rejected. This is a per-request
// capability check, not a session.
func RequireSignature(expectedMessage string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			address := r.Header.Get(HeaderAddress)
			signature := r.Header.Get(HeaderSignature)
			message := r.Header.Get(HeaderMessage)

			if address == "" || signature == "" || message == "" {
				utils.WriteError(w, http.StatusUnauthorized, "Missing authentication headers")
				return
			}
			if message != expectedMessage {
				utils.WriteError(w, http.StatusUnauthorized, "Invalid signed message")
				return
			}

			recovered, err := RecoverAddress(message, signature)
			if err != nil {
				utils.WriteError(w, http.StatusUnauthorized, "Signature verification failed")
				return
			}
			if !strings.EqualFold(recovered, address) {
				utils.WriteError(w, http.StatusUnauthorized, "Invalid signature")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithWallet(r.Context(), address)))
		})
	}
}

// WithWallet stores the verified wallet address on the context. Handler tests
// use it to bypass signature checks.
func WithWallet(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, walletKey, address)
}

// Wallet returns the verified wallet address for the request, empty when the
// route was not behind RequireSignature.
func Wallet(r *http.Request) string {
	wallet, _ := r.Context().Value(walletKey).(string)
	return wallet
}
