package middleware

import (
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signMessage(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	digest := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)))
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	sig[64] += 27 // wallet-style V
	return hexutil.Encode(sig)
}

func signedRequest(t *testing.T, key *ecdsa.PrivateKey, address, message string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/List", nil)
	r.Header.Set(HeaderAddress, address)
	r.Header.Set(HeaderMessage, message)
	r.Header.Set(HeaderSignature, signMessage(t, key, message))
	return r
}

func runGate(scope string, r *http.Request) (*httptest.ResponseRecorder, string) {
	var seenWallet string
	handler := RequireSignature(scope)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenWallet = Wallet(r)
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	return rec, seenWallet
}

func TestValidSignaturePasses(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	rec, wallet := runGate("list", signedRequest(t, key, address, "list"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, address, wallet, "verified address available to the handler")
}

func TestClaimedAddressCaseInsensitive(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	r := signedRequest(t, key, address, "list")
	r.Header.Set(HeaderAddress, "0x"+toUpperHex(address[2:]))
	rec, _ := runGate("list", r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingHeadersRejected(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	for _, header := range []string{HeaderAddress, HeaderMessage, HeaderSignature} {
		r := signedRequest(t, key, address, "list")
		r.Header.Del(header)
		rec, _ := runGate("list", r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing %s", header)
	}
}

func TestWrongMessageRejected(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	// valid signature, but over a message that is not this endpoint's scope
	rec, _ := runGate("delete", signedRequest(t, key, address, "list"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddressMismatchRejected(t *testing.T) {
	signerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherAddress := crypto.PubkeyToAddress(otherKey.PublicKey).Hex()

	// signature is valid, just not for the claimed address
	rec, _ := runGate("list", signedRequest(t, signerKey, otherAddress, "list"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGarbageSignatureRejected(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	r := signedRequest(t, key, address, "list")
	r.Header.Set(HeaderSignature, "0xnothex")
	rec, _ := runGate("list", r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	r = signedRequest(t, key, address, "list")
	r.Header.Set(HeaderSignature, "0x0011")
	rec, _ = runGate("list", r)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReplayOfCorrectScopeAccepted(t *testing.T) {
	// No nonce in the scheme: a signature over the correct scope message
	// stays valid. Documented property of the fixed-message design.
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	sig := signMessage(t, key, "list")

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/List", nil)
		r.Header.Set(HeaderAddress, address)
		r.Header.Set(HeaderMessage, "list")
		r.Header.Set(HeaderSignature, sig)
		rec, _ := runGate("list", r)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func toUpperHex(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'f' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
