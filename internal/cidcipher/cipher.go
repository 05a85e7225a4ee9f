// Package cidcipher encrypts pinning-service content identifiers before they
// are persisted in per-wallet metadata. Metadata documents are world-readable
// once their own CID leaks, so the file CIDs inside them are AES-256-GCM
// sealed with a process-wide key and only decrypted transiently server-side.
package cidcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeyHexLen is the required length of the hex-encoded key (32 bytes).
	KeyHexLen = 64

	nonceSize = 12
	tagSize   = 16
)

// Blob layout is nonceHex:tagHex:ciphertextHex. The colon-delimited hex
// format matches documents pinned by earlier deployments and must not change.
var (
	ErrInvalidKey        = errors.New("cidcipher: key must be 64 hex characters (32 bytes)")
	ErrInvalidCiphertext = errors.New("cidcipher: invalid ciphertext blob")
)

// additional authenticated data binds ciphertexts to their purpose.
var aad = []byte("cid")

// Cipher seals and opens CID strings with a fixed symmetric key.
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a hex-encoded 32-byte key. A missing or malformed
// key is a fatal configuration error for the process; callers must not start
// serving without a working cipher.
func New(keyHex string) (*Cipher, error) {
	if len(keyHex) != KeyHexLen {
		return nil, ErrInvalidKey
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals a plaintext CID under a fresh random nonce. Output differs on
// every call for the same input.
func (c *Cipher) Encrypt(cid string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cidcipher: nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(cid), aad)
	// Seal appends the tag to the ciphertext; the blob format keeps them in
	// separate segments.
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ct),
	), nil
}

// Decrypt opens a blob produced by Encrypt. Any tampering with the nonce, tag
// or ciphertext fails the integrity check; wrong data is never returned.
func (c *Cipher) Decrypt(blob string) (string, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		return "", ErrInvalidCiphertext
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return "", ErrInvalidCiphertext
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", ErrInvalidCiphertext
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	plain, err := c.aead.Open(nil, nonce, append(ct, tag...), aad)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}
