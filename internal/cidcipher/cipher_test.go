package cidcipher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestNewRejectsBadKeys(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = New("deadbeef")
	assert.ErrorIs(t, err, ErrInvalidKey)

	// right length, not hex
	_, err = New(strings.Repeat("zz", 32))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = New(testKey)
	assert.NoError(t, err)
}

func TestRoundTrip(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	for _, cid := range []string{
		"bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		"QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		"x",
	} {
		blob, err := c.Encrypt(cid)
		require.NoError(t, err)

		got, err := c.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, cid, got)
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	a, err := c.Encrypt("bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi")
	require.NoError(t, err)
	b, err := c.Encrypt("bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "fresh nonce per call must change the blob")
}

func TestDecryptRejectsMalformedBlobs(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	for _, blob := range []string{
		"",
		"onlyonepart",
		"two:parts",
		"a:b:c:d",
		"nothex:0000:0000",
	} {
		_, err := c.Decrypt(blob)
		assert.ErrorIs(t, err, ErrInvalidCiphertext, "blob %q", blob)
	}
}

func TestTamperDetection(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	blob, err := c.Encrypt("bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi")
	require.NoError(t, err)

	parts := strings.Split(blob, ":")
	require.Len(t, parts, 3)

	// Flip every hex character of the auth tag in turn; decryption must fail
	// each time rather than return wrong plaintext.
	for i := 0; i < len(parts[1]); i++ {
		tag := []byte(parts[1])
		if tag[i] == '0' {
			tag[i] = '1'
		} else {
			tag[i] = '0'
		}
		tampered := parts[0] + ":" + string(tag) + ":" + parts[2]
		_, err := c.Decrypt(tampered)
		assert.Error(t, err, "tampered tag position %d", i)
	}
}

func TestWrongKeyFails(t *testing.T) {
	c1, err := New(testKey)
	require.NoError(t, err)
	c2, err := New(strings.Repeat("ab", 32))
	require.NoError(t, err)

	blob, err := c1.Encrypt("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")
	require.NoError(t, err)

	_, err = c2.Decrypt(blob)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}
