package pinning

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinJSONSendsDocumentAndReturnsHash(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pinning/pinJSONToIPFS", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{"IpfsHash": "bafytest1"})
	}))
	defer srv.Close()

	c := NewWithBase("jwt-token", srv.URL, srv.URL)
	cid, err := c.PinJSON(context.Background(), "metadata_0xabc.json",
		[]string{"a", "b"}, map[string]string{"wallet": "0xabc", "type": "metadata"})
	require.NoError(t, err)
	assert.Equal(t, "bafytest1", cid)
	assert.Equal(t, "Bearer jwt-token", gotAuth)

	meta := gotBody["pinataMetadata"].(map[string]any)
	assert.Equal(t, "metadata_0xabc.json", meta["name"])
	kv := meta["keyvalues"].(map[string]any)
	assert.Equal(t, "metadata", kv["type"])
	opts := gotBody["pinataOptions"].(map[string]any)
	assert.Equal(t, float64(1), opts["cidVersion"])
}

func TestPinFileUploadsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "notes.txt", hdr.Filename)
		assert.Equal(t, "file body", string(data))

		assert.Contains(t, r.FormValue("pinataOptions"), `"cidVersion":1`)
		json.NewEncoder(w).Encode(map[string]string{"IpfsHash": "bafyfile9"})
	}))
	defer srv.Close()

	c := NewWithBase("jwt", srv.URL, srv.URL)
	cid, err := c.PinFile(context.Background(), "notes.txt", strings.NewReader("file body"), nil)
	require.NoError(t, err)
	assert.Equal(t, "bafyfile9", cid)
}

func TestLatestPinEmptyResultIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/data/pinList", r.URL.Path)
		assert.Equal(t, "pinned", r.URL.Query().Get("status"))
		assert.Contains(t, r.URL.Query().Get("metadata[keyvalues]"), `"op":"eq"`)
		json.NewEncoder(w).Encode(map[string]any{"rows": []any{}})
	}))
	defer srv.Close()

	c := NewWithBase("jwt", srv.URL, srv.URL)
	cid, err := c.LatestPin(context.Background(), map[string]string{"wallet": "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, "", cid)
}

func TestLatestPinReturnsNewestHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]string{{"ipfs_pin_hash": "bafynewest"}},
		})
	}))
	defer srv.Close()

	c := NewWithBase("jwt", srv.URL, srv.URL)
	cid, err := c.LatestPin(context.Background(), map[string]string{"wallet": "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, "bafynewest", cid)
}

func TestUpstreamStatusIsPreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewWithBase("jwt", srv.URL, srv.URL)
	_, err := c.PinJSON(context.Background(), "doc", map[string]string{}, nil)
	require.Error(t, err)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusTooManyRequests, ue.Status)
}

func TestFetchJSONDecodesThroughGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ipfs/bafydoc", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("cacheBust"))
		json.NewEncoder(w).Encode([]map[string]any{{"id": "file_1"}})
	}))
	defer srv.Close()

	c := NewWithBase("jwt", srv.URL, srv.URL)
	var docs []map[string]any
	require.NoError(t, c.FetchJSON(context.Background(), "bafydoc", &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "file_1", docs[0]["id"])
}

func TestFetchRejectsOversizedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	c := NewWithBase("jwt", srv.URL, srv.URL)
	_, err := c.Fetch(context.Background(), "bafybig", 10)
	assert.Error(t, err)
}
