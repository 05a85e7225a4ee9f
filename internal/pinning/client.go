// Package pinning wraps the Pinata HTTP API: pinning blobs and JSON
// documents, resolving the latest pin for a tag set, and fetching content
// back through the dedicated gateway.
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.pinata.cloud"

// Per-call timeouts. Probes fail fast, metadata lookups are small JSON
// bodies, content transfers get a longer budget.
const (
	ProbeTimeout    = 5 * time.Second
	MetadataTimeout = 10 * time.Second
	ContentTimeout  = 30 * time.Second
)

// UpstreamError carries the pinning service's HTTP status so handlers can
// pass informative codes (429, 401) through to clients.
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pinning: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("pinning: %s: status %d", e.Op, e.Status)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client talks to the Pinata pinning API and its gateway.
type Client struct {
	apiBase string
	gateway string
	jwt     string
	http    *http.Client
	now     func() time.Time
}

// New builds a client for the given JWT and dedicated gateway base URL.
func New(jwt, gateway string) *Client {
	return &Client{
		apiBase: defaultAPIBase,
		gateway: strings.TrimRight(gateway, "/"),
		jwt:     jwt,
		http:    &http.Client{},
		now:     time.Now,
	}
}

// NewWithBase is New with an explicit API base, used by tests against a
// local httptest server.
func NewWithBase(jwt, apiBase, gateway string) *Client {
	c := New(jwt, gateway)
	c.apiBase = strings.TrimRight(apiBase, "/")
	return c
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// PinFile pins raw content and returns the resulting CID. keyvalues become
// Pinata metadata tags for later lookup.
func (c *Client) PinFile(ctx context.Context, name string, content io.Reader, keyvalues map[string]string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", err
	}

	meta := map[string]any{"name": name}
	if len(keyvalues) > 0 {
		meta["keyvalues"] = keyvalues
	}
	metaJSON, _ := json.Marshal(meta)
	_ = mw.WriteField("pinataMetadata", string(metaJSON))
	_ = mw.WriteField("pinataOptions", `{"cidVersion":1}`)
	if err := mw.Close(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, ContentTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out pinResponse
	if err := c.do(req, "pin file", &out); err != nil {
		return "", err
	}
	if out.IpfsHash == "" {
		return "", &UpstreamError{Op: "pin file", Err: errors.New("no hash returned")}
	}
	return out.IpfsHash, nil
}

// PinJSON pins an arbitrary JSON document and returns its CID.
func (c *Client) PinJSON(ctx context.Context, name string, payload any, keyvalues map[string]string) (string, error) {
	meta := map[string]any{"name": name}
	if len(keyvalues) > 0 {
		meta["keyvalues"] = keyvalues
	}
	reqBody, err := json.Marshal(map[string]any{
		"pinataContent":  payload,
		"pinataMetadata": meta,
		"pinataOptions":  map[string]any{"cidVersion": 1},
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, MetadataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/pinning/pinJSONToIPFS", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	req.Header.Set("Content-Type", "application/json")

	var out pinResponse
	if err := c.do(req, "pin json", &out); err != nil {
		return "", err
	}
	if out.IpfsHash == "" {
		return "", &UpstreamError{Op: "pin json", Err: errors.New("no hash returned")}
	}
	return out.IpfsHash, nil
}

type pinListResponse struct {
	Rows []struct {
		IpfsPinHash string `json:"ipfs_pin_hash"`
	} `json:"rows"`
}

// LatestPin resolves the most recently pinned object matching every
// keyvalue tag. Returns "" without error when nothing matches.
func (c *Client) LatestPin(ctx context.Context, keyvalues map[string]string) (string, error) {
	filter := make(map[string]map[string]string, len(keyvalues))
	for k, v := range keyvalues {
		filter[k] = map[string]string{"value": v, "op": "eq"}
	}
	filterJSON, _ := json.Marshal(filter)

	q := url.Values{}
	q.Set("status", "pinned")
	q.Set("pageLimit", "1")
	q.Set("metadata[keyvalues]", string(filterJSON))

	ctx, cancel := context.WithTimeout(ctx, MetadataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/data/pinList?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	var out pinListResponse
	if err := c.do(req, "pin list", &out); err != nil {
		return "", err
	}
	if len(out.Rows) == 0 {
		return "", nil
	}
	return out.Rows[0].IpfsPinHash, nil
}

// FetchJSON fetches a pinned document through the gateway and decodes it
// into v. A cache-busting query parameter defeats gateway edge caches; the
// read path tolerates eventual consistency but not stale JSON.
func (c *Client) FetchJSON(ctx context.Context, cid string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, MetadataTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/ipfs/%s?cacheBust=%d", c.gateway, cid, c.now().UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Op: "fetch json", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Op: "fetch json", Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &UpstreamError{Op: "fetch json", Err: err}
	}
	return nil
}

// Fetch streams pinned content through the gateway. The caller owns the
// response body. maxBytes > 0 caps the read with http.MaxBytesReader-style
// truncation via Content-Length rejection.
func (c *Client) Fetch(ctx context.Context, cid string, maxBytes int64) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, ContentTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gateway+"/ipfs/"+cid, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, &UpstreamError{Op: "fetch", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, &UpstreamError{Op: "fetch", Status: resp.StatusCode}
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		resp.Body.Close()
		cancel()
		return nil, &UpstreamError{Op: "fetch", Err: fmt.Errorf("content exceeds %d bytes", maxBytes)}
	}
	// Tie the timeout to body consumption, not just the round trip.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// Available probes the gateway for a CID with a HEAD request.
func (c *Client) Available(ctx context.Context, cid string) bool {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.gateway+"/ipfs/"+cid, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Op: op, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	return nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}
