// Package metadata maintains the per-wallet file registry. Each wallet's
// registry is one JSON array of records pinned as a single object; the
// current document is whichever pin with that wallet's tags is newest.
// Writes pin a fresh document and never touch earlier ones, so old documents
// become orphaned history.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/walletvault/server/internal/models"
)

// Pinner is the slice of the pinning client the store needs. Tests swap in
// an in-memory implementation.
type Pinner interface {
	PinJSON(ctx context.Context, name string, payload any, keyvalues map[string]string) (string, error)
	LatestPin(ctx context.Context, keyvalues map[string]string) (string, error)
	FetchJSON(ctx context.Context, cid string, v any) error
}

// ErrStoreUnavailable marks a registry read that failed because the pinning
// service's index or gateway could not be reached, as opposed to a wallet
// that simply has no document yet.
var ErrStoreUnavailable = errors.New("metadata: store unavailable")

const (
	defaultPollAttempts = 15
	defaultPollDelay    = 500 * time.Millisecond
)

// Store reads and writes wallet registries.
//
// There is no optimistic concurrency on the underlying pins: two processes
// writing the same wallet still race last-writer-wins. Within this process
// writers are serialized per wallet, which covers the single-server
// deployment this service runs as.
type Store struct {
	pinner Pinner
	now    func() time.Time

	reads singleflight.Group

	mu      sync.Mutex
	wallets map[string]*sync.Mutex

	// visibility poll knobs, overridden in tests
	pollAttempts int
	pollDelay    time.Duration
}

// NewStore builds a Store on top of the given pinner.
func NewStore(p Pinner) *Store {
	return &Store{
		pinner:       p,
		now:          time.Now,
		wallets:      make(map[string]*sync.Mutex),
		pollAttempts: defaultPollAttempts,
		pollDelay:    defaultPollDelay,
	}
}

func tags(wallet string) map[string]string {
	return map[string]string{
		"wallet": strings.ToLower(wallet),
		"type":   "metadata",
	}
}

// Read resolves and fetches the wallet's latest registry document. A wallet
// with no document yet yields an empty list and no error; index or gateway
// failures return ErrStoreUnavailable so callers can tell the two apart.
// Concurrent reads for one wallet are coalesced.
func (s *Store) Read(ctx context.Context, wallet string) ([]models.FileRecord, error) {
	key := strings.ToLower(wallet)
	v, err, _ := s.reads.Do(key, func() (any, error) {
		cid, err := s.pinner.LatestPin(ctx, tags(wallet))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if cid == "" {
			return []models.FileRecord{}, nil
		}
		var files []models.FileRecord
		if err := s.pinner.FetchJSON(ctx, cid, &files); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return files, nil
	})
	if err != nil {
		return nil, err
	}
	// Every caller that joined the flight sees the same slice value; hand
	// each its own copy so an Update mutating records in place cannot race a
	// concurrent listing.
	return slices.Clone(v.([]models.FileRecord)), nil
}

// ReadOrEmpty is the fail-open read used by list endpoints: transient index
// or gateway failures degrade to an empty listing instead of erroring.
func (s *Store) ReadOrEmpty(ctx context.Context, wallet string) []models.FileRecord {
	files, err := s.Read(ctx, wallet)
	if err != nil {
		return []models.FileRecord{}
	}
	return files
}

// Write pins the full registry as a new document tagged with the wallet and
// a fresh timestamp. Write failures propagate; the registry is the critical
// path and must never silently degrade.
func (s *Store) Write(ctx context.Context, wallet string, files []models.FileRecord) (string, error) {
	safe := strings.ToLower(wallet)
	kv := tags(wallet)
	kv["timestamp"] = models.Timestamp(s.now())
	if files == nil {
		files = []models.FileRecord{}
	}
	cid, err := s.pinner.PinJSON(ctx, fmt.Sprintf("metadata_%s.json", safe), files, kv)
	if err != nil {
		return "", fmt.Errorf("metadata: write for %s: %w", safe, err)
	}
	return cid, nil
}

// Update runs a read-modify-write cycle under the wallet's writer lock. The
// mutate callback receives the current registry and returns the replacement;
// returning an error aborts without writing.
func (s *Store) Update(ctx context.Context, wallet string, mutate func([]models.FileRecord) ([]models.FileRecord, error)) error {
	lock := s.walletLock(wallet)
	lock.Lock()
	defer lock.Unlock()

	files, err := s.Read(ctx, wallet)
	if err != nil {
		// Proceeding with an empty base here would clobber the registry.
		return err
	}
	updated, err := mutate(files)
	if err != nil {
		return err
	}
	_, err = s.Write(ctx, wallet, updated)
	return err
}

// VerifyOwnership returns the record only when it exists, belongs to the
// wallet, and is not soft-deleted. (nil, nil) means not found; a non-nil
// error means the registry could not be read at all.
func (s *Store) VerifyOwnership(ctx context.Context, fileID, wallet string) (*models.FileRecord, error) {
	files, err := s.Read(ctx, wallet)
	if err != nil {
		return nil, err
	}
	for i := range files {
		f := &files[i]
		if f.ID == fileID && f.OwnedBy(wallet) && f.Active() {
			rec := *f
			return &rec, nil
		}
	}
	return nil, nil
}

// WaitForActive polls until the record is visible and active in the read
// path, tolerating eventual-consistency lag after a write. It returns the
// observed record, or an error once the poll budget is spent.
func (s *Store) WaitForActive(ctx context.Context, wallet, fileID string) (*models.FileRecord, error) {
	var last *models.FileRecord
	for i := 0; i < s.pollAttempts; i++ {
		files, err := s.Read(ctx, wallet)
		if err == nil {
			for j := range files {
				if files[j].ID == fileID {
					rec := files[j]
					last = &rec
					break
				}
			}
			if last != nil && last.Active() {
				return last, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollDelay):
		}
	}
	if last == nil {
		return nil, errors.New("metadata: record not visible after write")
	}
	return nil, errors.New("metadata: record still marked deleted after write")
}

func (s *Store) walletLock(wallet string) *sync.Mutex {
	key := strings.ToLower(wallet)
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.wallets[key]
	if !ok {
		lock = &sync.Mutex{}
		s.wallets[key] = lock
	}
	return lock
}
