// Package tokens holds the in-memory table of short-lived file access
// tokens. Tokens are ephemeral by design: a process restart forgets them and
// the worst case is a forced re-authentication.
package tokens

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/walletvault/server/internal/utils"
)

const (
	// DefaultTTL is how long an issued token can be redeemed.
	DefaultTTL = 5 * time.Minute

	// SweepInterval is how often the background sweep runs.
	SweepInterval = 5 * time.Minute

	defaultMaxEntries = 10000
)

var (
	ErrNotFound  = errors.New("tokens: invalid or expired access token")
	ErrExpired   = errors.New("tokens: access token expired")
	ErrTableFull = errors.New("tokens: token table full")
)

// Token grants time-limited permission to stream one file for one wallet.
// The CID stays encrypted until the moment of streaming.
type Token struct {
	FileID       string
	OwnerWallet  string // lower-cased at issuance
	EncryptedCid string
	Filename     string
	Size         int64
	Expires      time.Time
	CreatedAt    time.Time
}

// Table is a bounded concurrent token store. The bound keeps a burst of
// issuance from growing memory without limit between sweeps.
type Table struct {
	mu      sync.Mutex
	entries map[string]Token
	now     func() time.Time
	ttl     time.Duration
	max     int
}

// NewTable builds an empty table with the default TTL and size bound.
func NewTable() *Table {
	return &Table{
		entries: make(map[string]Token),
		now:     time.Now,
		ttl:     DefaultTTL,
		max:     defaultMaxEntries,
	}
}

// Issue creates a random 256-bit token bound to the file and owner wallet.
func (t *Table) Issue(fileID, ownerWallet, encryptedCid, filename string, size int64) (string, Token, error) {
	key, err := utils.GenerateSecureToken(32)
	if err != nil {
		return "", Token{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= t.max {
		t.sweepLocked()
		if len(t.entries) >= t.max {
			return "", Token{}, ErrTableFull
		}
	}

	now := t.now()
	tok := Token{
		FileID:       fileID,
		OwnerWallet:  strings.ToLower(ownerWallet),
		EncryptedCid: encryptedCid,
		Filename:     filename,
		Size:         size,
		Expires:      now.Add(t.ttl),
		CreatedAt:    now,
	}
	t.entries[key] = tok
	return key, tok, nil
}

// Lookup returns the token if it exists and has not expired. An expired
// entry is removed on the spot and reported as ErrExpired, distinct from a
// token that was never issued.
func (t *Table) Lookup(key string) (Token, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tok, ok := t.entries[key]
	if !ok {
		return Token{}, ErrNotFound
	}
	if !t.now().Before(tok.Expires) {
		delete(t.entries, key)
		return Token{}, ErrExpired
	}
	return tok, nil
}

// Delete removes a token, used when ownership verification fails between
// issuance and redemption.
func (t *Table) Delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// Len reports the current table size.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Sweep removes every expired entry and returns how many were dropped.
func (t *Table) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sweepLocked()
}

func (t *Table) sweepLocked() int {
	now := t.now()
	cleaned := 0
	for key, tok := range t.entries {
		if !now.Before(tok.Expires) {
			delete(t.entries, key)
			cleaned++
		}
	}
	return cleaned
}

// StartSweeper runs the periodic expiry sweep until ctx is cancelled.
func (t *Table) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := t.Sweep(); n > 0 {
					log.Printf("Cleaned up %d expired access tokens", n)
				}
			}
		}
	}()
}
