// Package keyvault owns the symmetric encryption keys used for PHI.
// Key material never leaves this process unencrypted: the vault hands out
// copies for cipher use and zeroes its own bytes when a key is destroyed.
package keyvault

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"
	"time"

	id "sentra/pkg/domain"
	"sentra/pkg/platform/sentinel"
)

// KeySize is the AEAD key length in bytes (256-bit).
const KeySize = 32

// KeyInfo describes a key without exposing its material.
type KeyInfo struct {
	ID            id.KeyID
	CreatedAt     time.Time
	RotationCount int
	Current       bool
}

type storedKey struct {
	info     KeyInfo
	material []byte
	// retiredAt is set when the key stops being current; the retention
	// window counts from this point, not from creation.
	retiredAt time.Time
}

// Vault generates, stores, and rotates keys. Exactly one key is current at
// any time; superseded keys are retained only within the retention window
// so older ciphertext stays decryptable, then destroyed.
type Vault struct {
	mu        sync.RWMutex
	current   id.KeyID
	keys      map[id.KeyID]*storedKey
	retention time.Duration
	rotations int

	logger *slog.Logger

	onRotate  func(KeyInfo)
	onDestroy func(KeyInfo)
}

type Option func(*Vault)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) { v.logger = logger }
}

// WithRotationHook registers a callback invoked after each rotation with
// the new current key's info. Used for metrics.
func WithRotationHook(fn func(KeyInfo)) Option {
	return func(v *Vault) { v.onRotate = fn }
}

// WithDestroyHook registers a callback invoked after a key is destroyed.
func WithDestroyHook(fn func(KeyInfo)) Option {
	return func(v *Vault) { v.onDestroy = fn }
}

// New creates a vault holding one freshly generated current key.
func New(retention time.Duration, opts ...Option) (*Vault, error) {
	v := &Vault{
		keys:      make(map[id.KeyID]*storedKey),
		retention: retention,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if err := v.rotateLocked(time.Now()); err != nil {
		return nil, err
	}
	return v, nil
}

// CurrentKeyID returns the ID of the current encryption key.
func (v *Vault) CurrentKeyID() id.KeyID {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// CurrentKey returns the current key's ID and a copy of its material for
// encryption. Handing out a copy keeps a later zeroization from scribbling
// over bytes a cipher operation is still reading.
func (v *Vault) CurrentKey() (id.KeyID, []byte) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current, append([]byte(nil), v.keys[v.current].material...)
}

// KeyByID locates a historical key for decryption and returns a copy of its
// material. Returns sentinel.ErrNotFound once the key has passed retention
// and been destroyed.
func (v *Vault) KeyByID(keyID id.KeyID) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	k, ok := v.keys[keyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), k.material...), nil
}

// Keys lists key metadata, current first.
func (v *Vault) Keys() []KeyInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()
	infos := make([]KeyInfo, 0, len(v.keys))
	if cur, ok := v.keys[v.current]; ok {
		info := cur.info
		info.Current = true
		infos = append(infos, info)
	}
	for kid, k := range v.keys {
		if kid == v.current {
			continue
		}
		infos = append(infos, k.info)
	}
	return infos
}

// Rotate generates a new key and marks it current. The previous key stays
// available for decryption until its retention window elapses.
func (v *Vault) Rotate() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rotateLocked(time.Now())
}

func (v *Vault) rotateLocked(now time.Time) error {
	material := make([]byte, KeySize)
	if _, err := rand.Read(material); err != nil {
		return err
	}
	if prev, ok := v.keys[v.current]; ok {
		prev.retiredAt = now
	}
	keyID := id.NewKeyID()
	v.rotations++
	k := &storedKey{
		info: KeyInfo{
			ID:            keyID,
			CreatedAt:     now,
			RotationCount: v.rotations,
		},
		material: material,
	}
	v.keys[keyID] = k
	v.current = keyID
	if v.onRotate != nil {
		v.onRotate(k.info)
	}
	return nil
}

// PruneExpired destroys superseded keys whose retention window has elapsed.
// Candidates are collected under a read lock; destruction takes the write
// lock only briefly per key so concurrent decrypts are not starved.
func (v *Vault) PruneExpired(now time.Time) int {
	v.mu.RLock()
	var expired []id.KeyID
	for kid, k := range v.keys {
		if kid == v.current {
			continue
		}
		if !k.retiredAt.IsZero() && now.Sub(k.retiredAt) > v.retention {
			expired = append(expired, kid)
		}
	}
	v.mu.RUnlock()

	destroyed := 0
	for _, kid := range expired {
		v.mu.Lock()
		k, ok := v.keys[kid]
		if ok && kid != v.current {
			for i := range k.material {
				k.material[i] = 0
			}
			delete(v.keys, kid)
			destroyed++
		}
		v.mu.Unlock()
		if ok && v.onDestroy != nil {
			v.onDestroy(k.info)
		}
	}
	return destroyed
}

// RunRotation rotates on the given interval and prunes expired keys after
// each rotation. Blocks until ctx is done.
func (v *Vault) RunRotation(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := v.Rotate(); err != nil {
				v.logger.Error("key rotation failed", "error", err)
				continue
			}
			destroyed := v.PruneExpired(time.Now())
			v.logger.Info("key rotated", "destroyed", destroyed)
		}
	}
}
