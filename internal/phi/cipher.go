// Package phi encrypts and decrypts protected health information. Every
// operation is policy-gated and audited; on any failure the cipher fails
// closed and never degrades to plaintext.
package phi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/chacha20poly1305"

	"sentra/internal/audit"
	"sentra/internal/keyvault"
	dErrors "sentra/pkg/domain-errors"
	"sentra/pkg/platform/sentinel"
	"sentra/pkg/requestcontext"
)

// Recorder is the slice of the audit pipeline the cipher needs.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type Cipher struct {
	vault  *keyvault.Vault
	policy *Policy
	ledger Recorder
	logger *slog.Logger

	onDeny func()
}

type Option func(*Cipher)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cipher) { c.logger = logger }
}

// WithDenyHook registers a callback invoked per policy denial. Used for
// metrics.
func WithDenyHook(fn func()) Option {
	return func(c *Cipher) { c.onDeny = fn }
}

func NewCipher(vault *keyvault.Vault, policy *Policy, ledger Recorder, opts ...Option) *Cipher {
	c := &Cipher{
		vault:  vault,
		policy: policy,
		ledger: ledger,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt seals plaintext under the current key. A fresh random nonce is
// generated per call and prepended to the ciphertext.
func (c *Cipher) Encrypt(ctx context.Context, plaintext []byte, req AccessRequest) (Envelope, error) {
	now := requestcontext.Now(ctx)
	if err := c.policy.Authorize(req, now); err != nil {
		c.deny(ctx, req, "encrypt denied")
		return Envelope{}, err
	}

	keyID, material := c.vault.CurrentKey()
	aead, err := chacha20poly1305.New(material)
	if err != nil {
		return Envelope{}, dErrors.Wrap(err, dErrors.CodeInternal, "cipher init failed")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, dErrors.Wrap(err, dErrors.CodeInternal, "nonce generation failed")
	}
	sealed := aead.Seal(nonce, nonce, plaintext, []byte(keyID.String()))

	env := Envelope{
		Ciphertext: sealed,
		KeyID:      keyID,
		Algorithm:  Algorithm,
		CreatedAt:  now,
	}
	env.IntegrityDigest = Digest(env.Ciphertext, env.KeyID, env.CreatedAt)

	c.audit(ctx, audit.ActionPHIEncrypted, audit.OutcomeSuccess, audit.RiskLow, req, "")
	return env, nil
}

// Decrypt verifies the envelope digest in constant time before any key
// lookup or AEAD work, then opens the ciphertext under the envelope's key.
func (c *Cipher) Decrypt(ctx context.Context, env Envelope, req AccessRequest) ([]byte, error) {
	now := requestcontext.Now(ctx)
	if err := c.policy.Authorize(req, now); err != nil {
		c.deny(ctx, req, "decrypt denied")
		return nil, err
	}

	if env.Algorithm != Algorithm {
		c.audit(ctx, audit.ActionIntegrityFailed, audit.OutcomeFailure, audit.RiskCritical, req, "unknown algorithm")
		return nil, dErrors.New(dErrors.CodeIntegrityViolation, "unsupported envelope algorithm")
	}
	want := Digest(env.Ciphertext, env.KeyID, env.CreatedAt)
	if subtle.ConstantTimeCompare(want, env.IntegrityDigest) != 1 {
		c.audit(ctx, audit.ActionIntegrityFailed, audit.OutcomeFailure, audit.RiskCritical, req, "digest mismatch")
		return nil, dErrors.New(dErrors.CodeIntegrityViolation, "envelope integrity check failed")
	}

	material, err := c.vault.KeyByID(env.KeyID)
	if err != nil {
		if err == sentinel.ErrNotFound {
			c.audit(ctx, audit.ActionPHIDenied, audit.OutcomeFailure, audit.RiskHigh, req, "key retired")
			return nil, dErrors.New(dErrors.CodeKeyNotFound, "encryption key no longer available")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "key lookup failed")
	}
	aead, err := chacha20poly1305.New(material)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "cipher init failed")
	}
	if len(env.Ciphertext) < aead.NonceSize() {
		c.audit(ctx, audit.ActionIntegrityFailed, audit.OutcomeFailure, audit.RiskCritical, req, "truncated ciphertext")
		return nil, dErrors.New(dErrors.CodeIntegrityViolation, "envelope integrity check failed")
	}
	nonce, sealed := env.Ciphertext[:aead.NonceSize()], env.Ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, []byte(env.KeyID.String()))
	if err != nil {
		c.audit(ctx, audit.ActionIntegrityFailed, audit.OutcomeFailure, audit.RiskCritical, req, "aead open failed")
		return nil, dErrors.New(dErrors.CodeIntegrityViolation, "envelope integrity check failed")
	}

	c.audit(ctx, audit.ActionPHIDecrypted, audit.OutcomeSuccess, audit.RiskLow, req, "")
	return plaintext, nil
}

func (c *Cipher) deny(ctx context.Context, req AccessRequest, reason string) {
	if c.onDeny != nil {
		c.onDeny()
	}
	c.audit(ctx, audit.ActionPHIDenied, audit.OutcomeFailure, audit.RiskCritical, req, reason)
}

func (c *Cipher) audit(ctx context.Context, action audit.Action, outcome audit.Outcome, risk audit.RiskLevel, req AccessRequest, reason string) {
	c.ledger.Record(ctx, audit.Entry{
		Action:    action,
		Outcome:   outcome,
		ActorID:   req.ActorID.String(),
		SourceIP:  requestcontext.ClientIP(ctx),
		Resource:  resourceLabel(req),
		RiskLevel: risk,
		Flags: audit.ComplianceFlags{
			HIPAAOk:    outcome == audit.OutcomeSuccess,
			NPHIESOk:   outcome == audit.OutcomeSuccess,
			PHITouched: true,
			Authorized: outcome == audit.OutcomeSuccess,
		},
		Reason: reason,
	})
}

func resourceLabel(req AccessRequest) string {
	if req.Resource != "" {
		return req.Resource
	}
	return fmt.Sprintf("phi:%s", req.DataType)
}
