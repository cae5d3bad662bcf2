package guard

import (
	"github.com/golang-jwt/jwt/v5"

	dErrors "sentra/pkg/domain-errors"
)

// MFAVerifier checks the per-request MFA assertion carried on sensitive
// routes. The assertion is a short-lived HS256 token minted by the identity
// collaborator right after a second-factor challenge; verifying it per
// request defends PHI routes against session hijacking.
type MFAVerifier struct {
	key []byte
}

// NewMFAVerifier builds a verifier over the shared signing key. With an
// empty key the verifier rejects every assertion; it never falls back to
// accepting tokens signed with an empty secret.
func NewMFAVerifier(signingKey string) *MFAVerifier {
	return &MFAVerifier{key: []byte(signingKey)}
}

// Verify validates the token signature, expiry, the mfa claim, and that the
// subject matches the session's actor.
func (v *MFAVerifier) Verify(token, actorID string) error {
	if len(v.key) == 0 {
		return dErrors.New(dErrors.CodeMFARequired, "mfa verifier has no signing key")
	}
	if token == "" {
		return dErrors.New(dErrors.CodeMFARequired, "mfa assertion missing")
	}
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return dErrors.New(dErrors.CodeMFARequired, "mfa assertion invalid")
	}
	if verified, ok := claims["mfa"].(bool); !ok || !verified {
		return dErrors.New(dErrors.CodeMFARequired, "mfa assertion invalid")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub != actorID {
		return dErrors.New(dErrors.CodeMFARequired, "mfa assertion subject mismatch")
	}
	return nil
}
