// Package domain holds the typed identifiers shared across subsystems.
// IDs are distinct types over uuid.UUID so the compiler rejects cross-type
// assignment (a SessionID can never be passed where an ActorID is expected).
package domain

import (
	"github.com/google/uuid"

	dErrors "sentra/pkg/domain-errors"
)

type (
	// ActorID identifies an authenticated principal (clinician, admin, service).
	ActorID uuid.UUID
	// SessionID identifies an authenticated session.
	SessionID uuid.UUID
	// EntryID identifies an audit ledger entry.
	EntryID uuid.UUID
	// ThreatID identifies a detected security threat.
	ThreatID uuid.UUID
	// KeyID identifies an encryption key generation.
	KeyID uuid.UUID
)

// NewActorID generates a fresh actor ID.
func NewActorID() ActorID { return ActorID(uuid.New()) }

// NewSessionID generates a fresh session ID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewEntryID generates a fresh audit entry ID.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

// NewThreatID generates a fresh threat ID.
func NewThreatID() ThreatID { return ThreatID(uuid.New()) }

// NewKeyID generates a fresh key ID.
func NewKeyID() KeyID { return KeyID(uuid.New()) }

func (id ActorID) String() string   { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id EntryID) String() string   { return uuid.UUID(id).String() }
func (id ThreatID) String() string  { return uuid.UUID(id).String() }
func (id KeyID) String() string     { return uuid.UUID(id).String() }

func (id ActorID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshalling keeps the canonical UUID string form on the wire.

func (id ActorID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id SessionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id EntryID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id ThreatID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id KeyID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *ActorID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = ActorID(u)
	return err
}

func (id *SessionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = SessionID(u)
	return err
}

func (id *EntryID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = EntryID(u)
	return err
}

func (id *ThreatID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = ThreatID(u)
	return err
}

func (id *KeyID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = KeyID(u)
	return err
}

// parseUUID enforces the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

// ParseActorID parses and validates an actor ID from its string form.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s, "actor id")
	return ActorID(u), err
}

// ParseSessionID parses and validates a session ID from its string form.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

// ParseThreatID parses and validates a threat ID from its string form.
func ParseThreatID(s string) (ThreatID, error) {
	u, err := parseUUID(s, "threat id")
	return ThreatID(u), err
}

// ParseKeyID parses and validates a key ID from its string form.
func ParseKeyID(s string) (KeyID, error) {
	u, err := parseUUID(s, "key id")
	return KeyID(u), err
}
