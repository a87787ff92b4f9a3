package credentials

import (
	"errors"
	"regexp"
	"time"
)

var (
	// ErrInvalidUserID is returned for identifiers that cannot safely name a file.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrForeignOwner is returned when a credential file belongs to another uid.
	ErrForeignOwner = errors.New("credential file owned by another user")
	// ErrSealed is returned when a sealed blob is read without an encryption key.
	ErrSealed = errors.New("credential blob is encrypted and no key is configured")
)

// Record is one user's captured provider session. Blob is opaque
// provider-defined state (a cookie and local-storage snapshot).
type Record struct {
	UserID          string
	Blob            []byte
	AuthenticatedAt time.Time
	// Provider names how the blob was obtained (browser, upload).
	Provider string
	// Partial marks state captured after a login timed out.
	Partial bool
}

// Metadata describes a stored record without exposing the blob.
type Metadata struct {
	UserID          string    `json:"user_id"`
	Authenticated   bool      `json:"authenticated"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
	CredentialsPath string    `json:"credentials_path"`
	Provider        string    `json:"provider,omitempty"`
	Partial         bool      `json:"partial,omitempty"`
	Encrypted       bool      `json:"encrypted,omitempty"`
}

// Store persists at most one record per user. Save overwrites wholesale and
// Delete is idempotent. Load and Metadata return (nil, nil) when the user has
// no record.
type Store interface {
	Load(userID string) (*Record, error)
	Metadata(userID string) (*Metadata, error)
	Save(record Record) error
	Delete(userID string) error
}

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,127}$`)

// ValidateUserID rejects identifiers that could escape the credentials directory.
func ValidateUserID(userID string) error {
	if !userIDPattern.MatchString(userID) {
		return ErrInvalidUserID
	}
	return nil
}
