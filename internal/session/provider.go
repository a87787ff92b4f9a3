package session

import (
	"context"
	"errors"
	"fmt"

	"dailybrief/internal/notebook"
	"dailybrief/internal/services"
)

var (
	// ErrAuthInProgress rejects a second login for a user while one is running.
	ErrAuthInProgress = errors.New("authentication already in progress for user")
	// ErrLoginTimeout means the user did not finish logging in before the
	// login timeout. Whatever state existed was still captured.
	ErrLoginTimeout = fmt.Errorf("login not completed in time: %w", services.ErrTimeout)
	// ErrAuthenticationFailed covers every other login failure.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrAutomationUnavailable means no browser engine could be launched.
	ErrAutomationUnavailable = fmt.Errorf("browser automation not available: %w", services.ErrAutomationUnavailable)
)

// Capture is the session state an AuthProvider obtained.
type Capture struct {
	// Blob is a storage-state JSON document (cookies and localStorage).
	Blob []byte
	// Partial is set when the state was captured after a login timeout.
	Partial bool
}

// AuthProvider obtains provider session state for a user.
type AuthProvider interface {
	Name() string
	Acquire(ctx context.Context, userID string) (Capture, error)
}

// BlobProvider accepts a storage-state blob captured elsewhere, such as by a
// companion app on the user's machine.
type BlobProvider struct {
	blob []byte
}

// NewBlobProvider wraps an uploaded blob.
func NewBlobProvider(blob []byte) *BlobProvider {
	return &BlobProvider{blob: blob}
}

// Name implements AuthProvider.
func (p *BlobProvider) Name() string { return "upload" }

// Acquire validates the blob and re-encodes it in canonical form.
func (p *BlobProvider) Acquire(context.Context, string) (Capture, error) {
	state, err := notebook.ParseStorageState(p.blob)
	if err != nil {
		return Capture{}, err
	}
	blob, err := state.Marshal()
	if err != nil {
		return Capture{}, fmt.Errorf("encode storage state: %w", err)
	}
	return Capture{Blob: blob}, nil
}
