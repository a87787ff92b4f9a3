package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"dailybrief/internal/credentials"
	"dailybrief/internal/notebook"
	"dailybrief/internal/services"
	"dailybrief/internal/testsupport"
)

const validBlob = `{"cookies":[{"name":"SID","value":"abc","domain":".google.com","path":"/","expires":-1}],"origins":[]}`

type stubProvider struct {
	capture Capture
	err     error
	started chan struct{}
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (p *stubProvider) Name() string { return "browser" }

func (p *stubProvider) Acquire(ctx context.Context, _ string) (Capture, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return Capture{}, ctx.Err()
		}
	}
	return p.capture, p.err
}

type nopRemote struct{ notebook.Remote }

func (nopRemote) Close() error { return nil }

func newTestManager(t *testing.T, provider AuthProvider, opts ...Option) (*Manager, *credentials.FileStore) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := credentials.NewFileStore(cfg.Paths.CredentialsDir, nil)
	base := []Option{WithStore(store), WithBrowserProvider(provider), WithClock(func() time.Time {
		return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	})}
	return NewManager(cfg, append(base, opts...)...), store
}

func TestAuthenticateRevokeLifecycle(t *testing.T) {
	provider := &stubProvider{capture: Capture{Blob: []byte(validBlob)}}
	mgr, _ := newTestManager(t, provider)

	if mgr.IsAuthenticated("alice") {
		t.Fatal("expected unauthenticated before login")
	}
	result, err := mgr.Authenticate(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.Status != StatusSuccess || !result.CredentialsStored {
		t.Fatalf("unexpected result %+v", result)
	}
	if !mgr.IsAuthenticated("alice") {
		t.Fatal("expected authenticated after login")
	}
	meta, err := mgr.Metadata("alice")
	if err != nil || meta == nil {
		t.Fatalf("Metadata: %+v %v", meta, err)
	}
	if !meta.AuthenticatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) || meta.Provider != "browser" || meta.Partial {
		t.Fatalf("unexpected metadata %+v", meta)
	}

	if _, err := mgr.Revoke("alice"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if mgr.IsAuthenticated("alice") {
		t.Fatal("expected unauthenticated after revoke")
	}
	result, err = mgr.Revoke("alice")
	if err != nil || result.Status != StatusRevoked {
		t.Fatalf("second Revoke: %+v %v", result, err)
	}
}

// checkingStore consults the manager while a delete is in progress, the way a
// status request arriving mid-revoke would.
type checkingStore struct {
	*credentials.FileStore
	duringDelete func()
}

func (s *checkingStore) Delete(userID string) error {
	if s.duringDelete != nil {
		s.duringDelete()
	}
	return s.FileStore.Delete(userID)
}

func TestRevokeNotUndoneByConcurrentStatusRead(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := &checkingStore{FileStore: credentials.NewFileStore(cfg.Paths.CredentialsDir, nil)}
	provider := &stubProvider{capture: Capture{Blob: []byte(validBlob)}}
	mgr := NewManager(cfg, WithStore(store), WithBrowserProvider(provider))

	var sawDuringDelete bool
	store.duringDelete = func() { sawDuringDelete = mgr.IsAuthenticated("alice") }

	if _, err := mgr.Authenticate(context.Background(), "alice"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := mgr.Revoke("alice"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !sawDuringDelete {
		t.Fatal("expected the record to still be visible before the delete ran")
	}
	if record, err := store.Load("alice"); err != nil || record != nil {
		t.Fatalf("expected record deleted, got %+v %v", record, err)
	}
	if mgr.IsAuthenticated("alice") {
		t.Fatal("expected unauthenticated after revoke returned")
	}
	if meta, err := mgr.Metadata("alice"); err != nil || meta != nil {
		t.Fatalf("expected no metadata after revoke, got %+v %v", meta, err)
	}
}

func TestAuthenticateRejectsConcurrentLoginForSameUser(t *testing.T) {
	provider := &stubProvider{
		capture: Capture{Blob: []byte(validBlob)},
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	mgr, _ := newTestManager(t, provider)

	done := make(chan error, 1)
	go func() {
		_, err := mgr.Authenticate(context.Background(), "alice")
		done <- err
	}()
	<-provider.started

	if !mgr.InProgress("alice") {
		t.Fatal("expected login to be in progress")
	}
	if _, err := mgr.Authenticate(context.Background(), "alice"); !errors.Is(err, ErrAuthInProgress) {
		t.Fatalf("expected ErrAuthInProgress, got %v", err)
	}
	if _, err := mgr.Upload(context.Background(), "alice", []byte(validBlob)); !errors.Is(err, ErrAuthInProgress) {
		t.Fatalf("expected upload to be rejected during login, got %v", err)
	}

	// Another user is independent.
	if _, err := mgr.Upload(context.Background(), "bob", []byte(validBlob)); err != nil {
		t.Fatalf("Upload for other user: %v", err)
	}

	close(provider.release)
	if err := <-done; err != nil {
		t.Fatalf("first Authenticate: %v", err)
	}
	if mgr.InProgress("alice") {
		t.Fatal("expected login slot to be released")
	}
}

func TestAuthenticateTimeoutStoresPartialState(t *testing.T) {
	provider := &stubProvider{capture: Capture{Blob: []byte(validBlob), Partial: true}, err: ErrLoginTimeout}
	mgr, _ := newTestManager(t, provider)

	result, err := mgr.Authenticate(context.Background(), "alice")
	if !errors.Is(err, ErrLoginTimeout) || !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected login timeout, got %v", err)
	}
	if result.Status != StatusTimeout || !result.CredentialsStored {
		t.Fatalf("unexpected result %+v", result)
	}
	meta, err := mgr.Metadata("alice")
	if err != nil || meta == nil || !meta.Partial {
		t.Fatalf("expected partial metadata, got %+v %v", meta, err)
	}
}

func TestAuthenticateFailuresStoreNothing(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"automation", ErrAutomationUnavailable, services.ErrAutomationUnavailable},
		{"timeout without state", ErrLoginTimeout, ErrLoginTimeout},
		{"other", errors.New("tab crashed"), ErrAuthenticationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mgr, _ := newTestManager(t, &stubProvider{err: tc.err})
			result, err := mgr.Authenticate(context.Background(), "alice")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if result.CredentialsStored {
				t.Fatal("nothing should be stored")
			}
			if mgr.IsAuthenticated("alice") {
				t.Fatal("expected unauthenticated")
			}
		})
	}
}

func TestUploadValidatesBlob(t *testing.T) {
	mgr, _ := newTestManager(t, &stubProvider{})

	if _, err := mgr.Upload(context.Background(), "alice", []byte(`{"cookies":[]}`)); !errors.Is(err, notebook.ErrInvalidStorageState) {
		t.Fatalf("expected invalid storage state, got %v", err)
	}
	if mgr.IsAuthenticated("alice") {
		t.Fatal("invalid upload must not authenticate")
	}

	result, err := mgr.Upload(context.Background(), "alice", []byte(validBlob))
	if err != nil || result.Status != StatusSuccess {
		t.Fatalf("Upload: %+v %v", result, err)
	}
	meta, _ := mgr.Metadata("alice")
	if meta == nil || meta.Provider != "upload" {
		t.Fatalf("expected upload provider in metadata, got %+v", meta)
	}
}

func TestGetClient(t *testing.T) {
	var gotState notebook.StorageState
	factory := func(state notebook.StorageState) (notebook.Remote, error) {
		gotState = state
		return nopRemote{}, nil
	}
	mgr, _ := newTestManager(t, &stubProvider{capture: Capture{Blob: []byte(validBlob)}}, WithRemoteFactory(factory))

	if _, err := mgr.GetClient(context.Background(), "alice"); !errors.Is(err, notebook.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := mgr.Authenticate(context.Background(), "alice"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	client, err := mgr.GetClient(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	defer client.Close()
	if len(gotState.Cookies) != 1 || gotState.Cookies[0].Name != "SID" {
		t.Fatalf("unexpected state passed to remote: %+v", gotState)
	}
}

func TestMetadataCacheEvictedWhenRecordDisappears(t *testing.T) {
	mgr, store := newTestManager(t, &stubProvider{capture: Capture{Blob: []byte(validBlob)}})
	if _, err := mgr.Authenticate(context.Background(), "alice"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := os.Remove(store.BlobPath("alice")); err != nil {
		t.Fatalf("remove blob: %v", err)
	}
	if !mgr.IsAuthenticated("alice") {
		t.Fatal("expected cached metadata to answer until evicted")
	}
	if _, err := mgr.GetClient(context.Background(), "alice"); !errors.Is(err, notebook.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if err := os.Remove(store.Dir() + "/alice_meta.json"); err != nil {
		t.Fatalf("remove meta: %v", err)
	}
	if mgr.IsAuthenticated("alice") {
		t.Fatal("expected cache eviction after missing record")
	}
}

func TestInvalidUserIDRejected(t *testing.T) {
	mgr, _ := newTestManager(t, &stubProvider{capture: Capture{Blob: []byte(validBlob)}})
	if _, err := mgr.Authenticate(context.Background(), "../etc"); !errors.Is(err, credentials.ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
}

func TestBrowserProviderWithoutBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	provider := NewBrowserProvider(cfg, nil)
	provider.resolve = func(string) (string, error) { return "", errors.New("no chrome") }

	_, err := provider.Acquire(context.Background(), "alice")
	if !errors.Is(err, ErrAutomationUnavailable) || !errors.Is(err, services.ErrAutomationUnavailable) {
		t.Fatalf("expected automation unavailable, got %v", err)
	}
}

func TestDomainMatches(t *testing.T) {
	if !domainMatches(".google.com", ".google.com") || !domainMatches("accounts.google.com", "google.com") {
		t.Fatal("expected google cookies to match")
	}
	if domainMatches("evilgoogle.com", ".google.com") {
		t.Fatal("suffix without dot boundary must not match")
	}
	if got := originOf("https://notebooklm.google.com/notebook/1?x=y"); got != "https://notebooklm.google.com" {
		t.Fatalf("unexpected origin %q", got)
	}
}
