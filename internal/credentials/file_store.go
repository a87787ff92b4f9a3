package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	blobSuffix = ".json"
	metaSuffix = "_meta.json"
	filePerm   = 0o600
	dirPerm    = 0o700
)

// FileStore keeps one blob file and one metadata file per user, both owner-only.
type FileStore struct {
	dir    string
	sealer *Sealer
}

// NewFileStore builds a FileStore rooted at dir. A nil sealer stores blobs as-is.
func NewFileStore(dir string, sealer *Sealer) *FileStore {
	return &FileStore{dir: dir, sealer: sealer}
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// BlobPath returns where a user's blob lives.
func (s *FileStore) BlobPath(userID string) string {
	return filepath.Join(s.dir, userID+blobSuffix)
}

func (s *FileStore) metaPath(userID string) string {
	return filepath.Join(s.dir, userID+metaSuffix)
}

// Load reads a user's record. A missing blob resolves to (nil, nil).
func (s *FileStore) Load(userID string) (*Record, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	blob, err := s.readPrivate(s.BlobPath(userID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials for %s: %w", userID, err)
	}
	if isSealed(blob) {
		if s.sealer == nil {
			return nil, ErrSealed
		}
		if blob, err = s.sealer.Open(blob); err != nil {
			return nil, err
		}
	}

	record := &Record{UserID: userID, Blob: blob}
	meta, err := s.Metadata(userID)
	if err != nil {
		return nil, err
	}
	if meta != nil {
		record.AuthenticatedAt = meta.AuthenticatedAt
		record.Provider = meta.Provider
		record.Partial = meta.Partial
	}
	return record, nil
}

// Metadata reads a user's metadata. The blob is authoritative: a metadata
// file without a blob reports nil, and a blob without a metadata file gets
// metadata synthesized from its modification time.
func (s *FileStore) Metadata(userID string) (*Metadata, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	info, err := os.Stat(s.BlobPath(userID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat credentials for %s: %w", userID, err)
	}
	data, err := s.readPrivate(s.metaPath(userID))
	if err == nil {
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("decode credential metadata for %s: %w", userID, err)
		}
		return &meta, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read credential metadata for %s: %w", userID, err)
	}
	return &Metadata{
		UserID:          userID,
		Authenticated:   true,
		AuthenticatedAt: info.ModTime().UTC(),
		CredentialsPath: s.BlobPath(userID),
	}, nil
}

// Save writes the blob and then its metadata, each atomically.
func (s *FileStore) Save(record Record) error {
	if err := ValidateUserID(record.UserID); err != nil {
		return err
	}
	if len(record.Blob) == 0 {
		return errors.New("save credentials: empty blob")
	}
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("ensure credentials directory: %w", err)
	}

	blob := record.Blob
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(blob)
		if err != nil {
			return fmt.Errorf("seal credentials: %w", err)
		}
		blob = sealed
	}
	if err := writeAtomic(s.BlobPath(record.UserID), blob); err != nil {
		return fmt.Errorf("write credentials for %s: %w", record.UserID, err)
	}

	meta := Metadata{
		UserID:          record.UserID,
		Authenticated:   true,
		AuthenticatedAt: record.AuthenticatedAt.UTC(),
		CredentialsPath: s.BlobPath(record.UserID),
		Provider:        record.Provider,
		Partial:         record.Partial,
		Encrypted:       s.sealer != nil,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential metadata: %w", err)
	}
	if err := writeAtomic(s.metaPath(record.UserID), data); err != nil {
		return fmt.Errorf("write credential metadata for %s: %w", record.UserID, err)
	}
	return nil
}

// Delete removes the metadata and then the blob. Missing files are not an
// error.
func (s *FileStore) Delete(userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	var errs []error
	for _, path := range []string{s.metaPath(userID), s.BlobPath(userID)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("delete credentials for %s: %w", userID, err)
	}
	return nil
}

// readPrivate refuses files owned by another uid and re-tightens loose modes
// before reading.
func (s *FileStore) readPrivate(path string) ([]byte, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	if int(st.Uid) != unix.Geteuid() {
		return nil, fmt.Errorf("%w: %s", ErrForeignOwner, path)
	}
	if st.Mode&0o077 != 0 {
		if err := os.Chmod(path, filePerm); err != nil {
			return nil, fmt.Errorf("restrict permissions on %s: %w", path, err)
		}
	}
	return os.ReadFile(path)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+strings.TrimSuffix(filepath.Base(path), ".json")+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
