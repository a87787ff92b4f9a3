package credentials

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	sealVersion = 1
	saltSize    = 16
	keySize     = 32
	scryptN     = 1 << 15
	scryptR     = 8
	scryptP     = 1
)

var sealMarker = []byte(`{"sealed":`)

// envelope is the on-disk form of an encrypted blob.
type envelope struct {
	Sealed int    `json:"sealed"`
	Salt   []byte `json:"salt"`
	Nonce  []byte `json:"nonce"`
	Data   []byte `json:"data"`
}

// Sealer encrypts blobs with AES-256-GCM under a key derived from a passphrase.
type Sealer struct {
	passphrase []byte
}

// NewSealer returns nil when passphrase is empty, which disables sealing.
func NewSealer(passphrase string) *Sealer {
	if passphrase == "" {
		return nil
	}
	return &Sealer{passphrase: []byte(passphrase)}
}

// Seal encrypts plaintext with a fresh salt and nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return json.Marshal(envelope{
		Sealed: sealVersion,
		Salt:   salt,
		Nonce:  nonce,
		Data:   gcm.Seal(nil, nonce, plaintext, nil),
	})
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("decode sealed blob: %w", err)
	}
	if env.Sealed != sealVersion {
		return nil, fmt.Errorf("unsupported sealed blob version %d", env.Sealed)
	}
	gcm, err := s.aead(env.Salt)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != gcm.NonceSize() {
		return nil, errors.New("sealed blob has malformed nonce")
	}
	plaintext, err := gcm.Open(nil, env.Nonce, env.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential blob: %w", err)
	}
	return plaintext, nil
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(s.passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func isSealed(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), sealMarker)
}
