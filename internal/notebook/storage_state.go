package notebook

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Cookie mirrors one entry of a browser storage-state snapshot.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// StorageEntry is one localStorage key.
type StorageEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Origin holds localStorage captured for one origin.
type Origin struct {
	Origin       string         `json:"origin"`
	LocalStorage []StorageEntry `json:"localStorage"`
}

// StorageState is the credential blob format: cookies plus per-origin
// localStorage, the shape browser automation tools export.
type StorageState struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins"`
}

// ParseStorageState decodes and sanity-checks a credential blob.
func ParseStorageState(blob []byte) (StorageState, error) {
	var state StorageState
	if err := json.Unmarshal(blob, &state); err != nil {
		return StorageState{}, fmt.Errorf("%w: %v", ErrInvalidStorageState, err)
	}
	if len(state.Cookies) == 0 && len(state.Origins) == 0 {
		return StorageState{}, fmt.Errorf("%w: no cookies or origins", ErrInvalidStorageState)
	}
	for i, c := range state.Cookies {
		if strings.TrimSpace(c.Name) == "" {
			return StorageState{}, fmt.Errorf("%w: cookie %d has no name", ErrInvalidStorageState, i)
		}
	}
	return state, nil
}

// Marshal encodes the state as a credential blob.
func (s StorageState) Marshal() ([]byte, error) {
	if s.Cookies == nil {
		s.Cookies = []Cookie{}
	}
	if s.Origins == nil {
		s.Origins = []Origin{}
	}
	return json.Marshal(s)
}

// HTTPCookies converts unexpired cookies for use on outgoing requests.
func (s StorageState) HTTPCookies(now time.Time) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		// Session cookies carry -1 or 0.
		if c.Expires > 0 && time.Unix(int64(c.Expires), 0).Before(now) {
			continue
		}
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return out
}
