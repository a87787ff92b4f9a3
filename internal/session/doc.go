// Package session manages notebook provider sessions per user.
//
// Manager obtains session state through an AuthProvider (BrowserProvider for
// the interactive login, BlobProvider for uploads), persists it with a
// credentials.Store, and hands out scoped notebook.Client values bound to the
// stored state. A login is exclusive per user; a concurrent attempt for the
// same user fails fast with ErrAuthInProgress.
package session
