// Package store provides the byte-level persistence backends the session
// layer writes its state through. Backends know nothing about sessions; they
// hold a single opaque payload.
package store

// Backend persists one opaque payload. Implementations must be safe for
// concurrent use.
type Backend interface {
	// Load returns the stored payload. found is false when nothing is stored.
	Load() (data []byte, found bool, err error)

	// Save overwrites the stored payload.
	Save(data []byte) error

	// Clear removes the stored payload. Clearing an empty backend is not an
	// error.
	Clear() error
}
