// Package urischeme parses and constructs kairos://mem/<uuid> URIs
// and defines the reserved sentinel URIs search() hands
// back for the refine/create choices.
package urischeme

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const scheme = "kairos://mem/"

// ErrInvalidURI indicates a URI is not a well-formed kairos://mem/<uuid> URI.
var ErrInvalidURI = errors.New("invalid kairos memory uri")

// Sentinel step identities, reserved and never mintable.
const (
	CreateNewUUID    = "00000000-0000-0000-0000-000000002001"
	RefineSearchUUID = "00000000-0000-0000-0000-000000002002"
)

// CreateNewURI and RefineSearchURI are the fixed sentinel URIs search()
// appends to its choices.
var (
	CreateNewURI    = New(CreateNewUUID)
	RefineSearchURI = New(RefineSearchUUID)
)

// New builds a kairos://mem/<uuid> URI from a canonical UUID string.
func New(id string) string {
	return scheme + id
}

// Parse extracts the UUID from a kairos://mem/<uuid> URI. Returns
// ErrInvalidURI if the URI is syntactically malformed or its UUID segment
// does not parse as a canonical UUID.
func Parse(uri string) (string, error) {
	if !strings.HasPrefix(uri, scheme) {
		return "", fmt.Errorf("%w: missing %q prefix", ErrInvalidURI, scheme)
	}
	id := strings.TrimPrefix(uri, scheme)
	if id == "" {
		return "", fmt.Errorf("%w: empty uuid segment", ErrInvalidURI)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	return parsed.String(), nil
}

// IsSentinel reports whether uuid is one of the reserved sentinel ids.
func IsSentinel(id string) bool {
	return id == CreateNewUUID || id == RefineSearchUUID
}
