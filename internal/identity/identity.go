// Package identity pulls the persistent user identifier out of the opaque
// profile a client sends with start-searching. The profile is otherwise never
// interpreted by the server.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultField is the gjson path holding the persistent id.
const DefaultField = "uid"

// MaxIDLength bounds the accepted identifier.
const MaxIDLength = 128

var ErrMissing = errors.New("identity: persistent id missing from profile")

// Extractor reads the persistent id at a fixed gjson path.
type Extractor struct {
	path string
}

// NewExtractor returns an Extractor for path; an empty path means DefaultField.
func NewExtractor(path string) *Extractor {
	if path == "" {
		path = DefaultField
	}
	return &Extractor{path: path}
}

// Extract returns the persistent id found in profile. Strings and numbers
// are accepted; anything else, or an empty value, is ErrMissing.
func (e *Extractor) Extract(profile json.RawMessage) (string, error) {
	if !gjson.ValidBytes(profile) {
		return "", fmt.Errorf("identity: profile is not valid JSON")
	}
	v := gjson.GetBytes(profile, e.path)
	if v.Type != gjson.String && v.Type != gjson.Number {
		return "", ErrMissing
	}
	id := strings.TrimSpace(v.String())
	if id == "" {
		return "", ErrMissing
	}
	if len(id) > MaxIDLength {
		return "", fmt.Errorf("identity: persistent id exceeds %d bytes", MaxIDLength)
	}
	return id, nil
}
