package templates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// Placeholder is the marker replaced by a connection qualified name
	Placeholder = "PLACEHOLDER_TO_BE_REPLACED"

	// ConnectionsKey is the config key of the connections query
	ConnectionsKey = "connections_api"

	// DefaultKey is the template used for connectors missing from api_map
	DefaultKey = "databases_api"
)

// ErrInvalidTemplate is returned for templates that cannot be sent as-is
var ErrInvalidTemplate = errors.New("invalid query template")

// QueryTemplate is a search request body plus the endpoint it is posted to.
// Payload holds compact serialized JSON and is never mutated.
type QueryTemplate struct {
	Key     string
	URL     string
	Payload []byte
}

// NewTemplate validates and compacts a raw JSON payload
func NewTemplate(key, url string, payload []byte) (QueryTemplate, error) {
	if strings.TrimSpace(url) == "" {
		return QueryTemplate{}, fmt.Errorf("%w: %s has no url", ErrInvalidTemplate, key)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return QueryTemplate{}, fmt.Errorf("%w: %s has no payload", ErrInvalidTemplate, key)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return QueryTemplate{}, fmt.Errorf("%w: %s payload is not valid JSON: %v", ErrInvalidTemplate, key, err)
	}

	return QueryTemplate{Key: key, URL: url, Payload: buf.Bytes()}, nil
}

// PlaceholderCount reports how many markers the payload contains
func (t QueryTemplate) PlaceholderCount() int {
	return bytes.Count(t.Payload, []byte(Placeholder))
}

// Substitute returns a copy of the payload with the marker replaced by value.
// The value is escaped as JSON string content so any qualified name yields a
// valid document; all other bytes are left untouched.
func (t QueryTemplate) Substitute(value string) ([]byte, error) {
	if t.PlaceholderCount() != 1 {
		return nil, fmt.Errorf("%w: %s must contain %s exactly once", ErrInvalidTemplate, t.Key, Placeholder)
	}

	escaped, err := escapeJSONString(value)
	if err != nil {
		return nil, err
	}

	return bytes.Replace(t.Payload, []byte(Placeholder), escaped, 1), nil
}

// escapeJSONString encodes s as JSON string content without the surrounding quotes
func escapeJSONString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("failed to escape value: %w", err)
	}

	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return out[1 : len(out)-1], nil
}
