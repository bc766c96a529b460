// Package variables implements the per-conversation variable store flows read
// and write through {{name}} placeholders.
package variables

import (
	"encoding/json"
	"maps"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"
)

// System variables bound on every turn.
const (
	LastUserMessage = "last_user_message"
	ConversationID  = "conversation_id"
	UserID          = "user_id"
	PageID          = "page_id"
	Platform        = "platform"
)

// Store is a key/value view over a conversation's variables. It wraps the map
// held by the execution state, so writes are visible to the state directly.
// A Store is owned by a single turn and is not safe for concurrent use.
type Store struct {
	values map[string]any
}

// New wraps values; a nil map is replaced with an empty one.
func New(values map[string]any) *Store {
	if values == nil {
		values = map[string]any{}
	}

	return &Store{values: values}
}

// Get resolves name. A key stored verbatim wins; otherwise a dotted name such
// as "order.items.0.sku" is resolved into nested JSON values.
func (s *Store) Get(name string) (any, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	if value, ok := s.values[name]; ok {
		return value, true
	}

	if !strings.Contains(name, ".") {
		return nil, false
	}

	container := gabs.Wrap(s.values)
	if !container.ExistsP(name) {
		return nil, false
	}

	return container.Path(name).Data(), true
}

// Has reports whether name resolves to a value.
func (s *Store) Has(name string) bool {
	_, ok := s.Get(name)

	return ok
}

// String resolves name and renders it as text. Missing variables render as "".
func (s *Store) String(name string) string {
	value, ok := s.Get(name)
	if !ok {
		return ""
	}

	return Stringify(value)
}

// Set binds value to name.
func (s *Store) Set(name string, value any) {
	s.values[name] = value
}

// SetAll binds every entry of values.
func (s *Store) SetAll(values map[string]any) {
	maps.Copy(s.values, values)
}

// Delete removes name from the store.
func (s *Store) Delete(name string) {
	delete(s.values, name)
}

// Map returns the underlying map.
func (s *Store) Map() map[string]any {
	return s.values
}

// Snapshot returns a shallow copy of the current bindings.
func (s *Store) Snapshot() map[string]any {
	return maps.Clone(s.values)
}

// Stringify renders a variable value for interpolation and comparison.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}

		return string(encoded)
	}
}
