package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
)

// Entry is a single blocker or help-needed item. Items are recorded either
// as bare strings or as objects carrying a name; the stored encoding is
// preserved when an Entry is marshalled again.
type Entry struct {
	Name string
	raw  json.RawMessage
}

// NewEntry returns an Entry that encodes as a bare JSON string.
func NewEntry(name string) Entry {
	return Entry{Name: name}
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}
	return json.Marshal(e.Name)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return err
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		e.Name = s
		e.raw = buf.Bytes()
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("entry must be a string or an object: %w", err)
	}
	e.Name = entryName(obj, buf.String())
	e.raw = buf.Bytes()
	return nil
}

func entryName(obj map[string]any, fallback string) string {
	for _, key := range []string{"name", "title", "description", "item"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// Names returns the display names of entries.
func Names(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// decodeEntries parses a JSON list column. NULL and empty columns contribute
// nothing. A malformed column is logged and treated as empty, so one bad row
// cannot hide the rest of a subtree.
func decodeEntries(taskID string, column *string) []Entry {
	if column == nil || *column == "" || *column == "null" {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(*column), &entries); err != nil {
		log.Printf("task: ignoring malformed entry list on %s: %v", taskID, err)
		return nil
	}
	return entries
}

// encodeEntries renders v as a JSON list column, or NULL when v is empty.
// v may be []Entry, []string or any JSON-encodable list.
func encodeEntries(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode entries: %w", err)
	}
	if string(b) == "null" || string(b) == "[]" {
		return nil, nil
	}
	var probe []Entry
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("entries must be a JSON list: %w", err)
	}
	s := string(b)
	return &s, nil
}
