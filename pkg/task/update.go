package task

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedField is returned by Update for keys it does not know.
	ErrUnsupportedField = errors.New("unsupported task field")
	// ErrInvalidValue is returned by Update for a value of the wrong shape.
	ErrInvalidValue = errors.New("invalid task field value")
)

// updateColumn maps an Update key to its column and storable value.
func updateColumn(key string, v any) (string, any, error) {
	switch key {
	case "status", "title", "description", "assignee":
		s, ok := v.(string)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s must be a string", ErrInvalidValue, key)
		}
		if key == "title" && strings.TrimSpace(s) == "" {
			return "", nil, fmt.Errorf("%w: title must not be empty", ErrInvalidValue)
		}
		return textColumns[key], s, nil
	case "blockers", "help_needed":
		encoded, err := encodeEntries(v)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
		}
		return key, encoded, nil
	case "estimated_days", "actual_days_taken":
		n, err := optionalInt(v)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
		}
		return key, n, nil
	}
	return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedField, key)
}

var textColumns = map[string]string{
	"status":      "status",
	"title":       "task_title",
	"description": "task_description",
	"assignee":    "participant_assigned",
}

// optionalInt accepts the numeric shapes produced by JSON decoding and Go callers.
func optionalInt(v any) (*int, error) {
	var n int
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		if x != float64(int(x)) {
			return nil, fmt.Errorf("%v is not a whole number", x)
		}
		n = int(x)
	case *int:
		return x, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
	return &n, nil
}
