package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ArgumentError reports a missing or malformed tool argument.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q %s", e.Name, e.Reason)
}

// Args are the raw arguments of a tool call, as decoded from JSON.
type Args map[string]any

func (a Args) has(name string) bool {
	v, ok := a[name]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

// String returns the argument as text. Numbers and booleans are formatted,
// a missing argument is the empty string.
func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", nil
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case bool:
		return strconv.FormatBool(val), nil
	case fmt.Stringer:
		return val.String(), nil
	}
	return "", &ArgumentError{Name: name, Reason: fmt.Sprintf("has unsupported type %T", v)}
}

// Int returns the argument as an integer, or def when it is absent.
func (a Args) Int(name string, def int) (int, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != math.Trunc(val) {
			return 0, &ArgumentError{Name: name, Reason: "must be a whole number"}
		}
		return int(val), nil
	case string:
		if strings.TrimSpace(val) == "" {
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, &ArgumentError{Name: name, Reason: "must be a whole number"}
		}
		return n, nil
	}
	return 0, &ArgumentError{Name: name, Reason: fmt.Sprintf("has unsupported type %T", v)}
}
