package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Options is a free-form settings bag for parser- and transform-specific
// configuration. Accessors do minimal coercion and fall back to the given
// default when a key is missing or has an unexpected type. A nil Options is
// valid and behaves as empty.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool value for key or def. YAML and env-derived files
// sometimes carry "true"/"false" strings; those are accepted too.
func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64 and yaml.v3 as int; both are accepted.
func (o Options) Int(key string, def int) int {
	switch n := o[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

// StringSlice returns a []string for key when the value is a list of
// strings. Non-string items are skipped. Returns nil when absent.
func (o Options) StringSlice(key string) []string {
	switch vv := o[key].(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	}
	return nil
}

// Any returns the raw value for key, or nil.
func (o Options) Any(key string) any { return o[key] }

// Decode re-encodes the whole bag as JSON and decodes it into dst. It is how
// transforms turn their options into typed structs.
func (o Options) Decode(dst any) error {
	b, err := json.Marshal(map[string]any(o))
	if err != nil {
		return fmt.Errorf("options: encode: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("options: decode: %w", err)
	}
	return nil
}

// UnmarshalJSON makes a missing or null "options" object decode to an empty,
// non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
