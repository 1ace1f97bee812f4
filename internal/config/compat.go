package config

import (
	"strconv"
	"strings"
	"time"
)

// Environment overrides for the compatibility switches.
const (
	EnvTypeDefaults     = "ROWCORE_COMPAT_SELECT_VALUES_TYPE_DEFAULTS"
	EnvLenientEnclosure = "ROWCORE_COMPAT_LENIENT_ENCLOSURE"
)

// Compat holds switches that restore older behaviour.
type Compat struct {
	// TypeDefaults makes a select-values type change without an explicit
	// mask use the target type's default mask instead of keeping the source
	// type's.
	TypeDefaults bool `json:"select_values_type_defaults" yaml:"select_values_type_defaults"`

	// LenientEnclosure ends every delimited record at a physical line break,
	// even inside an open enclosure.
	LenientEnclosure bool `json:"lenient_enclosure" yaml:"lenient_enclosure"`
}

// ResolveCompat applies environment overrides to c. getenv is os.Getenv in
// production. A set variable wins over the file in both directions; an unset
// or unparsable one leaves the file value alone.
func ResolveCompat(c Compat, getenv func(string) string) Compat {
	if b, ok := envBool(getenv(EnvTypeDefaults)); ok {
		c.TypeDefaults = b
	}
	if b, ok := envBool(getenv(EnvLenientEnclosure)); ok {
		c.LenientEnclosure = b
	}
	return c
}

func envBool(s string) (bool, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "":
		return false, false
	case "Y", "YES":
		return true, true
	case "N", "NO":
		return false, true
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return b, true
}

// Trigger kinds.
const (
	TriggerOnce      = "once"
	TriggerSchedule  = "schedule"
	TriggerFileWatch = "file_watch"
)

// Trigger decides when the pipeline runs: once (default), on a cron
// schedule, or whenever one of the input files is written.
type Trigger struct {
	Kind string `json:"kind" yaml:"kind"`

	// Schedule is a standard 5-field cron expression (or a descriptor such
	// as "@hourly") for the "schedule" kind.
	Schedule string `json:"schedule" yaml:"schedule"`

	// Debounce is how long a file must stay quiet before a "file_watch"
	// run starts, as a Go duration. Default 500ms.
	Debounce string `json:"debounce" yaml:"debounce"`
}

// EffectiveKind returns Kind with the default applied.
func (t Trigger) EffectiveKind() string {
	if strings.TrimSpace(t.Kind) == "" {
		return TriggerOnce
	}
	return strings.ToLower(strings.TrimSpace(t.Kind))
}

// DebounceDuration parses Debounce, falling back to 500ms.
func (t Trigger) DebounceDuration() time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(t.Debounce)); err == nil && d > 0 {
		return d
	}
	return 500 * time.Millisecond
}
