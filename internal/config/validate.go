package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"rowcore/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single lint finding. Path is a dotted path into the
// config, e.g. "inputs[1].source.file.path".
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline lints p without modifying it.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateInputs(p)...)
	issues = append(issues, validateTransforms(p.Transform)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateTrigger(p.Trigger)...)

	return issues
}

func validateInputs(p Pipeline) []Issue {
	if len(p.Inputs) > 0 && p.Source.Kind != "" {
		return []Issue{{
			Severity: SeverityError,
			Path:     "source",
			Message:  "use either source/parser or inputs, not both",
		}}
	}
	inputs := p.AllInputs()
	if len(inputs) == 0 {
		return []Issue{{
			Severity: SeverityError,
			Path:     "inputs",
			Message:  "at least one input is required",
		}}
	}

	var issues []Issue
	seen := map[string]bool{}
	for i, in := range inputs {
		prefix := fmt.Sprintf("inputs[%d]", i)
		if len(p.Inputs) == 0 {
			prefix = ""
		}
		if seen[in.Step] {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     join(prefix, "step"),
				Message:  fmt.Sprintf("duplicate input step %q", in.Step),
			})
		}
		seen[in.Step] = true
		issues = append(issues, validateSource(join(prefix, "source"), in.Source)...)
		issues = append(issues, validateParser(join(prefix, "parser"), in.Parser)...)
	}
	return issues
}

func join(prefix, path string) string {
	if prefix == "" {
		return path
	}
	return prefix + "." + path
}

func validateSource(path string, s Source) []Issue {
	switch strings.TrimSpace(s.Kind) {
	case "":
		return []Issue{{Severity: SeverityError, Path: path + ".kind", Message: "source kind must not be empty"}}
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			return []Issue{{Severity: SeverityError, Path: path + ".file.path", Message: "file source requires a non-empty path"}}
		}
		return nil
	}
	return []Issue{{
		Severity: SeverityWarning,
		Path:     path + ".kind",
		Message:  fmt.Sprintf("unknown source kind %q; ensure a matching implementation exists", s.Kind),
	}}
}

func validateParser(path string, p Parser) []Issue {
	switch strings.TrimSpace(p.Kind) {
	case "":
		return []Issue{{Severity: SeverityError, Path: path + ".kind", Message: "parser kind must not be empty"}}
	case "delimited", "csv":
	default:
		return []Issue{{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unsupported parser kind %q", p.Kind),
		}}
	}

	var issues []Issue
	if sep, ok := p.Options["separator"].(string); ok && sep == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".options.separator",
			Message:  "separator must not be empty",
		})
	}
	enc := p.Options.String("enclosure", `"`)
	if esc := p.Options.String("escape", ""); esc != "" && esc == p.Options.String("separator", ",") {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".options.escape",
			Message:  "escape must differ from the separator",
		})
	} else if esc != "" && esc == enc {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     path + ".options.escape",
			Message:  "escape equals the enclosure; doubled enclosures already cover this and the escape is ignored",
		})
	}
	return issues
}

// selectOptions mirrors the select_values options closely enough to lint
// them without depending on the transformer package.
type selectOptions struct {
	Select []struct {
		Name string `json:"name"`
	} `json:"select"`
	Remove []string `json:"remove"`
	Meta   []struct {
		Name            string `json:"name"`
		Type            string `json:"type"`
		TimeZone        string `json:"time_zone"`
		GregorianChange string `json:"gregorian_change"`
	} `json:"meta"`
}

// GregorianLayouts are the accepted formats of a gregorian_change value.
var GregorianLayouts = []string{"2006-01-02", "20060102"}

func validateTransforms(ts []Transform) []Issue {
	var issues []Issue
	for i, t := range ts {
		path := fmt.Sprintf("transform[%d]", i)
		switch strings.TrimSpace(t.Kind) {
		case "":
			issues = append(issues, Issue{Severity: SeverityError, Path: path + ".kind", Message: "transform kind must not be empty"})
			continue
		case "select_values":
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".kind",
				Message:  fmt.Sprintf("unsupported transform kind %q", t.Kind),
			})
			continue
		}

		var so selectOptions
		if err := t.Options.Decode(&so); err != nil {
			issues = append(issues, Issue{Severity: SeverityError, Path: path + ".options", Message: err.Error()})
			continue
		}
		if len(so.Select) == 0 && len(so.Remove) == 0 && len(so.Meta) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".options",
				Message:  "select_values has no select, remove or meta entries; rows pass through unchanged",
			})
		}
		for j, s := range so.Select {
			if strings.TrimSpace(s.Name) == "" {
				issues = append(issues, Issue{Severity: SeverityError, Path: fmt.Sprintf("%s.options.select[%d].name", path, j), Message: "name must not be empty"})
			}
		}
		for j, m := range so.Meta {
			mp := fmt.Sprintf("%s.options.meta[%d]", path, j)
			if strings.TrimSpace(m.Name) == "" {
				issues = append(issues, Issue{Severity: SeverityError, Path: mp + ".name", Message: "name must not be empty"})
			}
			if _, err := schema.ParseType(m.Type); err != nil {
				issues = append(issues, Issue{Severity: SeverityError, Path: mp + ".type", Message: err.Error()})
			}
			if m.TimeZone != "" {
				if _, err := time.LoadLocation(m.TimeZone); err != nil {
					issues = append(issues, Issue{Severity: SeverityError, Path: mp + ".time_zone", Message: err.Error()})
				}
			}
			if m.GregorianChange != "" && !parsesAny(m.GregorianChange, GregorianLayouts) {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     mp + ".gregorian_change",
					Message:  fmt.Sprintf("gregorian_change %q is not a date (want yyyy-MM-dd or yyyyMMdd)", m.GregorianChange),
				})
			}
		}
	}
	return issues
}

func parsesAny(s string, layouts []string) bool {
	for _, l := range layouts {
		if _, err := time.Parse(l, s); err == nil {
			return true
		}
	}
	return false
}

// DeleteConditions lists the conditions a delete key may use.
var DeleteConditions = []string{"=", "<>", "<", "<=", ">", ">=", "LIKE", "BETWEEN", "IS NULL", "IS NOT NULL"}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return []Issue{{Severity: SeverityError, Path: "storage.kind", Message: "storage.kind must not be empty"}}
	}
	switch s.Kind {
	case "postgres", "mysql", "mssql", "sqlite", "mongo":
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "storage.db.dsn", Message: "storage.db.dsn must not be empty"})
	}

	switch s.EffectiveMode() {
	case ModeInsert:
		if strings.TrimSpace(s.DB.Table) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: "storage.db.table", Message: "storage.db.table must not be empty"})
		}
	case ModeDelete:
		issues = append(issues, validateDelete(s.Delete)...)
		if s.DB.AutoCreateTable {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "storage.db.auto_create_table",
				Message:  "auto_create_table is ignored in delete mode",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.mode",
			Message:  fmt.Sprintf("storage.mode must be %q or %q, got %q", ModeInsert, ModeDelete, s.Mode),
		})
	}
	return issues
}

func validateDelete(d DeleteConfig) []Issue {
	var issues []Issue
	if strings.TrimSpace(d.Table) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "storage.delete.table", Message: "delete table must not be empty"})
	}
	if d.CommitSize < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "storage.delete.commit_size", Message: "commit_size must not be negative"})
	}
	if len(d.Keys) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.delete.keys",
			Message:  "at least one key is required; a keyless delete would empty the table",
		})
	}
	for i, k := range d.Keys {
		kp := fmt.Sprintf("storage.delete.keys[%d]", i)
		cond := NormalizeCondition(k.Condition)
		if !contains(DeleteConditions, cond) {
			issues = append(issues, Issue{Severity: SeverityError, Path: kp + ".condition", Message: fmt.Sprintf("unsupported condition %q", k.Condition)})
			continue
		}
		if strings.TrimSpace(k.Lookup) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: kp + ".lookup", Message: "lookup column must not be empty"})
		}
		nullCheck := cond == "IS NULL" || cond == "IS NOT NULL"
		if !nullCheck && strings.TrimSpace(k.Stream) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: kp + ".stream", Message: "stream field must not be empty"})
		}
		if cond == "BETWEEN" && strings.TrimSpace(k.Stream2) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: kp + ".stream2", Message: "BETWEEN needs a second stream field"})
		}
	}
	return issues
}

// NormalizeCondition upper-cases a delete condition and collapses spaces.
// An empty condition means "=".
func NormalizeCondition(c string) string {
	c = strings.Join(strings.Fields(strings.ToUpper(c)), " ")
	if c == "" {
		return "="
	}
	return c
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.BatchSize < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "runtime.batch_size", Message: "batch_size must not be negative"})
	}
	if r.TransformWorkers < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "runtime.transform_workers", Message: "transform_workers must not be negative"})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "runtime.channel_buffer", Message: "channel_buffer must not be negative"})
	}
	if r.ErrorLimit < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "runtime.error_limit", Message: "error_limit must not be negative"})
	}
	return issues
}

func validateTrigger(t Trigger) []Issue {
	switch t.EffectiveKind() {
	case TriggerOnce:
		return nil
	case TriggerSchedule:
		if _, err := cron.ParseStandard(t.Schedule); err != nil {
			return []Issue{{
				Severity: SeverityError,
				Path:     "trigger.schedule",
				Message:  fmt.Sprintf("invalid cron expression %q: %v", t.Schedule, err),
			}}
		}
		return nil
	case TriggerFileWatch:
		if t.Debounce != "" {
			if _, err := time.ParseDuration(t.Debounce); err != nil {
				return []Issue{{Severity: SeverityError, Path: "trigger.debounce", Message: err.Error()}}
			}
		}
		return nil
	}
	return []Issue{{
		Severity: SeverityError,
		Path:     "trigger.kind",
		Message:  fmt.Sprintf("trigger.kind must be one of %q, %q, %q", TriggerOnce, TriggerSchedule, TriggerFileWatch),
	}}
}
