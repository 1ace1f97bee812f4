package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validPipeline() Pipeline {
	return Pipeline{
		Job:    "job",
		Source: Source{Kind: "file", File: SourceFile{Path: "in.csv"}},
		Parser: Parser{Kind: "delimited", Options: Options{"separator": ";"}},
		Transform: []Transform{{
			Kind: "select_values",
			Options: Options{
				"meta": []any{map[string]any{"name": "n", "type": "Integer", "time_zone": "UTC", "gregorian_change": "1752-09-14"}},
			},
		}},
		Storage: Storage{
			Kind: "postgres",
			DB:   DBConfig{DSN: "postgres://user@localhost/db", Table: "public.t"},
		},
		Runtime: RuntimeConfig{BatchSize: 100},
	}
}

/*
TestValidatePipeline_ValidMinimal verifies that a well-formed pipeline produces
no issues at all.
*/
func TestValidatePipeline_ValidMinimal(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ValidatePipeline(validPipeline()))
}

func TestValidatePipeline_MissingJob(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Job = " "
	issues := ValidatePipeline(p)
	require.True(t, hasIssue(t, issues, SeverityError, "job", "job must not be empty"), "%+v", issues)
	assert.True(t, HasErrors(issues))
}

/*
TestValidatePipeline_Inputs covers the input list: mixing the shorthand with
inputs, duplicate steps, and per-input source/parser paths.
*/
func TestValidatePipeline_Inputs(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Inputs = []Input{{Step: "a"}}
	assert.True(t, hasIssue(t, ValidatePipeline(p), SeverityError, "source", "not both"), "mixing source and inputs")

	p = validPipeline()
	p.Source, p.Parser = Source{}, Parser{}
	assert.True(t, hasIssue(t, ValidatePipeline(p), SeverityError, "inputs", "at least one"), "no inputs")

	p.Inputs = []Input{
		{Step: "a", Source: Source{Kind: "file", File: SourceFile{Path: "a"}}, Parser: Parser{Kind: "csv"}},
		{Step: "a", Source: Source{Kind: "file"}, Parser: Parser{Kind: "json"}},
	}
	issues := ValidatePipeline(p)
	for _, want := range []struct{ path, msg string }{
		{"inputs[1].step", "duplicate"},
		{"inputs[1].source.file.path", "non-empty path"},
		{"inputs[1].parser.kind", "unsupported"},
	} {
		assert.True(t, hasIssue(t, issues, SeverityError, want.path, want.msg), "missing %s: %+v", want.path, issues)
	}
}

func TestValidatePipeline_ParserOptions(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Parser.Options = Options{"separator": ""}
	assert.True(t, hasIssue(t, ValidatePipeline(p), SeverityError, "parser.options.separator", "empty"), "empty separator")

	p.Parser.Options = Options{"separator": ";", "escape": ";"}
	assert.True(t, hasIssue(t, ValidatePipeline(p), SeverityError, "parser.options.escape", "differ"), "escape == separator")

	p.Parser.Options = Options{"escape": `"`}
	assert.True(t, hasIssue(t, ValidatePipeline(p), SeverityWarning, "parser.options.escape", "ignored"), "escape == enclosure")
}

func TestValidatePipeline_SelectValues(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Transform = []Transform{{Kind: "select_values", Options: Options{
		"select": []any{map[string]any{"name": ""}},
		"meta": []any{map[string]any{
			"name": "", "type": "varchar", "time_zone": "Mars/Base", "gregorian_change": "14.9.1752",
		}},
	}}}
	issues := ValidatePipeline(p)
	for _, path := range []string{
		"transform[0].options.select[0].name",
		"transform[0].options.meta[0].name",
		"transform[0].options.meta[0].type",
		"transform[0].options.meta[0].time_zone",
		"transform[0].options.meta[0].gregorian_change",
	} {
		assert.True(t, hasIssue(t, issues, SeverityError, path, ""), "missing issue at %s: %+v", path, issues)
	}

	p.Transform = []Transform{{Kind: "select_values"}}
	assert.True(t, hasIssue(t, ValidatePipeline(p), SeverityWarning, "transform[0].options", "unchanged"), "empty select_values warns")

	p.Transform = []Transform{{Kind: "normalize"}}
	assert.True(t, hasIssue(t, ValidatePipeline(p), SeverityError, "transform[0].kind", "unsupported"), "unknown transform")
}

/*
TestValidatePipeline_DeleteMode checks the keyed delete configuration:
conditions, BETWEEN bounds and the keyless guard.
*/
func TestValidatePipeline_DeleteMode(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Storage.Mode = "delete"
	issues := ValidatePipeline(p)
	require.True(t, hasIssue(t, issues, SeverityError, "storage.delete.table", ""), "%+v", issues)
	require.True(t, hasIssue(t, issues, SeverityError, "storage.delete.keys", "keyless"), "%+v", issues)

	p.Storage.Delete = DeleteConfig{
		Table: "t",
		Keys: []DeleteKey{
			{Stream: "id", Lookup: "id", Condition: "="},
			{Stream: "lo", Lookup: "d", Condition: "between"},
			{Lookup: "gone", Condition: "is  not null"},
			{Stream: "x", Lookup: "x", Condition: "~"},
		},
	}
	issues = ValidatePipeline(p)
	assert.True(t, hasIssue(t, issues, SeverityError, "storage.delete.keys[1].stream2", "BETWEEN"), "BETWEEN without stream2: %+v", issues)
	assert.False(t, hasIssue(t, issues, SeverityError, "storage.delete.keys[2].stream", ""), "IS NOT NULL needs no stream field: %+v", issues)
	assert.True(t, hasIssue(t, issues, SeverityError, "storage.delete.keys[3].condition", "unsupported"), "bad condition: %+v", issues)

	p.Storage.Mode = "upsert"
	assert.True(t, hasIssue(t, ValidatePipeline(p), SeverityError, "storage.mode", "upsert"), "bad mode")
}

func TestNormalizeCondition(t *testing.T) {
	t.Parallel()

	cases := map[string]string{"": "=", " like ": "LIKE", "is   null": "IS NULL", "<>": "<>"}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCondition(in), "NormalizeCondition(%q)", in)
	}
}

func TestValidatePipeline_RuntimeAndTrigger(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Runtime = RuntimeConfig{BatchSize: -1, TransformWorkers: -1, ChannelBuffer: -1, ErrorLimit: -1}
	issues := ValidatePipeline(p)
	for _, path := range []string{"runtime.batch_size", "runtime.transform_workers", "runtime.channel_buffer", "runtime.error_limit"} {
		assert.True(t, hasIssue(t, issues, SeverityError, path, "negative"), "missing %s", path)
	}

	p = validPipeline()
	p.Trigger = Trigger{Kind: "schedule", Schedule: "every minute"}
	assert.True(t, hasIssue(t, ValidatePipeline(p), SeverityError, "trigger.schedule", "invalid cron"), "bad cron accepted")
	p.Trigger = Trigger{Kind: "schedule", Schedule: "@hourly"}
	assert.False(t, HasErrors(ValidatePipeline(p)), "@hourly rejected")
	p.Trigger = Trigger{Kind: "file_watch", Debounce: "soon"}
	assert.True(t, hasIssue(t, ValidatePipeline(p), SeverityError, "trigger.debounce", ""), "bad debounce accepted")
	p.Trigger = Trigger{Kind: "webhook"}
	assert.True(t, hasIssue(t, ValidatePipeline(p), SeverityError, "trigger.kind", ""), "unknown trigger accepted")
}
