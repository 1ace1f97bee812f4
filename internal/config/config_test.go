package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Pipeline decoding tests
// -----------------------------------------------------------------------------
//
// Pipelines are decoded from strings so the tests stay hermetic; Load is
// exercised once against a temp file to cover extension dispatch.

const pipelineJSON = `{
  "job": "vehicles",
  "inputs": [
    { "step": "owners",
      "source": { "kind": "file", "file": { "path": "a.csv", "encoding": "windows-1250" } },
      "parser": { "kind": "delimited", "options": { "separator": ";", "escape": "\\", "has_header": true } } },
    { "source": { "kind": "file", "file": { "path": "b.csv" } },
      "parser": { "kind": "delimited" } }
  ],
  "transform": [
    { "kind": "select_values", "options": { "meta": [ { "name": "pcv", "type": "Integer" } ] } }
  ],
  "storage": {
    "kind": "postgres",
    "db": { "dsn": "postgresql://u:p@h/db", "table": "public.t", "columns": ["pcv"], "auto_create_table": true }
  },
  "runtime": { "transform_workers": 2, "batch_size": 500, "channel_buffer": 64 },
  "compat": { "select_values_type_defaults": true },
  "trigger": { "kind": "schedule", "schedule": "*/5 * * * *" }
}`

const pipelineYAML = `
job: vehicles
inputs:
  - step: owners
    source: { kind: file, file: { path: a.csv, encoding: windows-1250 } }
    parser: { kind: delimited, options: { separator: ";", escape: "\\", has_header: true } }
  - source: { kind: file, file: { path: b.csv } }
    parser: { kind: delimited }
transform:
  - kind: select_values
    options:
      meta:
        - { name: pcv, type: Integer }
storage:
  kind: postgres
  db: { dsn: "postgresql://u:p@h/db", table: public.t, columns: [pcv], auto_create_table: true }
runtime: { transform_workers: 2, batch_size: 500, channel_buffer: 64 }
compat: { select_values_type_defaults: true }
trigger: { kind: schedule, schedule: "*/5 * * * *" }
`

/*
TestDecode_JSONAndYAMLAgree checks that the same pipeline written as JSON and
as YAML decodes to equivalent structs.
*/
func TestDecode_JSONAndYAMLAgree(t *testing.T) {
	t.Parallel()

	pj, err := Decode([]byte(pipelineJSON), ".json")
	require.NoError(t, err, "json")
	py, err := Decode([]byte(pipelineYAML), ".yaml")
	require.NoError(t, err, "yaml")

	for name, p := range map[string]Pipeline{"json": pj, "yaml": py} {
		assert.Equal(t, "vehicles", p.Job, name)
		if assert.Len(t, p.Inputs, 2, name) {
			assert.Equal(t, "windows-1250", p.Inputs[0].Source.File.Encoding, name)
			assert.Equal(t, `\`, p.Inputs[0].Parser.Options.String("escape", ""), name)
			assert.True(t, p.Inputs[0].Parser.Options.Bool("has_header", false), name)
		}
		assert.True(t, p.Storage.DB.AutoCreateTable, name)
		assert.Equal(t, []string{"pcv"}, p.Storage.DB.Columns, name)
		assert.Equal(t, 500, p.Runtime.BatchSize, name)
		assert.Equal(t, 2, p.Runtime.TransformWorkers, name)
		assert.True(t, p.Compat.TypeDefaults, name)
		assert.Equal(t, TriggerSchedule, p.Trigger.EffectiveKind(), name)

		var so selectOptions
		require.NoError(t, p.Transform[0].Options.Decode(&so), name)
		require.Len(t, so.Meta, 1, name)
		assert.Equal(t, "Integer", so.Meta[0].Type, name)
	}
}

func TestLoad_DispatchesOnExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "p.yml")
	require.NoError(t, os.WriteFile(path, []byte(pipelineYAML), 0o600))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "vehicles", p.Job)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err, "missing file")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err, "parse error")
}

func TestAllInputs(t *testing.T) {
	t.Parallel()

	single := Pipeline{Source: Source{Kind: "file"}, Parser: Parser{Kind: "delimited"}}
	got := single.AllInputs()
	require.Len(t, got, 1)
	assert.Equal(t, "input", got[0].Step)

	multi := Pipeline{Inputs: []Input{{Step: "a"}, {}}}
	got = multi.AllInputs()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Step)
	assert.Equal(t, "input2", got[1].Step)

	assert.Nil(t, (Pipeline{}).AllInputs())
}

// -----------------------------------------------------------------------------
// Options accessors
// -----------------------------------------------------------------------------

func TestOptions_Accessors(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":     "x",
		"b":     true,
		"bs":    "false",
		"f":     float64(3),
		"i":     7,
		"list":  []any{"a", 1, "b"},
		"slist": []string{"c"},
	}
	assert.Equal(t, "x", o.String("s", "d"))
	assert.Equal(t, "d", o.String("missing", "d"))
	assert.Equal(t, "d", o.String("b", "d"), "non-string value falls back")

	assert.True(t, o.Bool("b", false))
	assert.False(t, o.Bool("bs", true))
	assert.True(t, o.Bool("missing", true))

	assert.Equal(t, 3, o.Int("f", 0))
	assert.Equal(t, 7, o.Int("i", 0))
	assert.Equal(t, 9, o.Int("s", 9))

	assert.Equal(t, []string{"a", "b"}, o.StringSlice("list"))
	assert.Equal(t, []string{"c"}, o.StringSlice("slist"))
	assert.Nil(t, o.StringSlice("missing"))
	assert.Nil(t, o.Any("missing"))

	var nilOpts Options
	assert.Equal(t, "d", nilOpts.String("x", "d"))
}

func TestOptions_UnmarshalNull(t *testing.T) {
	t.Parallel()

	p, err := Decode([]byte(`{"parser":{"kind":"csv","options":null}}`), ".json")
	require.NoError(t, err)
	assert.NotNil(t, p.Parser.Options)
}

// -----------------------------------------------------------------------------
// Compatibility switches and trigger
// -----------------------------------------------------------------------------

func TestResolveCompat(t *testing.T) {
	t.Parallel()

	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	c := ResolveCompat(Compat{TypeDefaults: true}, getenv)
	assert.True(t, c.TypeDefaults, "unset env keeps file values")
	assert.False(t, c.LenientEnclosure)

	env[EnvTypeDefaults] = "N"
	env[EnvLenientEnclosure] = "Y"
	c = ResolveCompat(Compat{TypeDefaults: true}, getenv)
	assert.False(t, c.TypeDefaults, "env overrides")
	assert.True(t, c.LenientEnclosure)

	env[EnvTypeDefaults] = "maybe"
	c = ResolveCompat(Compat{TypeDefaults: true}, getenv)
	assert.True(t, c.TypeDefaults, "unparsable env is ignored")
}

func TestTrigger_Defaults(t *testing.T) {
	t.Parallel()

	var tr Trigger
	assert.Equal(t, TriggerOnce, tr.EffectiveKind())
	assert.Equal(t, 500*time.Millisecond, tr.DebounceDuration())
	tr.Debounce = "2s"
	assert.Equal(t, 2*time.Second, tr.DebounceDuration())
}
