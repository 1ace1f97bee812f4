// Package config defines the pipeline file model. A pipeline is decoded from
// JSON or YAML (see Load) and passed through the program as plain structs;
// parser and transform settings that vary by kind live in an Options bag
// with typed accessors.
//
// Example (trimmed):
//
//	{
//	  "job": "vehicles",
//	  "inputs": [
//	    { "step": "owners", "source": { "kind": "file", "file": { "path": "a.csv", "encoding": "windows-1250" } },
//	      "parser": { "kind": "delimited", "options": { "separator": ";", "escape": "\\" } } }
//	  ],
//	  "transform": [
//	    { "kind": "select_values", "options": { "meta": [ { "name": "pcv", "type": "Integer" } ] } }
//	  ],
//	  "storage": { "kind": "postgres", "db": { "dsn": "...", "table": "public.t", "columns": ["pcv"] } }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pipeline is the top-level object of a pipeline file.
type Pipeline struct {
	// Job names the pipeline in logs and metrics.
	Job string `json:"job" yaml:"job"`

	// Source and Parser describe a single input. They are shorthand for an
	// Inputs list of one; see AllInputs.
	Source Source `json:"source" yaml:"source"`
	Parser Parser `json:"parser" yaml:"parser"`

	// Inputs lists several inputs whose layouts are merged into one.
	Inputs []Input `json:"inputs" yaml:"inputs"`

	// Transform lists the ordered steps applied to every row.
	Transform []Transform `json:"transform" yaml:"transform"`

	Storage Storage       `json:"storage" yaml:"storage"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
	Compat  Compat        `json:"compat" yaml:"compat"`
	Trigger Trigger       `json:"trigger" yaml:"trigger"`
}

// Input is one labelled source plus the parser that reads it.
type Input struct {
	// Step labels the input; renamed fields record it as their origin.
	Step   string `json:"step" yaml:"step"`
	Source Source `json:"source" yaml:"source"`
	Parser Parser `json:"parser" yaml:"parser"`
}

// AllInputs returns Inputs, or the single Source/Parser pair as a one-element
// list labelled "input" when Inputs is empty.
func (p Pipeline) AllInputs() []Input {
	if len(p.Inputs) > 0 {
		out := make([]Input, len(p.Inputs))
		for i, in := range p.Inputs {
			if strings.TrimSpace(in.Step) == "" {
				in.Step = fmt.Sprintf("input%d", i+1)
			}
			out[i] = in
		}
		return out
	}
	if p.Source.Kind == "" && p.Parser.Kind == "" {
		return nil
	}
	return []Input{{Step: "input", Source: p.Source, Parser: p.Parser}}
}

// RuntimeConfig controls concurrency, batching, and channel buffer sizes.
type RuntimeConfig struct {
	TransformWorkers int `json:"transform_workers" yaml:"transform_workers"`
	BatchSize        int `json:"batch_size" yaml:"batch_size"`
	ChannelBuffer    int `json:"channel_buffer" yaml:"channel_buffer"`

	// ErrorLimit caps how many error messages per stage are kept for the
	// end-of-run summary. Counting is unaffected.
	ErrorLimit int `json:"error_limit" yaml:"error_limit"`
}

// Source identifies where input bytes come from. Current kind: "file".
type Source struct {
	Kind string     `json:"kind" yaml:"kind"`
	File SourceFile `json:"file" yaml:"file"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path" yaml:"path"`

	// Encoding is an IANA/WHATWG charset name such as "windows-1250" or
	// "ISO-8859-2". Empty means UTF-8.
	Encoding string `json:"encoding" yaml:"encoding"`
}

// Parser selects how bytes become rows. Current kind: "delimited" ("csv" is
// accepted as an alias).
type Parser struct {
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// Transform is one step of the row chain. Current kind: "select_values".
type Transform struct {
	Kind string `json:"kind" yaml:"kind"`

	// Step labels the transform in error reports. Defaults to the kind.
	Step    string  `json:"step" yaml:"step"`
	Options Options `json:"options" yaml:"options"`
}

// Storage modes.
const (
	ModeInsert = "insert"
	ModeDelete = "delete"
)

// Storage selects the sink. Kind is a registered backend name; Mode is
// "insert" (default) or "delete".
type Storage struct {
	Kind   string       `json:"kind" yaml:"kind"`
	Mode   string       `json:"mode" yaml:"mode"`
	DB     DBConfig     `json:"db" yaml:"db"`
	Delete DeleteConfig `json:"delete" yaml:"delete"`
}

// EffectiveMode returns Mode with the default applied.
func (s Storage) EffectiveMode() string {
	if strings.TrimSpace(s.Mode) == "" {
		return ModeInsert
	}
	return strings.ToLower(strings.TrimSpace(s.Mode))
}

// DBConfig configures the database connection and insert target.
type DBConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`

	// Table is the target table, optionally schema-qualified ("public.t").
	Table string `json:"table" yaml:"table"`

	// Columns lists the destination columns in row order. When empty, every
	// field of the final row layout is written.
	Columns []string `json:"columns" yaml:"columns"`

	// AutoCreateTable creates the target table from the row layout when it
	// does not exist yet.
	AutoCreateTable bool `json:"auto_create_table" yaml:"auto_create_table"`
}

// DeleteConfig describes a keyed delete: every row deletes the target rows
// whose lookup columns match the row's stream fields.
type DeleteConfig struct {
	Schema     string      `json:"schema" yaml:"schema"`
	Table      string      `json:"table" yaml:"table"`
	CommitSize int         `json:"commit_size" yaml:"commit_size"`
	Keys       []DeleteKey `json:"keys" yaml:"keys"`
}

// DeleteKey is one condition of a keyed delete.
//
// Lookup is the table column, Stream the row field compared to it, and
// Condition one of =, <>, <, <=, >, >=, LIKE, BETWEEN, IS NULL, IS NOT NULL.
// BETWEEN uses Stream and Stream2 as bounds; the IS [NOT] NULL forms use no
// stream field.
type DeleteKey struct {
	Stream    string `json:"stream" yaml:"stream"`
	Lookup    string `json:"lookup" yaml:"lookup"`
	Condition string `json:"condition" yaml:"condition"`
	Stream2   string `json:"stream2" yaml:"stream2"`
}

// Load reads a pipeline from path. Files ending in .yaml or .yml are decoded
// as YAML, everything else as JSON.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	return Decode(b, filepath.Ext(path))
}

// Decode parses b as YAML when ext is ".yaml" or ".yml", else as JSON.
func Decode(b []byte, ext string) (Pipeline, error) {
	var p Pipeline
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &p); err != nil {
			return Pipeline{}, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &p); err != nil {
			return Pipeline{}, fmt.Errorf("parse json config: %w", err)
		}
	}
	return p, nil
}
