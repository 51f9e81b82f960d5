package layering

import (
	"reflect"
	"testing"
)

type completionLayer struct {
	Provider *string  `yaml:"provider"`
	Model    *string  `yaml:"model"`
	Timeout  *int     `yaml:"timeout_seconds"`
	Tags     []string `yaml:"tags"`
}

type settingsLayer struct {
	Completion completionLayer   `yaml:"completion"`
	Labels     map[string]string `yaml:"labels"`
	SystemCore *string           `yaml:"system_core"`
}

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

func TestMergeLayersStrongestWins(t *testing.T) {
	defaults := settingsLayer{
		Completion: completionLayer{Provider: strPtr("openai"), Model: strPtr("gpt-3.5-turbo"), Timeout: intPtr(120)},
		Labels:     map[string]string{"env": "dev", "team": "core"},
		SystemCore: strPtr("You are a writer."),
	}
	file := settingsLayer{
		Completion: completionLayer{Model: strPtr("gpt-4o"), Tags: []string{"draft"}},
		Labels:     map[string]string{"env": "staging"},
	}
	flags := settingsLayer{
		Completion: completionLayer{Provider: strPtr("gemini")},
	}

	got := MergeLayers(flags, file, defaults)

	if *got.Completion.Provider != "gemini" {
		t.Fatalf("provider = %q, want gemini", *got.Completion.Provider)
	}
	if *got.Completion.Model != "gpt-4o" {
		t.Fatalf("model = %q, want gpt-4o", *got.Completion.Model)
	}
	if *got.Completion.Timeout != 120 {
		t.Fatalf("timeout = %d, want 120", *got.Completion.Timeout)
	}
	if !reflect.DeepEqual(got.Completion.Tags, []string{"draft"}) {
		t.Fatalf("tags = %v", got.Completion.Tags)
	}
	wantLabels := map[string]string{"env": "staging", "team": "core"}
	if !reflect.DeepEqual(got.Labels, wantLabels) {
		t.Fatalf("labels = %v, want %v", got.Labels, wantLabels)
	}
	if *got.SystemCore != "You are a writer." {
		t.Fatalf("system core = %q", *got.SystemCore)
	}
}

func TestMergeLayersDoesNotAlias(t *testing.T) {
	weak := settingsLayer{SystemCore: strPtr("base")}
	got := MergeLayers(settingsLayer{}, weak)
	*got.SystemCore = "changed"
	if *weak.SystemCore != "base" {
		t.Fatalf("merge aliased the weak layer: %q", *weak.SystemCore)
	}
}

func TestMergeLayersZeroInput(t *testing.T) {
	type sample struct {
		Value int
	}
	var zero sample
	if got := MergeLayers[sample](); got != zero {
		t.Fatalf("expected MergeLayers() to return zero value, got %+v", got)
	}
}

func TestMergeProvenance(t *testing.T) {
	merged, provenance := Merge(
		Layer[settingsLayer]{Name: "flags", Value: settingsLayer{
			Completion: completionLayer{Provider: strPtr("gemini")},
		}},
		Layer[settingsLayer]{Name: "file", Value: settingsLayer{
			Completion: completionLayer{Provider: strPtr("openai"), Model: strPtr("gpt-4o")},
			Labels:     map[string]string{"env": "staging"},
		}},
		Layer[settingsLayer]{Name: "defaults", Value: settingsLayer{
			Completion: completionLayer{Timeout: intPtr(120)},
			SystemCore: strPtr("You are a writer."),
		}},
	)

	if *merged.Completion.Provider != "gemini" {
		t.Fatalf("provider = %q", *merged.Completion.Provider)
	}
	want := Provenance{
		"completion.provider":        "flags",
		"completion.model":           "file",
		"completion.timeout_seconds": "defaults",
		"labels.env":                 "file",
		"system_core":                "defaults",
	}
	if !reflect.DeepEqual(provenance, want) {
		t.Fatalf("provenance mismatch:\nwant: %v\n got: %v", want, provenance)
	}
	wantPaths := []string{
		"completion.model",
		"completion.provider",
		"completion.timeout_seconds",
		"labels.env",
		"system_core",
	}
	if got := provenance.Paths(); !reflect.DeepEqual(got, wantPaths) {
		t.Fatalf("paths = %v", got)
	}
}

func TestMergeProvenanceCountsZeroPointers(t *testing.T) {
	_, provenance := Merge(
		Layer[settingsLayer]{Name: "file", Value: settingsLayer{Completion: completionLayer{Timeout: intPtr(0)}}},
		Layer[settingsLayer]{Name: "defaults", Value: settingsLayer{Completion: completionLayer{Timeout: intPtr(120)}}},
	)
	if got := provenance["completion.timeout_seconds"]; got != "file" {
		t.Fatalf("timeout provenance = %q, want file", got)
	}
}
