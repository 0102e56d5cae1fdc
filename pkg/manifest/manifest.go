// Package manifest provides loading and validation of marvin job specs.
//
// A job spec is a YAML or JSON file describing one unit of work to submit
// to the Marvin backend: a page capture, a page analysis, or an assistant
// query.
//
// Specs are validated against a JSON Schema before submission. The schema
// enforces strict typing and disallows unknown properties.
//
// Example spec (YAML):
//
//	version: "1.0"
//	job:
//	  kind: analysis
//	  page_url: https://example.com/article
//	  options:
//	    depth: 2
//	watch: true
package manifest

import "github.com/touchthesun/marvin-sub002/pkg/gateway"

// Manifest represents a validated job spec file.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the spec schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Job describes the work to submit.
	Job JobConfig `json:"job" yaml:"job"`

	// Watch, when true, asks the CLI to monitor the job to completion
	// after submitting.
	Watch bool `json:"watch,omitempty" yaml:"watch,omitempty"`
}

// JobConfig is the submit payload of a spec file.
type JobConfig struct {
	// Kind selects the pipeline: "capture", "analysis", or "assistant".
	Kind string `json:"kind" yaml:"kind"`

	// PageURL is the page being captured or analyzed. Required for
	// capture and analysis jobs.
	PageURL string `json:"page_url,omitempty" yaml:"page_url,omitempty"`

	// Query is the prompt for assistant jobs. Required for those.
	Query string `json:"query,omitempty" yaml:"query,omitempty"`

	// Options are pipeline-specific knobs passed through verbatim.
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// ApplyDefaults fills optional fields with their defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Version == "" {
		m.Version = "1.0"
	}
}

// ToSpec converts the manifest into the gateway submit payload.
func (m *Manifest) ToSpec() gateway.JobSpec {
	return gateway.JobSpec{
		Kind:    m.Job.Kind,
		PageURL: m.Job.PageURL,
		Query:   m.Job.Query,
		Options: m.Job.Options,
	}
}
