package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validSpecYAML returns a minimal valid job spec in YAML format.
func validSpecYAML() string {
	return `version: "1.0"
job:
  kind: capture
  page_url: https://example.com/article
`
}

// validSpecJSON returns a minimal valid job spec in JSON format.
func validSpecJSON() string {
	return `{
  "version": "1.0",
  "job": {
    "kind": "analysis",
    "page_url": "https://example.com/article"
  }
}`
}

// fullSpecYAML returns a complete spec with all optional fields.
func fullSpecYAML() string {
	return `$schema: https://schemas.touchthesun.dev/marvin/v1.0.0/job-spec.schema.json
version: "1.0"
job:
  kind: analysis
  page_url: https://example.com/research/paper
  options:
    depth: 2
    include_links: true
watch: true
`
}

func writeSpec(t *testing.T, filename, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("ValidYAML", func(t *testing.T) {
		m, err := Load(writeSpec(t, "spec.yaml", validSpecYAML()))
		require.NoError(t, err)
		assert.Equal(t, "1.0", m.Version)
		assert.Equal(t, "capture", m.Job.Kind)
		assert.Equal(t, "https://example.com/article", m.Job.PageURL)
	})

	t.Run("ValidJSON", func(t *testing.T) {
		m, err := Load(writeSpec(t, "spec.json", validSpecJSON()))
		require.NoError(t, err)
		assert.Equal(t, "analysis", m.Job.Kind)
	})

	t.Run("FullSpec", func(t *testing.T) {
		m, err := Load(writeSpec(t, "spec.yaml", fullSpecYAML()))
		require.NoError(t, err)
		assert.True(t, m.Watch)
		assert.Equal(t, "https://schemas.touchthesun.dev/marvin/v1.0.0/job-spec.schema.json", m.Schema)
		assert.EqualValues(t, 2, m.Job.Options["depth"])
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("UnknownExtensionFallsBackToYAML", func(t *testing.T) {
		m, err := Load(writeSpec(t, "spec.conf", validSpecYAML()))
		require.NoError(t, err)
		assert.Equal(t, "capture", m.Job.Kind)
	})
}

func TestLoadFromBytes_Validation(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"empty", ""},
		{"missing job", "version: \"1.0\"\n"},
		{"unknown kind", "version: \"1.0\"\njob:\n  kind: teleport\n"},
		{"capture without page_url", "version: \"1.0\"\njob:\n  kind: capture\n"},
		{"assistant without query", "version: \"1.0\"\njob:\n  kind: assistant\n"},
		{"unknown top-level field", validSpecYAML() + "surprise: true\n"},
		{"bad version", "version: \"9.9\"\njob:\n  kind: capture\n  page_url: https://x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.spec), "spec.yaml")
			assert.Error(t, err)
		})
	}
}

func TestLoadFromBytes_ValidationErrorsUnwrap(t *testing.T) {
	_, err := LoadFromBytes([]byte("version: \"1.0\"\njob:\n  kind: teleport\n"), "spec.yaml")
	require.Error(t, err)

	var verrs ValidationErrors
	if assert.ErrorAs(t, err, &verrs) {
		assert.True(t, errors.Is(verrs, ErrValidationFailed))
		assert.NotEmpty(t, verrs)
	}
}

func TestManifest_ToSpec(t *testing.T) {
	m := &Manifest{
		Version: "1.0",
		Job: JobConfig{
			Kind:    "assistant",
			Query:   "summarize my reading on consensus protocols",
			Options: map[string]any{"max_sources": 5},
		},
	}

	spec := m.ToSpec()
	assert.Equal(t, "assistant", spec.Kind)
	assert.Equal(t, "summarize my reading on consensus protocols", spec.Query)
	assert.EqualValues(t, 5, spec.Options["max_sources"])
}

func TestManifest_ApplyDefaults(t *testing.T) {
	m := &Manifest{}
	m.ApplyDefaults()
	assert.Equal(t, "1.0", m.Version)
}
