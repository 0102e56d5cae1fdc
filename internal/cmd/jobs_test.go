package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchthesun/marvin-sub002/pkg/jobengine"
	"github.com/touchthesun/marvin-sub002/pkg/jobstatus"
)

func TestShortJobID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"123456789012", "123456789012"},
		{"1234567890123456", "123456789012"},
		{"  padded-id  ", "padded-id"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, shortJobID(tt.in))
	}
}

func TestFilterJobs(t *testing.T) {
	jobs := []jobengine.Job{
		{ID: "a", Status: jobstatus.StatusProcessing, PageURL: "https://example.com/articles/1"},
		{ID: "b", Status: jobstatus.StatusComplete, PageURL: "https://example.com/docs/guide"},
		{ID: "c", Status: jobstatus.StatusError, PageURL: "https://other.net/post"},
	}

	t.Run("no filters keeps everything", func(t *testing.T) {
		out, err := filterJobs(append([]jobengine.Job(nil), jobs...), "", "")
		require.NoError(t, err)
		assert.Len(t, out, 3)
	})

	t.Run("state filter", func(t *testing.T) {
		out, err := filterJobs(append([]jobengine.Job(nil), jobs...), "", jobstatus.StatusComplete)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "b", out[0].ID)
	})

	t.Run("glob filter", func(t *testing.T) {
		out, err := filterJobs(append([]jobengine.Job(nil), jobs...), "https://example.com/**", "")
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("glob and state combined", func(t *testing.T) {
		out, err := filterJobs(append([]jobengine.Job(nil), jobs...), "https://example.com/**", jobstatus.StatusProcessing)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "a", out[0].ID)
	})

	t.Run("invalid glob", func(t *testing.T) {
		_, err := filterJobs(append([]jobengine.Job(nil), jobs...), "https://[", "")
		assert.Error(t, err)
	})
}

func TestOrDash(t *testing.T) {
	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "capture", orDash("capture"))
}
