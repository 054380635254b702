package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curia-rag/curia/pkg/version"
)

func TestVersion(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "banner",
			args: []string{"version"},
			check: func(t *testing.T, out string) {
				assert.Equal(t, version.String()+"\n", out)
			},
		},
		{
			name: "short",
			args: []string{"version", "--short"},
			check: func(t *testing.T, out string) {
				assert.Equal(t, version.Version+"\n", out)
			},
		},
		{
			name: "json",
			args: []string{"version", "--json"},
			check: func(t *testing.T, out string) {
				var info version.BuildInfo
				require.NoError(t, json.Unmarshal([]byte(out), &info))
				assert.Equal(t, version.Version, info.Version)
				assert.NotEmpty(t, info.GoVersion)
			},
		},
		{
			name: "verbose",
			args: []string{"version", "-v"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "curia "+version.Version)
				assert.Contains(t, out, "platform:")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			tt.check(t, out)
		})
	}
}

func TestVersion_FlagsExclusive(t *testing.T) {
	_, err := run(t, "version", "--json", "--short")

	require.Error(t, err)
}
