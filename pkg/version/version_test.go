package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setBuild overrides the ldflags variables for one test.
func setBuild(t *testing.T, version, commit, date string) {
	t.Helper()
	oldV, oldC, oldD := Version, Commit, Date
	Version, Commit, Date = version, commit, date
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })
}

func TestString(t *testing.T) {
	setBuild(t, "v0.3.0", "abc1234", "2026-01-02T03:04:05Z")

	assert.Equal(t,
		"curia v0.3.0 (commit: abc1234, built: 2026-01-02T03:04:05Z, go: "+runtime.Version()+")",
		String())
}

func TestShortAndUserAgent(t *testing.T) {
	setBuild(t, "v0.3.0", "abc1234", "2026-01-02T03:04:05Z")

	assert.Equal(t, "v0.3.0", Short())
	assert.Equal(t, "curia/v0.3.0", UserAgent())
}

func TestGetInfo_LdflagsWin(t *testing.T) {
	// Given: commit and date stamped at link time
	setBuild(t, "v0.3.0", "abc1234", "2026-01-02T03:04:05Z")

	// When
	info := GetInfo()

	// Then: the VCS stamp does not override them
	assert.Equal(t, "abc1234", info.Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", info.Date)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
}

func TestApplyVCS(t *testing.T) {
	// Given: a `go install` build without ldflags
	info := BuildInfo{Commit: "unknown", Date: "unknown"}

	// When: reading the VCS settings
	applyVCS(&info, []debug.BuildSetting{
		{Key: "vcs", Value: "git"},
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-03-04T05:06:07Z"},
		{Key: "vcs.modified", Value: "true"},
	})

	// Then: the revision is shortened to 12 characters
	assert.Equal(t, "0123456789ab", info.Commit)
	assert.Equal(t, "2026-03-04T05:06:07Z", info.Date)
	assert.True(t, info.Modified)
}

func TestApplyVCS_EmptyValuesIgnored(t *testing.T) {
	info := BuildInfo{Commit: "unknown", Date: "unknown"}

	applyVCS(&info, []debug.BuildSetting{{Key: "vcs.revision"}, {Key: "vcs.time"}})

	assert.Equal(t, "unknown", info.Commit)
	assert.Equal(t, "unknown", info.Date)
}

func TestGetInfo_JSON(t *testing.T) {
	setBuild(t, "v0.3.0", "abc1234", "2026-01-02T03:04:05Z")

	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	for _, key := range []string{"version", "commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, parsed, key)
	}
}
