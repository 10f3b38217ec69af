package version

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyBuildSettings(t *testing.T) {
	info := &BuildInfo{Version: "dev"}
	info.apply(&debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2024-03-01T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.True(t, info.Dirty)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), info.BuildTime)
	assert.Equal(t, "v1.2.3 (0123456-dirty)", info.Short())
	assert.False(t, info.IsRelease())
}

func TestLdflagsWin(t *testing.T) {
	info := &BuildInfo{Version: "v2.0.0", GitCommit: "feedface"}
	info.apply(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "other"}},
	})

	assert.Equal(t, "v2.0.0", info.Version)
	assert.Equal(t, "feedface", info.GitCommit)
	assert.True(t, info.IsRelease())
}

func TestShortWithoutCommit(t *testing.T) {
	assert.Equal(t, "dev", (&BuildInfo{Version: "dev"}).Short())
}

func TestDetailed(t *testing.T) {
	built := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	info := &BuildInfo{
		Version:   "v1.0.0",
		GitCommit: "abc1234",
		BuildTime: built,
		GoVersion: "go1.24.4",
		Platform:  "linux/amd64",
	}

	out := info.Detailed(built.Add(72 * time.Hour))
	assert.Contains(t, out, "Version: v1.0.0")
	assert.Contains(t, out, "Commit: abc1234")
	assert.Contains(t, out, "Built: 2024-03-01T10:00:00Z (3 days ago)")
	assert.Contains(t, out, "Platform: linux/amd64")
}

func TestGet(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
