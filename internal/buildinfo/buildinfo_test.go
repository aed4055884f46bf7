package buildinfo

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func stubBuildInfo(t *testing.T, info *debug.BuildInfo, ok bool) {
	t.Helper()
	orig := readBuildInfo
	t.Cleanup(func() { readBuildInfo = orig })
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, ok }
}

func TestVersion(t *testing.T) {
	stubBuildInfo(t, nil, false)
	if got := Version(); got != "dev" {
		t.Fatalf("Version() = %q, want dev", got)
	}

	stubBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true)
	if got := Version(); got != "dev" {
		t.Fatalf("Version() = %q, want dev", got)
	}

	stubBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, true)
	if got := Version(); got != "v1.2.3" {
		t.Fatalf("Version() = %q, want v1.2.3", got)
	}
}

func TestRevision(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.modified", Value: "true"},
	}}, true)
	if got := Revision(); got != "0123456789ab-dirty" {
		t.Fatalf("Revision() = %q", got)
	}

	stubBuildInfo(t, &debug.BuildInfo{}, true)
	if got := Revision(); got != "" {
		t.Fatalf("Revision() = %q, want empty", got)
	}
}

func TestString(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		Main:     debug.Module{Version: "v0.1.0"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc"}},
	}, true)
	got := String()
	if !strings.HasPrefix(got, "gitbase v0.1.0 (abc) ") {
		t.Fatalf("String() = %q", got)
	}
	if !strings.HasSuffix(got, runtime.Version()) {
		t.Fatalf("String() = %q, want Go version suffix", got)
	}
}
