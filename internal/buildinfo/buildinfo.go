package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var readBuildInfo = debug.ReadBuildInfo

// Version returns the module version or "dev" when unset.
func Version() string {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return "dev"
	}
	version := info.Main.Version
	if version == "" || version == "(devel)" {
		return "dev"
	}
	return version
}

// Revision returns the abbreviated VCS revision the binary was built from,
// suffixed with "-dirty" for modified trees, or "" when unknown.
func Revision() string {
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return ""
	}
	var rev string
	var dirty bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			rev = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "-dirty"
	}
	return rev
}

// String describes the build for "gitbase version".
func String() string {
	s := "gitbase " + Version()
	if rev := Revision(); rev != "" {
		s += fmt.Sprintf(" (%s)", rev)
	}
	return fmt.Sprintf("%s %s/%s %s", s, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
