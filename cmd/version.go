package cmd

import (
	"runtime/debug"
)

const (
	devVersion = "dev"
)

// readVersion returns the main module version, or the vcs revision for
// development builds
func readVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return devVersion
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	rev := ""
	dirty := false
	for _, i := range info.Settings {
		switch i.Key {
		case "vcs.revision":
			rev = i.Value
		case "vcs.modified":
			dirty = i.Value == "true"
		}
	}
	if rev == "" {
		return devVersion
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return devVersion + "-" + rev
}
