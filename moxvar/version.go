// Package moxvar provides the version number of an imapparse build.
package moxvar

import (
	"runtime/debug"
)

// Version of the imapparse build, "(devel)" if unknown. For builds from a
// checkout, the vcs revision, with "+modifications" for a dirty tree.
var Version = "(devel)"

// GoVersion is the Go toolchain used for the build, empty if unknown.
var GoVersion string

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok {
		Version = version(bi)
		GoVersion = bi.GoVersion
	}
}

func version(bi *debug.BuildInfo) string {
	if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	settings := map[string]string{}
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}
	rev := settings["vcs.revision"]
	if rev == "" {
		return "(devel)"
	}
	switch settings["vcs.modified"] {
	case "false":
		return rev
	case "true":
		return rev + "+modifications"
	}
	return rev + "+unknown"
}
