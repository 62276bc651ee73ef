package pipeline

import "runtime/debug"

// VersionInfo reports the module path and version baked into the binary,
// for the startup banner. Falls back to "devel" when build info is absent
// (e.g. a bare `go run`).
func VersionInfo() (path, version string) {
	path, version = "trajognize", "devel"
	if bi, ok := debug.ReadBuildInfo(); ok {
		if bi.Main.Path != "" {
			path = bi.Main.Path
		}
		if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			version = bi.Main.Version
		}
	}
	return path, version
}
