package buildinfo

// Version is set at build time via -ldflags.
var Version = "dev"

// Commit is set at build time via -ldflags.
var Commit = "unknown"

// Short returns a compact build identifier for -version output and
// logging. It prefers the release version, then the commit, then "dev".
func Short() string {
	if Version != "" && Version != "dev" {
		if Commit != "" && Commit != "unknown" {
			return Version + " (" + Commit + ")"
		}
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}
