// Package misc provides program identification helpers. The values are
// overwritten at build time with -ldflags "-X xarc/misc.version=...".
package misc

var (
	appName = "xarc"
	version = "development"
	gitHash = "unknown"
)

// GetAppName returns the short program name used for temp files, logs and reports.
func GetAppName() string {
	return appName
}

// GetVersion returns the build version.
func GetVersion() string {
	return version
}

// GetGitHash returns the git commit the binary was built from.
func GetGitHash() string {
	return gitHash
}
