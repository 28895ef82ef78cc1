package version

import "runtime"

// Build holds the build identifier, injected via -ldflags. Default "dev".
var Build = "dev"

// UserAgent is sent on every outbound registry request.
func UserAgent() string {
	return "minerlink/" + Build + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
