// Package osagent provides the version information for the hostd runtime.
package osagent

// Version is the current version of osagent.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
