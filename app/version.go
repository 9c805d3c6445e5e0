package app

// GitCommit is set with -ldflags at build time.
var GitCommit string

// Version is the software version reported by Info and the CLI.
const Version = "0.1.0"

// AppVersion is the block execution rules version.
const AppVersion uint64 = 1

func VersionWithCommit(commit string) string {
	if len(commit) > 8 {
		commit = commit[:8]
	}
	if commit == "" {
		return Version
	}
	return Version + "-" + commit
}
