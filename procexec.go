// Package procexec runs shell commands as child processes and reports on
// their output and exit status.
package procexec

// Version is the procexec release, overridden at build time with
// -ldflags "-X github.com/deixis/procexec.Version=...".
var Version = "dev"
