// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// default process execution, and defines the abstractions lineage uses to run
// git and the GitHub CLI in a testable manner. Environment variables attached
// to a command carry credential material and never appear in log output.
package execshell
