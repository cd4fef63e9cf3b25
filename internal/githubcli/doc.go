// Package githubcli wraps the GitHub CLI for the operations lineage
// synchronization needs: repository discovery, remote file retrieval, and
// pull request lifecycle management.
package githubcli
