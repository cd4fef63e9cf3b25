// Package gitrepo provides git plumbing for lineage synchronization: remote
// URL parsing and a RepositoryManager that clones, fetches, merges, and pushes
// through the shared shell executor.
package gitrepo
