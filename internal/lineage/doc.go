// Package lineage implements upstream pull request synchronization: it reads
// a repository's lineage configuration, evaluates upstream merges in
// disposable workspaces, and reconciles the managed pull request for each
// declared lineage through a deterministic branch name and an idempotency
// marker embedded in the PR body.
package lineage
