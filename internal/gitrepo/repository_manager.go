package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lineagekit/lineage/internal/execshell"
)

const (
	executorNotConfiguredMessageConstant = "git executor not configured"

	cloneSubcommandConstant     = "clone"
	configSubcommandConstant    = "config"
	checkoutSubcommandConstant  = "checkout"
	fetchSubcommandConstant     = "fetch"
	mergeSubcommandConstant     = "merge"
	mergeBaseSubcommandConstant = "merge-base"
	diffSubcommandConstant      = "diff"
	addSubcommandConstant       = "add"
	resetSubcommandConstant     = "reset"
	commitSubcommandConstant    = "commit"
	pushSubcommandConstant      = "push"
	revParseSubcommandConstant  = "rev-parse"

	detachFlagConstant            = "--detach"
	noCommitFlagConstant          = "--no-commit"
	noFastForwardFlagConstant     = "--no-ff"
	isAncestorFlagConstant        = "--is-ancestor"
	nameOnlyFlagConstant          = "--name-only"
	conflictFilterFlagConstant    = "--diff-filter=U"
	numstatFlagConstant           = "--numstat"
	messageFlagConstant           = "-m"
	forceFlagConstant             = "--force"
	pathSeparatorArgumentConstant = "--"
	userNameConfigKeyConstant     = "user.name"
	userEmailConfigKeyConstant    = "user.email"
	fetchHeadReferenceConstant    = "FETCH_HEAD"
	headReferenceConstant         = "HEAD"
	currentDirectoryPathConstant  = "."
	branchReferencePrefixConstant = "refs/heads/"
	pushRefspecTemplateConstant   = "%s:%s%s"

	alreadyUpToDateSentinelConstant    = "Already up to date"
	unrelatedHistoriesSentinelConstant = "refusing to merge unrelated histories"
	binaryNumstatPrefixConstant        = "-\t-\t"

	ancestryCheckErrorTemplateConstant = "ancestry check failed: %w"
)

// GitCommandExecutor is the subset of execshell.ShellExecutor used by the manager.
type GitCommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ErrExecutorNotConfigured indicates the manager was constructed without an executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// MergeInvocation classifies the outcome of a merge attempt against FETCH_HEAD.
type MergeInvocation struct {
	AlreadyUpToDate    bool
	Conflicted         bool
	UnrelatedHistories bool
}

// RepositoryManager performs git operations through a shell executor.
//
// Every method operates on an explicit repository path so callers can confine
// side effects to disposable workspaces. Credential material travels through
// the environment map and never through command arguments.
type RepositoryManager struct {
	executor GitCommandExecutor
}

// NewRepositoryManager constructs a RepositoryManager.
func NewRepositoryManager(executor GitCommandExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// CloneRepository clones the remote located at cloneURL into destinationPath.
func (manager *RepositoryManager) CloneRepository(executionContext context.Context, cloneURL string, destinationPath string, environment map[string]string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{cloneSubcommandConstant, cloneURL, destinationPath},
		EnvironmentVariables: environment,
	})
	return executionError
}

// ConfigureIdentity sets the commit author identity inside the repository.
func (manager *RepositoryManager) ConfigureIdentity(executionContext context.Context, repositoryPath string, userName string, userEmail string) error {
	if _, nameError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{configSubcommandConstant, userNameConfigKeyConstant, userName},
		WorkingDirectory: repositoryPath,
	}); nameError != nil {
		return nameError
	}

	_, emailError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{configSubcommandConstant, userEmailConfigKeyConstant, userEmail},
		WorkingDirectory: repositoryPath,
	})
	return emailError
}

// CheckoutDetached places the worktree on a detached HEAD at the given reference.
func (manager *RepositoryManager) CheckoutDetached(executionContext context.Context, repositoryPath string, reference string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{checkoutSubcommandConstant, detachFlagConstant, reference},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// ResolveRevision resolves a reference to a full commit identifier.
func (manager *RepositoryManager) ResolveRevision(executionContext context.Context, repositoryPath string, reference string) (string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{revParseSubcommandConstant, reference},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// FetchRemoteReference fetches the named reference from the remote URL; an
// empty reference fetches the remote default branch head.
func (manager *RepositoryManager) FetchRemoteReference(executionContext context.Context, repositoryPath string, remoteURL string, reference string, environment map[string]string) error {
	fetchArguments := []string{fetchSubcommandConstant, remoteURL}
	if len(strings.TrimSpace(reference)) > 0 {
		fetchArguments = append(fetchArguments, reference)
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            fetchArguments,
		WorkingDirectory:     repositoryPath,
		EnvironmentVariables: environment,
	})
	return executionError
}

// IsAncestor reports whether ancestorReference is an ancestor of descendantReference.
func (manager *RepositoryManager) IsAncestor(executionContext context.Context, repositoryPath string, ancestorReference string, descendantReference string) (bool, error) {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{mergeBaseSubcommandConstant, isAncestorFlagConstant, ancestorReference, descendantReference},
		WorkingDirectory: repositoryPath,
	})
	if executionError == nil {
		return true, nil
	}

	var commandFailure execshell.CommandFailedError
	if errors.As(executionError, &commandFailure) && commandFailure.Result.ExitCode == 1 {
		return false, nil
	}
	return false, fmt.Errorf(ancestryCheckErrorTemplateConstant, executionError)
}

// MergeFetchedHead attempts a merge of FETCH_HEAD without committing and
// classifies the result.
func (manager *RepositoryManager) MergeFetchedHead(executionContext context.Context, repositoryPath string) (MergeInvocation, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{mergeSubcommandConstant, noCommitFlagConstant, noFastForwardFlagConstant, fetchHeadReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError == nil {
		if strings.Contains(executionResult.StandardOutput, alreadyUpToDateSentinelConstant) {
			return MergeInvocation{AlreadyUpToDate: true}, nil
		}
		return MergeInvocation{}, nil
	}

	var commandFailure execshell.CommandFailedError
	if errors.As(executionError, &commandFailure) {
		combinedOutput := commandFailure.Result.StandardOutput + commandFailure.Result.StandardError
		if strings.Contains(combinedOutput, unrelatedHistoriesSentinelConstant) {
			return MergeInvocation{UnrelatedHistories: true}, nil
		}
		return MergeInvocation{Conflicted: true}, nil
	}

	return MergeInvocation{}, executionError
}

// ListConflictedPaths returns the paths left unresolved by the last merge attempt.
func (manager *RepositoryManager) ListConflictedPaths(executionContext context.Context, repositoryPath string) ([]string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{diffSubcommandConstant, nameOnlyFlagConstant, conflictFilterFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return nil, executionError
	}
	return splitNonEmptyLines(executionResult.StandardOutput), nil
}

// IsBinaryPath reports whether the given path carries a binary diff.
func (manager *RepositoryManager) IsBinaryPath(executionContext context.Context, repositoryPath string, path string) (bool, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{diffSubcommandConstant, numstatFlagConstant, pathSeparatorArgumentConstant, path},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return false, executionError
	}
	return strings.HasPrefix(strings.TrimSpace(executionResult.StandardOutput), binaryNumstatPrefixConstant), nil
}

// PathDiff returns the unified diff for a single path.
func (manager *RepositoryManager) PathDiff(executionContext context.Context, repositoryPath string, path string) (string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{diffSubcommandConstant, pathSeparatorArgumentConstant, path},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", executionError
	}
	return executionResult.StandardOutput, nil
}

// StageAll stages every pending change, including unresolved conflict markers.
func (manager *RepositoryManager) StageAll(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{addSubcommandConstant, currentDirectoryPathConstant},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// RestorePath discards staged and worktree modifications to a single path.
//
// A failed checkout is tolerated: the path may not exist in HEAD when the
// incoming change introduced it.
func (manager *RepositoryManager) RestorePath(executionContext context.Context, repositoryPath string, path string) error {
	if _, resetError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{resetSubcommandConstant, headReferenceConstant, pathSeparatorArgumentConstant, path},
		WorkingDirectory: repositoryPath,
	}); resetError != nil {
		return resetError
	}

	_, checkoutError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{checkoutSubcommandConstant, pathSeparatorArgumentConstant, path},
		WorkingDirectory: repositoryPath,
	})
	var commandFailure execshell.CommandFailedError
	if errors.As(checkoutError, &commandFailure) {
		return nil
	}
	return checkoutError
}

// CommitStaged creates a commit from the staged state with the given message.
func (manager *RepositoryManager) CommitStaged(executionContext context.Context, repositoryPath string, message string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{commitSubcommandConstant, messageFlagConstant, message},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// ChangedPaths lists the paths differing between two revisions.
func (manager *RepositoryManager) ChangedPaths(executionContext context.Context, repositoryPath string, fromReference string, toReference string) ([]string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{diffSubcommandConstant, nameOnlyFlagConstant, fromReference, toReference},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return nil, executionError
	}
	return splitNonEmptyLines(executionResult.StandardOutput), nil
}

// ForcePushBranch force-updates the named branch on the remote to the current HEAD.
func (manager *RepositoryManager) ForcePushBranch(executionContext context.Context, repositoryPath string, remoteURL string, branchName string, environment map[string]string) error {
	refspec := fmt.Sprintf(pushRefspecTemplateConstant, headReferenceConstant, branchReferencePrefixConstant, branchName)
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{pushSubcommandConstant, forceFlagConstant, remoteURL, refspec},
		WorkingDirectory:     repositoryPath,
		EnvironmentVariables: environment,
	})
	return executionError
}

func splitNonEmptyLines(output string) []string {
	rawLines := strings.Split(output, "\n")
	lines := make([]string, 0, len(rawLines))
	for _, rawLine := range rawLines {
		trimmedLine := strings.TrimSpace(rawLine)
		if len(trimmedLine) == 0 {
			continue
		}
		lines = append(lines, trimmedLine)
	}
	return lines
}
