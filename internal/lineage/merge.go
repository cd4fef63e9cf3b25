package lineage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/lineagekit/lineage/internal/gitrepo"
)

const (
	repositoryManagerNotConfiguredMessage = "repository manager not configured"
	unrelatedHistoryMessageConstant       = "upstream history is unrelated to the local branch"

	clonedRepositoryDirectoryNameConstant = "repo"
	remoteTrackingPrefixConstant          = "origin/"
	headRevisionReferenceConstant         = "HEAD"
	fetchHeadRevisionReferenceConstant    = "FETCH_HEAD"

	cloneFailureTemplateConstant          = "clone failed: %w"
	identityFailureTemplateConstant       = "identity configuration failed: %w"
	checkoutFailureTemplateConstant       = "detached checkout of %s failed: %w"
	localTipResolutionTemplateConstant    = "local tip resolution failed: %w"
	fetchFailureTemplateConstant          = "fetch of %s failed: %w"
	remoteTipResolutionTemplateConstant   = "remote tip resolution failed: %w"
	mergeFailureTemplateConstant          = "merge attempt failed: %w"
	conflictListingFailureTemplate        = "conflict listing failed: %w"
	stageFailureTemplateConstant          = "staging merge results failed: %w"
	configRestoreFailureTemplateConstant  = "restoring %s failed: %w"
	commitFailureTemplateConstant         = "merge commit failed: %w"
	mergeCommitResolutionTemplate         = "merge commit resolution failed: %w"
	changedPathsFailureTemplateConstant   = "changed path listing failed: %w"
	conflictDiffHeaderTemplateConstant    = "--- %s ---\n"
	binaryDiffPlaceholderConstant         = "(binary file, diff omitted)\n"
	truncatedDiffNoticeConstant           = "\n… diff truncated …\n"
	mergeCommitMessageTemplateConstant    = "Lineage merge of %s%s"
	mergeCommitBranchSuffixTemplate       = " (%s)"
	conflictDiffPerFileByteLimitConstant  = 4096
)

// ErrUnrelatedHistory indicates the upstream shares no history with the local
// branch. The mapping is skipped with a warning; the lineage declaration is
// most likely wrong.
var ErrUnrelatedHistory = errors.New(unrelatedHistoryMessageConstant)

// ErrRepositoryManagerNotConfigured indicates the executor was built without git access.
var ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerNotConfiguredMessage)

// FetchStageError marks failures reaching the upstream remote, so callers can
// distinguish an unreachable upstream from local tooling breakage.
type FetchStageError struct {
	Cause error
}

// Error describes the fetch failure.
func (stageError FetchStageError) Error() string {
	return stageError.Cause.Error()
}

// Unwrap exposes the underlying cause.
func (stageError FetchStageError) Unwrap() error {
	return stageError.Cause
}

// MergeRequest describes one disposable merge evaluation.
type MergeRequest struct {
	WorkspacePath  string
	CloneURL       string
	LocalBranch    string
	RemoteURL      string
	RemoteBranch   string
	GitUserName    string
	GitUserEmail   string
	GitEnvironment map[string]string
	ProtectedPath  string
}

// MergeExecutor evaluates upstream merges inside disposable workspaces.
//
// It never mutates the named local branch: the clone is checked out detached,
// and the only ref the wider system ever pushes is the dedicated PR branch.
type MergeExecutor struct {
	repositoryManager *gitrepo.RepositoryManager
}

// NewMergeExecutor constructs a MergeExecutor.
func NewMergeExecutor(repositoryManager *gitrepo.RepositoryManager) (*MergeExecutor, error) {
	if repositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	return &MergeExecutor{repositoryManager: repositoryManager}, nil
}

// Execute clones into the workspace, fetches the upstream reference, attempts
// the merge, and classifies the outcome. The returned repository path points
// inside the workspace so callers can push the resulting commit.
func (executor *MergeExecutor) Execute(executionContext context.Context, request MergeRequest) (MergeOutcome, string, error) {
	repositoryPath := filepath.Join(request.WorkspacePath, clonedRepositoryDirectoryNameConstant)

	if cloneError := executor.repositoryManager.CloneRepository(executionContext, request.CloneURL, repositoryPath, request.GitEnvironment); cloneError != nil {
		return MergeOutcome{}, "", fmt.Errorf(cloneFailureTemplateConstant, cloneError)
	}

	if identityError := executor.repositoryManager.ConfigureIdentity(executionContext, repositoryPath, request.GitUserName, request.GitUserEmail); identityError != nil {
		return MergeOutcome{}, "", fmt.Errorf(identityFailureTemplateConstant, identityError)
	}

	localReference := remoteTrackingPrefixConstant + request.LocalBranch
	if checkoutError := executor.repositoryManager.CheckoutDetached(executionContext, repositoryPath, localReference); checkoutError != nil {
		return MergeOutcome{}, "", fmt.Errorf(checkoutFailureTemplateConstant, localReference, checkoutError)
	}

	localTip, localTipError := executor.repositoryManager.ResolveRevision(executionContext, repositoryPath, headRevisionReferenceConstant)
	if localTipError != nil {
		return MergeOutcome{}, "", fmt.Errorf(localTipResolutionTemplateConstant, localTipError)
	}

	if fetchError := executor.repositoryManager.FetchRemoteReference(executionContext, repositoryPath, request.RemoteURL, request.RemoteBranch, request.GitEnvironment); fetchError != nil {
		return MergeOutcome{}, "", FetchStageError{Cause: fmt.Errorf(fetchFailureTemplateConstant, request.RemoteURL, fetchError)}
	}

	remoteTip, remoteTipError := executor.repositoryManager.ResolveRevision(executionContext, repositoryPath, fetchHeadRevisionReferenceConstant)
	if remoteTipError != nil {
		return MergeOutcome{}, "", fmt.Errorf(remoteTipResolutionTemplateConstant, remoteTipError)
	}

	remoteIsAncestor, ancestryError := executor.repositoryManager.IsAncestor(executionContext, repositoryPath, remoteTip, localTip)
	if ancestryError != nil {
		return MergeOutcome{}, "", ancestryError
	}
	if remoteIsAncestor {
		return MergeOutcome{Kind: MergeOutcomeUpToDate, RemoteTip: remoteTip}, repositoryPath, nil
	}

	mergeInvocation, mergeError := executor.repositoryManager.MergeFetchedHead(executionContext, repositoryPath)
	if mergeError != nil {
		return MergeOutcome{}, "", fmt.Errorf(mergeFailureTemplateConstant, mergeError)
	}

	switch {
	case mergeInvocation.UnrelatedHistories:
		return MergeOutcome{}, "", ErrUnrelatedHistory
	case mergeInvocation.AlreadyUpToDate:
		return MergeOutcome{Kind: MergeOutcomeUpToDate, RemoteTip: remoteTip}, repositoryPath, nil
	case mergeInvocation.Conflicted:
		return executor.finishConflictedMerge(executionContext, repositoryPath, request, remoteTip)
	default:
		return executor.finishCleanMerge(executionContext, repositoryPath, request, localTip, remoteTip)
	}
}

func (executor *MergeExecutor) finishCleanMerge(executionContext context.Context, repositoryPath string, request MergeRequest, localTip string, remoteTip string) (MergeOutcome, string, error) {
	if restoreError := executor.restoreProtectedPath(executionContext, repositoryPath, request.ProtectedPath); restoreError != nil {
		return MergeOutcome{}, "", restoreError
	}

	if commitError := executor.repositoryManager.CommitStaged(executionContext, repositoryPath, mergeCommitMessage(request)); commitError != nil {
		return MergeOutcome{}, "", fmt.Errorf(commitFailureTemplateConstant, commitError)
	}

	mergeCommit, mergeCommitError := executor.repositoryManager.ResolveRevision(executionContext, repositoryPath, headRevisionReferenceConstant)
	if mergeCommitError != nil {
		return MergeOutcome{}, "", fmt.Errorf(mergeCommitResolutionTemplate, mergeCommitError)
	}

	changedPaths, changedPathsError := executor.repositoryManager.ChangedPaths(executionContext, repositoryPath, localTip, mergeCommit)
	if changedPathsError != nil {
		return MergeOutcome{}, "", fmt.Errorf(changedPathsFailureTemplateConstant, changedPathsError)
	}

	return MergeOutcome{
		Kind:         MergeOutcomeClean,
		RemoteTip:    remoteTip,
		MergeCommit:  mergeCommit,
		ChangedPaths: changedPaths,
	}, repositoryPath, nil
}

func (executor *MergeExecutor) finishConflictedMerge(executionContext context.Context, repositoryPath string, request MergeRequest, remoteTip string) (MergeOutcome, string, error) {
	conflictedPaths, listingError := executor.repositoryManager.ListConflictedPaths(executionContext, repositoryPath)
	if listingError != nil {
		return MergeOutcome{}, "", fmt.Errorf(conflictListingFailureTemplate, listingError)
	}

	conflictDiff, diffError := executor.collectConflictDiffs(executionContext, repositoryPath, conflictedPaths)
	if diffError != nil {
		return MergeOutcome{}, "", diffError
	}

	if stageError := executor.repositoryManager.StageAll(executionContext, repositoryPath); stageError != nil {
		return MergeOutcome{}, "", fmt.Errorf(stageFailureTemplateConstant, stageError)
	}

	if restoreError := executor.restoreProtectedPath(executionContext, repositoryPath, request.ProtectedPath); restoreError != nil {
		return MergeOutcome{}, "", restoreError
	}

	protectedPathConflicted := false
	remainingConflicts := make([]string, 0, len(conflictedPaths))
	for _, conflictedPath := range conflictedPaths {
		if len(request.ProtectedPath) > 0 && conflictedPath == request.ProtectedPath {
			protectedPathConflicted = true
			continue
		}
		remainingConflicts = append(remainingConflicts, conflictedPath)
	}

	if commitError := executor.repositoryManager.CommitStaged(executionContext, repositoryPath, mergeCommitMessage(request)); commitError != nil {
		return MergeOutcome{}, "", fmt.Errorf(commitFailureTemplateConstant, commitError)
	}

	return MergeOutcome{
		Kind:                    MergeOutcomeConflicted,
		RemoteTip:               remoteTip,
		ConflictFiles:           remainingConflicts,
		ConflictDiff:            conflictDiff,
		LineageConfigConflicted: protectedPathConflicted,
	}, repositoryPath, nil
}

func (executor *MergeExecutor) restoreProtectedPath(executionContext context.Context, repositoryPath string, protectedPath string) error {
	if len(protectedPath) == 0 {
		return nil
	}
	if restoreError := executor.repositoryManager.RestorePath(executionContext, repositoryPath, protectedPath); restoreError != nil {
		return fmt.Errorf(configRestoreFailureTemplateConstant, protectedPath, restoreError)
	}
	return nil
}

func (executor *MergeExecutor) collectConflictDiffs(executionContext context.Context, repositoryPath string, conflictedPaths []string) (string, error) {
	var diffBuilder strings.Builder
	for _, conflictedPath := range conflictedPaths {
		diffBuilder.WriteString(fmt.Sprintf(conflictDiffHeaderTemplateConstant, conflictedPath))

		pathIsBinary, detectionError := executor.repositoryManager.IsBinaryPath(executionContext, repositoryPath, conflictedPath)
		if detectionError != nil {
			return "", fmt.Errorf(conflictListingFailureTemplate, detectionError)
		}
		if pathIsBinary {
			diffBuilder.WriteString(binaryDiffPlaceholderConstant)
			continue
		}

		pathDiff, diffError := executor.repositoryManager.PathDiff(executionContext, repositoryPath, conflictedPath)
		if diffError != nil {
			return "", fmt.Errorf(conflictListingFailureTemplate, diffError)
		}
		if len(pathDiff) > conflictDiffPerFileByteLimitConstant {
			pathDiff = trimIncompleteTrailingRune(pathDiff[:conflictDiffPerFileByteLimitConstant]) + truncatedDiffNoticeConstant
		}
		diffBuilder.WriteString(pathDiff)
	}
	return diffBuilder.String(), nil
}

// trimIncompleteTrailingRune drops the trailing bytes of a multi-byte rune
// split by a byte-offset cut so the result stays valid UTF-8.
func trimIncompleteTrailingRune(text string) string {
	for len(text) > 0 {
		lastRune, lastRuneSize := utf8.DecodeLastRuneInString(text)
		if lastRune != utf8.RuneError || lastRuneSize != 1 {
			break
		}
		text = text[:len(text)-1]
	}
	return text
}

func mergeCommitMessage(request MergeRequest) string {
	branchSuffix := ""
	if len(request.RemoteBranch) > 0 {
		branchSuffix = fmt.Sprintf(mergeCommitBranchSuffixTemplate, request.RemoteBranch)
	}
	return fmt.Sprintf(mergeCommitMessageTemplateConstant, request.RemoteURL, branchSuffix)
}
