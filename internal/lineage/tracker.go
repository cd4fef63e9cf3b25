package lineage

import (
	"github.com/lineagekit/lineage/internal/githubcli"
)

const (
	openPullRequestStateConstant      = "open"
	duplicateManagedPRMessageConstant = "multiple open managed pull requests share one head branch"
)

// ManagedPullRequest is the authoritative existing PR for a mapping, if any.
type ManagedPullRequest struct {
	Number    int
	State     string
	IsDraft   bool
	Body      string
	UpdatedAt string
	Marker    MetadataMarker
	HasMarker bool
}

// Decision pairs the chosen action with the template family it should render.
type Decision struct {
	Action   ReconciliationAction
	Variant  TemplateVariant
	Existing *ManagedPullRequest
}

// SelectManagedPullRequest picks the authoritative open PR from the candidates
// returned for the deterministic head branch. Closed and merged PRs are
// treated as absent. When more than one open PR matches, the most recently
// updated wins and the surplus count is reported so the caller can raise an
// invariant warning.
func SelectManagedPullRequest(candidates []githubcli.PullRequest) (*ManagedPullRequest, int) {
	var authoritative *githubcli.PullRequest
	openCount := 0
	for candidateIndex := range candidates {
		candidate := &candidates[candidateIndex]
		if candidate.State != openPullRequestStateConstant {
			continue
		}
		openCount++
		if authoritative == nil || candidate.UpdatedAt > authoritative.UpdatedAt {
			authoritative = candidate
		}
	}

	if authoritative == nil {
		return nil, 0
	}

	marker, markerPresent := ExtractMetadataMarker(authoritative.Body)
	managed := &ManagedPullRequest{
		Number:    authoritative.Number,
		State:     authoritative.State,
		IsDraft:   authoritative.IsDraft,
		Body:      authoritative.Body,
		UpdatedAt: authoritative.UpdatedAt,
		Marker:    marker,
		HasMarker: markerPresent,
	}

	return managed, openCount - 1
}

// DuplicateManagedPullRequestWarning builds the invariant warning for surplus open PRs.
func DuplicateManagedPullRequestWarning(repository string, lineageIdentifier string) InvariantWarning {
	return InvariantWarning{
		Repository: repository,
		LineageID:  lineageIdentifier,
		Message:    duplicateManagedPRMessageConstant,
	}
}

// Decide applies the reconciliation rules to the merge outcome and the
// existing managed PR.
//
// With no open PR: up_to_date skips, anything else creates with the variant
// matching the outcome. With an open PR: up_to_date leaves it alone, and the
// embedded marker decides between nothing and a body refresh. A clean outcome
// refreshes when the recorded remote tip is stale; a conflicted outcome
// refreshes only when the conflict set changed, so manual annotations on a
// flagged PR survive upstream churn that leaves the conflicts identical. A
// missing marker always refreshes. Comparisons never re-derive history.
func Decide(lineageIdentifier string, existing *ManagedPullRequest, outcome MergeOutcome) Decision {
	variant := TemplateVariantForOutcome(outcome)

	if existing == nil {
		if outcome.Kind == MergeOutcomeUpToDate {
			return Decision{Action: ActionSkip, Variant: variant}
		}
		return Decision{Action: ActionCreatePullRequest, Variant: variant}
	}

	if outcome.Kind == MergeOutcomeUpToDate {
		return Decision{Action: ActionLeaveExistingOpen, Variant: variant, Existing: existing}
	}

	if !existing.HasMarker || existing.Marker.LineageID != lineageIdentifier {
		return Decision{Action: ActionUpdatePullRequest, Variant: variant, Existing: existing}
	}

	outcomeDigest := ConflictsDigest(outcome.ConflictFiles)
	switch outcome.Kind {
	case MergeOutcomeConflicted:
		if existing.Marker.ConflictsDigest == outcomeDigest {
			return Decision{Action: ActionNothing, Variant: variant, Existing: existing}
		}
	default:
		if existing.Marker.RemoteTip == outcome.RemoteTip && existing.Marker.ConflictsDigest == outcomeDigest {
			return Decision{Action: ActionNothing, Variant: variant, Existing: existing}
		}
	}

	return Decision{Action: ActionUpdatePullRequest, Variant: variant, Existing: existing}
}
