package lineage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	branchPrefixConstant                = "lineage"
	branchSegmentSeparatorConstant      = "/"
	metadataMarkerPrefixConstant        = "<!-- lineage:metadata:"
	metadataMarkerSuffixConstant        = " -->"
	metadataEncodingErrorTemplate       = "unable to encode metadata marker: %w"
	conflictDigestSeparatorConstant     = "\n"
	lineageIdentifierPatternConstant    = `^[a-z0-9][a-z0-9-]*$`
	cleanTemplateVariantNameConstant    = "clean"
	conflictTemplateVariantNameConstant = "conflict"
)

var lineageIdentifierExpression = regexp.MustCompile(lineageIdentifierPatternConstant)

// RepositoryVisibility enumerates repository visibility levels reported by GitHub.
type RepositoryVisibility string

// Repository visibility enumerations.
const (
	RepositoryVisibilityPublic   RepositoryVisibility = RepositoryVisibility("public")
	RepositoryVisibilityPrivate  RepositoryVisibility = RepositoryVisibility("private")
	RepositoryVisibilityInternal RepositoryVisibility = RepositoryVisibility("internal")
)

// RepositoryDescriptor is an immutable per-run snapshot of a candidate repository.
type RepositoryDescriptor struct {
	FullName      string
	Name          string
	Visibility    RepositoryVisibility
	DefaultBranch string
	CloneURL      string
	SSHURL        string
}

// IsPublic reports whether the repository is publicly visible.
func (descriptor RepositoryDescriptor) IsPublic() bool {
	return descriptor.Visibility == RepositoryVisibilityPublic
}

// Mapping declares one upstream lineage for a repository branch.
type Mapping struct {
	LineageID    string
	LocalBranch  string
	RemoteURL    string
	RemoteBranch string
}

// MergeOutcomeKind classifies the result of a disposable merge attempt.
type MergeOutcomeKind string

// Merge outcome enumerations.
const (
	MergeOutcomeUpToDate   MergeOutcomeKind = MergeOutcomeKind("up_to_date")
	MergeOutcomeClean      MergeOutcomeKind = MergeOutcomeKind("clean")
	MergeOutcomeConflicted MergeOutcomeKind = MergeOutcomeKind("conflicted")
)

// MergeOutcome captures everything downstream decisions need from a merge attempt.
type MergeOutcome struct {
	Kind                    MergeOutcomeKind
	RemoteTip               string
	MergeCommit             string
	ChangedPaths            []string
	ConflictFiles           []string
	ConflictDiff            string
	LineageConfigConflicted bool
}

// ReconciliationAction enumerates the idempotent actions the engine may take.
type ReconciliationAction string

// Reconciliation action enumerations.
const (
	ActionSkip              ReconciliationAction = ReconciliationAction("skip")
	ActionCreatePullRequest ReconciliationAction = ReconciliationAction("create_pr")
	ActionUpdatePullRequest ReconciliationAction = ReconciliationAction("update_pr_body")
	ActionLeaveExistingOpen ReconciliationAction = ReconciliationAction("leave_existing_open")
	ActionNothing           ReconciliationAction = ReconciliationAction("nothing")
)

// TemplateVariant names a pull request body template family.
type TemplateVariant string

// Template variant enumerations.
const (
	TemplateVariantClean    TemplateVariant = TemplateVariant(cleanTemplateVariantNameConstant)
	TemplateVariantConflict TemplateVariant = TemplateVariant(conflictTemplateVariantNameConstant)
)

// ValidateLineageIdentifier confirms an identifier is usable in branch names.
func ValidateLineageIdentifier(identifier string) bool {
	return lineageIdentifierExpression.MatchString(identifier)
}

// PullRequestBranchName derives the deterministic head branch for a mapping.
func PullRequestBranchName(lineageIdentifier string, localBranch string) string {
	return strings.Join([]string{branchPrefixConstant, lineageIdentifier, localBranch}, branchSegmentSeparatorConstant)
}

// MetadataMarker is the idempotency record embedded in every managed PR body.
type MetadataMarker struct {
	LineageID       string `json:"lineageId"`
	RemoteTip       string `json:"remoteTip"`
	ConflictsDigest string `json:"conflictsDigest"`
}

// Encode renders the marker as an HTML comment suitable for embedding in Markdown.
func (marker MetadataMarker) Encode() (string, error) {
	encodedPayload, encodingError := json.Marshal(marker)
	if encodingError != nil {
		return "", fmt.Errorf(metadataEncodingErrorTemplate, encodingError)
	}
	return metadataMarkerPrefixConstant + string(encodedPayload) + metadataMarkerSuffixConstant, nil
}

// ExtractMetadataMarker locates and decodes the marker inside a PR body.
// The second return value reports whether a well-formed marker was present.
func ExtractMetadataMarker(pullRequestBody string) (MetadataMarker, bool) {
	markerStart := strings.Index(pullRequestBody, metadataMarkerPrefixConstant)
	if markerStart < 0 {
		return MetadataMarker{}, false
	}

	payloadStart := markerStart + len(metadataMarkerPrefixConstant)
	markerEnd := strings.Index(pullRequestBody[payloadStart:], metadataMarkerSuffixConstant)
	if markerEnd < 0 {
		return MetadataMarker{}, false
	}

	var marker MetadataMarker
	decodingError := json.Unmarshal([]byte(pullRequestBody[payloadStart:payloadStart+markerEnd]), &marker)
	if decodingError != nil {
		return MetadataMarker{}, false
	}

	return marker, true
}

// ConflictsDigest produces an order-independent digest of a conflict path set.
// Clean outcomes use the empty-set digest of the empty string.
func ConflictsDigest(conflictPaths []string) string {
	if len(conflictPaths) == 0 {
		return ""
	}

	sortedPaths := make([]string, len(conflictPaths))
	copy(sortedPaths, conflictPaths)
	sort.Strings(sortedPaths)

	digest := sha256.Sum256([]byte(strings.Join(sortedPaths, conflictDigestSeparatorConstant)))
	return hex.EncodeToString(digest[:])
}

// MarkerForOutcome derives the metadata marker a PR body should carry for an outcome.
func MarkerForOutcome(lineageIdentifier string, outcome MergeOutcome) MetadataMarker {
	return MetadataMarker{
		LineageID:       lineageIdentifier,
		RemoteTip:       outcome.RemoteTip,
		ConflictsDigest: ConflictsDigest(outcome.ConflictFiles),
	}
}

// TemplateVariantForOutcome selects the template family for an outcome kind.
func TemplateVariantForOutcome(outcome MergeOutcome) TemplateVariant {
	if outcome.Kind == MergeOutcomeConflicted {
		return TemplateVariantConflict
	}
	return TemplateVariantClean
}
