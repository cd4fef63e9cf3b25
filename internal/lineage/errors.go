package lineage

import "fmt"

const (
	configErrorTemplateConstant         = "lineage configuration invalid for %s: %s"
	fetchErrorTemplateConstant          = "upstream fetch failed for %s lineage %s: %s"
	mergeExecutionErrorTemplateConstant = "merge execution failed for %s lineage %s: %s"
	publisherErrorTemplateConstant      = "pull request publishing failed for %s lineage %s: %s"
	invariantWarningTemplateConstant    = "invariant violated for %s lineage %s: %s"
)

// ConfigError indicates a repository's lineage configuration could not be used.
// The repository is skipped; the run continues.
type ConfigError struct {
	Repository string
	Cause      error
}

// Error describes the configuration failure.
func (configError ConfigError) Error() string {
	return fmt.Sprintf(configErrorTemplateConstant, configError.Repository, configError.Cause)
}

// Unwrap exposes the underlying cause.
func (configError ConfigError) Unwrap() error {
	return configError.Cause
}

// FetchError indicates an upstream remote or branch could not be retrieved.
// The mapping is skipped; the run continues.
type FetchError struct {
	Repository string
	LineageID  string
	Cause      error
}

// Error describes the fetch failure.
func (fetchError FetchError) Error() string {
	return fmt.Sprintf(fetchErrorTemplateConstant, fetchError.Repository, fetchError.LineageID, fetchError.Cause)
}

// Unwrap exposes the underlying cause.
func (fetchError FetchError) Unwrap() error {
	return fetchError.Cause
}

// MergeExecutionError indicates local git tooling failed while evaluating a merge.
// The mapping is skipped this run and naturally retried on the next one.
type MergeExecutionError struct {
	Repository string
	LineageID  string
	Cause      error
}

// Error describes the merge tooling failure.
func (mergeError MergeExecutionError) Error() string {
	return fmt.Sprintf(mergeExecutionErrorTemplateConstant, mergeError.Repository, mergeError.LineageID, mergeError.Cause)
}

// Unwrap exposes the underlying cause.
func (mergeError MergeExecutionError) Unwrap() error {
	return mergeError.Cause
}

// PublisherError indicates the pull request API rejected a create or update.
// State is re-derived next run, so the failure is naturally retryable.
type PublisherError struct {
	Repository string
	LineageID  string
	Cause      error
}

// Error describes the publishing failure.
func (publisherError PublisherError) Error() string {
	return fmt.Sprintf(publisherErrorTemplateConstant, publisherError.Repository, publisherError.LineageID, publisherError.Cause)
}

// Unwrap exposes the underlying cause.
func (publisherError PublisherError) Unwrap() error {
	return publisherError.Cause
}

// InvariantWarning records a non-fatal violation such as duplicate managed PRs.
type InvariantWarning struct {
	Repository string
	LineageID  string
	Message    string
}

// Error describes the violated invariant.
func (warning InvariantWarning) Error() string {
	return fmt.Sprintf(invariantWarningTemplateConstant, warning.Repository, warning.LineageID, warning.Message)
}
