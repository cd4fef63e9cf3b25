package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
)

const (
	gitCloneSubcommandNameConstant     = "clone"
	gitCheckoutSubcommandNameConstant  = "checkout"
	gitFetchSubcommandNameConstant     = "fetch"
	gitMergeSubcommandNameConstant     = "merge"
	gitMergeBaseSubcommandNameConstant = "merge-base"
	gitDiffSubcommandNameConstant      = "diff"
	gitPushSubcommandNameConstant      = "push"
	gitRevParseSubcommandNameConstant  = "rev-parse"
	gitCommitSubcommandNameConstant    = "commit"
	gitIsAncestorFlagConstant          = "--is-ancestor"
	gitDetachFlagConstant              = "--detach"
	gitConflictFilterFlagConstant      = "--diff-filter=U"
	gitForceFlagConstant               = "--force"
)

const (
	gitCloneStartTemplateConstant            = "Cloning %s into %s"
	gitCloneSuccessTemplateConstant          = "Cloned %s into %s"
	gitCloneFailureTemplateConstant          = "Failed to clone %s (exit code %d%s)"
	gitCheckoutStartTemplateConstant         = "Checking out %s in %s"
	gitCheckoutDetachedStartTemplateConstant = "Detaching worktree at %s in %s"
	gitCheckoutSuccessTemplateConstant       = "Checked out %s in %s"
	gitFetchStartTemplateConstant            = "Fetching %s from %s in %s"
	gitFetchDefaultStartTemplateConstant     = "Fetching default branch from %s in %s"
	gitFetchSuccessTemplateConstant          = "Fetched %s from %s in %s"
	gitFetchDefaultSuccessTemplateConstant   = "Fetched default branch from %s in %s"
	gitMergeStartTemplateConstant            = "Merging fetched commits in %s"
	gitMergeSuccessTemplateConstant          = "Merged fetched commits in %s"
	gitAncestryStartTemplateConstant         = "Checking ancestry of fetched commits in %s"
	gitAncestrySuccessTemplateConstant       = "Checked ancestry of fetched commits in %s"
	gitConflictListStartTemplateConstant     = "Collecting conflicted paths in %s"
	gitConflictListSuccessTemplateConstant   = "Collected conflicted paths in %s"
	gitDiffStartTemplateConstant             = "Computing diff in %s"
	gitDiffSuccessTemplateConstant           = "Computed diff in %s"
	gitPushStartTemplateConstant             = "Pushing %s from %s"
	gitPushSuccessTemplateConstant           = "Pushed %s from %s"
	gitRevParseStartTemplateConstant         = "Resolving %s in %s"
	gitRevParseSuccessTemplateConstant       = "%s in %s resolved to %s"
	gitRevParseEmptySuccessTemplateConstant  = "%s in %s did not resolve to a revision"
	gitCommitStartTemplateConstant           = "Creating commit in %s"
	gitCommitSuccessTemplateConstant         = "Created commit in %s"
)

const (
	githubSearchSubcommandNameConstant      = "search"
	githubRepoSubcommandNameConstant        = "repo"
	githubPullRequestSubcommandNameConstant = "pr"
	githubAPISubcommandNameConstant         = "api"
	githubViewSubcommandNameConstant        = "view"
	githubListSubcommandNameConstant        = "list"
	githubCreateSubcommandNameConstant      = "create"
	githubEditSubcommandNameConstant        = "edit"
	githubRepoFlagConstant                  = "--repo"
	githubHeadFlagConstant                  = "--head"
)

const (
	githubSearchStartTemplateConstant            = "Searching repositories matching %q"
	githubSearchSuccessTemplateConstant          = "Searched repositories matching %q"
	githubRepoViewStartTemplateConstant          = "Retrieving repository details for %s"
	githubRepoViewSuccessTemplateConstant        = "Retrieved repository details for %s"
	githubPullRequestListStartTemplateConstant   = "Listing pull requests for %s with head %s"
	githubPullRequestListSuccessTemplateConstant = "Listed pull requests for %s with head %s"
	githubPullRequestCreateStartTemplateConstant = "Creating pull request in %s"
	githubPullRequestCreateSuccessTemplate       = "Created pull request in %s"
	githubPullRequestEditStartTemplateConstant   = "Updating pull request #%s in %s"
	githubPullRequestEditSuccessTemplateConstant = "Updated pull request #%s in %s"
	githubAPIStartTemplateConstant               = "Calling GitHub API endpoint %s"
	githubAPISuccessTemplateConstant             = "Called GitHub API endpoint %s"
	githubCurrentRepositoryLabelConstant         = "current repository"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
//
// Only the command name, arguments, and working directory ever appear in
// messages; attached environment variables stay private.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	switch command.Name {
	case CommandGit:
		return formatter.describeGitMessage(command, result, failure, stage)
	case CommandGitHub:
		return formatter.describeGitHubMessage(command, result, failure, stage)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	subcommand := strings.TrimSpace(arguments[0])

	switch subcommand {
	case gitCloneSubcommandNameConstant:
		cloneSource := formatter.ensureValue(formatter.argumentAtIndex(arguments, 1))
		cloneDestination := formatter.ensureValue(formatter.argumentAtIndex(arguments, 2))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCloneStartTemplateConstant, cloneSource, cloneDestination)
		case messageStageSuccess:
			return fmt.Sprintf(gitCloneSuccessTemplateConstant, cloneSource, cloneDestination)
		case messageStageFailure:
			return fmt.Sprintf(gitCloneFailureTemplateConstant, cloneSource, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		}
	case gitCheckoutSubcommandNameConstant:
		target := formatter.ensureValue(formatter.lastNonFlagArgument(arguments[1:]))
		switch stage {
		case messageStageStart:
			if containsArgument(arguments, gitDetachFlagConstant) {
				return fmt.Sprintf(gitCheckoutDetachedStartTemplateConstant, target, workingDirectory)
			}
			return fmt.Sprintf(gitCheckoutStartTemplateConstant, target, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitCheckoutSuccessTemplateConstant, target, workingDirectory)
		}
	case gitFetchSubcommandNameConstant:
		remoteName, references := formatter.extractRemoteAndReferences(arguments[1:])
		trimmedRemote := formatter.ensureValue(remoteName)
		joinedReferences := strings.Join(references, ", ")
		switch stage {
		case messageStageStart:
			if len(joinedReferences) > 0 {
				return fmt.Sprintf(gitFetchStartTemplateConstant, joinedReferences, trimmedRemote, workingDirectory)
			}
			return fmt.Sprintf(gitFetchDefaultStartTemplateConstant, trimmedRemote, workingDirectory)
		case messageStageSuccess:
			if len(joinedReferences) > 0 {
				return fmt.Sprintf(gitFetchSuccessTemplateConstant, joinedReferences, trimmedRemote, workingDirectory)
			}
			return fmt.Sprintf(gitFetchDefaultSuccessTemplateConstant, trimmedRemote, workingDirectory)
		}
	case gitMergeSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitMergeStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitMergeSuccessTemplateConstant, workingDirectory)
		}
	case gitMergeBaseSubcommandNameConstant:
		if containsArgument(arguments, gitIsAncestorFlagConstant) {
			switch stage {
			case messageStageStart:
				return fmt.Sprintf(gitAncestryStartTemplateConstant, workingDirectory)
			case messageStageSuccess:
				return fmt.Sprintf(gitAncestrySuccessTemplateConstant, workingDirectory)
			}
		}
	case gitDiffSubcommandNameConstant:
		if containsArgument(arguments, gitConflictFilterFlagConstant) {
			switch stage {
			case messageStageStart:
				return fmt.Sprintf(gitConflictListStartTemplateConstant, workingDirectory)
			case messageStageSuccess:
				return fmt.Sprintf(gitConflictListSuccessTemplateConstant, workingDirectory)
			}
		}
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitDiffStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitDiffSuccessTemplateConstant, workingDirectory)
		}
	case gitPushSubcommandNameConstant:
		pushTarget := formatter.ensureValue(formatter.lastNonFlagArgument(arguments[1:]))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitPushStartTemplateConstant, pushTarget, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitPushSuccessTemplateConstant, pushTarget, workingDirectory)
		}
	case gitRevParseSubcommandNameConstant:
		reference := formatter.ensureValue(formatter.lastNonFlagArgument(arguments[1:]))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitRevParseStartTemplateConstant, reference, workingDirectory)
		case messageStageSuccess:
			resolved := strings.TrimSpace(result.StandardOutput)
			if len(resolved) == 0 {
				return fmt.Sprintf(gitRevParseEmptySuccessTemplateConstant, reference, workingDirectory)
			}
			return fmt.Sprintf(gitRevParseSuccessTemplateConstant, reference, workingDirectory, resolved)
		}
	case gitCommitSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCommitStartTemplateConstant, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitCommitSuccessTemplateConstant, workingDirectory)
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) describeGitHubMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	primaryArgument := strings.TrimSpace(arguments[0])
	switch primaryArgument {
	case githubSearchSubcommandNameConstant:
		searchQuery := formatter.ensureValue(formatter.lastNonFlagArgument(arguments[1:]))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(githubSearchStartTemplateConstant, searchQuery)
		case messageStageSuccess:
			return fmt.Sprintf(githubSearchSuccessTemplateConstant, searchQuery)
		}
	case githubRepoSubcommandNameConstant:
		if strings.TrimSpace(formatter.argumentAtIndex(arguments, 1)) == githubViewSubcommandNameConstant {
			repository := formatter.ensureValue(formatter.argumentAtIndex(arguments, 2))
			switch stage {
			case messageStageStart:
				return fmt.Sprintf(githubRepoViewStartTemplateConstant, repository)
			case messageStageSuccess:
				return fmt.Sprintf(githubRepoViewSuccessTemplateConstant, repository)
			}
		}
	case githubPullRequestSubcommandNameConstant:
		return formatter.describeGitHubPullRequestMessage(command, result, failure, stage)
	case githubAPISubcommandNameConstant:
		endpoint := formatter.ensureValue(formatter.argumentAtIndex(arguments, 1))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(githubAPIStartTemplateConstant, endpoint)
		case messageStageSuccess:
			return fmt.Sprintf(githubAPISuccessTemplateConstant, endpoint)
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) describeGitHubPullRequestMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := command.Details.Arguments
	repository := strings.TrimSpace(findFlagValue(arguments, githubRepoFlagConstant))
	if len(repository) == 0 {
		repository = githubCurrentRepositoryLabelConstant
	}

	subcommand := strings.TrimSpace(formatter.argumentAtIndex(arguments, 1))
	switch subcommand {
	case githubListSubcommandNameConstant:
		headBranch := formatter.ensureValue(findFlagValue(arguments, githubHeadFlagConstant))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(githubPullRequestListStartTemplateConstant, repository, headBranch)
		case messageStageSuccess:
			return fmt.Sprintf(githubPullRequestListSuccessTemplateConstant, repository, headBranch)
		}
	case githubCreateSubcommandNameConstant:
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(githubPullRequestCreateStartTemplateConstant, repository)
		case messageStageSuccess:
			return fmt.Sprintf(githubPullRequestCreateSuccessTemplate, repository)
		}
	case githubEditSubcommandNameConstant:
		pullRequestNumber := formatter.ensureValue(formatter.argumentAtIndex(arguments, 2))
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(githubPullRequestEditStartTemplateConstant, pullRequestNumber, repository)
		case messageStageSuccess:
			return fmt.Sprintf(githubPullRequestEditSuccessTemplateConstant, pullRequestNumber, repository)
		}
	}

	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	workingDirectorySuffix := formatter.formatWorkingDirectorySuffix(command)
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, workingDirectorySuffix)
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index >= 0 && index < len(arguments) {
		return arguments[index]
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmedValue
}

func (formatter CommandMessageFormatter) lastNonFlagArgument(arguments []string) string {
	for index := len(arguments) - 1; index >= 0; index-- {
		trimmedArgument := strings.TrimSpace(arguments[index])
		if len(trimmedArgument) == 0 {
			continue
		}
		if strings.HasPrefix(trimmedArgument, "-") {
			continue
		}
		return trimmedArgument
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) extractRemoteAndReferences(arguments []string) (string, []string) {
	remoteName := emptyStringConstant
	references := []string{}
	for _, argument := range arguments {
		trimmedArgument := strings.TrimSpace(argument)
		if len(trimmedArgument) == 0 {
			continue
		}
		if strings.HasPrefix(trimmedArgument, "-") {
			continue
		}
		if len(remoteName) == 0 {
			remoteName = trimmedArgument
			continue
		}
		references = append(references, trimmedArgument)
	}
	return remoteName, references
}

func containsArgument(arguments []string, value string) bool {
	for _, argument := range arguments {
		if strings.TrimSpace(argument) == value {
			return true
		}
	}
	return false
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == flag && index+1 < len(arguments) {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return emptyStringConstant
}
