package gitrepo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lineagekit/lineage/internal/execshell"
	"github.com/lineagekit/lineage/internal/gitrepo"
)

type recordedInvocation struct {
	arguments        []string
	workingDirectory string
	environment      map[string]string
}

type scriptedGitExecutor struct {
	invocations []recordedInvocation
	results     []execshell.ExecutionResult
	errors      []error
	callIndex   int
}

func (executor *scriptedGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.invocations = append(executor.invocations, recordedInvocation{
		arguments:        details.Arguments,
		workingDirectory: details.WorkingDirectory,
		environment:      details.EnvironmentVariables,
	})
	currentIndex := executor.callIndex
	executor.callIndex++
	var executionResult execshell.ExecutionResult
	if currentIndex < len(executor.results) {
		executionResult = executor.results[currentIndex]
	}
	var executionError error
	if currentIndex < len(executor.errors) {
		executionError = executor.errors[currentIndex]
	}
	return executionResult, executionError
}

func commandFailure(arguments []string, exitCode int, standardOutput string, standardError string) error {
	return execshell.CommandFailedError{
		Command: execshell.ShellCommand{
			Name:    execshell.CommandGit,
			Details: execshell.CommandDetails{Arguments: arguments},
		},
		Result: execshell.ExecutionResult{
			StandardOutput: standardOutput,
			StandardError:  standardError,
			ExitCode:       exitCode,
		},
	}
}

func TestNewRepositoryManagerValidation(testInstance *testing.T) {
	_, constructionError := gitrepo.NewRepositoryManager(nil)
	require.ErrorIs(testInstance, constructionError, gitrepo.ErrExecutorNotConfigured)
}

func TestMergeFetchedHeadClassification(testInstance *testing.T) {
	testCases := []struct {
		name               string
		result             execshell.ExecutionResult
		executionError     error
		expectedInvocation gitrepo.MergeInvocation
	}{
		{
			name:               "clean_merge",
			result:             execshell.ExecutionResult{StandardOutput: "Merge made by the 'ort' strategy.\n"},
			expectedInvocation: gitrepo.MergeInvocation{},
		},
		{
			name:               "already_up_to_date",
			result:             execshell.ExecutionResult{StandardOutput: "Already up to date.\n"},
			expectedInvocation: gitrepo.MergeInvocation{AlreadyUpToDate: true},
		},
		{
			name:               "conflict",
			executionError:     commandFailure([]string{"merge"}, 1, "CONFLICT (content): Merge conflict in README.md\n", ""),
			expectedInvocation: gitrepo.MergeInvocation{Conflicted: true},
		},
		{
			name:               "unrelated_histories",
			executionError:     commandFailure([]string{"merge"}, 128, "", "fatal: refusing to merge unrelated histories\n"),
			expectedInvocation: gitrepo.MergeInvocation{UnrelatedHistories: true},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			executor := &scriptedGitExecutor{
				results: []execshell.ExecutionResult{testCase.result},
				errors:  []error{testCase.executionError},
			}
			manager, constructionError := gitrepo.NewRepositoryManager(executor)
			require.NoError(subtestInstance, constructionError)

			invocation, mergeError := manager.MergeFetchedHead(context.Background(), "/workspace/repo")
			require.NoError(subtestInstance, mergeError)
			require.Equal(subtestInstance, testCase.expectedInvocation, invocation)
			require.Equal(subtestInstance, []string{"merge", "--no-commit", "--no-ff", "FETCH_HEAD"}, executor.invocations[0].arguments)
		})
	}
}

func TestIsAncestorInterpretsExitCodes(testInstance *testing.T) {
	testCases := []struct {
		name             string
		executionError   error
		expectedAncestor bool
		expectError      bool
	}{
		{name: "ancestor", expectedAncestor: true},
		{name: "not_ancestor", executionError: commandFailure([]string{"merge-base"}, 1, "", "")},
		{name: "bad_revision", executionError: commandFailure([]string{"merge-base"}, 128, "", "fatal: Not a valid object name\n"), expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			executor := &scriptedGitExecutor{errors: []error{testCase.executionError}}
			manager, constructionError := gitrepo.NewRepositoryManager(executor)
			require.NoError(subtestInstance, constructionError)

			isAncestor, ancestryError := manager.IsAncestor(context.Background(), "/workspace/repo", "abc123", "def456")
			if testCase.expectError {
				require.Error(subtestInstance, ancestryError)
				return
			}
			require.NoError(subtestInstance, ancestryError)
			require.Equal(subtestInstance, testCase.expectedAncestor, isAncestor)
		})
	}
}

func TestListConflictedPathsSplitsOutput(testInstance *testing.T) {
	executor := &scriptedGitExecutor{
		results: []execshell.ExecutionResult{{StandardOutput: "README.md\n.github/workflows/build.yml\n\n"}},
	}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	conflictedPaths, listError := manager.ListConflictedPaths(context.Background(), "/workspace/repo")
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []string{"README.md", ".github/workflows/build.yml"}, conflictedPaths)
	require.Equal(testInstance, []string{"diff", "--name-only", "--diff-filter=U"}, executor.invocations[0].arguments)
}

func TestIsBinaryPathDetection(testInstance *testing.T) {
	testCases := []struct {
		name           string
		numstatOutput  string
		expectedBinary bool
	}{
		{name: "binary", numstatOutput: "-\t-\tassets/logo.png\n", expectedBinary: true},
		{name: "text", numstatOutput: "3\t1\tREADME.md\n"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			executor := &scriptedGitExecutor{results: []execshell.ExecutionResult{{StandardOutput: testCase.numstatOutput}}}
			manager, constructionError := gitrepo.NewRepositoryManager(executor)
			require.NoError(subtestInstance, constructionError)

			isBinary, detectionError := manager.IsBinaryPath(context.Background(), "/workspace/repo", "assets/logo.png")
			require.NoError(subtestInstance, detectionError)
			require.Equal(subtestInstance, testCase.expectedBinary, isBinary)
		})
	}
}

func TestForcePushBranchBuildsRefspec(testInstance *testing.T) {
	executor := &scriptedGitExecutor{}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	pushEnvironment := map[string]string{"GIT_CONFIG_COUNT": "1"}
	pushError := manager.ForcePushBranch(context.Background(), "/workspace/repo", "https://github.com/example/service.git", "lineage/skeleton/main", pushEnvironment)
	require.NoError(testInstance, pushError)
	require.Equal(testInstance,
		[]string{"push", "--force", "https://github.com/example/service.git", "HEAD:refs/heads/lineage/skeleton/main"},
		executor.invocations[0].arguments)
	require.Equal(testInstance, pushEnvironment, executor.invocations[0].environment)
}

func TestRestorePathToleratesMissingHeadEntry(testInstance *testing.T) {
	executor := &scriptedGitExecutor{
		errors: []error{nil, commandFailure([]string{"checkout"}, 1, "", "error: pathspec '.github/lineage.yml' did not match any file(s)\n")},
	}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	restoreError := manager.RestorePath(context.Background(), "/workspace/repo", ".github/lineage.yml")
	require.NoError(testInstance, restoreError)
	require.Len(testInstance, executor.invocations, 2)
	require.Equal(testInstance, []string{"reset", "HEAD", "--", ".github/lineage.yml"}, executor.invocations[0].arguments)
	require.Equal(testInstance, []string{"checkout", "--", ".github/lineage.yml"}, executor.invocations[1].arguments)
}
