package lineage_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lineagekit/lineage/internal/githubcli"
	"github.com/lineagekit/lineage/internal/gitrepo"
	"github.com/lineagekit/lineage/internal/lineage"
)

const (
	childRepositoryNameConstant   = "example/skeleton-child"
	privateRepositoryNameConstant = "example/secret-child"
	upstreamRepositoryConstant    = "example/skeleton"
	testingTokenConstant          = "ghp_testing_token"

	pinnedBranchConfigurationConstant = "version: \"1\"\n" +
		"lineage:\n" +
		"  skeleton:\n" +
		"    remote-url: https://github.com/example/skeleton.git\n" +
		"    remote-branch: develop\n"

	defaultBranchConfigurationConstant = "version: \"1\"\n" +
		"lineage:\n" +
		"  skeleton:\n" +
		"    remote-url: https://github.com/example/skeleton.git\n"

	malformedConfigurationConstant = "version: \"2\"\n" +
		"lineage:\n" +
		"  skeleton:\n" +
		"    remote-url: https://github.com/example/skeleton.git\n"
)

type storedPullRequest struct {
	repository string
	pullRequest githubcli.PullRequest
	title       string
	baseBranch  string
}

// fakeGitHubClient is an in memory stand in for the gh backed client.
type fakeGitHubClient struct {
	searchResults    []githubcli.RepositorySearchResult
	fileContents     map[string]string
	metadata         map[string]githubcli.RepositoryMetadata
	pullRequests     []storedPullRequest
	createFailure    error
	nextNumber       int
	createCallCount  int
	updateCallCount  int
	assigneeRequests [][]string
	metadataRequests []string
}

func newFakeGitHubClient() *fakeGitHubClient {
	return &fakeGitHubClient{
		fileContents: map[string]string{},
		metadata:     map[string]githubcli.RepositoryMetadata{},
		nextNumber:   100,
	}
}

func fileContentKey(repository string, filePath string) string {
	return repository + "!" + filePath
}

func (client *fakeGitHubClient) VerifyCredentials(context.Context) (string, error) {
	return "lineage-bot", nil
}

func (client *fakeGitHubClient) SearchRepositories(context.Context, string, int) ([]githubcli.RepositorySearchResult, error) {
	return client.searchResults, nil
}

func (client *fakeGitHubClient) ResolveRepoMetadata(_ context.Context, repository string) (githubcli.RepositoryMetadata, error) {
	client.metadataRequests = append(client.metadataRequests, repository)
	metadata, found := client.metadata[repository]
	if !found {
		return githubcli.RepositoryMetadata{}, fmt.Errorf("unknown repository %s", repository)
	}
	return metadata, nil
}

func (client *fakeGitHubClient) FetchFileContent(_ context.Context, repository string, _ string, filePath string) (string, error) {
	content, found := client.fileContents[fileContentKey(repository, filePath)]
	if !found {
		return "", githubcli.ErrFileNotFound
	}
	return content, nil
}

func (client *fakeGitHubClient) ListPullRequests(_ context.Context, repository string, headBranch string, _ githubcli.PullRequestState) ([]githubcli.PullRequest, error) {
	matches := make([]githubcli.PullRequest, 0, len(client.pullRequests))
	for _, stored := range client.pullRequests {
		if stored.repository == repository && stored.pullRequest.HeadRefName == headBranch {
			matches = append(matches, stored.pullRequest)
		}
	}
	return matches, nil
}

func (client *fakeGitHubClient) CreatePullRequest(_ context.Context, repository string, options githubcli.PullRequestCreateOptions) (int, error) {
	client.createCallCount++
	if client.createFailure != nil {
		return 0, client.createFailure
	}
	client.nextNumber++
	client.pullRequests = append(client.pullRequests, storedPullRequest{
		repository: repository,
		title:      options.Title,
		baseBranch: options.BaseBranch,
		pullRequest: githubcli.PullRequest{
			Number:      client.nextNumber,
			Title:       options.Title,
			State:       "open",
			IsDraft:     options.Draft,
			Body:        options.Body,
			HeadRefName: options.HeadBranch,
			UpdatedAt:   fmt.Sprintf("2026-08-30T00:00:%02dZ", client.nextNumber%60),
		},
	})
	return client.nextNumber, nil
}

func (client *fakeGitHubClient) UpdatePullRequestBody(_ context.Context, repository string, pullRequestNumber int, body string) error {
	client.updateCallCount++
	for storedIndex := range client.pullRequests {
		stored := &client.pullRequests[storedIndex]
		if stored.repository == repository && stored.pullRequest.Number == pullRequestNumber {
			stored.pullRequest.Body = body
		}
	}
	return nil
}

func (client *fakeGitHubClient) AddAssignees(_ context.Context, _ string, _ int, assignees []string) error {
	client.assigneeRequests = append(client.assigneeRequests, assignees)
	return nil
}

func publicSearchResult(fullName string) githubcli.RepositorySearchResult {
	return githubcli.RepositorySearchResult{FullName: fullName, Visibility: "public", DefaultBranch: "main"}
}

func newServiceForTest(testInstance *testing.T, backend *scriptedGitBackend, client *fakeGitHubClient, maskingEnabled bool) *lineage.Service {
	testInstance.Helper()

	repositoryManager, managerError := gitrepo.NewRepositoryManager(backend)
	require.NoError(testInstance, managerError)

	renderer, rendererError := lineage.NewTemplateRenderer("", "")
	require.NoError(testInstance, rendererError)

	masker, maskerError := lineage.NewMasker(maskingEnabled)
	require.NoError(testInstance, maskerError)

	service, serviceError := lineage.NewService(lineage.ServiceDependencies{
		Logger:            zap.NewNop(),
		GitHubClient:      client,
		RepositoryManager: repositoryManager,
		Renderer:          renderer,
		Masker:            masker,
		WorkspaceRoot:     testInstance.TempDir(),
	})
	require.NoError(testInstance, serviceError)

	return service
}

func defaultSyncOptions() lineage.SyncOptions {
	return lineage.SyncOptions{
		Query:            "org:example",
		Token:            testingTokenConstant,
		AssignCodeOwners: true,
		SearchLimit:      1000,
		GitUserName:      "lineage-bot",
		GitUserEmail:     "lineage-bot@users.noreply.github.com",
	}
}

func cleanMergeBackend() *scriptedGitBackend {
	return &scriptedGitBackend{
		localTip:    "local-1",
		remoteTip:   "remote-2",
		mergeCommit: "merge-3",
		mergeOutput: "Merge made by the 'ort' strategy.\n",
	}
}

func TestServiceCreatesPullRequestForCleanMerge(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{publicSearchResult(childRepositoryNameConstant)}
	client.fileContents[fileContentKey(childRepositoryNameConstant, lineage.ConfigurationFileName)] = pinnedBranchConfigurationConstant
	client.fileContents[fileContentKey(childRepositoryNameConstant, lineage.CodeOwnersFileName)] = "* @octocat @hubot\n"

	service := newServiceForTest(testInstance, cleanMergeBackend(), client, false)

	report, runError := service.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, report.RepositoriesExamined)
	require.Equal(testInstance, 1, report.RepositoriesWithLineage)
	require.Equal(testInstance, 1, report.MappingsProcessed)
	require.Equal(testInstance, 1, report.PullRequestsCreated)
	require.Empty(testInstance, report.Failures)

	require.Len(testInstance, client.pullRequests, 1)
	created := client.pullRequests[0]
	require.Equal(testInstance, "Lineage pull request for: skeleton", created.title)
	require.Equal(testInstance, "main", created.baseBranch)
	require.Equal(testInstance, lineage.PullRequestBranchName("skeleton", "main"), created.pullRequest.HeadRefName)
	require.False(testInstance, created.pullRequest.IsDraft)

	marker, markerPresent := lineage.ExtractMetadataMarker(created.pullRequest.Body)
	require.True(testInstance, markerPresent)
	require.Equal(testInstance, "skeleton", marker.LineageID)
	require.Equal(testInstance, "remote-2", marker.RemoteTip)

	require.Equal(testInstance, [][]string{{"octocat", "hubot"}}, client.assigneeRequests)
}

func TestServiceHandlesMappingsIndependentlyWithinRepository(testInstance *testing.T) {
	multiMappingConfiguration := "version: \"1\"\n" +
		"lineage:\n" +
		"  extra-sauce:\n" +
		"    remote-url: https://github.com/example/extra-sauce.git\n" +
		"    remote-branch: develop\n" +
		"  skeleton:\n" +
		"    remote-url: https://github.com/example/skeleton.git\n" +
		"    remote-branch: develop\n"

	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{publicSearchResult(childRepositoryNameConstant)}
	client.fileContents[fileContentKey(childRepositoryNameConstant, lineage.ConfigurationFileName)] = multiMappingConfiguration

	backend := cleanMergeBackend()
	backend.upToDateRemoteURLs = map[string]bool{"https://github.com/example/extra-sauce.git": true}

	service := newServiceForTest(testInstance, backend, client, false)

	report, runError := service.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 2, report.MappingsProcessed)
	require.Equal(testInstance, 1, report.PullRequestsCreated)
	require.Equal(testInstance, 1, report.MappingsSkipped)
	require.Empty(testInstance, report.Failures)

	require.Len(testInstance, client.pullRequests, 1)
	require.Equal(testInstance, "Lineage pull request for: skeleton", client.pullRequests[0].title)
}

func TestServiceSecondRunLeavesManagedPullRequestUntouched(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{publicSearchResult(childRepositoryNameConstant)}
	client.fileContents[fileContentKey(childRepositoryNameConstant, lineage.ConfigurationFileName)] = pinnedBranchConfigurationConstant

	firstService := newServiceForTest(testInstance, cleanMergeBackend(), client, false)
	firstReport, firstRunError := firstService.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, firstRunError)
	require.Equal(testInstance, 1, firstReport.PullRequestsCreated)

	secondService := newServiceForTest(testInstance, cleanMergeBackend(), client, false)
	secondReport, secondRunError := secondService.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, secondRunError)
	require.Zero(testInstance, secondReport.PullRequestsCreated)
	require.Zero(testInstance, secondReport.PullRequestsUpdated)
	require.Equal(testInstance, 1, secondReport.MappingsUnchanged)

	require.Equal(testInstance, 1, client.createCallCount)
	require.Zero(testInstance, client.updateCallCount)
}

func TestServiceRefreshesPullRequestWhenUpstreamAdvances(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{publicSearchResult(childRepositoryNameConstant)}
	client.fileContents[fileContentKey(childRepositoryNameConstant, lineage.ConfigurationFileName)] = pinnedBranchConfigurationConstant

	firstService := newServiceForTest(testInstance, cleanMergeBackend(), client, false)
	_, firstRunError := firstService.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, firstRunError)

	advancedBackend := cleanMergeBackend()
	advancedBackend.remoteTip = "remote-9"
	secondService := newServiceForTest(testInstance, advancedBackend, client, false)
	secondReport, secondRunError := secondService.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, secondRunError)
	require.Equal(testInstance, 1, secondReport.PullRequestsUpdated)
	require.Equal(testInstance, 1, client.createCallCount)
	require.Equal(testInstance, 1, client.updateCallCount)

	marker, markerPresent := lineage.ExtractMetadataMarker(client.pullRequests[0].pullRequest.Body)
	require.True(testInstance, markerPresent)
	require.Equal(testInstance, "remote-9", marker.RemoteTip)
}

func TestServiceDraftsConflictPullRequests(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{publicSearchResult(childRepositoryNameConstant)}
	client.fileContents[fileContentKey(childRepositoryNameConstant, lineage.ConfigurationFileName)] = pinnedBranchConfigurationConstant

	backend := cleanMergeBackend()
	backend.mergeExitCode = 1
	backend.mergeOutput = "CONFLICT (content): Merge conflict in README.md\n"
	backend.conflictedPaths = []string{"README.md"}

	service := newServiceForTest(testInstance, backend, client, false)
	report, runError := service.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, report.PullRequestsCreated)

	created := client.pullRequests[0]
	require.True(testInstance, created.pullRequest.IsDraft)
	require.Equal(testInstance, "⚠️ CONFLICT! Lineage pull request for: skeleton", created.title)
	require.Contains(testInstance, created.pullRequest.Body, "README.md")
}

func TestServiceResolvesUpstreamDefaultBranch(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{publicSearchResult(childRepositoryNameConstant)}
	client.fileContents[fileContentKey(childRepositoryNameConstant, lineage.ConfigurationFileName)] = defaultBranchConfigurationConstant
	client.metadata[upstreamRepositoryConstant] = githubcli.RepositoryMetadata{
		NameWithOwner: upstreamRepositoryConstant,
		DefaultBranch: "main",
		Visibility:    "public",
	}

	backend := cleanMergeBackend()
	service := newServiceForTest(testInstance, backend, client, false)
	report, runError := service.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, report.PullRequestsCreated)
	require.Equal(testInstance, []string{upstreamRepositoryConstant}, client.metadataRequests)

	fetchObserved := false
	for _, arguments := range backend.executedCommands {
		if arguments[0] == "fetch" {
			fetchObserved = true
			require.Contains(testInstance, arguments, "main")
		}
	}
	require.True(testInstance, fetchObserved)
}

func TestServiceSkipsRepositoriesWithoutConfiguration(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{publicSearchResult(childRepositoryNameConstant)}

	service := newServiceForTest(testInstance, cleanMergeBackend(), client, false)
	report, runError := service.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, report.RepositoriesExamined)
	require.Zero(testInstance, report.RepositoriesWithLineage)
	require.Empty(testInstance, report.Failures)
}

func TestServiceSkipsNonPublicRepositoriesByDefault(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{
		{FullName: privateRepositoryNameConstant, Visibility: "private", DefaultBranch: "main"},
	}
	client.fileContents[fileContentKey(privateRepositoryNameConstant, lineage.ConfigurationFileName)] = pinnedBranchConfigurationConstant

	service := newServiceForTest(testInstance, cleanMergeBackend(), client, false)
	report, runError := service.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, report.RepositoriesExamined)
	require.Zero(testInstance, report.RepositoriesWithLineage)

	inclusiveService := newServiceForTest(testInstance, cleanMergeBackend(), client, false)
	inclusiveOptions := defaultSyncOptions()
	inclusiveOptions.IncludeNonPublic = true
	inclusiveReport, inclusiveRunError := inclusiveService.Execute(context.Background(), inclusiveOptions)
	require.NoError(testInstance, inclusiveRunError)
	require.Equal(testInstance, 1, inclusiveReport.RepositoriesWithLineage)
	require.Equal(testInstance, 1, inclusiveReport.PullRequestsCreated)
}

func TestServiceRecordsConfigurationFailuresAndContinues(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{
		publicSearchResult("example/broken-child"),
		publicSearchResult(childRepositoryNameConstant),
	}
	client.fileContents[fileContentKey("example/broken-child", lineage.ConfigurationFileName)] = malformedConfigurationConstant
	client.fileContents[fileContentKey(childRepositoryNameConstant, lineage.ConfigurationFileName)] = pinnedBranchConfigurationConstant

	service := newServiceForTest(testInstance, cleanMergeBackend(), client, false)
	report, runError := service.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, report.PullRequestsCreated)
	require.Len(testInstance, report.Failures, 1)
	require.Equal(testInstance, "example/broken-child", report.Failures[0].Repository)

	var configError lineage.ConfigError
	require.ErrorAs(testInstance, report.Failures[0].Err, &configError)
}

func TestServiceConfinesFetchFailuresToTheirMapping(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{publicSearchResult(childRepositoryNameConstant)}
	client.fileContents[fileContentKey(childRepositoryNameConstant, lineage.ConfigurationFileName)] = pinnedBranchConfigurationConstant

	backend := cleanMergeBackend()
	backend.fetchFailsForURL = "https://github.com/example/skeleton.git"

	service := newServiceForTest(testInstance, backend, client, false)
	report, runError := service.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, runError)
	require.Zero(testInstance, report.PullRequestsCreated)
	require.Len(testInstance, report.Failures, 1)

	var fetchError lineage.FetchError
	require.ErrorAs(testInstance, report.Failures[0].Err, &fetchError)
	require.Equal(testInstance, "skeleton", fetchError.LineageID)
}

func TestServiceConfinesPublisherFailures(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{publicSearchResult(childRepositoryNameConstant)}
	client.fileContents[fileContentKey(childRepositoryNameConstant, lineage.ConfigurationFileName)] = pinnedBranchConfigurationConstant
	client.createFailure = errors.New("validation failed")

	service := newServiceForTest(testInstance, cleanMergeBackend(), client, false)
	report, runError := service.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, runError)
	require.Zero(testInstance, report.PullRequestsCreated)
	require.Len(testInstance, report.Failures, 1)

	var publisherError lineage.PublisherError
	require.ErrorAs(testInstance, report.Failures[0].Err, &publisherError)
}

func TestServiceSkipsUnrelatedHistoriesWithWarning(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{publicSearchResult(childRepositoryNameConstant)}
	client.fileContents[fileContentKey(childRepositoryNameConstant, lineage.ConfigurationFileName)] = pinnedBranchConfigurationConstant

	backend := cleanMergeBackend()
	backend.mergeExitCode = 128
	backend.mergeOutput = "fatal: refusing to merge unrelated histories\n"

	service := newServiceForTest(testInstance, backend, client, false)
	report, runError := service.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, report.MappingsSkipped)
	require.Empty(testInstance, report.Failures)
	require.Len(testInstance, report.Warnings, 1)
}

func TestServiceMasksNonPublicRepositoryNamesInWarnings(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{
		{FullName: privateRepositoryNameConstant, Visibility: "private", DefaultBranch: "main"},
	}
	client.fileContents[fileContentKey(privateRepositoryNameConstant, lineage.ConfigurationFileName)] = pinnedBranchConfigurationConstant

	backend := cleanMergeBackend()
	backend.mergeExitCode = 128
	backend.mergeOutput = "fatal: refusing to merge unrelated histories\n"

	service := newServiceForTest(testInstance, backend, client, true)
	options := defaultSyncOptions()
	options.IncludeNonPublic = true

	report, runError := service.Execute(context.Background(), options)
	require.NoError(testInstance, runError)
	require.Len(testInstance, report.Warnings, 1)
	require.NotContains(testInstance, report.Warnings[0], "secret-child")
	require.Contains(testInstance, report.Warnings[0], "lineage-repo-")
}

func TestServiceKeepsRealIdentifiersInPullRequestBodies(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{
		{FullName: privateRepositoryNameConstant, Visibility: "private", DefaultBranch: "main"},
	}
	client.fileContents[fileContentKey(privateRepositoryNameConstant, lineage.ConfigurationFileName)] = pinnedBranchConfigurationConstant

	service := newServiceForTest(testInstance, cleanMergeBackend(), client, true)
	options := defaultSyncOptions()
	options.IncludeNonPublic = true

	report, runError := service.Execute(context.Background(), options)
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, report.PullRequestsCreated)

	require.Len(testInstance, client.pullRequests, 1)
	body := client.pullRequests[0].pullRequest.Body
	require.Contains(testInstance, body, "secret-child")
	require.NotContains(testInstance, body, "lineage-repo-")
}

func TestServiceWarnsAboutDuplicateManagedPullRequests(testInstance *testing.T) {
	client := newFakeGitHubClient()
	client.searchResults = []githubcli.RepositorySearchResult{publicSearchResult(childRepositoryNameConstant)}
	client.fileContents[fileContentKey(childRepositoryNameConstant, lineage.ConfigurationFileName)] = pinnedBranchConfigurationConstant

	headBranch := lineage.PullRequestBranchName("skeleton", "main")
	for duplicateIndex := 0; duplicateIndex < 2; duplicateIndex++ {
		client.pullRequests = append(client.pullRequests, storedPullRequest{
			repository: childRepositoryNameConstant,
			pullRequest: githubcli.PullRequest{
				Number:      10 + duplicateIndex,
				State:       "open",
				HeadRefName: headBranch,
				UpdatedAt:   fmt.Sprintf("2026-08-2%dT00:00:00Z", duplicateIndex),
			},
		})
	}

	service := newServiceForTest(testInstance, cleanMergeBackend(), client, false)
	report, runError := service.Execute(context.Background(), defaultSyncOptions())
	require.NoError(testInstance, runError)
	require.Len(testInstance, report.Warnings, 1)
	require.True(testInstance, strings.Contains(report.Warnings[0], "multiple open managed pull requests"))
	require.Equal(testInstance, 1, report.PullRequestsUpdated)
	require.Equal(testInstance, 1, client.updateCallCount)
}

func TestServiceRejectsMissingQueryAndToken(testInstance *testing.T) {
	client := newFakeGitHubClient()
	service := newServiceForTest(testInstance, cleanMergeBackend(), client, false)

	missingQueryOptions := defaultSyncOptions()
	missingQueryOptions.Query = " "
	_, queryError := service.Execute(context.Background(), missingQueryOptions)
	require.ErrorIs(testInstance, queryError, lineage.ErrQueryRequired)

	missingTokenOptions := defaultSyncOptions()
	missingTokenOptions.Token = ""
	_, tokenError := service.Execute(context.Background(), missingTokenOptions)
	require.ErrorIs(testInstance, tokenError, lineage.ErrTokenRequired)
}
