package githubcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lineagekit/lineage/internal/execshell"
)

const (
	searchSubcommandConstant      = "search"
	reposSubcommandConstant       = "repos"
	repoSubcommandConstant        = "repo"
	viewSubcommandConstant        = "view"
	pullRequestSubcommandConstant = "pr"
	listSubcommandConstant        = "list"
	createSubcommandConstant      = "create"
	editSubcommandConstant        = "edit"
	apiSubcommandConstant         = "api"

	jsonFlagConstant        = "--json"
	repoFlagConstant        = "--repo"
	stateFlagConstant       = "--state"
	headFlagConstant        = "--head"
	baseFlagConstant        = "--base"
	limitFlagConstant       = "--limit"
	titleFlagConstant       = "--title"
	bodyFileFlagConstant    = "--body-file"
	draftFlagConstant       = "--draft"
	labelFlagConstant       = "--label"
	addAssigneeFlagConstant = "--add-assignee"
	stdinReferenceConstant  = "-"

	acceptHeaderFlagConstant    = "-H"
	rawAcceptHeaderConstant     = "Accept: application/vnd.github.raw"
	contentsEndpointTemplate    = "repos/%s/contents/%s?ref=%s"
	authenticatedUserEndpoint   = "user"
	tokenEnvironmentKeyConstant = "GH_TOKEN"

	repositoryFieldNameConstant  = "repository"
	queryFieldNameConstant       = "query"
	headBranchFieldNameConstant  = "head_branch"
	titleFieldNameConstant       = "title"
	filePathFieldNameConstant    = "file_path"
	requiredValueMessageConstant = "value required"

	executorNotConfiguredMessageConstant = "github cli executor not configured"
	fileNotFoundMessageConstant          = "file not found on remote branch"
	notFoundSentinelConstant             = "HTTP 404"

	searchResultLimitDefaultConstant    = 1000
	pullRequestListLimitDefaultConstant = 50
	searchJSONFieldsConstant            = "fullName,visibility,defaultBranch,url"
	repoViewJSONFieldsConstant          = "nameWithOwner,defaultBranchRef,visibility"
	pullRequestJSONFieldsConstant       = "number,title,state,isDraft,body,headRefName,updatedAt"

	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant   = "%s response decoding failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"

	searchRepositoriesOperationNameConstant = OperationName("SearchRepositories")
	repositoryMetadataOperationNameConstant = OperationName("ResolveRepoMetadata")
	fetchFileContentOperationNameConstant   = OperationName("FetchFileContent")
	listPullRequestsOperationNameConstant   = OperationName("ListPullRequests")
	createPullRequestOperationNameConstant  = OperationName("CreatePullRequest")
	updatePullRequestOperationNameConstant  = OperationName("UpdatePullRequestBody")
	addAssigneesOperationNameConstant       = OperationName("AddAssignees")
	verifyCredentialsOperationNameConstant  = OperationName("VerifyCredentials")
)

// OperationName describes a named GitHub CLI workflow supported by the client.
type OperationName string

// PullRequestState describes acceptable GitHub pull request states.
type PullRequestState string

// Pull request state enumerations.
const (
	PullRequestStateOpen   PullRequestState = PullRequestState("open")
	PullRequestStateClosed PullRequestState = PullRequestState("closed")
	PullRequestStateMerged PullRequestState = PullRequestState("merged")
	PullRequestStateAll    PullRequestState = PullRequestState("all")
)

// RepositorySearchResult describes one repository returned by gh search repos.
type RepositorySearchResult struct {
	FullName      string
	Visibility    string
	DefaultBranch string
	URL           string
}

// RepositoryMetadata contains key details resolved from GitHub.
type RepositoryMetadata struct {
	NameWithOwner string
	DefaultBranch string
	Visibility    string
}

// PullRequest represents PR details returned by GitHub CLI.
type PullRequest struct {
	Number      int
	Title       string
	State       string
	IsDraft     bool
	Body        string
	HeadRefName string
	UpdatedAt   string
}

// PullRequestCreateOptions configures CreatePullRequest invocations.
type PullRequestCreateOptions struct {
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
	Draft      bool
	Labels     []string
}

// GitHubCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitHubCommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client coordinates GitHub CLI invocations through execshell.
//
// The access token is injected into every invocation through the process
// environment so it never appears in command arguments or log output.
type Client struct {
	executor GitHubCommandExecutor
	token    string
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
	// ErrFileNotFound indicates the requested file does not exist on the remote branch.
	ErrFileNotFound = errors.New(fileNotFoundMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for GitHub CLI operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// NewClient constructs a GitHub CLI client carrying the given access token.
func NewClient(executor GitHubCommandExecutor, token string) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Client{executor: executor, token: token}, nil
}

func (client *Client) commandEnvironment() map[string]string {
	if len(client.token) == 0 {
		return nil
	}
	return map[string]string{tokenEnvironmentKeyConstant: client.token}
}

// VerifyCredentials confirms the token authenticates and returns the associated login.
func (client *Client) VerifyCredentials(executionContext context.Context) (string, error) {
	commandDetails := execshell.CommandDetails{
		Arguments:            []string{apiSubcommandConstant, authenticatedUserEndpoint},
		EnvironmentVariables: client.commandEnvironment(),
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return "", OperationError{Operation: verifyCredentialsOperationNameConstant, Cause: executionError}
	}

	var response struct {
		Login string `json:"login"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return "", ResponseDecodingError{Operation: verifyCredentialsOperationNameConstant, Cause: decodingError}
	}

	return response.Login, nil
}

// SearchRepositories enumerates repositories matching the query using gh search repos.
func (client *Client) SearchRepositories(executionContext context.Context, query string, resultLimit int) ([]RepositorySearchResult, error) {
	trimmedQuery := strings.TrimSpace(query)
	if len(trimmedQuery) == 0 {
		return nil, InvalidInputError{FieldName: queryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	if resultLimit <= 0 {
		resultLimit = searchResultLimitDefaultConstant
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			searchSubcommandConstant,
			reposSubcommandConstant,
			trimmedQuery,
			jsonFlagConstant,
			searchJSONFieldsConstant,
			limitFlagConstant,
			strconv.Itoa(resultLimit),
		},
		EnvironmentVariables: client.commandEnvironment(),
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return nil, OperationError{Operation: searchRepositoriesOperationNameConstant, Cause: executionError}
	}

	var response []struct {
		FullName      string `json:"fullName"`
		Visibility    string `json:"visibility"`
		DefaultBranch string `json:"defaultBranch"`
		URL           string `json:"url"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return nil, ResponseDecodingError{Operation: searchRepositoriesOperationNameConstant, Cause: decodingError}
	}

	searchResults := make([]RepositorySearchResult, 0, len(response))
	for _, searchEntry := range response {
		searchResults = append(searchResults, RepositorySearchResult{
			FullName:      searchEntry.FullName,
			Visibility:    searchEntry.Visibility,
			DefaultBranch: searchEntry.DefaultBranch,
			URL:           searchEntry.URL,
		})
	}

	return searchResults, nil
}

// ResolveRepoMetadata retrieves canonical metadata for a repository using gh repo view.
func (client *Client) ResolveRepoMetadata(executionContext context.Context, repository string) (RepositoryMetadata, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return RepositoryMetadata{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			repoSubcommandConstant,
			viewSubcommandConstant,
			repositoryIdentifier,
			jsonFlagConstant,
			repoViewJSONFieldsConstant,
		},
		EnvironmentVariables: client.commandEnvironment(),
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return RepositoryMetadata{}, OperationError{Operation: repositoryMetadataOperationNameConstant, Cause: executionError}
	}

	var response struct {
		NameWithOwner    string `json:"nameWithOwner"`
		Visibility       string `json:"visibility"`
		DefaultBranchRef struct {
			Name string `json:"name"`
		} `json:"defaultBranchRef"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return RepositoryMetadata{}, ResponseDecodingError{Operation: repositoryMetadataOperationNameConstant, Cause: decodingError}
	}

	return RepositoryMetadata{
		NameWithOwner: response.NameWithOwner,
		DefaultBranch: response.DefaultBranchRef.Name,
		Visibility:    response.Visibility,
	}, nil
}

// FetchFileContent retrieves the raw contents of a file on a branch using gh api.
// It returns ErrFileNotFound when the file does not exist on that branch.
func (client *Client) FetchFileContent(executionContext context.Context, repository string, branch string, filePath string) (string, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return "", InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return "", InvalidInputError{FieldName: filePathFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			apiSubcommandConstant,
			fmt.Sprintf(contentsEndpointTemplate, repositoryIdentifier, trimmedPath, branch),
			acceptHeaderFlagConstant,
			rawAcceptHeaderConstant,
		},
		EnvironmentVariables: client.commandEnvironment(),
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		var commandFailure execshell.CommandFailedError
		if errors.As(executionError, &commandFailure) && strings.Contains(commandFailure.Result.StandardError, notFoundSentinelConstant) {
			return "", ErrFileNotFound
		}
		return "", OperationError{Operation: fetchFileContentOperationNameConstant, Cause: executionError}
	}

	return executionResult.StandardOutput, nil
}

// ListPullRequests enumerates pull requests with the given head branch using gh pr list.
func (client *Client) ListPullRequests(executionContext context.Context, repository string, headBranch string, state PullRequestState) ([]PullRequest, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return nil, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	if len(strings.TrimSpace(headBranch)) == 0 {
		return nil, InvalidInputError{FieldName: headBranchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	if len(state) == 0 {
		state = PullRequestStateAll
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			pullRequestSubcommandConstant,
			listSubcommandConstant,
			repoFlagConstant,
			repositoryIdentifier,
			stateFlagConstant,
			string(state),
			headFlagConstant,
			headBranch,
			jsonFlagConstant,
			pullRequestJSONFieldsConstant,
			limitFlagConstant,
			strconv.Itoa(pullRequestListLimitDefaultConstant),
		},
		EnvironmentVariables: client.commandEnvironment(),
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return nil, OperationError{Operation: listPullRequestsOperationNameConstant, Cause: executionError}
	}

	var response []struct {
		Number      int    `json:"number"`
		Title       string `json:"title"`
		State       string `json:"state"`
		IsDraft     bool   `json:"isDraft"`
		Body        string `json:"body"`
		HeadRefName string `json:"headRefName"`
		UpdatedAt   string `json:"updatedAt"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return nil, ResponseDecodingError{Operation: listPullRequestsOperationNameConstant, Cause: decodingError}
	}

	pullRequests := make([]PullRequest, 0, len(response))
	for _, pullRequestEntry := range response {
		pullRequests = append(pullRequests, PullRequest{
			Number:      pullRequestEntry.Number,
			Title:       pullRequestEntry.Title,
			State:       strings.ToLower(pullRequestEntry.State),
			IsDraft:     pullRequestEntry.IsDraft,
			Body:        pullRequestEntry.Body,
			HeadRefName: pullRequestEntry.HeadRefName,
			UpdatedAt:   pullRequestEntry.UpdatedAt,
		})
	}

	return pullRequests, nil
}

// CreatePullRequest opens a pull request using gh pr create and returns its number.
func (client *Client) CreatePullRequest(executionContext context.Context, repository string, options PullRequestCreateOptions) (int, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return 0, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	if len(strings.TrimSpace(options.Title)) == 0 {
		return 0, InvalidInputError{FieldName: titleFieldNameConstant, Message: requiredValueMessageConstant}
	}

	if len(strings.TrimSpace(options.HeadBranch)) == 0 {
		return 0, InvalidInputError{FieldName: headBranchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandArguments := []string{
		pullRequestSubcommandConstant,
		createSubcommandConstant,
		repoFlagConstant,
		repositoryIdentifier,
		titleFlagConstant,
		options.Title,
		bodyFileFlagConstant,
		stdinReferenceConstant,
		headFlagConstant,
		options.HeadBranch,
		baseFlagConstant,
		options.BaseBranch,
	}
	if options.Draft {
		commandArguments = append(commandArguments, draftFlagConstant)
	}
	for _, labelName := range options.Labels {
		commandArguments = append(commandArguments, labelFlagConstant, labelName)
	}

	commandDetails := execshell.CommandDetails{
		Arguments:            commandArguments,
		StandardInput:        []byte(options.Body),
		EnvironmentVariables: client.commandEnvironment(),
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return 0, OperationError{Operation: createPullRequestOperationNameConstant, Cause: executionError}
	}

	pullRequestNumber, parseError := parsePullRequestNumber(executionResult.StandardOutput)
	if parseError != nil {
		return 0, ResponseDecodingError{Operation: createPullRequestOperationNameConstant, Cause: parseError}
	}

	return pullRequestNumber, nil
}

// UpdatePullRequestBody replaces the PR description using gh pr edit.
func (client *Client) UpdatePullRequestBody(executionContext context.Context, repository string, pullRequestNumber int, body string) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			pullRequestSubcommandConstant,
			editSubcommandConstant,
			strconv.Itoa(pullRequestNumber),
			repoFlagConstant,
			repositoryIdentifier,
			bodyFileFlagConstant,
			stdinReferenceConstant,
		},
		StandardInput:        []byte(body),
		EnvironmentVariables: client.commandEnvironment(),
	}

	_, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return OperationError{Operation: updatePullRequestOperationNameConstant, Cause: executionError}
	}

	return nil
}

// AddAssignees assigns the given logins to a pull request using gh pr edit.
func (client *Client) AddAssignees(executionContext context.Context, repository string, pullRequestNumber int, assignees []string) error {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	if len(assignees) == 0 {
		return nil
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			pullRequestSubcommandConstant,
			editSubcommandConstant,
			strconv.Itoa(pullRequestNumber),
			repoFlagConstant,
			repositoryIdentifier,
			addAssigneeFlagConstant,
			strings.Join(assignees, ","),
		},
		EnvironmentVariables: client.commandEnvironment(),
	}

	_, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return OperationError{Operation: addAssigneesOperationNameConstant, Cause: executionError}
	}

	return nil
}

func parsePullRequestNumber(commandOutput string) (int, error) {
	trimmedOutput := strings.TrimSpace(commandOutput)
	lastSlashIndex := strings.LastIndex(trimmedOutput, "/")
	if lastSlashIndex < 0 || lastSlashIndex == len(trimmedOutput)-1 {
		return 0, fmt.Errorf("unexpected pull request URL %q", trimmedOutput)
	}
	return strconv.Atoi(trimmedOutput[lastSlashIndex+1:])
}
