package lineage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/lineagekit/lineage/internal/githubcli"
	"github.com/lineagekit/lineage/internal/gitrepo"
)

const (
	loggerMissingMessageConstant            = "logger not configured"
	githubClientMissingMessageConstant      = "GitHub client not configured"
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	rendererMissingMessageConstant          = "template renderer not configured"
	maskerMissingMessageConstant            = "masker not configured"
	queryRequiredMessageConstant            = "repository search query required"
	tokenRequiredMessageConstant            = "access token required"

	credentialVerificationErrorTemplate = "credential verification failed: %w"
	repositorySearchErrorTemplate       = "repository search failed: %w"
	workspaceCreationErrorTemplate      = "workspace creation failed: %w"
	remoteBranchResolutionErrorTemplate = "unable to resolve upstream default branch for %s: %w"
	pullRequestLookupErrorTemplate      = "pull request lookup failed: %w"
	pullRequestCreateErrorTemplate      = "pull request creation failed: %w"
	pullRequestUpdateErrorTemplate      = "pull request update failed: %w"
	branchPushErrorTemplateConstant     = "pull request branch push failed: %w"
	bodyRenderErrorTemplateConstant     = "body rendering failed: %w"

	workspaceDirectoryPatternConstant = "lineage-*"

	gitHubHostNameConstant            = "github.com"
	gitTerminalPromptEnvironmentKey   = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledConstant = "0"
	gitConfigCountEnvironmentKey      = "GIT_CONFIG_COUNT"
	gitConfigSingleEntryConstant      = "1"
	gitConfigKeyEnvironmentKey        = "GIT_CONFIG_KEY_0"
	gitConfigValueEnvironmentKey      = "GIT_CONFIG_VALUE_0"
	gitExtraHeaderConfigKeyConstant   = "http.https://github.com/.extraheader"
	gitAuthorizationHeaderTemplate    = "AUTHORIZATION: basic %s"
	gitAccessTokenUserTemplate        = "x-access-token:%s"

	cleanPullRequestTitleTemplate    = "Lineage pull request for: %s"
	conflictPullRequestTitleTemplate = "⚠️ CONFLICT! Lineage pull request for: %s"

	logMessageExaminingRepositoryConstant  = "Examining repository"
	logMessageNoConfigurationConstant      = "Lineage configuration not found"
	logMessageSkippingNonPublicConstant    = "Skipping non-public repository"
	logMessageProcessingMappingConstant    = "Processing lineage mapping"
	logMessageMappingActionConstant        = "Lineage mapping reconciled"
	logMessageMappingFailedConstant        = "Lineage mapping failed"
	logMessageRepositoryFailedConstant     = "Repository skipped"
	logMessageUnrelatedHistoryConstant     = "Upstream history unrelated, mapping skipped"
	logMessageInvariantWarningConstant     = "Invariant warning"
	logMessageAssigneeFailureConstant      = "Unable to assign code owners"
	logMessageRunCompletedConstant         = "Lineage synchronization completed"
	logMessageAuthenticatedConstant        = "Authenticated with GitHub"
	logFieldRepositoryConstant             = "repository"
	logFieldLineageConstant                = "lineage_id"
	logFieldActionConstant                 = "action"
	logFieldOutcomeConstant                = "outcome"
	logFieldLoginConstant                  = "login"
	logFieldRepositoriesExaminedConstant   = "repositories_examined"
	logFieldRepositoriesConfiguredConstant = "repositories_with_lineage"
	logFieldMappingsProcessedConstant      = "mappings_processed"
	logFieldPullRequestsCreatedConstant    = "pull_requests_created"
	logFieldPullRequestsUpdatedConstant    = "pull_requests_updated"
	logFieldFailureCountConstant           = "failures"
	logFieldWarningCountConstant           = "warnings"
)

// Service construction errors.
var (
	ErrLoggerMissing            = errors.New(loggerMissingMessageConstant)
	ErrGitHubClientMissing      = errors.New(githubClientMissingMessageConstant)
	ErrRepositoryManagerMissing = errors.New(repositoryManagerMissingMessageConstant)
	ErrRendererMissing          = errors.New(rendererMissingMessageConstant)
	ErrMaskerMissing            = errors.New(maskerMissingMessageConstant)
	ErrQueryRequired            = errors.New(queryRequiredMessageConstant)
	ErrTokenRequired            = errors.New(tokenRequiredMessageConstant)
)

// GitHubOperations is the subset of the githubcli client the engine requires.
type GitHubOperations interface {
	VerifyCredentials(executionContext context.Context) (string, error)
	SearchRepositories(executionContext context.Context, query string, resultLimit int) ([]githubcli.RepositorySearchResult, error)
	ResolveRepoMetadata(executionContext context.Context, repository string) (githubcli.RepositoryMetadata, error)
	FetchFileContent(executionContext context.Context, repository string, branch string, filePath string) (string, error)
	ListPullRequests(executionContext context.Context, repository string, headBranch string, state githubcli.PullRequestState) ([]githubcli.PullRequest, error)
	CreatePullRequest(executionContext context.Context, repository string, options githubcli.PullRequestCreateOptions) (int, error)
	UpdatePullRequestBody(executionContext context.Context, repository string, pullRequestNumber int, body string) error
	AddAssignees(executionContext context.Context, repository string, pullRequestNumber int, assignees []string) error
}

// ServiceDependencies describes required collaborators for synchronization.
type ServiceDependencies struct {
	Logger            *zap.Logger
	GitHubClient      GitHubOperations
	RepositoryManager *gitrepo.RepositoryManager
	Renderer          *TemplateRenderer
	Masker            *Masker
	WorkspaceRoot     string
}

// SyncOptions configures one synchronization run.
type SyncOptions struct {
	Query            string
	Token            string
	IncludeNonPublic bool
	AssignCodeOwners bool
	SearchLimit      int
	GitUserName      string
	GitUserEmail     string
}

// MappingFailure records one isolated per-mapping or per-repository failure.
type MappingFailure struct {
	Repository string
	LineageID  string
	Err        error
}

// RunReport aggregates everything a run did and everything it could not do.
type RunReport struct {
	RepositoriesExamined    int
	RepositoriesWithLineage int
	MappingsProcessed       int
	PullRequestsCreated     int
	PullRequestsUpdated     int
	MappingsUpToDate        int
	MappingsUnchanged       int
	PullRequestsLeftOpen    int
	MappingsSkipped         int
	Warnings                []string
	Failures                []MappingFailure
}

// Service is the synchronization engine: it enumerates repositories, evaluates
// each declared lineage, and reconciles the corresponding managed pull request.
type Service struct {
	logger            *zap.Logger
	gitHubClient      GitHubOperations
	repositoryManager *gitrepo.RepositoryManager
	mergeExecutor     *MergeExecutor
	renderer          *TemplateRenderer
	masker            *Masker
	workspaceRoot     string
}

// NewService constructs a Service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerMissing
	}
	if dependencies.GitHubClient == nil {
		return nil, ErrGitHubClientMissing
	}
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerMissing
	}
	if dependencies.Renderer == nil {
		return nil, ErrRendererMissing
	}
	if dependencies.Masker == nil {
		return nil, ErrMaskerMissing
	}

	mergeExecutor, mergeExecutorError := NewMergeExecutor(dependencies.RepositoryManager)
	if mergeExecutorError != nil {
		return nil, mergeExecutorError
	}

	return &Service{
		logger:            dependencies.Logger,
		gitHubClient:      dependencies.GitHubClient,
		repositoryManager: dependencies.RepositoryManager,
		mergeExecutor:     mergeExecutor,
		renderer:          dependencies.Renderer,
		masker:            dependencies.Masker,
		workspaceRoot:     dependencies.WorkspaceRoot,
	}, nil
}

// Execute performs one synchronization run. Credential or enumeration failures
// abort the run; every other failure is confined to its repository or mapping
// and lands in the returned report.
func (service *Service) Execute(executionContext context.Context, options SyncOptions) (RunReport, error) {
	report := RunReport{}

	if len(strings.TrimSpace(options.Query)) == 0 {
		return report, ErrQueryRequired
	}
	if len(strings.TrimSpace(options.Token)) == 0 {
		return report, ErrTokenRequired
	}

	login, credentialError := service.gitHubClient.VerifyCredentials(executionContext)
	if credentialError != nil {
		return report, fmt.Errorf(credentialVerificationErrorTemplate, credentialError)
	}
	service.logger.Info(logMessageAuthenticatedConstant, zap.String(logFieldLoginConstant, login))

	searchResults, searchError := service.gitHubClient.SearchRepositories(executionContext, options.Query, options.SearchLimit)
	if searchError != nil {
		return report, fmt.Errorf(repositorySearchErrorTemplate, searchError)
	}

	for _, searchResult := range searchResults {
		if contextError := executionContext.Err(); contextError != nil {
			return report, contextError
		}

		descriptor, descriptorError := repositoryDescriptorFromSearchResult(searchResult)
		if descriptorError != nil {
			report.Failures = append(report.Failures, MappingFailure{Repository: searchResult.FullName, Err: descriptorError})
			continue
		}

		service.masker.RegisterRepository(descriptor)
		report.RepositoriesExamined++
		displayName := service.masker.DisplayName(descriptor.FullName)
		service.logger.Debug(logMessageExaminingRepositoryConstant, zap.String(logFieldRepositoryConstant, displayName))

		if !descriptor.IsPublic() && !options.IncludeNonPublic {
			service.logger.Debug(logMessageSkippingNonPublicConstant, zap.String(logFieldRepositoryConstant, displayName))
			continue
		}

		service.processRepository(executionContext, descriptor, options, &report)
	}

	service.logger.Info(
		logMessageRunCompletedConstant,
		zap.Int(logFieldRepositoriesExaminedConstant, report.RepositoriesExamined),
		zap.Int(logFieldRepositoriesConfiguredConstant, report.RepositoriesWithLineage),
		zap.Int(logFieldMappingsProcessedConstant, report.MappingsProcessed),
		zap.Int(logFieldPullRequestsCreatedConstant, report.PullRequestsCreated),
		zap.Int(logFieldPullRequestsUpdatedConstant, report.PullRequestsUpdated),
		zap.Int(logFieldFailureCountConstant, len(report.Failures)),
		zap.Int(logFieldWarningCountConstant, len(report.Warnings)),
	)

	return report, nil
}

func (service *Service) processRepository(executionContext context.Context, descriptor RepositoryDescriptor, options SyncOptions, report *RunReport) {
	displayName := service.masker.DisplayName(descriptor.FullName)

	configurationContent, configurationError := service.gitHubClient.FetchFileContent(executionContext, descriptor.FullName, descriptor.DefaultBranch, ConfigurationFileName)
	if configurationError != nil {
		if errors.Is(configurationError, githubcli.ErrFileNotFound) {
			service.logger.Debug(logMessageNoConfigurationConstant, zap.String(logFieldRepositoryConstant, displayName))
			return
		}
		failure := ConfigError{Repository: descriptor.FullName, Cause: configurationError}
		service.recordRepositoryFailure(report, descriptor, failure)
		return
	}

	mappings, parseError := ParseConfiguration(configurationContent, descriptor.DefaultBranch)
	if parseError != nil {
		failure := ConfigError{Repository: descriptor.FullName, Cause: parseError}
		service.recordRepositoryFailure(report, descriptor, failure)
		return
	}

	report.RepositoriesWithLineage++

	for _, mapping := range mappings {
		if executionContext.Err() != nil {
			return
		}

		service.logger.Info(
			logMessageProcessingMappingConstant,
			zap.String(logFieldRepositoryConstant, displayName),
			zap.String(logFieldLineageConstant, mapping.LineageID),
		)
		report.MappingsProcessed++

		action, mappingError := service.processMapping(executionContext, descriptor, mapping, options, report)
		if mappingError != nil {
			report.Failures = append(report.Failures, MappingFailure{Repository: descriptor.FullName, LineageID: mapping.LineageID, Err: mappingError})
			service.logger.Warn(
				logMessageMappingFailedConstant,
				zap.String(logFieldRepositoryConstant, displayName),
				zap.String(logFieldLineageConstant, mapping.LineageID),
				zap.String(logFieldOutcomeConstant, service.masker.Mask(mappingError.Error())),
			)
			continue
		}

		service.recordAction(report, action)
		service.logger.Info(
			logMessageMappingActionConstant,
			zap.String(logFieldRepositoryConstant, displayName),
			zap.String(logFieldLineageConstant, mapping.LineageID),
			zap.String(logFieldActionConstant, string(action)),
		)
	}
}

func (service *Service) processMapping(executionContext context.Context, descriptor RepositoryDescriptor, mapping Mapping, options SyncOptions, report *RunReport) (ReconciliationAction, error) {
	remoteBranch, resolutionError := service.resolveRemoteBranch(executionContext, mapping)
	if resolutionError != nil {
		return "", FetchError{Repository: descriptor.FullName, LineageID: mapping.LineageID, Cause: resolutionError}
	}

	workspacePath, workspaceError := os.MkdirTemp(service.workspaceRoot, workspaceDirectoryPatternConstant)
	if workspaceError != nil {
		return "", MergeExecutionError{Repository: descriptor.FullName, LineageID: mapping.LineageID, Cause: fmt.Errorf(workspaceCreationErrorTemplate, workspaceError)}
	}
	defer os.RemoveAll(workspacePath)

	gitEnvironment := gitAuthorizationEnvironment(options.Token)

	outcome, repositoryPath, mergeError := service.mergeExecutor.Execute(executionContext, MergeRequest{
		WorkspacePath:  workspacePath,
		CloneURL:       descriptor.CloneURL,
		LocalBranch:    mapping.LocalBranch,
		RemoteURL:      mapping.RemoteURL,
		RemoteBranch:   remoteBranch,
		GitUserName:    options.GitUserName,
		GitUserEmail:   options.GitUserEmail,
		GitEnvironment: gitEnvironment,
		ProtectedPath:  ConfigurationFileName,
	})
	if mergeError != nil {
		if errors.Is(mergeError, ErrUnrelatedHistory) {
			warning := InvariantWarning{Repository: descriptor.FullName, LineageID: mapping.LineageID, Message: unrelatedHistoryMessageConstant}
			service.recordWarning(report, warning.Error())
			service.logger.Warn(
				logMessageUnrelatedHistoryConstant,
				zap.String(logFieldRepositoryConstant, service.masker.DisplayName(descriptor.FullName)),
				zap.String(logFieldLineageConstant, mapping.LineageID),
			)
			return ActionSkip, nil
		}
		var fetchStageError FetchStageError
		if errors.As(mergeError, &fetchStageError) {
			return "", FetchError{Repository: descriptor.FullName, LineageID: mapping.LineageID, Cause: mergeError}
		}
		return "", MergeExecutionError{Repository: descriptor.FullName, LineageID: mapping.LineageID, Cause: mergeError}
	}

	headBranch := PullRequestBranchName(mapping.LineageID, mapping.LocalBranch)

	candidates, listError := service.gitHubClient.ListPullRequests(executionContext, descriptor.FullName, headBranch, githubcli.PullRequestStateAll)
	if listError != nil {
		return "", PublisherError{Repository: descriptor.FullName, LineageID: mapping.LineageID, Cause: fmt.Errorf(pullRequestLookupErrorTemplate, listError)}
	}

	existing, surplusCount := SelectManagedPullRequest(candidates)
	if surplusCount > 0 {
		warning := DuplicateManagedPullRequestWarning(descriptor.FullName, mapping.LineageID)
		service.recordWarning(report, warning.Error())
		service.logger.Warn(
			logMessageInvariantWarningConstant,
			zap.String(logFieldRepositoryConstant, service.masker.DisplayName(descriptor.FullName)),
			zap.String(logFieldLineageConstant, mapping.LineageID),
			zap.String(logFieldOutcomeConstant, warning.Message),
		)
	}

	decision := Decide(mapping.LineageID, existing, outcome)

	switch decision.Action {
	case ActionCreatePullRequest:
		if publishError := service.publishNewPullRequest(executionContext, descriptor, mapping, remoteBranch, outcome, decision, repositoryPath, headBranch, gitEnvironment, options); publishError != nil {
			return "", publishError
		}
	case ActionUpdatePullRequest:
		if publishError := service.refreshPullRequest(executionContext, descriptor, mapping, remoteBranch, outcome, decision, repositoryPath, headBranch, gitEnvironment); publishError != nil {
			return "", publishError
		}
	}

	return decision.Action, nil
}

func (service *Service) resolveRemoteBranch(executionContext context.Context, mapping Mapping) (string, error) {
	if len(mapping.RemoteBranch) > 0 {
		return mapping.RemoteBranch, nil
	}

	parsedRemote, parseError := gitrepo.ParseRemoteURL(mapping.RemoteURL)
	if parseError != nil {
		return "", fmt.Errorf(remoteBranchResolutionErrorTemplate, mapping.RemoteURL, parseError)
	}

	upstreamIdentifier := parsedRemote.Owner + "/" + parsedRemote.Repository
	metadata, metadataError := service.gitHubClient.ResolveRepoMetadata(executionContext, upstreamIdentifier)
	if metadataError != nil {
		return "", fmt.Errorf(remoteBranchResolutionErrorTemplate, mapping.RemoteURL, metadataError)
	}

	return metadata.DefaultBranch, nil
}

func (service *Service) renderBody(descriptor RepositoryDescriptor, mapping Mapping, remoteBranch string, outcome MergeOutcome, variant TemplateVariant) (string, error) {
	marker, markerError := MarkerForOutcome(mapping.LineageID, outcome).Encode()
	if markerError != nil {
		return "", markerError
	}

	renderedBody, renderError := service.renderer.Render(variant, RenderContext{
		RemoteURL:                mapping.RemoteURL,
		RemoteBranch:             remoteBranch,
		LocalBranch:              mapping.LocalBranch,
		PullRequestBranchName:    PullRequestBranchName(mapping.LineageID, mapping.LocalBranch),
		SSHURL:                   descriptor.SSHURL,
		RepositoryName:           descriptor.Name,
		LineageID:                mapping.LineageID,
		ConflictFileList:         outcome.ConflictFiles,
		ConflictDiff:             outcome.ConflictDiff,
		Metadata:                 marker,
		DisplayLineageConfigSkip: outcome.LineageConfigConflicted,
	})
	if renderError != nil {
		return "", fmt.Errorf(bodyRenderErrorTemplateConstant, renderError)
	}

	// Masking covers log and report output only; the published body keeps
	// the real identifiers.
	return renderedBody, nil
}

func (service *Service) publishNewPullRequest(executionContext context.Context, descriptor RepositoryDescriptor, mapping Mapping, remoteBranch string, outcome MergeOutcome, decision Decision, repositoryPath string, headBranch string, gitEnvironment map[string]string, options SyncOptions) error {
	body, renderError := service.renderBody(descriptor, mapping, remoteBranch, outcome, decision.Variant)
	if renderError != nil {
		return MergeExecutionError{Repository: descriptor.FullName, LineageID: mapping.LineageID, Cause: renderError}
	}

	if pushError := service.repositoryManager.ForcePushBranch(executionContext, repositoryPath, descriptor.CloneURL, headBranch, gitEnvironment); pushError != nil {
		return PublisherError{Repository: descriptor.FullName, LineageID: mapping.LineageID, Cause: fmt.Errorf(branchPushErrorTemplateConstant, pushError)}
	}

	titleTemplate := cleanPullRequestTitleTemplate
	if decision.Variant == TemplateVariantConflict {
		titleTemplate = conflictPullRequestTitleTemplate
	}

	pullRequestNumber, createError := service.gitHubClient.CreatePullRequest(executionContext, descriptor.FullName, githubcli.PullRequestCreateOptions{
		Title:      fmt.Sprintf(titleTemplate, mapping.LineageID),
		Body:       body,
		HeadBranch: headBranch,
		BaseBranch: mapping.LocalBranch,
		Draft:      decision.Variant == TemplateVariantConflict,
	})
	if createError != nil {
		return PublisherError{Repository: descriptor.FullName, LineageID: mapping.LineageID, Cause: fmt.Errorf(pullRequestCreateErrorTemplate, createError)}
	}

	if options.AssignCodeOwners {
		service.assignCodeOwners(executionContext, descriptor, pullRequestNumber)
	}

	return nil
}

func (service *Service) refreshPullRequest(executionContext context.Context, descriptor RepositoryDescriptor, mapping Mapping, remoteBranch string, outcome MergeOutcome, decision Decision, repositoryPath string, headBranch string, gitEnvironment map[string]string) error {
	body, renderError := service.renderBody(descriptor, mapping, remoteBranch, outcome, decision.Variant)
	if renderError != nil {
		return MergeExecutionError{Repository: descriptor.FullName, LineageID: mapping.LineageID, Cause: renderError}
	}

	if pushError := service.repositoryManager.ForcePushBranch(executionContext, repositoryPath, descriptor.CloneURL, headBranch, gitEnvironment); pushError != nil {
		return PublisherError{Repository: descriptor.FullName, LineageID: mapping.LineageID, Cause: fmt.Errorf(branchPushErrorTemplateConstant, pushError)}
	}

	if updateError := service.gitHubClient.UpdatePullRequestBody(executionContext, descriptor.FullName, decision.Existing.Number, body); updateError != nil {
		return PublisherError{Repository: descriptor.FullName, LineageID: mapping.LineageID, Cause: fmt.Errorf(pullRequestUpdateErrorTemplate, updateError)}
	}

	return nil
}

func (service *Service) assignCodeOwners(executionContext context.Context, descriptor RepositoryDescriptor, pullRequestNumber int) {
	codeOwnersContent, fetchError := service.gitHubClient.FetchFileContent(executionContext, descriptor.FullName, descriptor.DefaultBranch, CodeOwnersFileName)
	if fetchError != nil {
		if !errors.Is(fetchError, githubcli.ErrFileNotFound) {
			service.logger.Warn(
				logMessageAssigneeFailureConstant,
				zap.String(logFieldRepositoryConstant, service.masker.DisplayName(descriptor.FullName)),
				zap.String(logFieldOutcomeConstant, service.masker.Mask(fetchError.Error())),
			)
		}
		return
	}

	assignees := ParseCodeOwners(codeOwnersContent)
	if len(assignees) == 0 {
		return
	}

	if assignError := service.gitHubClient.AddAssignees(executionContext, descriptor.FullName, pullRequestNumber, assignees); assignError != nil {
		service.logger.Warn(
			logMessageAssigneeFailureConstant,
			zap.String(logFieldRepositoryConstant, service.masker.DisplayName(descriptor.FullName)),
			zap.String(logFieldOutcomeConstant, service.masker.Mask(assignError.Error())),
		)
	}
}

func (service *Service) recordRepositoryFailure(report *RunReport, descriptor RepositoryDescriptor, failure error) {
	report.Failures = append(report.Failures, MappingFailure{Repository: descriptor.FullName, Err: failure})
	service.logger.Warn(
		logMessageRepositoryFailedConstant,
		zap.String(logFieldRepositoryConstant, service.masker.DisplayName(descriptor.FullName)),
		zap.String(logFieldOutcomeConstant, service.masker.Mask(failure.Error())),
	)
}

func (service *Service) recordWarning(report *RunReport, warningText string) {
	report.Warnings = append(report.Warnings, service.masker.Mask(warningText))
}

func (service *Service) recordAction(report *RunReport, action ReconciliationAction) {
	switch action {
	case ActionCreatePullRequest:
		report.PullRequestsCreated++
	case ActionUpdatePullRequest:
		report.PullRequestsUpdated++
	case ActionLeaveExistingOpen:
		report.PullRequestsLeftOpen++
	case ActionNothing:
		report.MappingsUnchanged++
	case ActionSkip:
		report.MappingsSkipped++
	}
}

func repositoryDescriptorFromSearchResult(searchResult githubcli.RepositorySearchResult) (RepositoryDescriptor, error) {
	separatorIndex := strings.Index(searchResult.FullName, "/")
	if separatorIndex <= 0 || separatorIndex == len(searchResult.FullName)-1 {
		return RepositoryDescriptor{}, fmt.Errorf("unexpected repository identifier %q", searchResult.FullName)
	}

	owner := searchResult.FullName[:separatorIndex]
	name := searchResult.FullName[separatorIndex+1:]

	cloneURL, cloneURLError := gitrepo.FormatRemoteURL(gitrepo.RemoteURL{
		Protocol:   gitrepo.RemoteProtocolHTTPS,
		Host:       gitHubHostNameConstant,
		Owner:      owner,
		Repository: name,
	})
	if cloneURLError != nil {
		return RepositoryDescriptor{}, cloneURLError
	}

	sshURL, sshURLError := gitrepo.FormatRemoteURL(gitrepo.RemoteURL{
		Protocol:   gitrepo.RemoteProtocolSSH,
		Host:       gitHubHostNameConstant,
		Owner:      owner,
		Repository: name,
	})
	if sshURLError != nil {
		return RepositoryDescriptor{}, sshURLError
	}

	return RepositoryDescriptor{
		FullName:      searchResult.FullName,
		Name:          name,
		Visibility:    RepositoryVisibility(strings.ToLower(searchResult.Visibility)),
		DefaultBranch: searchResult.DefaultBranch,
		CloneURL:      cloneURL,
		SSHURL:        sshURL,
	}, nil
}

// gitAuthorizationEnvironment builds the environment that lets git authenticate
// over https without the token ever appearing in arguments or logs.
func gitAuthorizationEnvironment(token string) map[string]string {
	credential := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf(gitAccessTokenUserTemplate, token)))
	return map[string]string{
		gitTerminalPromptEnvironmentKey: gitTerminalPromptDisabledConstant,
		gitConfigCountEnvironmentKey:    gitConfigSingleEntryConstant,
		gitConfigKeyEnvironmentKey:      gitExtraHeaderConfigKeyConstant,
		gitConfigValueEnvironmentKey:    fmt.Sprintf(gitAuthorizationHeaderTemplate, credential),
	}
}
