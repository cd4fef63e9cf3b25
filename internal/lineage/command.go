package lineage

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lineagekit/lineage/internal/execshell"
	"github.com/lineagekit/lineage/internal/githubcli"
	"github.com/lineagekit/lineage/internal/gitrepo"
	"github.com/lineagekit/lineage/internal/ui"
	"github.com/lineagekit/lineage/internal/utils"
	flagutils "github.com/lineagekit/lineage/internal/utils/flags"
	pathutils "github.com/lineagekit/lineage/internal/utils/path"
)

const (
	commandUseConstant              = "sync"
	commandShortDescriptionConstant = "Synchronize repositories with their upstream lineages"
	commandLongDescriptionConstant  = "sync enumerates repositories matching a search query, reads each repository's lineage configuration, merges upstream changes in a disposable workspace, and creates or refreshes the corresponding lineage pull requests."

	queryFlagNameConstant            = "query"
	queryFlagUsageConstant           = "Repository search query (e.g. \"org:example topic:lineage\")"
	tokenFlagNameConstant            = "token"
	tokenFlagUsageConstant           = "GitHub access token used for API calls and git authentication"
	searchLimitFlagNameConstant      = "search-limit"
	searchLimitFlagUsageConstant     = "Maximum number of repositories returned by the search"
	maskFlagNameConstant             = "mask"
	maskFlagUsageConstant            = "Mask non-public repository names in output"
	includeNonPublicFlagNameConstant = "include-nonpublic"
	includeNonPublicFlagUsage        = "Process private and internal repositories"
	assignCodeOwnersFlagNameConstant = "assign-codeowners"
	assignCodeOwnersFlagUsage        = "Assign code owners to created pull requests"
	cleanTemplateFlagNameConstant    = "clean-template"
	cleanTemplateFlagUsageConstant   = "Path to a custom clean pull request body template"
	conflictTemplateFlagNameConstant = "conflict-template"
	conflictTemplateFlagUsage        = "Path to a custom conflict pull request body template"

	templateFileReadErrorTemplateConstant          = "unable to read template file %s: %w"
	repositoryManagerCreationErrorTemplateConstant = "unable to construct repository manager: %w"
	githubClientCreationErrorTemplateConstant      = "unable to construct GitHub client: %w"
	synchronizationFailedErrorTemplateConstant     = "lineage synchronization failed: %w"
)

// CommandExecutor abstracts the shell executor for git and gh invocations.
type CommandExecutor interface {
	gitrepo.GitCommandExecutor
	githubcli.GitHubCommandExecutor
}

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs a synchronization engine from dependencies.
type ServiceProvider func(dependencies ServiceDependencies) (*Service, error)

type commandOptions struct {
	debugLoggingEnabled bool
	syncOptions         SyncOptions
	cleanTemplatePath   string
	conflictTemplate    string
}

// CommandBuilder assembles the sync Cobra command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     CommandExecutor
	ServiceProvider              ServiceProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	WorkspaceRoot                string

	maskToggleValue             bool
	includeNonPublicToggleValue bool
	assignCodeOwnersToggleValue bool
}

// Build constructs the sync command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runSync,
	}

	defaults := DefaultCommandConfiguration()
	command.Flags().String(queryFlagNameConstant, "", queryFlagUsageConstant)
	command.Flags().String(tokenFlagNameConstant, "", tokenFlagUsageConstant)
	command.Flags().Int(searchLimitFlagNameConstant, defaults.SearchLimit, searchLimitFlagUsageConstant)
	command.Flags().String(cleanTemplateFlagNameConstant, "", cleanTemplateFlagUsageConstant)
	command.Flags().String(conflictTemplateFlagNameConstant, "", conflictTemplateFlagUsage)
	flagutils.AddToggleFlag(command.Flags(), &builder.maskToggleValue, maskFlagNameConstant, "", defaults.MaskNonPublic, maskFlagUsageConstant)
	flagutils.AddToggleFlag(command.Flags(), &builder.includeNonPublicToggleValue, includeNonPublicFlagNameConstant, "", defaults.IncludeNonPublic, includeNonPublicFlagUsage)
	flagutils.AddToggleFlag(command.Flags(), &builder.assignCodeOwnersToggleValue, assignCodeOwnersFlagNameConstant, "", defaults.AssignCodeOwners, assignCodeOwnersFlagUsage)

	return command, nil
}

func (builder *CommandBuilder) runSync(command *cobra.Command, arguments []string) error {
	options, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger(options.debugLoggingEnabled)

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return executorError
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor)
	if managerError != nil {
		return fmt.Errorf(repositoryManagerCreationErrorTemplateConstant, managerError)
	}

	githubClient, githubClientError := githubcli.NewClient(executor, options.syncOptions.Token)
	if githubClientError != nil {
		return fmt.Errorf(githubClientCreationErrorTemplateConstant, githubClientError)
	}

	cleanTemplateText, cleanTemplateError := loadTemplateFile(options.cleanTemplatePath)
	if cleanTemplateError != nil {
		return cleanTemplateError
	}

	conflictTemplateText, conflictTemplateError := loadTemplateFile(options.conflictTemplate)
	if conflictTemplateError != nil {
		return conflictTemplateError
	}

	renderer, rendererError := NewTemplateRenderer(cleanTemplateText, conflictTemplateText)
	if rendererError != nil {
		return rendererError
	}

	masker, maskerError := NewMasker(builder.resolveMaskingEnabled(command, options))
	if maskerError != nil {
		return maskerError
	}

	service, serviceError := builder.resolveService(ServiceDependencies{
		Logger:            logger,
		GitHubClient:      githubClient,
		RepositoryManager: repositoryManager,
		Renderer:          renderer,
		Masker:            masker,
		WorkspaceRoot:     builder.WorkspaceRoot,
	})
	if serviceError != nil {
		return serviceError
	}

	_, executionError := service.Execute(command.Context(), options.syncOptions)
	if executionError != nil {
		return fmt.Errorf(synchronizationFailedErrorTemplateConstant, executionError)
	}

	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) (commandOptions, error) {
	configuration := builder.resolveConfiguration()

	debugEnabled := configuration.EnableDebugLogging
	if command != nil && command.Context() != nil {
		contextAccessor := utils.NewCommandContextAccessor()
		if logLevel, available := contextAccessor.LogLevel(command.Context()); available {
			if strings.EqualFold(logLevel, string(utils.LogLevelDebug)) {
				debugEnabled = true
			}
		}
	}

	options := commandOptions{
		debugLoggingEnabled: debugEnabled,
		syncOptions: SyncOptions{
			Query:            configuration.Query,
			Token:            configuration.Token,
			IncludeNonPublic: configuration.IncludeNonPublic,
			AssignCodeOwners: configuration.AssignCodeOwners,
			SearchLimit:      configuration.SearchLimit,
			GitUserName:      configuration.GitUserName,
			GitUserEmail:     configuration.GitUserEmail,
		},
		cleanTemplatePath: configuration.CleanTemplatePath,
		conflictTemplate:  configuration.ConflictTemplatePath,
	}

	if command == nil {
		return options, nil
	}

	flagSet := command.Flags()
	if flagSet.Changed(queryFlagNameConstant) {
		flagValue, _ := flagSet.GetString(queryFlagNameConstant)
		options.syncOptions.Query = strings.TrimSpace(flagValue)
	}
	if flagSet.Changed(tokenFlagNameConstant) {
		flagValue, _ := flagSet.GetString(tokenFlagNameConstant)
		options.syncOptions.Token = strings.TrimSpace(flagValue)
	}
	if flagSet.Changed(searchLimitFlagNameConstant) {
		flagValue, _ := flagSet.GetInt(searchLimitFlagNameConstant)
		options.syncOptions.SearchLimit = flagValue
	}
	if flagSet.Changed(includeNonPublicFlagNameConstant) {
		options.syncOptions.IncludeNonPublic = builder.includeNonPublicToggleValue
	}
	if flagSet.Changed(assignCodeOwnersFlagNameConstant) {
		options.syncOptions.AssignCodeOwners = builder.assignCodeOwnersToggleValue
	}
	if flagSet.Changed(cleanTemplateFlagNameConstant) {
		flagValue, _ := flagSet.GetString(cleanTemplateFlagNameConstant)
		options.cleanTemplatePath = strings.TrimSpace(flagValue)
	}
	if flagSet.Changed(conflictTemplateFlagNameConstant) {
		flagValue, _ := flagSet.GetString(conflictTemplateFlagNameConstant)
		options.conflictTemplate = strings.TrimSpace(flagValue)
	}

	return options, nil
}

func (builder *CommandBuilder) resolveMaskingEnabled(command *cobra.Command, options commandOptions) bool {
	maskingEnabled := builder.resolveConfiguration().MaskNonPublic
	if command != nil && command.Flags().Changed(maskFlagNameConstant) {
		maskingEnabled = builder.maskToggleValue
	}
	return maskingEnabled
}

func (builder *CommandBuilder) resolveLogger(enableDebug bool) *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if enableDebug {
		logger = logger.WithOptions(zap.IncreaseLevel(zapcore.DebugLevel))
	}
	return logger
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (CommandExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, commandRunner, false)
	if creationError != nil {
		return nil, creationError
	}
	if humanReadableLogging {
		// Console runs narrate command lifecycles through the observer instead
		// of the executor's structured debug messages.
		shellExecutor.RegisterObserver(ui.NewConsoleCommandEventLogger(logger))
	}
	return shellExecutor, nil
}

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies) (*Service, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}
	return NewService(dependencies)
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}

	provided := builder.ConfigurationProvider()
	return provided.Sanitize()
}

func loadTemplateFile(templatePath string) (string, error) {
	if len(templatePath) == 0 {
		return "", nil
	}

	expandedPath := pathutils.NewHomeExpander().Expand(templatePath)
	templateBytes, readError := os.ReadFile(expandedPath)
	if readError != nil {
		return "", fmt.Errorf(templateFileReadErrorTemplateConstant, expandedPath, readError)
	}
	return string(templateBytes), nil
}
