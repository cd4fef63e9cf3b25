package lineage

import "strings"

const (
	defaultSearchLimitConstant  = 1000
	defaultGitUserNameConstant  = "lineage-bot"
	defaultGitUserEmailConstant = "lineage-bot@users.noreply.github.com"

	configurationMaskKeyConstant             = "mask"
	configurationIncludeNonPublicKeyConstant = "include_nonpublic"
	configurationAssignCodeOwnersKeyConstant = "assign_codeowners"
	configurationSearchLimitKeyConstant      = "search_limit"
	configurationGitUserNameKeyConstant      = "git_user_name"
	configurationGitUserEmailKeyConstant     = "git_user_email"
)

// CommandConfiguration captures persisted configuration for the sync command.
type CommandConfiguration struct {
	Query                string `mapstructure:"query"`
	Token                string `mapstructure:"token"`
	MaskNonPublic        bool   `mapstructure:"mask"`
	IncludeNonPublic     bool   `mapstructure:"include_nonpublic"`
	AssignCodeOwners     bool   `mapstructure:"assign_codeowners"`
	SearchLimit          int    `mapstructure:"search_limit"`
	CleanTemplatePath    string `mapstructure:"clean_template"`
	ConflictTemplatePath string `mapstructure:"conflict_template"`
	GitUserName          string `mapstructure:"git_user_name"`
	GitUserEmail         string `mapstructure:"git_user_email"`
	EnableDebugLogging   bool   `mapstructure:"debug"`
}

// DefaultCommandConfiguration returns baseline configuration values for sync.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		MaskNonPublic:    true,
		IncludeNonPublic: false,
		AssignCodeOwners: true,
		SearchLimit:      defaultSearchLimitConstant,
		GitUserName:      defaultGitUserNameConstant,
		GitUserEmail:     defaultGitUserEmailConstant,
	}
}

// DefaultConfigurationValues exposes sync defaults keyed for the configuration loader.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + "." + configurationMaskKeyConstant:             defaults.MaskNonPublic,
		rootKey + "." + configurationIncludeNonPublicKeyConstant: defaults.IncludeNonPublic,
		rootKey + "." + configurationAssignCodeOwnersKeyConstant: defaults.AssignCodeOwners,
		rootKey + "." + configurationSearchLimitKeyConstant:      defaults.SearchLimit,
		rootKey + "." + configurationGitUserNameKeyConstant:      defaults.GitUserName,
		rootKey + "." + configurationGitUserEmailKeyConstant:     defaults.GitUserEmail,
	}
}

// Sanitize trims configured values and fills unset defaults.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Query = strings.TrimSpace(configuration.Query)
	sanitized.Token = strings.TrimSpace(configuration.Token)
	sanitized.CleanTemplatePath = strings.TrimSpace(configuration.CleanTemplatePath)
	sanitized.ConflictTemplatePath = strings.TrimSpace(configuration.ConflictTemplatePath)
	sanitized.GitUserName = strings.TrimSpace(configuration.GitUserName)
	sanitized.GitUserEmail = strings.TrimSpace(configuration.GitUserEmail)
	if sanitized.SearchLimit <= 0 {
		sanitized.SearchLimit = defaultSearchLimitConstant
	}
	if len(sanitized.GitUserName) == 0 {
		sanitized.GitUserName = defaultGitUserNameConstant
	}
	if len(sanitized.GitUserEmail) == 0 {
		sanitized.GitUserEmail = defaultGitUserEmailConstant
	}
	return sanitized
}
