package lineage

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigurationFileName is the well-known lineage declaration path inside a repository.
	ConfigurationFileName = ".github/lineage.yml"

	supportedConfigurationVersionConstant = "1"
	httpsSchemePrefixConstant             = "https://"

	configurationDecodeErrorTemplateConstant  = "unable to decode lineage configuration: %w"
	unsupportedVersionErrorTemplateConstant   = "unsupported configuration version %q"
	lineageSectionMissingMessageConstant      = "configuration missing lineage section"
	invalidLineageIdentifierTemplateConstant  = "invalid lineage identifier %q"
	remoteURLRequiredErrorTemplateConstant    = "lineage %q missing required remote-url"
	remoteURLSchemeInvalidTemplateConstant    = "lineage %q remote-url must use https"
	configurationEmptyDocumentMessageConstant = "configuration document is empty"
	defaultBranchRequiredForMappingsMessage   = "repository default branch required to resolve local branches"
)

type lineageConfigurationEntry struct {
	LocalBranch  string `yaml:"local-branch"`
	RemoteBranch string `yaml:"remote-branch"`
	RemoteURL    string `yaml:"remote-url"`
}

type lineageConfigurationDocument struct {
	Version string                               `yaml:"version"`
	Lineage map[string]lineageConfigurationEntry `yaml:"lineage"`
}

// ParseConfiguration decodes a lineage configuration document and resolves its
// mappings. Unset local branches default to the repository default branch;
// unset remote branches stay empty and resolve against the upstream default
// later. Mappings are returned sorted by lineage identifier so runs are
// deterministic.
func ParseConfiguration(configurationContent string, repositoryDefaultBranch string) ([]Mapping, error) {
	if len(strings.TrimSpace(configurationContent)) == 0 {
		return nil, errors.New(configurationEmptyDocumentMessageConstant)
	}
	if len(strings.TrimSpace(repositoryDefaultBranch)) == 0 {
		return nil, errors.New(defaultBranchRequiredForMappingsMessage)
	}

	var document lineageConfigurationDocument
	decodeError := yaml.Unmarshal([]byte(configurationContent), &document)
	if decodeError != nil {
		return nil, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
	}

	if document.Version != supportedConfigurationVersionConstant {
		return nil, fmt.Errorf(unsupportedVersionErrorTemplateConstant, document.Version)
	}

	if len(document.Lineage) == 0 {
		return nil, errors.New(lineageSectionMissingMessageConstant)
	}

	lineageIdentifiers := make([]string, 0, len(document.Lineage))
	for lineageIdentifier := range document.Lineage {
		lineageIdentifiers = append(lineageIdentifiers, lineageIdentifier)
	}
	sort.Strings(lineageIdentifiers)

	mappings := make([]Mapping, 0, len(lineageIdentifiers))
	for _, lineageIdentifier := range lineageIdentifiers {
		if !ValidateLineageIdentifier(lineageIdentifier) {
			return nil, fmt.Errorf(invalidLineageIdentifierTemplateConstant, lineageIdentifier)
		}

		entry := document.Lineage[lineageIdentifier]
		remoteURL := strings.TrimSpace(entry.RemoteURL)
		if len(remoteURL) == 0 {
			return nil, fmt.Errorf(remoteURLRequiredErrorTemplateConstant, lineageIdentifier)
		}
		if !strings.HasPrefix(remoteURL, httpsSchemePrefixConstant) {
			return nil, fmt.Errorf(remoteURLSchemeInvalidTemplateConstant, lineageIdentifier)
		}

		localBranch := strings.TrimSpace(entry.LocalBranch)
		if len(localBranch) == 0 {
			localBranch = repositoryDefaultBranch
		}

		mappings = append(mappings, Mapping{
			LineageID:    lineageIdentifier,
			LocalBranch:  localBranch,
			RemoteURL:    remoteURL,
			RemoteBranch: strings.TrimSpace(entry.RemoteBranch),
		})
	}

	return mappings, nil
}
