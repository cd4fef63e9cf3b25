package lineage

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/clean.md.tmpl templates/conflict.md.tmpl
var embeddedTemplateFiles embed.FS

const (
	embeddedCleanTemplatePathConstant    = "templates/clean.md.tmpl"
	embeddedConflictTemplatePathConstant = "templates/conflict.md.tmpl"

	missingKeyTemplateOptionConstant = "missingkey=error"

	templateParseErrorTemplateConstant  = "unable to parse %s template: %w"
	templateRenderErrorTemplateConstant = "unable to render %s template: %w"
	embeddedTemplateReadErrorTemplate   = "unable to read embedded template %s: %w"
	unknownVariantMessageConstant       = "unknown template variant"

	remoteURLContextKeyConstant            = "remote_url"
	remoteBranchContextKeyConstant         = "remote_branch"
	localBranchContextKeyConstant          = "local_branch"
	pullRequestBranchContextKeyConstant    = "pr_branch_name"
	sshURLContextKeyConstant               = "ssh_url"
	repositoryNameContextKeyConstant       = "repo_name"
	lineageIdentifierContextKeyConstant    = "lineage_id"
	conflictFileListContextKeyConstant     = "conflict_file_list"
	conflictDiffContextKeyConstant         = "conflict_diff"
	metadataContextKeyConstant             = "metadata"
	displayLineageConfigSkipContextKey     = "display_lineage_config_skip"
	lineageConfigurationFileNameContextKey = "lineage_config_filename"
)

// ErrUnknownTemplateVariant indicates a render request for an unregistered variant.
var ErrUnknownTemplateVariant = errors.New(unknownVariantMessageConstant)

// RenderContext carries every value a pull request body template may reference.
// The placeholder names are a stable contract; additions must be additive.
type RenderContext struct {
	RemoteURL                string
	RemoteBranch             string
	LocalBranch              string
	PullRequestBranchName    string
	SSHURL                   string
	RepositoryName           string
	LineageID                string
	ConflictFileList         []string
	ConflictDiff             string
	Metadata                 string
	DisplayLineageConfigSkip bool
}

// TemplateRenderer renders pull request bodies from the clean and conflict
// template families. Templates execute against a map so a reference to any
// placeholder outside the contract fails the render instead of emitting blanks.
type TemplateRenderer struct {
	cleanTemplate    *template.Template
	conflictTemplate *template.Template
}

// NewTemplateRenderer parses the provided template texts. Empty texts fall
// back to the embedded defaults.
func NewTemplateRenderer(cleanTemplateText string, conflictTemplateText string) (*TemplateRenderer, error) {
	resolvedCleanText, cleanReadError := resolveTemplateText(cleanTemplateText, embeddedCleanTemplatePathConstant)
	if cleanReadError != nil {
		return nil, cleanReadError
	}

	resolvedConflictText, conflictReadError := resolveTemplateText(conflictTemplateText, embeddedConflictTemplatePathConstant)
	if conflictReadError != nil {
		return nil, conflictReadError
	}

	cleanTemplate, cleanParseError := parseBodyTemplate(cleanTemplateVariantNameConstant, resolvedCleanText)
	if cleanParseError != nil {
		return nil, cleanParseError
	}

	conflictTemplate, conflictParseError := parseBodyTemplate(conflictTemplateVariantNameConstant, resolvedConflictText)
	if conflictParseError != nil {
		return nil, conflictParseError
	}

	return &TemplateRenderer{cleanTemplate: cleanTemplate, conflictTemplate: conflictTemplate}, nil
}

// Render produces the PR body for the variant from the context.
func (renderer *TemplateRenderer) Render(variant TemplateVariant, renderContext RenderContext) (string, error) {
	var selectedTemplate *template.Template
	switch variant {
	case TemplateVariantClean:
		selectedTemplate = renderer.cleanTemplate
	case TemplateVariantConflict:
		selectedTemplate = renderer.conflictTemplate
	default:
		return "", ErrUnknownTemplateVariant
	}

	var renderedBody strings.Builder
	executionError := selectedTemplate.Execute(&renderedBody, renderContext.placeholderValues())
	if executionError != nil {
		return "", fmt.Errorf(templateRenderErrorTemplateConstant, variant, executionError)
	}

	return renderedBody.String(), nil
}

func (renderContext RenderContext) placeholderValues() map[string]any {
	return map[string]any{
		remoteURLContextKeyConstant:            renderContext.RemoteURL,
		remoteBranchContextKeyConstant:         renderContext.RemoteBranch,
		localBranchContextKeyConstant:          renderContext.LocalBranch,
		pullRequestBranchContextKeyConstant:    renderContext.PullRequestBranchName,
		sshURLContextKeyConstant:               renderContext.SSHURL,
		repositoryNameContextKeyConstant:       renderContext.RepositoryName,
		lineageIdentifierContextKeyConstant:    renderContext.LineageID,
		conflictFileListContextKeyConstant:     renderContext.ConflictFileList,
		conflictDiffContextKeyConstant:         renderContext.ConflictDiff,
		metadataContextKeyConstant:             renderContext.Metadata,
		displayLineageConfigSkipContextKey:     renderContext.DisplayLineageConfigSkip,
		lineageConfigurationFileNameContextKey: ConfigurationFileName,
	}
}

func resolveTemplateText(providedText string, embeddedPath string) (string, error) {
	if len(strings.TrimSpace(providedText)) > 0 {
		return providedText, nil
	}

	embeddedBytes, readError := embeddedTemplateFiles.ReadFile(embeddedPath)
	if readError != nil {
		return "", fmt.Errorf(embeddedTemplateReadErrorTemplate, embeddedPath, readError)
	}
	return string(embeddedBytes), nil
}

func parseBodyTemplate(variantName string, templateText string) (*template.Template, error) {
	parsedTemplate, parseError := template.New(variantName).Option(missingKeyTemplateOptionConstant).Parse(templateText)
	if parseError != nil {
		return nil, fmt.Errorf(templateParseErrorTemplateConstant, variantName, parseError)
	}
	return parsedTemplate, nil
}
