package lineage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lineagekit/lineage/internal/lineage"
)

const validConfigurationDocumentConstant = `version: "1"
lineage:
  skeleton:
    remote-url: https://github.com/example/skeleton.git
  extra-sauce:
    remote-url: https://github.com/example/extra-sauce.git
    remote-branch: develop
    local-branch: integration
`

func TestParseConfigurationResolvesAndOrdersMappings(testInstance *testing.T) {
	mappings, parseError := lineage.ParseConfiguration(validConfigurationDocumentConstant, "main")
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, []lineage.Mapping{
		{
			LineageID:    "extra-sauce",
			LocalBranch:  "integration",
			RemoteURL:    "https://github.com/example/extra-sauce.git",
			RemoteBranch: "develop",
		},
		{
			LineageID:   "skeleton",
			LocalBranch: "main",
			RemoteURL:   "https://github.com/example/skeleton.git",
		},
	}, mappings)
}

func TestParseConfigurationRejectsInvalidDocuments(testInstance *testing.T) {
	testCases := []struct {
		name     string
		document string
	}{
		{
			name:     "empty_document",
			document: "",
		},
		{
			name:     "malformed_yaml",
			document: "version: [unbalanced",
		},
		{
			name:     "unsupported_version",
			document: "version: \"2\"\nlineage:\n  skeleton:\n    remote-url: https://github.com/example/skeleton.git\n",
		},
		{
			name:     "missing_lineage_section",
			document: "version: \"1\"\n",
		},
		{
			name:     "missing_remote_url",
			document: "version: \"1\"\nlineage:\n  skeleton:\n    local-branch: main\n",
		},
		{
			name:     "non_https_remote_url",
			document: "version: \"1\"\nlineage:\n  skeleton:\n    remote-url: git@github.com:example/skeleton.git\n",
		},
		{
			name:     "invalid_identifier",
			document: "version: \"1\"\nlineage:\n  Skeleton:\n    remote-url: https://github.com/example/skeleton.git\n",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			_, parseError := lineage.ParseConfiguration(testCase.document, "main")
			require.Error(subtestInstance, parseError)
		})
	}
}

func TestParseConfigurationRequiresDefaultBranch(testInstance *testing.T) {
	_, parseError := lineage.ParseConfiguration(validConfigurationDocumentConstant, " ")
	require.Error(testInstance, parseError)
}
