package cli_test

import (
	"bytes"
	"testing"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/lineagekit/lineage/cmd/cli"
)

func TestEmbeddedDefaultConfigurationDecodes(testInstance *testing.T) {
	configurationData, configurationType := cli.EmbeddedDefaultConfiguration()
	require.NotEmpty(testInstance, configurationData)

	viperInstance := viper.New()
	viperInstance.SetConfigType(configurationType)
	readError := viperInstance.ReadConfig(bytes.NewReader(configurationData))
	require.NoError(testInstance, readError)

	var configuration cli.ApplicationConfiguration
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "mapstructure", Result: &configuration})
	require.NoError(testInstance, decoderError)
	require.NoError(testInstance, decoder.Decode(viperInstance.AllSettings()))

	require.Equal(testInstance, "info", configuration.Common.LogLevel)
	require.Equal(testInstance, "structured", configuration.Common.LogFormat)
	require.True(testInstance, configuration.Tools.Sync.MaskNonPublic)
	require.True(testInstance, configuration.Tools.Sync.AssignCodeOwners)
	require.False(testInstance, configuration.Tools.Sync.IncludeNonPublic)
	require.Equal(testInstance, 1000, configuration.Tools.Sync.SearchLimit)
}

func TestApplicationConfigurationFileOverridesDefaults(testInstance *testing.T) {
	configurationContent := "common:\n" +
		"  log_level: warn\n" +
		"tools:\n" +
		"  sync:\n" +
		"    query: org:example topic:lineage\n" +
		"    search_limit: 50\n"

	viperInstance := viper.New()
	viperInstance.SetConfigType("yaml")
	require.NoError(testInstance, viperInstance.ReadConfig(bytes.NewReader([]byte(configurationContent))))

	var configuration cli.ApplicationConfiguration
	require.NoError(testInstance, viperInstance.Unmarshal(&configuration))

	require.Equal(testInstance, "warn", configuration.Common.LogLevel)
	require.Equal(testInstance, "org:example topic:lineage", configuration.Tools.Sync.Query)
	require.Equal(testInstance, 50, configuration.Tools.Sync.SearchLimit)
}
