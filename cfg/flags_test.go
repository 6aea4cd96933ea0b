package cfg

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsUnmarshalsOverriddenValues(t *testing.T) {
	viper.Reset()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))

	require.NoError(t, fs.Parse([]string{
		"--disk-image=/tmp/minix.img",
		"--nr-tasks=128",
		"--read-only",
		"--logging.severity=DEBUG",
	}))

	var c Config
	require.NoError(t, viper.Unmarshal(&c, viper.DecodeHook(DecodeHook())))
	assert.Equal(t, "/tmp/minix.img", c.DiskImagePath)
	assert.Equal(t, 128, c.NRTasks)
	assert.True(t, c.ReadOnly)
	assert.Equal(t, DebugLogSeverity, c.Logging.Severity)
}

func TestBindFlagsDefaultsMatchDefaultConfig(t *testing.T) {
	viper.Reset()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))
	require.NoError(t, fs.Parse(nil))

	var c Config
	require.NoError(t, viper.Unmarshal(&c, viper.DecodeHook(DecodeHook())))
	assert.Equal(t, DefaultConfig(), c)
}
