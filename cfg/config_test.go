package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
}

func TestValidateRejectsBadPoolSizes(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nr-tasks too small", func(c *Config) { c.NRTasks = 1 }},
		{"nr-open too small", func(c *Config) { c.NROpen = 2 }},
		{"nr-buf zero", func(c *Config) { c.NRBuf = 0 }},
		{"nr-request below floor", func(c *Config) { c.NRRequest = 2 }},
		{"nr-inode zero", func(c *Config) { c.NRInode = 0 }},
		{"nr-super zero", func(c *Config) { c.NRSuper = 0 }},
		{"nr-file zero", func(c *Config) { c.NRFile = 0 }},
		{"paging cap too small", func(c *Config) { c.PagingCapMiB = 1 }},
		{"bad severity", func(c *Config) { c.Logging.Severity = "LOUD" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestWriteRequestReserveIsTwoThirds(t *testing.T) {
	c := DefaultConfig()
	c.NRRequest = 30
	assert.Equal(t, 20, c.WriteRequestReserve())
}

func TestLogSeverityRank(t *testing.T) {
	assert.Less(t, TraceLogSeverity.Rank(), DebugLogSeverity.Rank())
	assert.Less(t, ErrorLogSeverity.Rank(), OffLogSeverity.Rank())
	assert.Equal(t, -1, LogSeverity("bogus").Rank())
}
