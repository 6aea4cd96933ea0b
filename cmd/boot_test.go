package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-minix/kernel/cfg"
)

func testConfig() cfg.Config {
	c := cfg.DefaultConfig()
	c.NRTasks = 8
	c.NRInode = 32
	c.NRBuf = 16
	c.NRRequest = 4
	c.NRSuper = 2
	c.Logging.Severity = cfg.OffLogSeverity
	return c
}

func TestBootKernelAgainstScratchDiskSucceeds(t *testing.T) {
	k, err := bootKernel(testConfig())
	require.NoError(t, err)
	assert.NotZero(t, k.curPid)
}

func TestRunTraceOpenWriteCloseReadRoundTrip(t *testing.T) {
	k, err := bootKernel(testConfig())
	require.NoError(t, err)

	trace := strings.Join([]string{
		"open /greeting.txt O_CREAT|O_RDWR 644",
		"write 0 hello",
		"close 0",
		"open /greeting.txt O_RDONLY 0",
		"read 0 16",
	}, "\n")

	var out strings.Builder
	require.NoError(t, k.run(strings.NewReader(trace), &out))
	assert.Contains(t, out.String(), `data="hello"`)
}

func TestRunTraceUnrecognizedVerbReportsErrorAndContinues(t *testing.T) {
	k, err := bootKernel(testConfig())
	require.NoError(t, err)

	trace := "frobnicate\nfork\n"
	var out strings.Builder
	require.NoError(t, k.run(strings.NewReader(trace), &out))
	assert.Contains(t, out.String(), "unrecognized syscall trace verb")
	assert.Contains(t, out.String(), "pid=")
}

func TestParseOpenFlagsAcceptsNamesAndNumbers(t *testing.T) {
	flags, err := parseOpenFlags("O_CREAT|O_RDWR")
	require.NoError(t, err)
	assert.NotZero(t, flags)

	flags, err = parseOpenFlags("0")
	require.NoError(t, err)
	assert.Zero(t, flags)

	_, err = parseOpenFlags("O_BOGUS")
	assert.Error(t, err)
}
