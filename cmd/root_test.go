package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagBindingSucceededAtPackageInit(t *testing.T) {
	assert.NoError(t, bindErr)
}

func TestBootSubcommandIsRegistered(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "boot" {
			found = true
		}
	}
	assert.True(t, found, "expected rootCmd to have a registered boot subcommand")
}
