// Package cmd is the kernel's entry point: a cobra CLI that loads
// configuration, wires every subsystem together in dependency order, and
// drives the result with either a scripted syscall trace or an
// interactive REPL, the way a boot sector and trampoline would hand off
// to the kernel proper on real hardware.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-minix/kernel/cfg"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error

	// Config is the fully bound, unmarshalled configuration, populated by
	// initConfig (run via cobra.OnInitialize before any command's RunE).
	// Subcommands rationalize and validate it themselves, mirroring the
	// teacher's package-level MountConfig.
	Config cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "minixkernel",
	Short: "A MINIX-compatible preemptive kernel core, simulated in Go",
	Long: `minixkernel simulates the process, memory, filesystem and tty
subsystems of a MINIX-compatible kernel without real hardware or ring 0:
boot it against a disk image (or an in-memory scratch disk) and drive it
with a syscall trace or an interactive REPL.`,
	SilenceUsage: true,
}

// Execute runs the root command, exiting the process with status 1 on
// any error the way the teacher's cmd.Execute does.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "path to a YAML config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(bootCmd)
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&Config, viper.DecodeHook(cfg.DecodeHook()))
		return
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&Config, viper.DecodeHook(cfg.DecodeHook()))
}
