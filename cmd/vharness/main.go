package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vharness/internal/config"
	"github.com/vango-dev/vharness/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:   "vharness",
		Short: "Inspect and compare rendered component markup",
		Long: `vharness works with markup produced by component tests.

  • diff compares two markup files semantically
  • query runs a CSS selector against a markup file

Settings are read from vharness.json or vharness.yaml in the
directory given by --config (default: the working directory).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config", ".", "Directory containing vharness.json or vharness.yaml")

	load := func() (*config.Config, error) {
		return config.Load(configDir)
	}

	root.AddCommand(
		diffCmd(load),
		queryCmd(),
		versionCmd(),
	)
	return root
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", errors.New(errors.CodeInputRead).WithDetail("%s", path).Wrap(err)
	}
	return string(data), nil
}

// info prints an info line.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
