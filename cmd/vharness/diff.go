package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vharness/internal/config"
	"github.com/vango-dev/vharness/pkg/htmldiff"
	"github.com/vango-dev/vharness/pkg/markup"
)

func diffCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		ignore             []string
		preserveWhitespace bool
	)

	cmd := &cobra.Command{
		Use:   "diff <control> <test>",
		Short: "Compare two markup files",
		Long: `Compare two markup files semantically and print every difference.

Attribute order and whitespace between elements are ignored, as are the
attributes configured in diff.ignoreAttributes. Use "-" to read one of the
files from stdin. The command fails when any difference is found.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			cfg.Diff.IgnoreAttributes = append(cfg.Diff.IgnoreAttributes, ignore...)
			if preserveWhitespace {
				cfg.Diff.PreserveWhitespace = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			control, err := parseInput(cmd, args[0])
			if err != nil {
				return err
			}
			test, err := parseInput(cmd, args[1])
			if err != nil {
				return err
			}

			diffs := htmldiff.New(cfg.DiffOptions()...).Diff(control, test)
			out := cmd.OutOrStdout()
			if len(diffs) == 0 {
				fmt.Fprintln(out, "No differences")
				return nil
			}
			for _, d := range diffs {
				info(out, "%s", d)
			}
			return fmt.Errorf("%d difference(s)", len(diffs))
		},
	}

	cmd.Flags().StringSliceVar(&ignore, "ignore-attr", nil, "Attribute names to ignore (trailing * matches a prefix)")
	cmd.Flags().BoolVar(&preserveWhitespace, "preserve-whitespace", false, "Compare whitespace exactly")

	return cmd
}

func parseInput(cmd *cobra.Command, path string) (markup.NodeList, error) {
	src, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	return markup.Parse(src)
}
