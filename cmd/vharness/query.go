package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vharness/internal/errors"
	"github.com/vango-dev/vharness/pkg/markup"
)

func queryCmd() *cobra.Command {
	var (
		text  bool
		count bool
	)

	cmd := &cobra.Command{
		Use:   "query <file> <selector>",
		Short: "Print the elements matching a CSS selector",
		Long: `Print every element of a markup file that matches a CSS selector, one
per line, in document order. Use "-" to read from stdin.

Selectors use CSS3 syntax, e.g. "td:first-child", "ul > li.active",
"input[type=text]" or "th, td".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := parseInput(cmd, args[0])
			if err != nil {
				return err
			}
			sel, err := markup.Compile(args[1])
			if err != nil {
				return errors.New(errors.CodeInvalidSelector).Wrap(err)
			}

			matches := sel.QueryAll(nodes)
			out := cmd.OutOrStdout()
			if count {
				fmt.Fprintln(out, len(matches))
				return nil
			}
			if len(matches) == 0 {
				return errors.New(errors.CodeNoMatch).WithDetail("%q", args[1])
			}
			for _, n := range matches {
				if text {
					fmt.Fprintln(out, markup.TextContent(n))
				} else {
					fmt.Fprintln(out, markup.Outer(n))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&text, "text", false, "Print text content instead of markup")
	cmd.Flags().BoolVarP(&count, "count", "c", false, "Print only the number of matches")

	return cmd
}
