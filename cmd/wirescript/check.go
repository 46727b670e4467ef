package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate a protocol script and list its messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := opts.load()
			if err != nil {
				return err
			}
			table, err := s.Table()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "MESSAGE\tTYPE\tLENGTH\tFIRST\tNEXT\n")
			for _, m := range s.Messages {
				entry, _ := table.Lookup(m.Name)
				length := "-"
				if entry.Sized {
					length = strconv.Itoa(entry.Length)
				}
				next := m.Next
				if next == "" {
					next = "<end>"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", entry.Name, entry.Type, length, entry.First, next)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d messages, first %q\n", s.Name, table.Len(), table.First().Name)
			return nil
		},
	}
}
