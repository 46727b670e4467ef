package main

import (
	"fmt"

	"github.com/danmuck/wirescript/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var (
		kind  string
		out   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter script or config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := out
			if target == "" {
				switch kind {
				case config.KindScript:
					target = "protocol.toml"
				case config.KindConfig:
					target = "wirescript.toml"
				default:
					return fmt.Errorf("unknown kind: %s", kind)
				}
			}
			if err := config.WriteTemplate(target, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s template to %s\n", kind, target)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", config.KindScript, "template kind: script|config")
	cmd.Flags().StringVar(&out, "out", "", "output path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
