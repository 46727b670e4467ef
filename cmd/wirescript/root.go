package main

import (
	"fmt"

	"github.com/danmuck/wirescript/internal/config"
	"github.com/danmuck/wirescript/internal/protocol/script"
	"github.com/danmuck/wirescript/internal/protocol/serial"
	"github.com/danmuck/wirescript/internal/protocol/tlv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	scriptPath string
}

func newRootCmd() *cobra.Command {
	// Scripts may use the "fields" type alongside the built-ins.
	tlv.Register(serial.Default())

	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "wirescript",
		Short: "Decode and encode byte streams described by a protocol script",
		Long: `wirescript drives the incremental framer from a declarative TOML or YAML
protocol script. Decoded messages are printed as JSON lines; JSON lines on
stdin are encoded back to bytes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "wirescript config file (TOML)")
	root.PersistentFlags().StringVar(&opts.scriptPath, "script", "", "protocol script (.toml, .yaml, .yml)")

	root.AddCommand(
		newDecodeCmd(opts),
		newEncodeCmd(opts),
		newCheckCmd(opts),
		newInitCmd(),
	)
	return root
}

// load resolves the config and the script; --script wins over the config.
func (o *rootOptions) load() (config.Config, *script.Script, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return config.Config{}, nil, err
		}
		cfg = loaded
	}
	path := o.scriptPath
	if path == "" {
		path = cfg.Script
	}
	if path == "" {
		return config.Config{}, nil, fmt.Errorf("no protocol script: pass --script or set script in the config")
	}
	s, err := script.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.configPath == "" && s.Name != "" {
		cfg.Label = s.Name
	}
	return cfg, s, nil
}
