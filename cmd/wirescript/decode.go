package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/wirescript/internal/observability"
	"github.com/danmuck/wirescript/internal/protocol/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type messageLine struct {
	Message string `json:"message"`
	Value   any    `json:"value"`
}

type endLine struct {
	End bool `json:"end"`
}

func newDecodeCmd(opts *rootOptions) *cobra.Command {
	var (
		inPath string
		stats  bool
	)
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a byte stream into JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := opts.load()
			if err != nil {
				return err
			}
			table, err := s.Table()
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if inPath != "" && inPath != "-" {
				f, err := os.Open(inPath)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			e := wire.New(table, wire.WithLabel(cfg.Label), wire.WithLimits(cfg.Limits()))
			if err := decode(e, table.Names(), in, cmd.OutOrStdout(), cfg.ReadBufferBytes); err != nil {
				return err
			}
			if stats {
				sum, err := observability.Summarize(prometheus.DefaultGatherer, cfg.Label)
				if err != nil {
					return err
				}
				log.Info().
					Str("protocol", cfg.Label).
					Float64("messages", sum.Messages).
					Float64("bytes_in", sum.BytesIn).
					Float64("errors", sum.Errors).
					Msg("decode stats")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input file (default stdin)")
	cmd.Flags().BoolVar(&stats, "stats", false, "log engine counters when done")
	return cmd
}

// decode pumps r through e in chunks of size bytes and writes one JSON line
// per decoded message to w. Input left over after end of protocol is ignored.
func decode(e *wire.Engine, names []string, r io.Reader, w io.Writer, size int) error {
	enc := json.NewEncoder(w)
	var encErr error
	for _, name := range names {
		name := name
		if err := e.On(name, func(v any) {
			if encErr == nil {
				encErr = enc.Encode(messageLine{Message: name, Value: v})
			}
		}); err != nil {
			return err
		}
	}
	e.OnEnd(func() {
		if encErr == nil {
			encErr = enc.Encode(endLine{End: true})
		}
	})

	// A zero-length first message needs no input at all.
	if _, err := e.Write(nil); err != nil {
		return err
	}
	buf := make([]byte, size)
	for !e.Ended() {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := e.Write(buf[:n]); err != nil {
				return err
			}
		}
		if encErr != nil {
			return fmt.Errorf("write output: %w", encErr)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read input: %w", rerr)
		}
	}
	if encErr != nil {
		return fmt.Errorf("write output: %w", encErr)
	}
	if !e.Ended() {
		name, required, _ := e.Expecting()
		return fmt.Errorf("input ended while awaiting %q (%d bytes)", name, required)
	}
	return nil
}
