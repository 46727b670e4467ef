package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/wirescript/internal/protocol/definition"
	"github.com/danmuck/wirescript/internal/protocol/serial"
	"github.com/danmuck/wirescript/internal/protocol/wire"
	"github.com/spf13/cobra"
)

type inputLine struct {
	Message string          `json:"message"`
	Value   json.RawMessage `json:"value"`
}

func newEncodeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encode",
		Short: "Encode JSON lines from stdin into protocol bytes",
		Long: `encode reads {"message": NAME, "value": VALUE} lines and writes the
serialized bytes of each value. Values of buffer messages are base64 strings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := opts.load()
			if err != nil {
				return err
			}
			table, err := s.Table()
			if err != nil {
				return err
			}
			st := wire.NewStream(table, wire.WithLabel(cfg.Label), wire.WithLimits(cfg.Limits()))
			return encode(st, table, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// encode sends every input line through st and copies the outbound bytes to w.
func encode(st *wire.Stream, table *definition.Table, r io.Reader, w io.Writer) error {
	copied := make(chan error, 1)
	go func() {
		_, err := st.WriteTo(w)
		copied <- err
	}()

	sendErr := sendLines(st, table, r)
	st.Close()
	if err := <-copied; err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return sendErr
}

func sendLines(st *wire.Stream, table *definition.Table, r io.Reader) error {
	dec := json.NewDecoder(r)
	for line := 1; ; line++ {
		var in inputLine
		if err := dec.Decode(&in); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("input line %d: %w", line, err)
		}
		entry, ok := table.Lookup(in.Message)
		if !ok {
			return fmt.Errorf("input line %d: unknown message %q", line, in.Message)
		}
		value, err := inputValue(entry.Type, in.Value)
		if err != nil {
			return fmt.Errorf("input line %d (%s): %w", line, in.Message, err)
		}
		if err := st.Send(in.Message, value); err != nil {
			return fmt.Errorf("input line %d: %w", line, err)
		}
	}
}

// inputValue converts a JSON value into what the codec for typ accepts.
// A missing or null value yields nil, which sends nothing.
func inputValue(typ string, raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	switch typ {
	case serial.TypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("string value: %w", err)
		}
		return s, nil
	case serial.TypeBuffer:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("buffer value must be a base64 string: %w", err)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("buffer value: %w", err)
		}
		return b, nil
	default:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
