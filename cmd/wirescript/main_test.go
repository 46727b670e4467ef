package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/wirescript/internal/config"
	"github.com/danmuck/wirescript/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "protocol.toml")
	require.NoError(t, config.WriteTemplate(path, config.KindScript, false))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const greetingLines = `{"message":"header","value":"NOTDONE"}
{"message":"body","value":"hello world"}
{"message":"endM","value":""}
{"end":true}
`

func TestDecodeCommand(t *testing.T) {
	testlog.Start(t)
	path := writeScript(t)
	out, err := run(t, `"NOTDONE"hello worldTRAILING`, "decode", "--script", path)
	require.NoError(t, err)
	require.Equal(t, greetingLines, out)
}

func TestDecodeSmallReadBuffer(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	require.NoError(t, config.WriteTemplate(filepath.Join(dir, "protocol.toml"), config.KindScript, false))
	cfgPath := filepath.Join(dir, "wirescript.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("script = \"protocol.toml\"\nread_buffer_bytes = 1\n"), 0o600))

	in := filepath.Join(dir, "input.bin")
	require.NoError(t, os.WriteFile(in, []byte(`"NOTDONE"hello world`), 0o600))

	out, err := run(t, "", "decode", "--config", cfgPath, "--in", in, "--stats")
	require.NoError(t, err)
	require.Equal(t, greetingLines, out)
}

func TestDecodeTruncatedInput(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, `"NOTDONE"hello`, "decode", "--script", writeScript(t))
	require.ErrorContains(t, err, `awaiting "body"`)
	require.Equal(t, "{\"message\":\"header\",\"value\":\"NOTDONE\"}\n", out)
}

func TestDecodeRequiresScript(t *testing.T) {
	testlog.Start(t)
	_, err := run(t, "", "decode")
	require.ErrorContains(t, err, "no protocol script")
}

func TestEncodeCommand(t *testing.T) {
	testlog.Start(t)
	path := writeScript(t)
	input := `{"message":"header","value":"NOTDONE"}
{"message":"body","value":"hello world"}
{"message":"endM","value":null}
`
	out, err := run(t, input, "encode", "--script", path)
	require.NoError(t, err)
	require.Equal(t, `"NOTDONE"hello world`, out)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testlog.Start(t)
	path := writeScript(t)
	encoded, err := run(t, greetingLines[:strings.LastIndex(greetingLines, "{\"end\"")], "encode", "--script", path)
	require.NoError(t, err)
	decoded, err := run(t, encoded, "decode", "--script", path)
	require.NoError(t, err)
	require.Equal(t, greetingLines, decoded)
}

func TestEncodeRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	path := writeScript(t)
	cases := map[string]string{
		"unknown message": `{"message":"trailer","value":1}`,
		"string type":     `{"message":"body","value":5}`,
		"base64":          `{"message":"endM","value":"***"}`,
		"not json":        `header=NOTDONE`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := run(t, input, "encode", "--script", path)
			require.Error(t, err)
		})
	}
}

func TestInputValueBuffer(t *testing.T) {
	v, err := inputValue("buffer", []byte(`"aGk="`))
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), v)

	v, err = inputValue("object", []byte(`{"a":[1,2]}`))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": []any{float64(1), float64(2)}}, v)

	v, err = inputValue("string", nil)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestCheckCommand(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "", "check", "--script", writeScript(t))
	require.NoError(t, err)
	require.Contains(t, out, "header")
	require.Contains(t, out, "<end>")
	require.Contains(t, out, `greeting: 3 messages, first "header"`)
}

func TestInitCommand(t *testing.T) {
	testlog.Start(t)
	target := filepath.Join(t.TempDir(), "wirescript.toml")
	out, err := run(t, "", "init", "--kind", "config", "--out", target)
	require.NoError(t, err)
	require.Contains(t, out, target)

	_, err = run(t, "", "init", "--kind", "config", "--out", target)
	require.Error(t, err)
	_, err = run(t, "", "init", "--kind", "config", "--out", target, "--force")
	require.NoError(t, err)
	_, err = run(t, "", "init", "--kind", "nope", "--out", target, "--force")
	require.Error(t, err)
}

func TestFieldsTypeRoundTrip(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "record.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
message:
  - name: record
    type: fields
    length: 8
    first: true
`), 0o600))

	encoded, err := run(t, `{"message":"record","value":[{"id":7,"kind":1,"value":"Kg=="}]}`, "encode", "--script", path)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 7, 1, 0, 0, 0, 1, 42}, []byte(encoded))

	decoded, err := run(t, encoded, "decode", "--script", path)
	require.NoError(t, err)
	require.Equal(t, "{\"message\":\"record\",\"value\":[{\"id\":7,\"kind\":1,\"value\":\"Kg==\"}]}\n{\"end\":true}\n", decoded)
}
