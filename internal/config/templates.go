package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindConfig = "config"
	KindScript = "script"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindConfig:
		return configTemplate, nil
	case KindScript:
		return scriptTemplate, nil
	default:
		return "", fmt.Errorf("unknown template kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const configTemplate = `script = "protocol.toml"
label = "greeting"
max_message_bytes = 8388608
max_buffered_bytes = 0
read_buffer_bytes = 32768
`

const scriptTemplate = `name = "greeting"

[[message]]
name = "header"
type = "object"
length = 9
first = true
next = "body"
next_length = 11

[[message]]
name = "body"
type = "string"
next = "endM"

[[message]]
name = "endM"
type = "buffer"
length = 0
`
