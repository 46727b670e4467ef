package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDefinition = errors.New("protocol: invalid definition")
	ErrUnknownMessage    = errors.New("protocol: unknown message")
	ErrProtocolEnded     = errors.New("protocol: ended")
	ErrEncoding          = errors.New("protocol: encoding error")
	ErrInvalidLength     = errors.New("protocol: invalid length")
	ErrMessageTooLarge   = errors.New("protocol: message too large")
	ErrBufferOverflow    = errors.New("protocol: buffered bytes over limit")
)

// DefinitionError reports why a message definition was refused.
type DefinitionError struct {
	Name   string
	Reason string
}

func (e DefinitionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("protocol: invalid definition: %s", e.Reason)
	}
	return fmt.Sprintf("protocol: invalid definition %q: %s", e.Name, e.Reason)
}

func (e DefinitionError) Unwrap() error {
	return ErrInvalidDefinition
}
