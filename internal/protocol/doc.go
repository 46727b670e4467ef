// Package protocol owns the wire contract shared by the framer packages.
//
// Ownership boundary:
// - error taxonomy (definition, unknown message, ended, encoding)
// - reserved event names
//
// Subpackages:
// - serial: type tag -> serialize/deserialize registry
// - definition: message definition table and transitions
// - frame: byte queue and incremental frame parser
// - wire: protocol engine (emitter and duplex stream bindings)
// - script: declarative protocol scripts (toml/yaml)
// - tlv: optional "fields" codec for the serial registry
package protocol
