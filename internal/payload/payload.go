// Package payload validates configuration payloads as structured data.
//
// The snapshot store is format-agnostic beyond requiring that a payload
// parse as a well-formed document in one of the supported formats. A
// payload that fails to parse is rejected before any snapshot is written.
package payload

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies a supported structured-data format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat indicates a format string that is not supported.
var ErrUnknownFormat = errors.New("unknown payload format")

// ParseFormat converts a user-supplied format name into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%q", s)
	}
}

// DetectFormat guesses the payload format from a file path's extension.
// Unknown extensions default to JSON, matching the tool's primary use.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// SniffFormat infers the format of a payload from its content, for
// snapshots whose recorded metadata has been lost. JSON is tried first
// (the narrowest grammar), then TOML, then YAML; YAML goes last because
// it accepts nearly any plain text, including every JSON document.
// Data that parses as none of them is reported as JSON so the caller's
// validation produces a JSON parse error.
func SniffFormat(data []byte) Format {
	for _, f := range []Format{FormatJSON, FormatTOML, FormatYAML} {
		if Validate(data, f) == nil {
			return f
		}
	}
	return FormatJSON
}

// Validate reports whether data is a well-formed document in the given format.
// It returns a descriptive parse error when the payload is malformed.
func Validate(data []byte, format Format) error {
	switch format {
	case FormatJSON:
		// json.Valid accepts any JSON value; require a complete document
		// with no trailing garbage, the same contract json.Unmarshal enforces.
		var v any
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&v); err != nil {
			return errors.Wrap(err, "parsing JSON")
		}
		if dec.More() {
			return errors.New("parsing JSON: trailing data after document")
		}
		return nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return errors.Wrap(err, "parsing YAML")
		}
		return nil
	case FormatTOML:
		var v map[string]any
		if err := toml.Unmarshal(data, &v); err != nil {
			return errors.Wrap(err, "parsing TOML")
		}
		return nil
	default:
		return errors.Wrapf(ErrUnknownFormat, "%q", format)
	}
}
