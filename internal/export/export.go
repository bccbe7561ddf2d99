// Package export encodes catalog metadata as JSON, YAML or an XML property list.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/fsutil"
	"gopkg.in/yaml.v3"
	"howett.net/plist"
)

// Format is an export encoding.
type Format string

const (
	// FormatJSON is indented JSON
	FormatJSON Format = "json"
	// FormatYAML is YAML
	FormatYAML Format = "yaml"
	// FormatPlist is an XML property list
	FormatPlist Format = "plist"
)

// ParseFormat resolves a format name, accepting "yml" as YAML.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "plist", "xml":
		return FormatPlist, nil
	default:
		return "", fmt.Errorf("%w: %s", errors.ErrUnsupportedEncoding, name)
	}
}

// Encode writes v to w in the given format.
func Encode(w io.Writer, v any, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatPlist:
		enc := plist.NewEncoderForFormat(w, plist.XMLFormat)
		enc.Indent("\t")
		return enc.Encode(v)
	default:
		return fmt.Errorf("%w: %s", errors.ErrUnsupportedEncoding, format)
	}
}

// Marshal returns v encoded in the given format.
func Marshal(v any, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, v, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile encodes v into the file at path, creating parent directories.
func WriteFile(path string, v any, format Format) error {
	data, err := Marshal(v, format)
	if err != nil {
		return err
	}

	if err := fsutil.WriteFile(path, data, 0644); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", errors.ErrPermissionDenied, path)
		}
		return fmt.Errorf("%w: %s", errors.ErrFileWriteError, path)
	}
	return nil
}
