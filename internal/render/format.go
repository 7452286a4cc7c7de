// Package render turns analysis results into Markdown, JSON, YAML, terminal
// tables, ASCII histograms and PNG charts. It never computes statistics.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects how a command prints its result.
type Format string

const (
	Markdown Format = "md"
	JSON     Format = "json"
	YAML     Format = "yaml"
	Table    Format = "table"
)

// ParseFormat accepts md|markdown|json|yaml|yml|table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return Markdown, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "table":
		return Table, nil
	default:
		return "", fmt.Errorf("unknown format %q (want md, json, yaml or table)", s)
	}
}

// Structured reports whether f is a machine-readable format.
func (f Format) Structured() bool { return f == JSON || f == YAML }

// Encode writes v as JSON or YAML.
func Encode(w io.Writer, f Format, v interface{}) error {
	switch f {
	case JSON:
		return WriteJSON(w, v)
	case YAML:
		return WriteYAML(w, v)
	default:
		return fmt.Errorf("format %q is not structured", f)
	}
}

// WriteYAML encodes v with two-space indentation. NaN is written as .nan.
func WriteYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// WriteJSON encodes v as indented JSON. Missing statistics (NaN, ±Inf) are
// written as null. Values go through their yaml encoding first, so yaml tags
// and MarshalYAML decide the field names and order.
func WriteJSON(w io.Writer, v interface{}) error {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	var buf bytes.Buffer
	if err := writeNode(&buf, &n); err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

func writeNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeNode(buf, n.Content[0])
	case yaml.AliasNode:
		return writeNode(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(n.Content[i].Value)
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNode(buf, c); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		writeScalar(buf, n)
	default:
		return fmt.Errorf("encode json: unexpected yaml node kind %v", n.Kind)
	}
	return nil
}

func writeScalar(buf *bytes.Buffer, n *yaml.Node) {
	switch n.ShortTag() {
	case "!!null":
		buf.WriteString("null")
	case "!!bool", "!!int":
		buf.WriteString(n.Value)
	case "!!float":
		switch strings.ToLower(n.Value) {
		case ".nan", ".inf", "+.inf", "-.inf":
			buf.WriteString("null")
		default:
			buf.WriteString(n.Value)
		}
	default:
		s, _ := json.Marshal(n.Value)
		buf.Write(s)
	}
}
