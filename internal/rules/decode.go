package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// readDocument loads a rule document into a yaml node tree.
// YAML and JSON keep their key order; JSON5 objects come back with sorted keys.
func readDocument(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Doc: path, Err: err}
	}
	return parseDocument(path, data)
}

func parseDocument(path string, data []byte) (*yaml.Node, error) {
	var (
		node *yaml.Node
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		node, err = jsonToNode(data)
	case ".json5":
		var v interface{}
		if err = json5.Unmarshal(data, &v); err == nil {
			node = valueToNode(v)
		}
	default:
		var doc yaml.Node
		if err = yaml.Unmarshal(data, &doc); err == nil {
			if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
				node = doc.Content[0]
			}
		}
	}

	if err != nil {
		return nil, &ConfigError{Doc: path, Err: err}
	}
	if node == nil {
		return nil, configErrorf(path, "", "empty document")
	}
	return node, nil
}

// jsonToNode converts JSON into a node tree token by token so object key order survives
func jsonToNode(data []byte) (*yaml.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	node, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return node, nil
}

func decodeJSONValue(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is not a string: %v", keyTok)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				node.Content = append(node.Content, scalarNode("!!str", key), val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return node, nil
		case '[':
			node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				node.Content = append(node.Content, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return node, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return scalarNode("!!str", t), nil
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return scalarNode("!!int", t.String()), nil
		}
		return scalarNode("!!float", t.String()), nil
	case bool:
		return scalarNode("!!bool", strconv.FormatBool(t)), nil
	case nil:
		return scalarNode("!!null", "null"), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// valueToNode converts a generic decoded value (from json5) into a node tree
func valueToNode(v interface{}) *yaml.Node {
	switch t := v.(type) {
	case map[string]interface{}:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			node.Content = append(node.Content, scalarNode("!!str", k), valueToNode(t[k]))
		}
		return node
	case []interface{}:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			node.Content = append(node.Content, valueToNode(item))
		}
		return node
	case string:
		return scalarNode("!!str", t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return scalarNode("!!int", strconv.FormatInt(int64(t), 10))
		}
		return scalarNode("!!float", strconv.FormatFloat(t, 'g', -1, 64))
	case bool:
		return scalarNode("!!bool", strconv.FormatBool(t))
	case nil:
		return scalarNode("!!null", "null")
	}
	return scalarNode("!!str", fmt.Sprint(v))
}

func scalarNode(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

// resolve follows YAML aliases to the anchored node
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// pair is one key/value entry of a mapping node, in document order
type pair struct {
	Key   string
	Value *yaml.Node
}

func mappingPairs(doc, path string, n *yaml.Node) ([]pair, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, configErrorf(doc, path, "expected a mapping, got %s", kindName(n))
	}

	pairs := make([]pair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := resolve(n.Content[i])
		if key.Kind != yaml.ScalarNode {
			return nil, configErrorf(doc, path, "mapping key must be a scalar")
		}
		pairs = append(pairs, pair{Key: key.Value, Value: n.Content[i+1]})
	}
	return pairs, nil
}

func sequenceItems(doc, path string, n *yaml.Node) ([]*yaml.Node, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil, configErrorf(doc, path, "expected a list, got %s", kindName(n))
	}
	return n.Content, nil
}

func scalarValue(doc, path string, n *yaml.Node) (string, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", configErrorf(doc, path, "expected a string, got %s", kindName(n))
	}
	return n.Value, nil
}

func kindName(n *yaml.Node) string {
	if n == nil {
		return "nothing"
	}
	switch n.Kind {
	case yaml.MappingNode:
		return "a mapping"
	case yaml.SequenceNode:
		return "a list"
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return "null"
		case "!!int":
			return "integer " + n.Value
		case "!!float":
			return "number " + n.Value
		case "!!bool":
			return "boolean " + n.Value
		}
		return fmt.Sprintf("scalar %q", n.Value)
	case yaml.AliasNode:
		return "an alias"
	}
	return "an unknown node"
}
