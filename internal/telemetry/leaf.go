// Package telemetry reads CPE parameters out of ACS device records.
//
// The same logical field lives under different TR-069 paths depending on
// vendor and firmware, so every field is described by an ordered list of
// candidate paths and resolved to the first one that carries a value.
package telemetry

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NotAvailable is returned when no candidate path resolves.
const NotAvailable = "N/A"

const (
	envelopeValueKey = "_value"
	envelopeTypeKey  = "_type"
)

// Tree is a decoded device record. Nested nodes are plain JSON objects.
type Tree map[string]interface{}

// LeafKind tells what a path walk ended on.
type LeafKind int

const (
	// Missing covers absent keys, non-traversable intermediate nodes and
	// nodes that are objects without a value envelope.
	Missing LeafKind = iota
	// Scalar is a bare JSON scalar (string, number, bool or null).
	Scalar
	// Envelope is a parameter object {"_value": ..., "_type": ...}.
	Envelope
)

func (k LeafKind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Envelope:
		return "envelope"
	}
	return "missing"
}

// Leaf is the node found at the end of a path.
type Leaf struct {
	Kind  LeafKind
	Value interface{}
	// Type is the declared xsd type of an envelope, empty otherwise.
	Type string
}

// Unwrap returns the scalar carried by the leaf. ok is false for missing
// leaves, null values and empty strings. Zero and false are values.
func (l Leaf) Unwrap() (interface{}, bool) {
	if l.Kind == Missing {
		return nil, false
	}
	switch v := l.Value.(type) {
	case nil:
		return nil, false
	case string:
		if v == "" {
			return nil, false
		}
	case map[string]interface{}, Tree, []interface{}:
		return nil, false
	}
	return l.Value, true
}

// LeafAt walks a dotted path. It never panics on malformed trees.
func LeafAt(tree Tree, path string) Leaf {
	if tree == nil || path == "" {
		return Leaf{}
	}

	node, ok := walk(tree, path)
	if !ok {
		return Leaf{}
	}

	if obj, ok := asObject(node); ok {
		value, ok := obj[envelopeValueKey]
		if !ok {
			return Leaf{}
		}
		typ, _ := obj[envelopeTypeKey].(string)
		return Leaf{Kind: Envelope, Value: value, Type: typ}
	}
	if _, isList := node.([]interface{}); isList {
		return Leaf{}
	}
	return Leaf{Kind: Scalar, Value: node}
}

func walk(tree Tree, path string) (interface{}, bool) {
	var node interface{} = map[string]interface{}(tree)
	for _, segment := range strings.Split(path, ".") {
		obj, ok := asObject(node)
		if !ok {
			return nil, false
		}
		if node, ok = obj[segment]; !ok {
			return nil, false
		}
	}
	return node, true
}

func asObject(node interface{}) (map[string]interface{}, bool) {
	switch v := node.(type) {
	case map[string]interface{}:
		return v, v != nil
	case Tree:
		return v, v != nil
	}
	return nil, false
}

// Format renders a scalar the way the portal displays it.
func Format(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case nil:
		return NotAvailable
	}
	return fmt.Sprint(v)
}

// leadingFloat matches the numeric prefix of values such as "-21.5 dBm".
var leadingFloat = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)

// ParseFloat converts a resolved scalar to a number. Strings are trimmed and
// read up to the end of their leading number, so unit suffixes are ignored.
func ParseFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case json.Number:
		return val.Float64()
	case string:
		num := leadingFloat.FindString(strings.TrimSpace(val))
		if num == "" {
			return 0, fmt.Errorf("not a number: %q", val)
		}
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", val)
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number: %v (%T)", v, v)
}
