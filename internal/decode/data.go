// Package decode turns raw on-ledger account payloads into typed vault
// records. Payloads arrive as nested tagged records: a constructor tag with
// ordered fields, where each field is another constructor, an integer, or a
// byte string. Decoding validates field counts at every level and flattens
// the tree into a domain.Vault in one pass; the raw tree is never retained
// past decode time.
package decode

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DataKind discriminates the tagged-record node types.
type DataKind int

const (
	// KindConstr is a constructor node: a tag plus ordered fields.
	KindConstr DataKind = iota
	// KindInt is an integer leaf.
	KindInt
	// KindBytes is a byte-string leaf.
	KindBytes
)

// Data is one node of a tagged-record tree.
type Data struct {
	Kind   DataKind
	Tag    uint64  // constructor tag, KindConstr only
	Fields []*Data // ordered fields, KindConstr only
	Int    int64   // KindInt only
	Bytes  []byte  // KindBytes only
}

// rawNode is the wire encoding of a tagged-record node.
// Exactly one of the three shapes is present:
//
//	{"constructor": 0, "fields": [...]}
//	{"int": 42}
//	{"bytes": "deadbeef"}
type rawNode struct {
	Constructor *uint64           `json:"constructor,omitempty"`
	Fields      []json.RawMessage `json:"fields,omitempty"`
	Int         *json.Number      `json:"int,omitempty"`
	Bytes       *string           `json:"bytes,omitempty"`
}

// MaxDepth bounds the nesting of payloads accepted by ParseData.
// Vault records nest at most three levels deep.
const MaxDepth = 3

// ParseData parses a raw payload into a tagged-record tree.
func ParseData(raw json.RawMessage) (*Data, error) {
	return parseNode(raw, 0)
}

func parseNode(raw json.RawMessage, depth int) (*Data, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("payload exceeds max nesting depth %d", MaxDepth)
	}

	var node rawNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("unmarshal node: %w", err)
	}

	switch {
	case node.Constructor != nil:
		d := &Data{Kind: KindConstr, Tag: *node.Constructor}
		for i, f := range node.Fields {
			child, err := parseNode(f, depth+1)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
			d.Fields = append(d.Fields, child)
		}
		return d, nil

	case node.Int != nil:
		v, err := node.Int.Int64()
		if err != nil {
			return nil, fmt.Errorf("integer leaf %q: %w", node.Int.String(), err)
		}
		return &Data{Kind: KindInt, Int: v}, nil

	case node.Bytes != nil:
		b, err := hex.DecodeString(*node.Bytes)
		if err != nil {
			return nil, fmt.Errorf("byte leaf: %w", err)
		}
		return &Data{Kind: KindBytes, Bytes: b}, nil
	}

	return nil, fmt.Errorf("node is neither constructor, int, nor bytes")
}

// asConstr returns the node as a constructor with the expected tag and field
// count, or an error naming what was found instead.
func (d *Data) asConstr(wantTag uint64, wantFields int) ([]*Data, error) {
	if d.Kind != KindConstr {
		return nil, fmt.Errorf("expected constructor, got %s", d.Kind)
	}
	if d.Tag != wantTag {
		return nil, fmt.Errorf("expected constructor tag %d, got %d", wantTag, d.Tag)
	}
	if len(d.Fields) != wantFields {
		return nil, fmt.Errorf("expected %d fields, got %d", wantFields, len(d.Fields))
	}
	return d.Fields, nil
}

// asInt returns the node's integer value or a type-mismatch error.
func (d *Data) asInt() (int64, error) {
	if d.Kind != KindInt {
		return 0, fmt.Errorf("expected int, got %s", d.Kind)
	}
	return d.Int, nil
}

// asBytes returns the node's byte value or a type-mismatch error.
func (d *Data) asBytes() ([]byte, error) {
	if d.Kind != KindBytes {
		return nil, fmt.Errorf("expected bytes, got %s", d.Kind)
	}
	return d.Bytes, nil
}

// asBool decodes the conventional boolean encoding: a fieldless constructor
// with tag 0 (false) or 1 (true).
func (d *Data) asBool() (bool, error) {
	if d.Kind != KindConstr || len(d.Fields) != 0 {
		return false, fmt.Errorf("expected boolean constructor, got %s", d.Kind)
	}
	switch d.Tag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("boolean constructor tag %d out of range", d.Tag)
}

func (k DataKind) String() string {
	switch k {
	case KindConstr:
		return "constructor"
	case KindInt:
		return "int"
	case KindBytes:
		return "bytes"
	}
	return "unknown"
}
