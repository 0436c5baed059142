package domain

import (
	"encoding/hex"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "leasehold/pkg/domain-errors"
)

// Node is the 32-byte namehash identifying a name in the registry.
// It is the content-addressed key for domains and subdomains alike.
type Node [32]byte

// RootNode is the namehash of the empty name.
var RootNode = Node{}

// Labelhash returns keccak256(label).
func Labelhash(label string) [32]byte {
	return keccak256([]byte(label))
}

// Namehash computes the recursive namehash of a dot-separated name.
//
//	namehash("")        = 0x00..00
//	namehash("a.b.eth") = keccak256(namehash("b.eth") ++ labelhash("a"))
func Namehash(name string) Node {
	node := RootNode
	name = strings.TrimSpace(name)
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		node = Subnode(node, labels[i])
	}
	return node
}

// Subnode derives the node of label under parent. The derivation is pure, so
// a lease key never needs an index beyond (parent, label).
func Subnode(parent Node, label string) Node {
	lh := Labelhash(label)
	buf := make([]byte, 0, 64)
	buf = append(buf, parent[:]...)
	buf = append(buf, lh[:]...)
	return Node(keccak256(buf))
}

// ParseNode parses a 0x-prefixed 64 hex digit node.
func ParseNode(s string) (Node, error) {
	var n Node
	raw, err := decodeHex(s, len(n))
	if err != nil {
		return Node{}, dErrors.New(dErrors.CodeInvalidInput, "invalid node: "+err.Error())
	}
	copy(n[:], raw)
	return n, nil
}

// String returns the 0x-prefixed lowercase hex encoding.
func (n Node) String() string {
	return "0x" + hex.EncodeToString(n[:])
}

// IsNil reports whether n is the root (zero) node.
func (n Node) IsNil() bool {
	return n == RootNode
}

// TokenID renders the node as the decimal uint256 used for ERC-1155 token ids.
func (n Node) TokenID() string {
	return new(big.Int).SetBytes(n[:]).String()
}

func (n Node) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *Node) UnmarshalText(text []byte) error {
	parsed, err := ParseNode(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// ValidateLabel checks a single subdomain label.
func ValidateLabel(label string) error {
	if label == "" {
		return dErrors.New(dErrors.CodeValidation, "label is required")
	}
	if len(label) > 255 {
		return dErrors.New(dErrors.CodeValidation, "label must be at most 255 bytes")
	}
	if strings.ContainsAny(label, ". \t\r\n\x00") {
		return dErrors.New(dErrors.CodeValidation, "label must not contain dots or whitespace")
	}
	return nil
}

func keccak256(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func decodeHex(s string, size int) ([]byte, error) {
	body, ok := strings.CutPrefix(s, "0x")
	if !ok {
		body, ok = strings.CutPrefix(s, "0X")
	}
	if !ok {
		return nil, errMissingPrefix
	}
	if len(body) != size*2 {
		return nil, errBadLength
	}
	raw, err := hex.DecodeString(body)
	if err != nil {
		return nil, errNotHex
	}
	return raw, nil
}
