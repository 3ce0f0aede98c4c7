package domain

import "strings"

// addressHexLen is the hex length of a normalized 32-byte ledger address.
const addressHexLen = 64

// TypeTag is a parsed Move struct type "<address>::<module>::<Name>".
// Generic parameters are dropped.
type TypeTag struct {
	Address string // normalized, see NormalizeAddress
	Module  string
	Name    string
}

// String returns the type as "<address>::<module>::<Name>".
func (t TypeTag) String() string {
	return t.Address + "::" + t.Module + "::" + t.Name
}

// ParseTypeTag splits a fully-qualified type. Returns false unless the type
// has exactly three non-empty segments.
func ParseTypeTag(s string) (TypeTag, bool) {
	if i := strings.Index(s, "<"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(strings.TrimSpace(s), "::")
	if len(parts) != 3 {
		return TypeTag{}, false
	}
	for _, p := range parts {
		if p == "" {
			return TypeTag{}, false
		}
	}
	return TypeTag{Address: NormalizeAddress(parts[0]), Module: parts[1], Name: parts[2]}, true
}

// NormalizeAddress renders a hex address the way the ledger reports it:
// lower case, 0x prefix, left-padded to 32 bytes. Values that are not hex
// addresses are returned unchanged.
func NormalizeAddress(addr string) string {
	hex := strings.ToLower(strings.TrimSpace(addr))
	hex = strings.TrimPrefix(hex, "0x")
	if hex == "" || len(hex) > addressHexLen {
		return addr
	}
	for _, c := range hex {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return addr
		}
	}
	return "0x" + strings.Repeat("0", addressHexLen-len(hex)) + hex
}

// SameModule reports whether the type belongs to the given package and module.
func (t TypeTag) SameModule(packageID, module string) bool {
	return t.Address == NormalizeAddress(packageID) && t.Module == module
}
