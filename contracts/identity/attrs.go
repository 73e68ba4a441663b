package identity

import (
	"fmt"
	"math/big"
)

// Kind tags the value type of a schema attribute.
type Kind string

const (
	KindString Kind = "string"
	KindU256   Kind = "u256"
	KindBool   Kind = "bool"
	KindBytes  Kind = "bytes"
)

// Valid reports whether the kind is one of the four supported tags.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindU256, KindBool, KindBytes:
		return true
	}
	return false
}

// Attribute is one entry of the append-only schema. Its id is its index in
// the schema; ids are never reused or removed, so named getters added later
// stay stable.
type Attribute struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Value is the tagged union stored for an attribute. Exactly one of the
// value fields is meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Str   string
	U256  *big.Int
	Bool  bool
	Bytes []byte
}

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func BytesValue(b []byte) Value  { return Value{Kind: KindBytes, Bytes: b} }
func U256Value(v *big.Int) Value { return Value{Kind: KindU256, U256: new(big.Int).Set(v)} }

func (v Value) clone() Value {
	out := v
	if v.U256 != nil {
		out.U256 = new(big.Int).Set(v.U256)
	}
	if v.Bytes != nil {
		out.Bytes = append([]byte(nil), v.Bytes...)
	}
	return out
}

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindU256:
		return v.U256.String()
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindBytes:
		return fmt.Sprintf("0x%x", v.Bytes)
	}
	return ""
}

// record is the per-holder stored instance of an attribute.
type record struct {
	Value     Value
	Expiry    int64
	UpdatedAt int64
}

func (r record) clone() record {
	r.Value = r.Value.clone()
	return r
}

// Mandatory attribute ids, populated for every principal at issuance.
const (
	AttrPrimaryID          = 0
	AttrCountryCode        = 1
	AttrProofOfLiveliness  = 2
	AttrUserType           = 3
	mandatoryAttributeCount = 4
)

func mandatorySchema() []Attribute {
	return []Attribute{
		{Name: "primaryID", Kind: KindBool},
		{Name: "countryCode", Kind: KindString},
		{Name: "proofOfLiveliness", Kind: KindBool},
		{Name: "userType", Kind: KindU256},
	}
}
