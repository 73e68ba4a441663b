package ledger

import (
	"math/big"
	"strconv"

	"github.com/google/uuid"
)

// Attr is a single event attribute. Indexed attributes are intended for
// filtering by off-chain consumers.
type Attr struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Indexed bool   `json:"indexed,omitempty"`
}

// Event is an append-only log record emitted by a contract. Events are the
// externally observable state-change protocol of the system: every mutating
// operation emits one, and together they form the audit trail consumed by
// off-chain indexers.
type Event struct {
	ID       uuid.UUID `json:"id"`
	TxID     uuid.UUID `json:"tx_id"`
	Seq      uint64    `json:"seq"`
	Contract Address   `json:"contract"`
	Name     string    `json:"name"`
	Attrs    []Attr    `json:"attrs,omitempty"`
	Time     int64     `json:"time"`
}

// Attr lookup helper used by tests and the HTTP API.
func (e Event) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// AddrAttr builds an indexed address attribute.
func AddrAttr(key string, a Address) Attr {
	return Attr{Key: key, Value: a.Hex(), Indexed: true}
}

// StrAttr builds a plain string attribute.
func StrAttr(key, v string) Attr {
	return Attr{Key: key, Value: v}
}

// U256Attr builds a big-integer attribute in decimal form.
func U256Attr(key string, v *big.Int) Attr {
	if v == nil {
		v = new(big.Int)
	}
	return Attr{Key: key, Value: v.String()}
}

// UintAttr builds an unsigned integer attribute.
func UintAttr(key string, v uint64) Attr {
	return Attr{Key: key, Value: strconv.FormatUint(v, 10)}
}

// BoolAttr builds a boolean attribute.
func BoolAttr(key string, v bool) Attr {
	return Attr{Key: key, Value: strconv.FormatBool(v)}
}
