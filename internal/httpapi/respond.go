package httpapi

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/shopspring/decimal"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	// The status line is already on the wire, so an encode failure here
	// can only mean the client went away.
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// amount renders an 18-decimal fixed-point value both raw and as a
// human-readable decimal string.
type amount struct {
	Wei     string `json:"wei"`
	Display string `json:"display"`
}

func newAmount(v *big.Int) amount {
	if v == nil {
		v = new(big.Int)
	}
	return amount{
		Wei:     v.String(),
		Display: decimal.NewFromBigInt(v, -18).String(),
	}
}
