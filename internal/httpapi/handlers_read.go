package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/HVN-Network/permission_layer/internal/cache"
	"github.com/HVN-Network/permission_layer/internal/storage"
	"github.com/HVN-Network/permission_layer/ledger"
)

type feesResponse struct {
	FeeUSD           amount `json:"fee_usd"`
	CurrentFee       amount `json:"current_fee"`
	CurrentRate      amount `json:"current_rate"`
	MinDevFeeUSD     amount `json:"min_dev_fee_usd"`
	MaxDevFeeUSD     amount `json:"max_dev_fee_usd"`
	AssociationShare amount `json:"association_share"`
	NextUpdate       int64  `json:"next_update"`
	GraceEnd         int64  `json:"grace_end"`
	LastDistribution int64  `json:"last_distribution"`
}

const feesCacheKey = "httpapi:fees"

func (s *Server) handleFees(w http.ResponseWriter, r *http.Request) {
	if cached, err := s.cache.Get(r.Context(), feesCacheKey); err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached)
		return
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn().Err(err).Msg("fees cache read failed")
	}

	engine := s.node.Fees()
	var resp feesResponse
	s.node.State().View(func() error {
		resp = feesResponse{
			FeeUSD:           newAmount(engine.FeeUSD()),
			CurrentFee:       newAmount(engine.CurrentFee()),
			CurrentRate:      newAmount(engine.CurrentRate()),
			MinDevFeeUSD:     newAmount(engine.MinDevFeeUSD()),
			MaxDevFeeUSD:     newAmount(engine.MaxDevFeeUSD()),
			AssociationShare: newAmount(engine.AssociationShare()),
			NextUpdate:       engine.NextUpdate(),
			GraceEnd:         engine.GraceEnd(),
			LastDistribution: engine.LastDistribution(),
		}
		return nil
	})

	body, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.cache.Set(r.Context(), feesCacheKey, body, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("fees cache write failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

type channelResponse struct {
	Recipient string `json:"recipient"`
	Weight    string `json:"weight"`
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	engine := s.node.Fees()
	var out []channelResponse
	s.node.State().View(func() error {
		for _, ch := range engine.Channels() {
			out = append(out, channelResponse{
				Recipient: ch.Recipient.Hex(),
				Weight:    ch.Weight.String(),
			})
		}
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{"channels": out})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := ledger.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr.Hex(),
		"balance": newAmount(s.node.State().BalanceOf(addr)),
	})
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	registry := s.node.Guardian()

	var (
		length uint64
		addrs  []string
	)
	s.node.State().View(func() error {
		length = registry.Length()
		for _, a := range registry.RegisteredAddresses() {
			addrs = append(addrs, a.Hex())
		}
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"length":    length,
		"addresses": addrs,
	})
}

type identityResponse struct {
	Address     string   `json:"address"`
	Verified    bool     `json:"verified"`
	TokenID     uint64   `json:"token_id,omitempty"`
	Principal   string   `json:"principal,omitempty"`
	Suspended   bool     `json:"suspended"`
	Reason      string   `json:"reason,omitempty"`
	Auxiliaries []string `json:"auxiliaries,omitempty"`
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	addr, err := ledger.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	registry := s.node.Identity()
	var resp identityResponse
	s.node.State().View(func() error {
		resp = identityResponse{
			Address:   addr.Hex(),
			Verified:  registry.Verified(addr),
			Suspended: registry.Suspended(addr),
		}
		if !resp.Verified {
			return nil
		}
		resp.TokenID = registry.TokenOf(addr)
		if principal, err := registry.PrincipalOf(addr); err == nil {
			resp.Principal = principal.Hex()
		}
		resp.Reason = registry.SuspensionReason(addr)
		if auxes, err := registry.AuxiliaryAccounts(addr); err == nil {
			for _, aux := range auxes {
				resp.Auxiliaries = append(resp.Auxiliaries, aux.Hex())
			}
		}
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.EventFilter{Name: q.Get("name")}

	if raw := q.Get("contract"); raw != "" {
		addr, err := ledger.ParseAddress(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.Contract = &addr
	}
	if raw := q.Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid after: %w", err))
			return
		}
		filter.AfterSeq = after
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %w", err))
			return
		}
		filter.Limit = limit
	}

	events, err := s.store.Events(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
