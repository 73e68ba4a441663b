package httpapi

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/HVN-Network/permission_layer/contracts/identity"
	"github.com/HVN-Network/permission_layer/ledger"
)

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func parseAmountField(name, raw string) (*big.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func (s *Server) submit(w http.ResponseWriter, tx ledger.Tx, fn func(env *ledger.Env) error) {
	receipt, err := s.node.Submit(tx, fn)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleUpdateFee(w http.ResponseWriter, r *http.Request) {
	engine := s.node.Fees()
	s.submit(w, ledger.Tx{From: s.node.Operator(), To: engine.ContractAddress()}, func(env *ledger.Env) error {
		return engine.UpdateFee(env)
	})
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Force bool `json:"force"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	engine := s.node.Fees()
	s.submit(w, ledger.Tx{From: s.node.Operator(), To: engine.ContractAddress()}, func(env *ledger.Env) error {
		if req.Force {
			return engine.ForceDistributeFees(env)
		}
		return engine.DistributeFees(env)
	})
}

func (s *Server) handleSetFeeUSD(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FeeUSD string `json:"fee_usd"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	usd, err := parseAmountField("fee_usd", req.FeeUSD)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	engine := s.node.Fees()
	s.submit(w, ledger.Tx{From: s.node.Association(), To: engine.ContractAddress()}, func(env *ledger.Env) error {
		return engine.SetFeeUSD(env, usd)
	})
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate string `json:"rate"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rate, err := parseAmountField("rate", req.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.node.Oracle().SetRate(rate)
	s.logger.Info().Str("rate", rate.String()).Msg("oracle rate set")
	writeJSON(w, http.StatusOK, map[string]any{"rate": newAmount(rate)})
}

func (s *Server) handlePauseBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Apps  []string `json:"apps"`
		Safe  bool     `json:"safe"`
		Pause bool     `json:"pause"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	apps := make([]ledger.Address, 0, len(req.Apps))
	for _, raw := range req.Apps {
		addr, err := ledger.ParseAddress(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		apps = append(apps, addr)
	}

	registry := s.node.Guardian()
	s.submit(w, ledger.Tx{From: s.node.Association(), To: registry.ContractAddress()}, func(env *ledger.Env) error {
		if req.Pause {
			return registry.PauseMultiple(env, apps, req.Safe)
		}
		return registry.UnpauseMultiple(env, apps, req.Safe)
	})
}

func (s *Server) handleIssueIdentity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To                string   `json:"to"`
		PrimaryID         bool     `json:"primary_id"`
		CountryCode       string   `json:"country_code"`
		ProofOfLiveliness bool     `json:"proof_of_liveliness"`
		UserType          string   `json:"user_type"`
		Expiries          [4]int64 `json:"expiries"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := ledger.ParseAddress(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	userType, err := parseAmountField("user_type", req.UserType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	registry := s.node.Identity()
	s.submit(w, ledger.Tx{From: s.node.Operator(), To: registry.ContractAddress()}, func(env *ledger.Env) error {
		_, err := registry.IssueIdentity(env, to, identity.Issuance{
			PrimaryID:         req.PrimaryID,
			CountryCode:       req.CountryCode,
			ProofOfLiveliness: req.ProofOfLiveliness,
			UserType:          userType,
			Expiries:          req.Expiries,
		})
		return err
	})
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string `json:"account"`
		Reason  string `json:"reason"`
		Lift    bool   `json:"lift"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := ledger.ParseAddress(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	registry := s.node.Identity()
	s.submit(w, ledger.Tx{From: s.node.Operator(), To: registry.ContractAddress()}, func(env *ledger.Env) error {
		if req.Lift {
			return registry.UnsuspendAccount(env, account)
		}
		return registry.SuspendAccount(env, account, req.Reason)
	})
}
