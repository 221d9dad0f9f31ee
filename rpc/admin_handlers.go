package rpc

import (
	"net/http"
	"strings"
)

func (s *Server) handleVaultSetRewardToken(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Caller string `json:"caller"`
		Symbol string `json:"symbol"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	caller, err := parseAddr("caller", payload.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	receipt, err := s.node.SetRewardToken(caller, payload.Symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, OperationResult{Receipt: receipt})
	return http.StatusOK
}

func (s *Server) handleVaultSetRewardsInterval(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Caller string `json:"caller"`
		Start  uint64 `json:"start"`
		End    uint64 `json:"end"`
		Amount string `json:"amount"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	caller, err := parseAddr("caller", payload.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	receipt, err := s.node.SetRewardsInterval(caller, payload.Start, payload.End, amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, OperationResult{Receipt: receipt})
	return http.StatusOK
}

func (s *Server) handleVaultSetFeeRate(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Caller     string `json:"caller"`
		FeeRateBps uint64 `json:"feeRateBps"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	caller, err := parseAddr("caller", payload.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	receipt, err := s.node.SetFeeRate(caller, payload.FeeRateBps)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, OperationResult{Receipt: receipt})
	return http.StatusOK
}

func (s *Server) handleVaultSetStrategy(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Caller string `json:"caller"`
		Name   string `json:"name"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	caller, err := parseAddr("caller", payload.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "name required", nil)
		return http.StatusBadRequest
	}
	receipt, err := s.node.RebindStrategy(caller, strings.TrimSpace(payload.Name))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, OperationResult{Receipt: receipt})
	return http.StatusOK
}

func (s *Server) handleVenueSetRate(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Caller        string `json:"caller"`
		RateBpsAnnual uint64 `json:"rateBpsAnnual"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	caller, err := parseAddr("caller", payload.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	receipt, err := s.node.SetVenueRate(caller, payload.RateBpsAnnual)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, OperationResult{Receipt: receipt})
	return http.StatusOK
}

func (s *Server) handleVenueSetWithdrawLimit(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Caller string `json:"caller"`
		Limit  string `json:"limit"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	caller, err := parseAddr("caller", payload.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	// Zero or empty clears the cap.
	limit, _ := parseAmount("limit", payload.Limit)
	receipt, err := s.node.SetVenueWithdrawLimit(caller, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, OperationResult{Receipt: receipt})
	return http.StatusOK
}

func (s *Server) handleSystemPause(w http.ResponseWriter, req *RPCRequest) int {
	return s.handlePauseToggle(w, req, true)
}

func (s *Server) handleSystemResume(w http.ResponseWriter, req *RPCRequest) int {
	return s.handlePauseToggle(w, req, false)
}

func (s *Server) handlePauseToggle(w http.ResponseWriter, req *RPCRequest, pause bool) int {
	var payload struct {
		Caller string `json:"caller"`
		Module string `json:"module"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	caller, err := parseAddr("caller", payload.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	module := strings.TrimSpace(payload.Module)
	if module == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "module required", nil)
		return http.StatusBadRequest
	}
	var receipt interface{}
	if pause {
		receipt, err = s.node.Pause(caller, module)
	} else {
		receipt, err = s.node.Resume(caller, module)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, receipt)
	return http.StatusOK
}
