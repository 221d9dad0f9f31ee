package rpc

import (
	"net/http"
	"strings"
)

func (s *Server) handleTokenTransfer(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Symbol string `json:"symbol"`
		From   string `json:"from"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	from, err := parseAddr("from", payload.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	to, err := parseAddr("to", payload.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}

	receipt, err := s.node.TokenTransfer(payload.Symbol, from, to, amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, OperationResult{Receipt: receipt})
	return http.StatusOK
}

func (s *Server) handleTokenApprove(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Symbol  string `json:"symbol"`
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
		Amount  string `json:"amount"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	owner, err := parseAddr("owner", payload.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	spender, err := parseAddr("spender", payload.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}

	receipt, err := s.node.TokenApprove(payload.Symbol, owner, spender, amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, OperationResult{Receipt: receipt})
	return http.StatusOK
}

func (s *Server) handleTokenMint(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Caller string `json:"caller"`
		Symbol string `json:"symbol"`
		To     string `json:"to"`
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
	to, err := parseAddr("to", payload.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}

	receipt, err := s.node.TokenMint(caller, payload.Symbol, to, amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, OperationResult{Receipt: receipt})
	return http.StatusOK
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Symbol  string `json:"symbol"`
		Address string `json:"address"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	addr, err := parseAddr("address", payload.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	balance, err := s.node.TokenBalance(payload.Symbol, addr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, BalanceResult{
		Address: addr.String(),
		Symbol:  strings.ToUpper(strings.TrimSpace(payload.Symbol)),
		Amount:  formatBig(balance),
	})
	return http.StatusOK
}

func (s *Server) handleTokenSupply(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Symbol string `json:"symbol"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	supply, err := s.node.TokenSupply(payload.Symbol)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, formatBig(supply))
	return http.StatusOK
}
