package rpc

import (
	"net/http"

	"amanavault/observability"
)

func (s *Server) handleVaultDeposit(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Caller   string `json:"caller"`
		Amount   string `json:"amount"`
		Receiver string `json:"receiver"`
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
	receiver := caller
	if payload.Receiver != "" {
		if receiver, err = parseAddr("receiver", payload.Receiver); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return http.StatusBadRequest
		}
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}

	minted, receipt, err := s.node.Deposit(caller, amount, receiver)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	observability.Vault().RecordDeposit()
	s.recordSupply()
	writeResult(w, req.ID, OperationResult{Receipt: receipt, Amount: formatBig(minted)})
	return http.StatusOK
}

func (s *Server) handleVaultWithdraw(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Caller   string `json:"caller"`
		Amount   string `json:"amount"`
		Receiver string `json:"receiver"`
		Owner    string `json:"owner"`
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
	receiver := caller
	if payload.Receiver != "" {
		if receiver, err = parseAddr("receiver", payload.Receiver); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return http.StatusBadRequest
		}
	}
	owner := caller
	if payload.Owner != "" {
		if owner, err = parseAddr("owner", payload.Owner); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return http.StatusBadRequest
		}
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}

	burned, receipt, err := s.node.Withdraw(caller, amount, receiver, owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	observability.Vault().RecordWithdrawal()
	s.recordSupply()
	writeResult(w, req.ID, OperationResult{Receipt: receipt, Amount: formatBig(burned)})
	return http.StatusOK
}

func (s *Server) handleVaultRedeem(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Caller   string `json:"caller"`
		Shares   string `json:"shares"`
		Receiver string `json:"receiver"`
		Owner    string `json:"owner"`
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
	receiver := caller
	if payload.Receiver != "" {
		if receiver, err = parseAddr("receiver", payload.Receiver); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return http.StatusBadRequest
		}
	}
	owner := caller
	if payload.Owner != "" {
		if owner, err = parseAddr("owner", payload.Owner); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return http.StatusBadRequest
		}
	}
	shares, err := parseAmount("shares", payload.Shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}

	assets, receipt, err := s.node.Redeem(caller, shares, receiver, owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	observability.Vault().RecordWithdrawal()
	s.recordSupply()
	writeResult(w, req.ID, OperationResult{Receipt: receipt, Amount: formatBig(assets)})
	return http.StatusOK
}

func (s *Server) handleVaultApproveShares(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
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

	receipt, err := s.node.ApproveShares(owner, spender, amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, OperationResult{Receipt: receipt})
	return http.StatusOK
}

func (s *Server) handleVaultClaimRewards(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Caller    string `json:"caller"`
		Recipient string `json:"recipient"`
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
	recipient := caller
	if payload.Recipient != "" {
		if recipient, err = parseAddr("recipient", payload.Recipient); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return http.StatusBadRequest
		}
	}

	amount, receipt, err := s.node.ClaimRewards(caller, recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	if amount.Sign() > 0 {
		observability.Vault().RecordClaim()
	}
	writeResult(w, req.ID, OperationResult{Receipt: receipt, Amount: formatBig(amount)})
	return http.StatusOK
}

func (s *Server) handleVaultGetState(w http.ResponseWriter, req *RPCRequest) int {
	view, err := s.node.Vault()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, view)
	return http.StatusOK
}

func (s *Server) handleVaultGetPosition(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
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
	pos, err := s.node.PositionOf(addr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, pos)
	return http.StatusOK
}

func (s *Server) handleVaultTotalAssets(w http.ResponseWriter, req *RPCRequest) int {
	total, err := s.node.TotalAssets()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, formatBig(total))
	return http.StatusOK
}

func (s *Server) handleVaultSharesOf(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
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
	shares, err := s.node.SharesOf(addr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, formatBig(shares))
	return http.StatusOK
}

func (s *Server) handleVaultClaimable(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
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
	claimable, err := s.node.ClaimableRewards(addr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, formatBig(claimable))
	return http.StatusOK
}

func (s *Server) handleVaultConvertToShares(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Amount string `json:"amount"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	amount, err := parseAmount("amount", payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	shares, err := s.node.ConvertToShares(amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, formatBig(shares))
	return http.StatusOK
}

func (s *Server) handleVaultConvertToAssets(w http.ResponseWriter, req *RPCRequest) int {
	var payload struct {
		Shares string `json:"shares"`
	}
	if err := parseParams(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	shares, err := parseAmount("shares", payload.Shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return http.StatusBadRequest
	}
	amount, err := s.node.ConvertToAssets(shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, formatBig(amount))
	return http.StatusOK
}

func (s *Server) handleStrategyTotalAssets(w http.ResponseWriter, req *RPCRequest) int {
	total, err := s.node.StrategyAssets()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, err.Error(), nil)
		return http.StatusBadRequest
	}
	writeResult(w, req.ID, formatBig(total))
	return http.StatusOK
}

func (s *Server) recordSupply() {
	view, err := s.node.Vault()
	if err != nil || view == nil || view.State == nil {
		return
	}
	observability.Vault().RecordSupply(view.TotalAssets, view.State.TotalShares)
}
