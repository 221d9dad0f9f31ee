package types

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"lukechampine.com/blake3"
)

// Receipt summarises a completed ledger operation for RPC consumers. The hash
// commits to the operation name, its parameters and the time it was applied,
// giving callers a stable identifier for deduplication and audit trails.
type Receipt struct {
	Hash      string            `json:"hash"`
	Operation string            `json:"operation"`
	Timestamp int64             `json:"timestamp"`
	Events    []*Event          `json:"events,omitempty"`
	Values    map[string]string `json:"values,omitempty"`
}

// NewReceipt derives a receipt for an applied operation. Params must be
// JSON-serialisable; the encoding feeds the hash so identical submissions at
// different times produce distinct receipts.
func NewReceipt(operation string, params interface{}, appliedAt time.Time, events []*Event) *Receipt {
	payload := struct {
		Operation string      `json:"operation"`
		Params    interface{} `json:"params"`
		AppliedAt int64       `json:"appliedAt"`
	}{Operation: operation, Params: params, AppliedAt: appliedAt.UnixNano()}
	encoded, err := json.Marshal(payload)
	if err != nil {
		encoded = []byte(operation)
	}
	sum := blake3.Sum256(encoded)
	return &Receipt{
		Hash:      hex.EncodeToString(sum[:]),
		Operation: operation,
		Timestamp: appliedAt.Unix(),
		Events:    events,
	}
}
