package domain

import "fmt"

// ErrorKind classifies a problem found while handling a webhook batch.
type ErrorKind string

const (
	KindMalformedPayload  ErrorKind = "malformed_payload"
	KindUnparsableAmount  ErrorKind = "unparsable_amount"
	KindOracleUnavailable ErrorKind = "oracle_unavailable"
	KindDeliveryFailed    ErrorKind = "delivery_failed"
	KindUnexpectedFailure ErrorKind = "unexpected_failure"
)

// ErrorReport describes one recovered problem. Index is the transfer position
// within the batch, or -1 for batch-level reports.
type ErrorReport struct {
	Kind    ErrorKind `json:"kind"`
	Index   int       `json:"index"`
	TokenID string    `json:"token_id,omitempty"`
	Message string    `json:"message"`
}

func (r ErrorReport) String() string {
	if r.Index < 0 {
		return fmt.Sprintf("%s: %s", r.Kind, r.Message)
	}
	return fmt.Sprintf("%s [#%d %s]: %s", r.Kind, r.Index, r.TokenID, r.Message)
}
