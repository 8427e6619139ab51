// Package normalize turns webhook payloads into canonical transfers. Several
// upstream payload layouts are accepted; each is tried in a fixed order and
// the first one that matches wins.
package normalize

import (
	"bytes"
	"encoding/json"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

// Shape identifies which payload layout was recognised.
type Shape int

const (
	// ShapeUnknown means no known layout matched; the result has no transfers.
	ShapeUnknown Shape = iota
	// ShapeEvents is {"events": [{fromUserAccount, toUserAccount, tokenTransfers}]}.
	ShapeEvents
	// ShapeList is a top-level array of event or transaction objects.
	ShapeList
	// ShapeSingle is one object carrying tokenTransfers directly.
	ShapeSingle
)

func (s Shape) String() string {
	switch s {
	case ShapeEvents:
		return "events"
	case ShapeList:
		return "list"
	case ShapeSingle:
		return "single"
	default:
		return "unknown"
	}
}

// Result is the outcome of a normalization. Skipped counts entries that were
// present but not well-formed objects.
type Result struct {
	Shape     Shape
	Transfers []domain.Transfer
	Skipped   int
}

// Recognised reports whether the payload matched a known layout.
func (r Result) Recognised() bool {
	return r.Shape != ShapeUnknown
}

type object map[string]json.RawMessage

// Normalize decodes raw into canonical transfers. It never fails: input that
// matches no known layout produces a Result with ShapeUnknown.
func Normalize(raw []byte) Result {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Result{}
	}

	switch trimmed[0] {
	case '{':
		obj, ok := decodeObject(trimmed)
		if !ok {
			return Result{}
		}
		if events, ok := decodeArray(obj["events"]); ok {
			res := Result{Shape: ShapeEvents}
			for _, ev := range events {
				res.collect(ev)
			}
			return res
		}
		if _, ok := obj["tokenTransfers"]; ok {
			res := Result{Shape: ShapeSingle}
			res.collectObject(obj)
			return res
		}
		return Result{}

	case '[':
		items, ok := decodeArray(trimmed)
		if !ok {
			return Result{}
		}
		res := Result{Shape: ShapeList}
		for _, item := range items {
			res.collect(item)
		}
		return res
	}

	return Result{}
}

// collect handles one element of an events list or top-level array.
func (r *Result) collect(raw json.RawMessage) {
	obj, ok := decodeObject(raw)
	if !ok {
		r.Skipped++
		return
	}
	r.collectObject(obj)
}

// collectObject reads the tokenTransfers of an event or transaction object.
// An event names the wallets once for all of its transfers; a transaction
// object leaves them on each transfer entry.
func (r *Result) collectObject(obj object) {
	entries, ok := decodeArray(obj["tokenTransfers"])
	if !ok {
		if _, present := obj["tokenTransfers"]; present {
			r.Skipped++
		}
		return
	}

	eventSource := stringField(obj, "fromUserAccount")
	eventDest := stringField(obj, "toUserAccount")

	for _, entry := range entries {
		tt, ok := decodeObject(entry)
		if !ok {
			r.Skipped++
			continue
		}

		src, dst := eventSource, eventDest
		if src == nil {
			src = stringField(tt, "fromUserAccount")
		}
		if dst == nil {
			dst = stringField(tt, "toUserAccount")
		}

		r.Transfers = append(r.Transfers, domain.Transfer{
			TokenID: tokenID(tt),
			Source:  src,
			Dest:    dst,
			Amount:  amount(tt),
		})
	}
}

func tokenID(tt object) string {
	for _, key := range []string{"tokenAddress", "mint"} {
		if s := stringField(tt, key); s != nil && *s != "" {
			return *s
		}
	}
	return ""
}

// amount reads "amount" or "tokenAmount". JSON numbers keep their literal
// text so large integers are not rounded through float64.
func amount(tt object) domain.Amount {
	for _, key := range []string{"amount", "tokenAmount"} {
		raw, ok := tt[key]
		if !ok || isNull(raw) {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return domain.Amount{Raw: string(raw)}
			}
			return domain.ParseAmount(s)
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return domain.Amount{Raw: string(raw)}
		}
		return domain.ParseAmount(n.String())
	}
	return domain.MissingAmount()
}

func stringField(obj object, key string) *string {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

func decodeObject(raw json.RawMessage) (object, bool) {
	if isNull(raw) {
		return nil, false
	}
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func decodeArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	if len(raw) == 0 || isNull(raw) {
		return nil, false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, false
	}
	return arr, true
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
