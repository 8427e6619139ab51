package valuation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

// UnparsableMarker is shown for a transfer that carried no amount at all.
const UnparsableMarker = "unparsable"

// DisplayAmount renders the raw amount with thousands separators and no
// trailing zeros. Amounts that are not numbers are returned verbatim.
func DisplayAmount(a domain.Amount) string {
	if !a.Valid {
		if strings.TrimSpace(a.Raw) == "" {
			return UnparsableMarker
		}
		return a.Raw
	}
	return GroupThousands(a.Value.String())
}

// FormatReference renders a reference-asset value with 4 decimal places.
func FormatReference(d decimal.Decimal) string {
	return GroupThousands(d.StringFixed(4))
}

// FormatUSD renders a USD value with 2 decimal places.
func FormatUSD(d decimal.Decimal) string {
	return GroupThousands(d.StringFixed(2))
}

// FormatQuantity renders a token quantity without trailing zeros.
func FormatQuantity(d decimal.Decimal) string {
	return GroupThousands(d.String())
}

// GroupThousands inserts commas into the integer part of a plain decimal
// string such as "-1234567.50".
func GroupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}

	if hasFrac {
		return sign + intPart + "." + frac
	}
	return sign + intPart
}
