package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

func ptr(s string) *string { return &s }

func TestNormalize_EventsShape(t *testing.T) {
	raw := []byte(`{
		"events": [
			{
				"fromUserAccount": "W_src",
				"toUserAccount": "W_dst",
				"tokenTransfers": [
					{"tokenAddress": "T1", "amount": 5000000},
					{"mint": "T2", "tokenAmount": "12.5", "fromUserAccount": "ignored"}
				]
			}
		]
	}`)

	res := Normalize(raw)
	require.Equal(t, ShapeEvents, res.Shape)
	require.Len(t, res.Transfers, 2)

	first := res.Transfers[0]
	assert.Equal(t, "T1", first.TokenID)
	assert.Equal(t, "W_src", first.SourceWallet())
	assert.Equal(t, "W_dst", first.DestWallet())
	assert.True(t, first.Amount.Valid)
	assert.Equal(t, "5000000", first.Amount.Raw)

	second := res.Transfers[1]
	assert.Equal(t, "T2", second.TokenID)
	assert.Equal(t, "W_src", second.SourceWallet(), "event wallets take precedence over transfer fields")
	assert.Equal(t, "12.5", second.Amount.Value.String())
}

func TestNormalize_BareTransactionListMatchesEventsForm(t *testing.T) {
	nested := Normalize([]byte(`{"events":[{"fromUserAccount":"A","toUserAccount":"B",
		"tokenTransfers":[{"tokenAddress":"T1","amount":"42"}]}]}`))
	bare := Normalize([]byte(`[{"signature":"sig","tokenTransfers":[
		{"mint":"T1","tokenAmount":42,"fromUserAccount":"A","toUserAccount":"B"}]}]`))

	require.Equal(t, ShapeEvents, nested.Shape)
	require.Equal(t, ShapeList, bare.Shape)
	require.Len(t, bare.Transfers, 1)

	assert.Equal(t, nested.Transfers[0].TokenID, bare.Transfers[0].TokenID)
	assert.Equal(t, nested.Transfers[0].Source, bare.Transfers[0].Source)
	assert.Equal(t, nested.Transfers[0].Dest, bare.Transfers[0].Dest)
	assert.True(t, nested.Transfers[0].Amount.Value.Equal(bare.Transfers[0].Amount.Value))
}

func TestNormalize_ListOfEventObjects(t *testing.T) {
	res := Normalize([]byte(`[
		{"fromUserAccount":"A","toUserAccount":"B","tokenTransfers":[{"mint":"T1","amount":1}]},
		"garbage",
		42,
		{"fromUserAccount":"C","toUserAccount":"D","tokenTransfers":[{"mint":"T2","amount":2}]}
	]`))

	require.Equal(t, ShapeList, res.Shape)
	require.Len(t, res.Transfers, 2)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, ptr("C"), res.Transfers[1].Source)
}

func TestNormalize_SingleObject(t *testing.T) {
	res := Normalize([]byte(`{"tokenTransfers":[{"mint":"T1","tokenAmount":"7","toUserAccount":"B"}]}`))

	require.Equal(t, ShapeSingle, res.Shape)
	require.Len(t, res.Transfers, 1)
	assert.Nil(t, res.Transfers[0].Source)
	assert.Equal(t, "B", res.Transfers[0].DestWallet())
}

func TestNormalize_EventsTakePrecedenceOverTokenTransfers(t *testing.T) {
	res := Normalize([]byte(`{
		"events":[{"fromUserAccount":"A","toUserAccount":"B","tokenTransfers":[{"mint":"E","amount":1}]}],
		"tokenTransfers":[{"mint":"S","amount":1}]
	}`))

	require.Equal(t, ShapeEvents, res.Shape)
	require.Len(t, res.Transfers, 1)
	assert.Equal(t, "E", res.Transfers[0].TokenID)
}

func TestNormalize_MissingAmountIsRetained(t *testing.T) {
	res := Normalize([]byte(`{"events":[{"fromUserAccount":"A","toUserAccount":"B",
		"tokenTransfers":[{"mint":"T1"}]}]}`))

	require.Len(t, res.Transfers, 1)
	assert.False(t, res.Transfers[0].Amount.Valid)
	assert.Equal(t, "", res.Transfers[0].Amount.Raw)
}

func TestNormalize_NonNumericAmount(t *testing.T) {
	res := Normalize([]byte(`{"tokenTransfers":[{"mint":"T1","amount":"lots"}]}`))

	require.Len(t, res.Transfers, 1)
	assert.False(t, res.Transfers[0].Amount.Valid)
	assert.Equal(t, "lots", res.Transfers[0].Amount.Raw)
}

func TestNormalize_HugeExponentIsUnparsable(t *testing.T) {
	res := Normalize([]byte(`{"tokenTransfers":[{"tokenAddress":"T1","amount":"1e50000000"},{"mint":"T1","amount":1e50000000}]}`))

	require.Len(t, res.Transfers, 2)
	for _, tr := range res.Transfers {
		assert.False(t, tr.Amount.Valid)
		assert.Equal(t, "1e50000000", tr.Amount.Raw)
	}
}

func TestNormalize_LargeIntegerKeepsPrecision(t *testing.T) {
	res := Normalize([]byte(`{"tokenTransfers":[{"mint":"T1","amount":123456789012345678901234567890}]}`))

	require.Len(t, res.Transfers, 1)
	assert.Equal(t, "123456789012345678901234567890", res.Transfers[0].Amount.Value.String())
}

func TestNormalize_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":             ``,
		"not json":          `{{{`,
		"scalar":            `"hello"`,
		"unrelated object":  `{"foo": 1}`,
		"events not a list": `{"events": {"a": 1}}`,
		"null":              `null`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			res := Normalize([]byte(raw))
			assert.False(t, res.Recognised())
			assert.Empty(t, res.Transfers)
		})
	}
}

func TestNormalize_EmptyEventsIsRecognised(t *testing.T) {
	res := Normalize([]byte(`{"events": []}`))
	assert.True(t, res.Recognised())
	assert.Empty(t, res.Transfers)
}

func TestNormalize_NonObjectTransferEntriesSkipped(t *testing.T) {
	res := Normalize([]byte(`{"tokenTransfers":[null, 1, "x", {"mint":"T1","amount":3}]}`))

	require.Len(t, res.Transfers, 1)
	assert.Equal(t, 3, res.Skipped)
	assert.Equal(t, domain.Amount{Raw: "3", Value: res.Transfers[0].Amount.Value, Valid: true}, res.Transfers[0].Amount)
}
