package events

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stellarcarbon/sorocarbon/core/types"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

const (
	// TypeSinkRetired is emitted after a swap burned the source asset and
	// issued the certificate asset.
	TypeSinkRetired = "sink.retired"

	// AssetDecimals is the fixed precision of both assets.
	AssetDecimals = 7
)

// SinkRetired describes one completed retirement.
type SinkRetired struct {
	Contract  crypto.Address
	Funder    crypto.Address
	Recipient crypto.Address
	Requested int64
	Amount    int64
	ProjectID string
	MemoText  string
	Email     string
	Ledger    uint32
	ReceiptID string
}

func (SinkRetired) EventType() string { return TypeSinkRetired }

// Tonnes converts the quantized amount into whole tonnes.
func (e SinkRetired) Tonnes() decimal.Decimal {
	return Tonnes(e.Amount)
}

func (e SinkRetired) Event() *types.Event {
	return &types.Event{
		Type:     TypeSinkRetired,
		Contract: e.Contract.String(),
		Ledger:   e.Ledger,
		Attributes: map[string]string{
			"funder":    e.Funder.String(),
			"recipient": e.Recipient.String(),
			"requested": strconv.FormatInt(e.Requested, 10),
			"amount":    strconv.FormatInt(e.Amount, 10),
			"tonnes":    e.Tonnes().StringFixed(AssetDecimals),
			"projectId": strings.TrimSpace(e.ProjectID),
			"memoText":  e.MemoText,
			"email":     e.Email,
			"receiptId": e.ReceiptID,
		},
	}
}

// Tonnes converts a raw asset amount (7 decimals) into tonnes.
func Tonnes(amount int64) decimal.Decimal {
	return decimal.New(amount, -AssetDecimals)
}

// ParseTonnes converts a decimal tonne amount into asset units. Empty input
// is zero; negative amounts and more than AssetDecimals decimals are refused.
func ParseTonnes(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	tonnes, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	if tonnes.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	units := tonnes.Shift(AssetDecimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("%s has more than %d decimals", raw, AssetDecimals)
	}
	if units.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("%s overflows", raw)
	}
	return units.IntPart(), nil
}
