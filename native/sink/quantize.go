package sink

// Resolution is the smallest retirement step: 1 kg in asset units (7 decimals,
// 1 unit of the asset is one tonne).
const Resolution int64 = 10_000

// Quantize truncates amount to a multiple of Resolution, rounding toward
// zero.
func Quantize(amount int64) int64 {
	return (amount / Resolution) * Resolution
}
