package pool

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Percent is a fixed-point percentage carrying PercentDecimals implied decimal
// digits. OneHundredPercent therefore equals 1000 and 12.5% is stored as 125.
type Percent uint64

const (
	// PercentDecimals is the number of implied decimal digits of a Percent.
	PercentDecimals = 1
	// OneHundredPercent is the fixed-point representation of 100%.
	OneHundredPercent Percent = 1000
)

var percentScale = func() uint64 {
	scale := uint64(1)
	for i := 0; i < PercentDecimals; i++ {
		scale *= 10
	}
	return scale
}()

// Percentage builds a Percent from a whole number of percent, e.g.
// Percentage(10) is 10%.
func Percentage(whole uint64) Percent {
	return Percent(whole * percentScale)
}

// Big returns the raw fixed-point value as a big integer.
func (p Percent) Big() *big.Int {
	return new(big.Int).SetUint64(uint64(p))
}

// Of applies the percentage to value rounding down: floor(value*p/100%).
func (p Percent) Of(value *big.Int) *big.Int {
	return mulDiv(value, p.Big(), OneHundredPercent.Big())
}

// String renders the percentage with its decimal digits, e.g. "12.5%".
func (p Percent) String() string {
	whole := uint64(p) / percentScale
	frac := uint64(p) % percentScale
	if frac == 0 {
		return fmt.Sprintf("%d%%", whole)
	}
	return fmt.Sprintf("%d.%0*d%%", whole, PercentDecimals, frac)
}

// MarshalText implements encoding.TextMarshaler.
func (p Percent) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so TOML and JSON
// configuration can carry values such as "10%" or "0.5".
func (p *Percent) UnmarshalText(text []byte) error {
	parsed, err := ParsePercent(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePercent parses a decimal percentage with at most PercentDecimals
// fractional digits. A trailing "%" is optional.
func ParsePercent(raw string) (Percent, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "%"))
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty percentage", ErrInvalidPercent)
	}
	wholePart, fracPart, hasFrac := strings.Cut(trimmed, ".")
	if wholePart == "" {
		wholePart = "0"
	}
	whole, err := strconv.ParseUint(wholePart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPercent, raw)
	}
	var frac uint64
	if hasFrac {
		if len(fracPart) == 0 || len(fracPart) > PercentDecimals {
			return 0, fmt.Errorf("%w: %q supports %d decimal digit(s)", ErrInvalidPercent, raw, PercentDecimals)
		}
		padded := fracPart + strings.Repeat("0", PercentDecimals-len(fracPart))
		frac, err = strconv.ParseUint(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPercent, raw)
		}
	}
	return Percent(whole*percentScale + frac), nil
}

// ratioPercent returns floor(numerator*100%/denominator) clamped to the
// uint64 range, or zero when the denominator is empty.
func ratioPercent(numerator, denominator *big.Int) Percent {
	ratio := mulDiv(numerator, OneHundredPercent.Big(), denominator)
	if !ratio.IsUint64() {
		return Percent(^uint64(0))
	}
	return Percent(ratio.Uint64())
}
