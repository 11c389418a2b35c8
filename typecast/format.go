package typecast

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"
	"xorkevin.dev/kerrors"
)

const (
	// DefaultPrecision is the digit precision used when no maximum is given
	DefaultPrecision = 28
	// DefaultHashLen is the number of hash characters appended by
	// [TruncateNameDefault]
	DefaultHashLen = 4
)

// FormatNumber renders a number in fixed point notation. A negative maxDigits
// or decimalPlaces means unset.
//
// Decimals with decimalPlaces set are quantized to that many places within a
// maxDigits precision context. Without decimalPlaces a decimal is rounded to
// the precision context and [ErrPrecisionLoss] is returned if that would drop
// any digit. Floats and integers are formatted with decimalPlaces places, or
// their shortest exact representation when unset. A nil value renders as the
// empty string.
func FormatNumber(value any, maxDigits, decimalPlaces int) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case *apd.Decimal:
		if v == nil {
			return "", nil
		}
		return formatDecimal(v, maxDigits, decimalPlaces)
	case apd.Decimal:
		return formatDecimal(&v, maxDigits, decimalPlaces)
	case float64:
		return strconv.FormatFloat(v, 'f', decimalPlaces, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', decimalPlaces, 32), nil
	case int:
		return formatInt(int64(v), decimalPlaces), nil
	case int32:
		return formatInt(int64(v), decimalPlaces), nil
	case int64:
		return formatInt(v, decimalPlaces), nil
	default:
		return "", kerrors.WithKind(nil, ErrInvalidValue, fmt.Sprintf("Unsupported number type %T", value))
	}
}

func formatInt(v int64, decimalPlaces int) string {
	if decimalPlaces < 0 {
		return strconv.FormatInt(v, 10)
	}
	return strconv.FormatFloat(float64(v), 'f', decimalPlaces, 64)
}

func formatDecimal(v *apd.Decimal, maxDigits, decimalPlaces int) (string, error) {
	precision := uint32(DefaultPrecision)
	if maxDigits > 0 {
		precision = uint32(maxDigits)
	}
	ctx := apd.BaseContext.WithPrecision(precision)
	ctx.Rounding = apd.RoundHalfEven
	res := new(apd.Decimal)
	if decimalPlaces >= 0 {
		if _, err := ctx.Quantize(res, v, -int32(decimalPlaces)); err != nil {
			return "", kerrors.WithKind(err, ErrInvalidValue, fmt.Sprintf("Failed to quantize %s to %d places with %d digits", v.String(), decimalPlaces, precision))
		}
		return res.Text('f'), nil
	}
	ctx.Traps |= apd.Rounded
	if _, err := ctx.Round(res, v); err != nil {
		return "", kerrors.WithKind(err, ErrPrecisionLoss, fmt.Sprintf("Rounding %s to %d digits loses precision", v.String(), precision))
	}
	return res.Text('f'), nil
}

// TruncateName shortens name to exactly length characters by keeping a prefix
// and appending the first hashLen hex characters of the md5 of the full name.
// Names within length, or a non-positive length, are returned unchanged.
func TruncateName(name string, length int, hashLen int) string {
	runes := []rune(name)
	if length <= 0 || len(runes) <= length {
		return name
	}
	if hashLen > length {
		hashLen = length
	}
	if hashLen < 0 {
		hashLen = 0
	}
	sum := md5.Sum([]byte(name))
	hsh := hex.EncodeToString(sum[:])
	if hashLen > len(hsh) {
		hashLen = len(hsh)
	}
	return string(runes[:length-hashLen]) + hsh[:hashLen]
}

// TruncateNameDefault is [TruncateName] with [DefaultHashLen]
func TruncateNameDefault(name string, length int) string {
	return TruncateName(name, length, DefaultHashLen)
}
