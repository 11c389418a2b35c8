package typecast

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"xorkevin.dev/kerrors"
)

var (
	// ErrInvalidValue is returned when a database value is malformed
	ErrInvalidValue errInvalidValue
	// ErrPrecisionLoss is returned when formatting a number would round it
	ErrPrecisionLoss errPrecisionLoss
)

type (
	errInvalidValue  struct{}
	errPrecisionLoss struct{}
)

func (e errInvalidValue) Error() string {
	return "Invalid value"
}

func (e errPrecisionLoss) Error() string {
	return "Precision loss"
}

const (
	minYear = 1
	maxYear = 9999

	microsecondDigits = 6
)

type (
	// Value is a structured value converted from its database text form
	Value interface {
		fmt.Stringer
		isValue()
	}

	// Date is a calendar date without a time or zone
	Date struct {
		Year  int
		Month time.Month
		Day   int
	}

	// TimeOfDay is a wall clock time with microsecond precision and no zone
	TimeOfDay struct {
		Hour        int
		Minute      int
		Second      int
		Microsecond int
	}

	// DateTime is a timestamp normalized to UTC
	DateTime struct {
		time.Time
	}
)

func (d Date) isValue()      {}
func (t TimeOfDay) isValue() {}
func (t DateTime) isValue()  {}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns the date as midnight UTC
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (t TimeOfDay) String() string {
	if t.Microsecond == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%06d", t.Hour, t.Minute, t.Second, t.Microsecond)
}

func (t DateTime) String() string {
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02 15:04:05.000000")
}

func invalid(kind, s string) error {
	return kerrors.WithKind(nil, ErrInvalidValue, fmt.Sprintf("Invalid %s value %q", kind, s))
}

func atoi(kind, s, part string) (int, error) {
	n, err := strconv.Atoi(part)
	if err != nil {
		return 0, kerrors.WithKind(err, ErrInvalidValue, fmt.Sprintf("Invalid %s value %q", kind, s))
	}
	return n, nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func newDate(s string, year, month, day int) (*Date, error) {
	if year < minYear || year > maxYear {
		return nil, kerrors.WithKind(nil, ErrInvalidValue, fmt.Sprintf("Year %d out of range in %q", year, s))
	}
	if month < 1 || month > 12 {
		return nil, kerrors.WithKind(nil, ErrInvalidValue, fmt.Sprintf("Month %d out of range in %q", month, s))
	}
	if day < 1 || day > daysIn(year, time.Month(month)) {
		return nil, kerrors.WithKind(nil, ErrInvalidValue, fmt.Sprintf("Day %d out of range for month in %q", day, s))
	}
	return &Date{
		Year:  year,
		Month: time.Month(month),
		Day:   day,
	}, nil
}

func newTimeOfDay(s string, hour, minute, second, micro int) (*TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return nil, kerrors.WithKind(nil, ErrInvalidValue, fmt.Sprintf("Time out of range in %q", s))
	}
	return &TimeOfDay{
		Hour:        hour,
		Minute:      minute,
		Second:      second,
		Microsecond: micro,
	}, nil
}

// ParseDate converts YYYY-MM-DD into a [Date]. An empty string is null and
// returns nil.
func ParseDate(s string) (*Date, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return nil, invalid("date", s)
	}
	year, err := atoi("date", s, parts[0])
	if err != nil {
		return nil, err
	}
	month, err := atoi("date", s, parts[1])
	if err != nil {
		return nil, err
	}
	day, err := atoi("date", s, parts[2])
	if err != nil {
		return nil, err
	}
	return newDate(s, year, month, day)
}

// parseFraction pads or truncates fractional seconds to microseconds
func parseFraction(kind, s, frac string) (int, error) {
	if frac == "" {
		return 0, nil
	}
	for _, c := range frac {
		if c < '0' || c > '9' {
			return 0, invalid(kind, s)
		}
	}
	frac = (frac + strings.Repeat("0", microsecondDigits))[:microsecondDigits]
	return atoi(kind, s, frac)
}

func parseClock(kind, s, clock string) (*TimeOfDay, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return nil, invalid(kind, s)
	}
	hour, err := atoi(kind, s, parts[0])
	if err != nil {
		return nil, err
	}
	minute, err := atoi(kind, s, parts[1])
	if err != nil {
		return nil, err
	}
	secs, frac, _ := strings.Cut(parts[2], ".")
	second, err := atoi(kind, s, secs)
	if err != nil {
		return nil, err
	}
	micro, err := parseFraction(kind, s, frac)
	if err != nil {
		return nil, err
	}
	return newTimeOfDay(s, hour, minute, second, micro)
}

// ParseTime converts HH:MM:SS[.ffffff] into a [TimeOfDay]. An empty string is
// null and returns nil.
func ParseTime(s string) (*TimeOfDay, error) {
	if s == "" {
		return nil, nil
	}
	return parseClock("time", s, s)
}

// ParseTimestamp converts a bare date or YYYY-MM-DD HH:MM:SS[.ffffff][±TZ]
// into a [*Date] or a [*DateTime] respectively. A zone offset is parsed and
// discarded: wall clock fields are kept as is and the result is in UTC. An
// empty string is null and returns nil.
func ParseTimestamp(s string) (Value, error) {
	if s == "" {
		return nil, nil
	}
	if !strings.Contains(s, " ") {
		d, err := ParseDate(s)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return nil, invalid("timestamp", s)
	}
	datePart, clock := fields[0], fields[1]
	if k := strings.IndexByte(clock, '-'); k >= 0 {
		if err := checkOffset(s, clock[k+1:]); err != nil {
			return nil, err
		}
		clock = clock[:k]
	} else if k := strings.IndexByte(clock, '+'); k >= 0 {
		if err := checkOffset(s, clock[k+1:]); err != nil {
			return nil, err
		}
		clock = clock[:k]
	}
	d, err := ParseDate(datePart)
	if err != nil {
		return nil, err
	}
	t, err := parseClock("timestamp", s, clock)
	if err != nil {
		return nil, err
	}
	return &DateTime{
		Time: time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, t.Second, t.Microsecond*1000, time.UTC),
	}, nil
}

func checkOffset(s, offset string) error {
	if offset == "" {
		return invalid("timestamp", s)
	}
	for _, c := range offset {
		if (c < '0' || c > '9') && c != ':' {
			return invalid("timestamp", s)
		}
	}
	return nil
}

// ParseDecimal converts the text form of an exact numeric column into an
// arbitrary precision decimal. An empty string is null and returns nil.
func ParseDecimal(s string) (*apd.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, kerrors.WithKind(err, ErrInvalidValue, fmt.Sprintf("Invalid decimal value %q", s))
	}
	return d, nil
}

// DecimalValue renders a decimal as a database parameter. A nil decimal is
// null.
func DecimalValue(d *apd.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
