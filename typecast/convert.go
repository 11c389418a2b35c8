package typecast

import (
	"strings"
	"sync"
)

type (
	// Converter converts the text form of a column value. It receives a
	// non-empty string.
	Converter func(s string) (any, error)

	// Registry maps database column type names to converters
	Registry struct {
		mu    sync.RWMutex
		convs map[string]Converter
	}
)

func convertDate(s string) (any, error) {
	v, err := ParseDate(s)
	if err != nil || v == nil {
		return nil, err
	}
	return *v, nil
}

func convertTime(s string) (any, error) {
	v, err := ParseTime(s)
	if err != nil || v == nil {
		return nil, err
	}
	return *v, nil
}

func convertTimestamp(s string) (any, error) {
	v, err := ParseTimestamp(s)
	if err != nil || v == nil {
		return nil, err
	}
	switch k := v.(type) {
	case *Date:
		return *k, nil
	case *DateTime:
		return *k, nil
	}
	return v, nil
}

func convertDecimal(s string) (any, error) {
	v, err := ParseDecimal(s)
	if err != nil || v == nil {
		return nil, err
	}
	return v, nil
}

// NewRegistry creates a registry with converters for the date, time,
// timestamp, and exact numeric column types
func NewRegistry() *Registry {
	r := &Registry{
		convs: map[string]Converter{},
	}
	r.Register("DATE", convertDate)
	r.Register("TIME", convertTime)
	for _, i := range []string{"TIMESTAMP", "DATETIME", "TIMESTAMPTZ"} {
		r.Register(i, convertTimestamp)
	}
	for _, i := range []string{"DECIMAL", "NUMERIC"} {
		r.Register(i, convertDecimal)
	}
	return r
}

// normalizeTypeName strips size arguments and case, e.g. decimal(10, 2) is
// DECIMAL
func normalizeTypeName(typeName string) string {
	if k := strings.IndexByte(typeName, '('); k >= 0 {
		typeName = typeName[:k]
	}
	return strings.ToUpper(strings.TrimSpace(typeName))
}

// Register sets the converter for a column type name
func (r *Registry) Register(typeName string, conv Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[normalizeTypeName(typeName)] = conv
}

// Lookup returns the converter for a column type name
func (r *Registry) Lookup(typeName string) (Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.convs[normalizeTypeName(typeName)]
	return conv, ok
}

// Convert passes a raw column value through the converter for its type. Only
// string and []byte values are converted. Null and empty values convert to
// nil. Conversion errors are returned as is.
func (r *Registry) Convert(typeName string, v any) (any, error) {
	var s string
	switch k := v.(type) {
	case nil:
		return nil, nil
	case string:
		s = k
	case []byte:
		s = string(k)
	default:
		return v, nil
	}
	conv, ok := r.Lookup(typeName)
	if !ok {
		return v, nil
	}
	if s == "" {
		return nil, nil
	}
	return conv(s)
}
