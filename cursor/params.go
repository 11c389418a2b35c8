package cursor

import (
	"iter"
	"slices"
)

type (
	// Params is a sequence of parameter lists for [Native.ExecuteMany]. It
	// may only be iterated once.
	Params interface {
		All() iter.Seq[[]any]
	}

	// Sized is implemented by [Params] with a known length
	Sized interface {
		Len() int
	}

	// ParamSlice is a sized [Params]
	ParamSlice [][]any

	// ParamIter is a lazy [Params] of unknown length
	ParamIter iter.Seq[[]any]
)

func (p ParamSlice) All() iter.Seq[[]any] {
	return slices.Values(p)
}

func (p ParamSlice) Len() int {
	return len(p)
}

func (p ParamIter) All() iter.Seq[[]any] {
	return iter.Seq[[]any](p)
}

// ParamsLen returns the number of parameter lists if known
func ParamsLen(p Params) (int, bool) {
	s, ok := p.(Sized)
	if !ok {
		return 0, false
	}
	return s.Len(), true
}
