package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"DATA": "/var/lib/ibu",
		"NAME": "src",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	for _, tc := range []struct {
		Name   string
		Input  string
		Output string
		Err    error
	}{
		{
			Name:   "leaves plain text",
			Input:  "data/src.db",
			Output: "data/src.db",
		},
		{
			Name:   "expands a bare variable",
			Input:  "$DATA/$NAME.db",
			Output: "/var/lib/ibu/src.db",
		},
		{
			Name:   "expands a braced variable",
			Input:  "${DATA}/${NAME}.db",
			Output: "/var/lib/ibu/src.db",
		},
		{
			Name:   "uses the default of an unset variable",
			Input:  "${MISSING:-data}/src.db",
			Output: "data/src.db",
		},
		{
			Name:   "ignores the default of a set variable",
			Input:  "${DATA:-data}/src.db",
			Output: "/var/lib/ibu/src.db",
		},
		{
			Name:   "unset variables are empty",
			Input:  "a$MISSING.b",
			Output: "a.b",
		},
		{
			Name:   "keeps a trailing or non variable dollar",
			Input:  "a$ $1 b$",
			Output: "a$ $1 b$",
		},
		{
			Name:  "rejects an unclosed brace",
			Input: "${DATA",
			Err:   ErrInvalidConfig,
		},
		{
			Name:  "rejects an invalid name",
			Input: "${1DATA}",
			Err:   ErrInvalidConfig,
		},
	} {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()

			assert := require.New(t)

			out, err := ExpandEnv(tc.Input, lookup)
			if tc.Err != nil {
				assert.ErrorIs(err, tc.Err)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.Output, out)
		})
	}
}
