package xrequire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	env := Env{"ENV": "staging", "N": "2", "_x1": "v"}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no placeholder", "db-primary", "db-primary"},
		{"braced", "db-${ENV}", "db-staging"},
		{"bare", "db-$ENV", "db-staging"},
		{"bare stops at non-name char", "$ENV-$N", "staging-2"},
		{"underscore name", "${_x1}", "v"},
		{"escaped dollar", "cost$$", "cost$"},
		{"escaped before name", "$$ENV", "$ENV"},
		{"trailing dollar", "a$", "a$"},
		{"dollar before digit", "$1", "$1"},
		{"multiple", "${ENV}/${N}/$ENV", "staging/2/staging"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.input, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpand_Unresolved(t *testing.T) {
	for _, input := range []string{"db-${MISSING}", "db-$MISSING", "${ENV}-$MISSING"} {
		_, err := Expand(input, Env{"ENV": "x"})
		require.Error(t, err, input)
		assert.True(t, IsUnresolvedVariable(err))

		var uv *UnresolvedVariableError
		require.True(t, errors.As(err, &uv))
		assert.Equal(t, "MISSING", uv.Variable)
		assert.Equal(t, input, uv.Input)
	}
}

func TestExpand_NilEnv(t *testing.T) {
	got, err := Expand("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	_, err = Expand("${A}", nil)
	assert.True(t, IsUnresolvedVariable(err))
}

func TestExpand_Malformed(t *testing.T) {
	for _, input := range []string{"${ENV", "${}", "${1A}", "${A B}"} {
		_, err := Expand(input, Env{"ENV": "x"})
		assert.ErrorIs(t, err, ErrInvalidSpec, input)
	}
}
