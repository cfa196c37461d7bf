package engine_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feunard/roadmap/internal/apperr"
)

func TestAPIKeyLifecycle(t *testing.T) {
	env := newTestEnv(t)

	key, plain, err := env.Engine.CreateAPIKey(env.Ctx, "owner", " laptop ")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(plain, "rmk_"))
	require.Equal(t, "laptop", key.Name)
	require.NotEqual(t, plain, key.KeyHash)

	actor, err := env.Engine.ResolveAPIKey(env.Ctx, plain)
	require.NoError(t, err)
	require.Equal(t, "owner", actor)

	_, err = env.Engine.ResolveAPIKey(env.Ctx, "rmk_nope")
	require.Equal(t, apperr.CodeAPIKeyNotFound, apperr.GetCode(err))

	keys, err := env.Engine.ListAPIKeys(env.Ctx, "owner")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	others, err := env.Engine.ListAPIKeys(env.Ctx, "someone")
	require.NoError(t, err)
	require.Empty(t, others)

	err = env.Engine.RevokeAPIKey(env.Ctx, key.ID, "someone")
	require.Equal(t, apperr.CodeAPIKeyNotFound, apperr.GetCode(err))
	require.NoError(t, env.Engine.RevokeAPIKey(env.Ctx, key.ID, "owner"))
	_, err = env.Engine.ResolveAPIKey(env.Ctx, plain)
	require.True(t, apperr.IsNotFound(err))

	_, _, err = env.Engine.CreateAPIKey(env.Ctx, "", "x")
	require.True(t, apperr.IsValidation(err))
}
