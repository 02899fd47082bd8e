package passwordless

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	users, pending := &memUserStore{}, &memPendingStore{}
	require.NoError(t, pending.Create(ctx, janeDoe("ext-1")))

	v := newTestVerifier()
	h := NewHandler(enabledCfg, v, users, pending, WithLogger(testLogger))

	password := Strategy{
		Name: "password",
		Applies: func(opts Options) bool {
			_, ok := opts["password"]
			return ok
		},
		Login: func(ctx context.Context, opts Options) *LoginResult {
			return success("password-user")
		},
	}
	r := NewRegistry(h.Strategy(), password)

	cases := []struct {
		title       string
		opts        Options
		expOK       bool
		expStrategy string
	}{
		{title: "empty", opts: Options{}},
		{title: "nil", opts: nil},
		{title: "legacy-passwordless-key", opts: Options{"passwordless": true, "token": "tok-123"}},
		{title: "flag-not-bool", opts: Options{"passwordlessDev": "true", "token": "tok-123"}},
		{title: "flag-false", opts: Options{"passwordlessDev": false, "token": "tok-123"}},
		{title: "other-method", opts: Options{"user": "jdoe", "password": "x"}, expOK: true, expStrategy: "password"},
		{title: "passwordless-dev", opts: loginOpts("tok-123"), expOK: true, expStrategy: StrategyName},
	}

	for _, c := range cases {
		t.Run(c.title, func(t *testing.T) {
			res, name, ok := r.Dispatch(ctx, c.opts)
			assert.Equal(t, c.expOK, ok)
			assert.Equal(t, c.expStrategy, name)
			if !ok {
				assert.Nil(t, res)
				return
			}
			require.NotNil(t, res)
			assert.True(t, res.OK(), "%v", res.Err)
		})
	}

	// Ignored requests never reach the verifier.
	assert.Equal(t, int32(1), v.calls.Load())
}
