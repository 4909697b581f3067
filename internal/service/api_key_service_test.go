package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct{ err error }

func (v fakeValidator) ValidateAPIKey(context.Context, string) error { return v.err }

func TestAPIKeyService_Lifecycle(t *testing.T) {
	secrets := &fakeSecrets{keys: map[string]string{}}
	svc := NewAPIKeyService(secrets, fakeValidator{}, zerolog.Nop())
	ctx := context.Background()

	has, err := svc.HasOpenAIKey(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, svc.SaveOpenAIKey(ctx, "u1", "sk-test"))
	has, err = svc.HasOpenAIKey(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, svc.DeleteOpenAIKey(ctx, "u1"))
	has, err = svc.HasOpenAIKey(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestAPIKeyService_RejectsInvalidKey(t *testing.T) {
	secrets := &fakeSecrets{keys: map[string]string{}}
	svc := NewAPIKeyService(secrets, fakeValidator{err: errors.New("401")}, zerolog.Nop())

	err := svc.SaveOpenAIKey(context.Background(), "u1", "sk-bad")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
	assert.Empty(t, secrets.keys)
}

func TestAPIKeyService_Disabled(t *testing.T) {
	svc := NewAPIKeyService(nil, fakeValidator{}, zerolog.Nop())

	assert.ErrorIs(t, svc.SaveOpenAIKey(context.Background(), "u1", "sk"), ErrAPIKeysDisabled)
	has, err := svc.HasOpenAIKey(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, has)
}
