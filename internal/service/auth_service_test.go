package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/exstem-drill/internal/config"
	"github.com/stemsi/exstem-drill/internal/model"
)

const testClientKey = "lms-shared-key"

func newAuthFixture(t *testing.T) (*AuthService, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testClientKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:     "test-secret",
		JWTExpiry:     time.Hour,
		ClientKeyHash: string(hash),
	}
	return NewAuthService(cfg, rdb), mr, rdb
}

func TestAuthService_IssueLearnerToken(t *testing.T) {
	ctx := context.Background()
	auth, mr, _ := newAuthFixture(t)

	token, claims, err := auth.IssueToken(ctx, model.TokenRequest{ClientKey: testClientKey, SubjectID: 42, Role: "learner"})
	require.NoError(t, err)
	assert.Equal(t, TokenTypeLearner, claims.TokenType)
	assert.Empty(t, claims.Permissions)

	parsed, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, 42, parsed.UserID)
	assert.Equal(t, "42", parsed.Subject)
	assert.Equal(t, claims.ID, parsed.ID)

	key := config.RedisKey.AuthToken(parsed.ID)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))
	require.NoError(t, auth.CheckTokenActive(ctx, parsed.ID))

	require.NoError(t, auth.RevokeToken(ctx, parsed.ID))
	assert.ErrorIs(t, auth.CheckTokenActive(ctx, parsed.ID), ErrTokenRevoked)
}

func TestAuthService_IssueAuthorToken(t *testing.T) {
	auth, _, _ := newAuthFixture(t)

	_, claims, err := auth.IssueToken(context.Background(), model.TokenRequest{ClientKey: testClientKey, SubjectID: 3, Role: "author"})
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAuthor, claims.TokenType)
	assert.Contains(t, claims.Permissions, string(model.PermissionExercisesWrite))
}

func TestAuthService_RejectsBadKey(t *testing.T) {
	auth, _, _ := newAuthFixture(t)

	_, _, err := auth.IssueToken(context.Background(), model.TokenRequest{ClientKey: "wrong-key", SubjectID: 1, Role: "learner"})
	assert.ErrorIs(t, err, ErrInvalidClientKey)

	_, _, err = auth.IssueToken(context.Background(), model.TokenRequest{ClientKey: testClientKey, SubjectID: 1, Role: "admin"})
	assert.ErrorIs(t, err, ErrUnknownTokenType)

	disabled := NewAuthService(&config.Config{JWTSecret: "x", JWTExpiry: time.Hour}, nil)
	_, _, err = disabled.IssueToken(context.Background(), model.TokenRequest{ClientKey: testClientKey, SubjectID: 1, Role: "learner"})
	assert.ErrorIs(t, err, ErrIssuanceDisabled)
}

func TestAuthService_ValidateToken(t *testing.T) {
	auth, _, _ := newAuthFixture(t)

	_, err := auth.ValidateToken("not-a-jwt")
	assert.Error(t, err)

	other := NewAuthService(&config.Config{JWTSecret: "other-secret", JWTExpiry: time.Hour}, nil)
	token, _, err := other.GenerateToken(context.Background(), TokenTypeLearner, 5, nil)
	require.NoError(t, err)
	_, err = auth.ValidateToken(token)
	assert.Error(t, err)

	// Stateless tokens are always active.
	assert.NoError(t, other.CheckTokenActive(context.Background(), "anything"))
}

func TestQueuePublisher(t *testing.T) {
	ctx := context.Background()
	_, mr, rdb := newAuthFixture(t)
	q := NewQueuePublisher(rdb)

	require.NoError(t, q.PushResult(ctx, model.CompletionResult{ExerciseID: "ex", SessionID: "s1", LearnerID: 7}))
	require.NoError(t, q.PushSession(ctx, model.SessionRef{SessionID: "s1", Status: model.SessionStatusReady}))

	items, err := mr.List(config.WorkerKey.PersistResultsQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)
	var res model.CompletionResult
	require.NoError(t, json.Unmarshal([]byte(items[0]), &res))
	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, 7, res.LearnerID)

	items, err = mr.List(config.WorkerKey.PersistSessionsQueue)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
