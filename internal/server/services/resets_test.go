package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/server/metrics"
	"github.com/dmitrijs2005/workflow/internal/server/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signupAlice(t *testing.T, e *env) {
	t.Helper()
	_, err := e.users.Signup(context.Background(), NewUser{FullName: "Alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
}

func TestRequestReset_IssuesAndMails(t *testing.T) {
	e := newEnv(t, nil)
	signupAlice(t, e)

	require.NoError(t, e.resets.RequestReset(context.Background(), "a@x.com"))

	sent := e.mailer.last()
	assert.Equal(t, "reset", sent.kind)
	assert.Equal(t, "a@x.com", sent.to)
	assert.Equal(t, "Alice", sent.name)
	assert.Len(t, sent.token, common.ResetTokenLength)
	for _, r := range sent.token {
		assert.Contains(t, common.ResetTokenAlphabet, string(r))
	}

	rec, err := e.rm.resets.Find(context.Background(), "a@x.com", sent.token)
	require.NoError(t, err)
	assert.Equal(t, e.clock.Now().Add(time.Hour), rec.ExpiresAt)
}

func TestRequestReset_UnknownEmailSameOutcome(t *testing.T) {
	m := metrics.New()
	e := newEnv(t, nil)
	e.resets = NewResetService(connectedHandle(t), e.rm, e.users.hasher, e.mailer, time.Hour, WithMetrics(m))
	signupAlice(t, e)

	errKnown := e.resets.RequestReset(context.Background(), "a@x.com")
	errUnknown := e.resets.RequestReset(context.Background(), "nobody@x.com")

	assert.NoError(t, errKnown)
	assert.NoError(t, errUnknown)
	assert.Len(t, e.mailer.sent, 1)
	assert.Equal(t, 0, e.rm.resets.count("nobody@x.com"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResetRequests.WithLabelValues(metrics.ResetUnknownUser)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResetRequests.WithLabelValues(metrics.ResetIssued)))
}

func TestRequestReset_MailFailureStillGeneric(t *testing.T) {
	e := newEnv(t, nil)
	signupAlice(t, e)
	e.mailer.fail = true

	assert.NoError(t, e.resets.RequestReset(context.Background(), "a@x.com"))
	assert.Equal(t, 1, e.rm.resets.count("a@x.com"))
}

func TestRequestReset_InvalidEmail(t *testing.T) {
	e := newEnv(t, nil)
	assert.ErrorIs(t, e.resets.RequestReset(context.Background(), "nope"), common.ErrorValidation)
}

func TestSecondRequestInvalidatesFirst(t *testing.T) {
	e := newEnv(t, nil)
	signupAlice(t, e)
	ctx := context.Background()

	require.NoError(t, e.resets.RequestReset(ctx, "a@x.com"))
	first := e.mailer.last().token
	require.NoError(t, e.resets.RequestReset(ctx, "a@x.com"))
	second := e.mailer.last().token
	require.NotEqual(t, first, second)

	ok, err := e.resets.VerifyOnly(ctx, "a@x.com", first)
	assert.False(t, ok)
	assert.ErrorIs(t, err, common.ErrInvalidResetToken)

	ok, err = e.resets.VerifyOnly(ctx, "a@x.com", second)
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 1, e.rm.resets.count("a@x.com"))
}

func TestConsumeReset_Success(t *testing.T) {
	e := newEnv(t, nil)
	signupAlice(t, e)
	ctx := context.Background()

	require.NoError(t, e.resets.RequestReset(ctx, "a@x.com"))
	token := e.mailer.last().token
	e.clock.Advance(10 * time.Minute)

	require.NoError(t, e.resets.ConsumeReset(ctx, "a@x.com", token, "newpass1"))

	assert.Equal(t, "confirmation", e.mailer.last().kind)
	assert.Equal(t, 0, e.rm.resets.count("a@x.com"), "token is single use")

	_, err := e.users.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = e.users.Login(ctx, "a@x.com", "newpass1")
	assert.NoError(t, err)

	u, err := e.rm.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, e.clock.Now(), u.UpdatedAt)

	assert.ErrorIs(t, e.resets.ConsumeReset(ctx, "a@x.com", token, "another1"), common.ErrInvalidResetToken)
}

func TestConsumeReset_Expired(t *testing.T) {
	e := newEnv(t, nil)
	signupAlice(t, e)
	ctx := context.Background()

	require.NoError(t, e.resets.RequestReset(ctx, "a@x.com"))
	token := e.mailer.last().token

	e.clock.Advance(time.Hour)
	ok, err := e.resets.VerifyOnly(ctx, "a@x.com", token)
	require.NoError(t, err, "still valid exactly at the deadline")
	require.True(t, ok)

	e.clock.Advance(time.Second)
	err = e.resets.ConsumeReset(ctx, "a@x.com", token, "newpass1")
	assert.ErrorIs(t, err, common.ErrResetTokenExpired)

	_, err = e.rm.resets.Find(ctx, "a@x.com", token)
	assert.ErrorIs(t, err, common.ErrorNotFound, "expired record is removed")

	err = e.resets.ConsumeReset(ctx, "a@x.com", token, "newpass1")
	assert.ErrorIs(t, err, common.ErrInvalidResetToken)

	_, err = e.users.Login(ctx, "a@x.com", "secret1")
	assert.NoError(t, err, "password unchanged")
}

func TestVerifyOnly_ExpiredIsDeleted(t *testing.T) {
	e := newEnv(t, nil)
	signupAlice(t, e)
	ctx := context.Background()

	require.NoError(t, e.resets.RequestReset(ctx, "a@x.com"))
	token := e.mailer.last().token
	e.clock.Advance(2 * time.Hour)

	ok, err := e.resets.VerifyOnly(ctx, "a@x.com", token)
	assert.False(t, ok)
	assert.ErrorIs(t, err, common.ErrResetTokenExpired)

	ok, err = e.resets.VerifyOnly(ctx, "a@x.com", token)
	assert.False(t, ok)
	assert.ErrorIs(t, err, common.ErrInvalidResetToken)
}

func TestVerifyOnly_DoesNotTouchUser(t *testing.T) {
	e := newEnv(t, nil)
	signupAlice(t, e)
	ctx := context.Background()
	before, _ := e.rm.users.GetByEmail(ctx, "a@x.com")

	require.NoError(t, e.resets.RequestReset(ctx, "a@x.com"))
	token := e.mailer.last().token

	ok, err := e.resets.VerifyOnly(ctx, "a@x.com", token)
	require.NoError(t, err)
	require.True(t, ok)

	after, _ := e.rm.users.GetByEmail(ctx, "a@x.com")
	assert.Equal(t, before, after)
	assert.Equal(t, 1, e.rm.resets.count("a@x.com"))
}

func TestConsumeReset_WrongEmailForToken(t *testing.T) {
	e := newEnv(t, nil)
	signupAlice(t, e)
	_, err := e.users.Signup(context.Background(), NewUser{FullName: "Bob", Email: "b@x.com", Password: "secret1"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, e.resets.RequestReset(ctx, "a@x.com"))
	token := e.mailer.last().token

	assert.ErrorIs(t, e.resets.ConsumeReset(ctx, "b@x.com", token, "newpass1"), common.ErrInvalidResetToken)
}

func TestConsumeReset_Validation(t *testing.T) {
	e := newEnv(t, nil)
	assert.ErrorIs(t, e.resets.ConsumeReset(context.Background(), "a@x.com", "t", "123"), common.ErrorValidation)
}

func TestConsumeReset_UserVanished(t *testing.T) {
	e := newEnv(t, nil)
	signupAlice(t, e)
	ctx := context.Background()

	require.NoError(t, e.resets.RequestReset(ctx, "a@x.com"))
	token := e.mailer.last().token
	delete(e.rm.users.byEmail, "a@x.com")

	assert.ErrorIs(t, e.resets.ConsumeReset(ctx, "a@x.com", token, "newpass1"), common.ErrorNotFound)
}

func TestConsumeReset_UpdateFailure(t *testing.T) {
	e := newEnv(t, nil)
	signupAlice(t, e)
	ctx := context.Background()

	require.NoError(t, e.resets.RequestReset(ctx, "a@x.com"))
	token := e.mailer.last().token
	e.rm.users.updateErr = errBoom

	assert.ErrorIs(t, e.resets.ConsumeReset(ctx, "a@x.com", token, "newpass1"), common.ErrorInternal)
	assert.Equal(t, 1, e.rm.resets.count("a@x.com"), "token survives a failed update")
}

func TestCleanupExpired(t *testing.T) {
	e := newEnv(t, nil)
	signupAlice(t, e)
	_, err := e.users.Signup(context.Background(), NewUser{FullName: "Bob", Email: "b@x.com", Password: "secret1"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, e.resets.RequestReset(ctx, "a@x.com"))
	e.clock.Advance(45 * time.Minute)
	require.NoError(t, e.resets.RequestReset(ctx, "b@x.com"))
	e.clock.Advance(30 * time.Minute)

	n, err := e.resets.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, e.rm.resets.count("a@x.com"))
	assert.Equal(t, 1, e.rm.resets.count("b@x.com"))

	e.rm.resets.deleteErr = errBoom
	_, err = e.resets.CleanupExpired(ctx)
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestResetService_StoreUnavailable(t *testing.T) {
	e := newEnv(t, store.Unavailable(errBoom))
	ctx := context.Background()

	assert.ErrorIs(t, e.resets.RequestReset(ctx, "a@x.com"), common.ErrorStoreUnavailable)
	assert.ErrorIs(t, e.resets.ConsumeReset(ctx, "a@x.com", "t", "newpass1"), common.ErrorStoreUnavailable)
	_, err := e.resets.VerifyOnly(ctx, "a@x.com", "t")
	assert.ErrorIs(t, err, common.ErrorStoreUnavailable)
	_, err = e.resets.CleanupExpired(ctx)
	assert.ErrorIs(t, err, common.ErrorStoreUnavailable)
	assert.Empty(t, e.mailer.sent)
}
