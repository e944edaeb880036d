package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/server/mail"
	"github.com/dmitrijs2005/workflow/internal/server/metrics"
	"github.com/dmitrijs2005/workflow/internal/server/models"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/workflow/internal/server/repositories/users"
	"github.com/dmitrijs2005/workflow/internal/server/store"
	validation "github.com/go-ozzo/ozzo-validation"
)

// DefaultResetTTL is how long a reset token stays usable.
const DefaultResetTTL = time.Hour

// ResetService issues and consumes single-use password reset tokens. At most
// one live token exists per email; issuing a new one removes the old ones.
type ResetService struct {
	store       *store.Handle
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	mailer      mail.Sender
	ttl         time.Duration
	newToken    func() (string, error)
	serviceOptions
}

func NewResetService(h *store.Handle, m repomanager.RepositoryManager, hasher PasswordHasher, mailer mail.Sender, ttl time.Duration, opts ...Option) *ResetService {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetService{
		store:          h,
		repomanager:    m,
		hasher:         hasher,
		mailer:         mailer,
		ttl:            ttl,
		newToken:       generateResetToken,
		serviceOptions: buildOptions("resets", opts),
	}
}

func generateResetToken() (string, error) {
	return common.MakeRandString(common.ResetTokenAlphabet, common.ResetTokenLength)
}

func (s *ResetService) repos() (users.Repository, resettokens.Repository, error) {
	db, err := s.store.DB()
	if err != nil {
		return nil, nil, err
	}
	return s.repomanager.Users(db), s.repomanager.ResetTokens(db), nil
}

// RequestReset starts a reset for email. It returns nil for unknown emails
// and when mail delivery fails, so the outcome does not reveal whether an
// account exists. Only store trouble is reported.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validation.Validate(email, EmailRules...); err != nil {
		return invalid(err)
	}

	userRepo, tokenRepo, err := s.repos()
	if err != nil {
		return err
	}

	user, err := userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.ResetRequested(metrics.ResetUnknownUser)
			return nil
		}
		s.metrics.ResetRequested(metrics.ResetError)
		s.logger.Error(ctx, "reset lookup failed", "error", err)
		return common.ErrorInternal
	}

	token, err := s.newToken()
	if err != nil {
		s.metrics.ResetRequested(metrics.ResetError)
		s.logger.Error(ctx, "reset token generation failed", "error", err)
		return common.ErrorInternal
	}

	now := s.now().UTC()
	record := &models.ResetToken{
		Email:     user.Email,
		Token:     token,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}

	// delete-then-insert is not atomic; two concurrent requests may both
	// leave a record behind until the next request or cleanup
	if err := tokenRepo.DeleteByEmail(ctx, user.Email); err != nil {
		s.metrics.ResetRequested(metrics.ResetError)
		s.logger.Error(ctx, "reset token purge failed", "error", err)
		return common.ErrorInternal
	}
	if err := tokenRepo.Create(ctx, record); err != nil {
		s.metrics.ResetRequested(metrics.ResetError)
		s.logger.Error(ctx, "reset token insert failed", "error", err)
		return common.ErrorInternal
	}

	if !s.mailer.SendResetEmail(ctx, user.Email, user.FullName, token) {
		s.metrics.ResetRequested(metrics.ResetMailFailed)
		s.logger.Warn(ctx, "reset email not delivered", "user_id", user.ID)
		return nil
	}

	s.metrics.ResetRequested(metrics.ResetIssued)
	s.logger.Info(ctx, "reset token issued", "user_id", user.ID, "expires_at", record.ExpiresAt)
	return nil
}

// lookup finds the live record for (email, token). An expired record is
// deleted before ErrResetTokenExpired is returned.
func (s *ResetService) lookup(ctx context.Context, repo resettokens.Repository, email, token string) (*models.ResetToken, error) {
	email = strings.TrimSpace(email)
	if email == "" || token == "" {
		return nil, common.ErrInvalidResetToken
	}

	record, err := repo.Find(ctx, email, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidResetToken
		}
		s.logger.Error(ctx, "reset token lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if record.Expired(s.now()) {
		if err := repo.Delete(ctx, record); err != nil {
			s.logger.Error(ctx, "expired reset token delete failed", "error", err)
			return nil, common.ErrorInternal
		}
		return nil, common.ErrResetTokenExpired
	}
	return record, nil
}

// ConsumeReset sets a new password using a live token, then deletes the
// token and sends a confirmation.
func (s *ResetService) ConsumeReset(ctx context.Context, email, token, newPassword string) error {
	if err := validation.Validate(newPassword, PasswordRules...); err != nil {
		return invalid(err)
	}

	userRepo, tokenRepo, err := s.repos()
	if err != nil {
		return err
	}

	record, err := s.lookup(ctx, tokenRepo, email, token)
	if err != nil {
		return err
	}

	user, err := userRepo.GetByEmail(ctx, record.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		s.logger.Error(ctx, "reset user lookup failed", "error", err)
		return common.ErrorInternal
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.logger.Error(ctx, "password hash failed", "error", err)
		return common.ErrorInternal
	}

	if err := userRepo.UpdatePassword(ctx, user.ID, hash, s.now().UTC()); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		s.logger.Error(ctx, "password update failed", "error", err)
		return common.ErrorInternal
	}

	if err := tokenRepo.Delete(ctx, record); err != nil {
		s.logger.Error(ctx, "consumed reset token delete failed", "user_id", user.ID, "error", err)
		return common.ErrorInternal
	}

	if !s.mailer.SendResetConfirmation(ctx, user.Email, user.FullName) {
		s.logger.Warn(ctx, "reset confirmation not delivered", "user_id", user.ID)
	}

	s.logger.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}

// VerifyOnly reports whether (email, token) is live without touching the
// user. When it is not, the error says why: ErrInvalidResetToken or
// ErrResetTokenExpired (the expired record is deleted). Other errors mean
// the check itself failed.
func (s *ResetService) VerifyOnly(ctx context.Context, email, token string) (bool, error) {
	_, tokenRepo, err := s.repos()
	if err != nil {
		return false, err
	}
	if _, err := s.lookup(ctx, tokenRepo, email, token); err != nil {
		return false, err
	}
	return true, nil
}

// CleanupExpired removes every expired reset record and returns how many
// were removed.
func (s *ResetService) CleanupExpired(ctx context.Context) (int64, error) {
	_, tokenRepo, err := s.repos()
	if err != nil {
		return 0, err
	}
	n, err := tokenRepo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error(ctx, "reset cleanup failed", "error", err)
		return 0, common.ErrorInternal
	}
	s.logger.Info(ctx, "expired reset tokens removed", "count", n)
	return n, nil
}
