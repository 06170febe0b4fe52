package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ninex/internal/airtable"
	"ninex/internal/authz"
	"ninex/internal/models"
	"ninex/internal/repositories"
	"ninex/internal/utils"
)

const (
	otpTTL          = 5 * time.Minute
	maxOTPAttempts  = 3
	resendThrottle  = 60 * time.Second
	loginTimeLayout = "1/2/2006, 3:04:05 PM"
)

type AuthService interface {
	// RequestLoginCode checks the password and sends a login code to the account's Telegram.
	RequestLoginCode(ctx context.Context, username, password string) error
	// VerifyLoginCode consumes the login code and returns the signed-in account.
	VerifyLoginCode(ctx context.Context, username, code string) (*models.Account, error)
	RequestResetCode(ctx context.Context, username, telegramID string) error
	ResetPassword(ctx context.Context, username, code, newPassword string) error
}

type authService struct {
	repo     repositories.AccountRepository
	notifier Notifier
	loc      *time.Location

	now     func() time.Time
	newCode func() (string, error)
}

func NewAuthService(repo repositories.AccountRepository, notifier Notifier, loc *time.Location) AuthService {
	if loc == nil {
		loc = time.UTC
	}
	return &authService{
		repo:     repo,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		newCode:  utils.NewOTP,
	}
}

func (s *authService) find(ctx context.Context, username string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	a, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: username not found", ErrNotFound)
	}
	return a, err
}

func (s *authService) RequestLoginCode(ctx context.Context, username, password string) error {
	if !s.notifier.Enabled() {
		return fmt.Errorf("%w: Telegram bot token is not set", ErrConfig)
	}
	a, err := s.find(ctx, username)
	if err != nil {
		return err
	}
	if !authz.CanLogin(a.AccountType) {
		return ErrLoginDenied
	}
	if password == "" || !CheckPassword(a.Password, password) {
		log.Printf("[auth][login] bad password username=%s", a.Username)
		return ErrInvalidPassword
	}
	if a.TelegramID == "" {
		return ErrNoTelegram
	}

	code, fields, err := s.issue()
	if err != nil {
		return err
	}
	// legacy plaintext пароль заменяем хэшем при первом успешном входе
	if !isBcryptHash(a.Password) {
		if hash, err := HashPassword(password); err == nil {
			fields[models.FieldPassword] = hash
		}
	}
	if err := s.repo.Update(ctx, a.ID, fields); err != nil {
		return fmt.Errorf("store login code: %w", err)
	}
	log.Printf("[auth][login] code issued username=%s", a.Username)
	return s.notifier.Notify(ctx, a.TelegramID, s.codeMessage(code))
}

func (s *authService) VerifyLoginCode(ctx context.Context, username, code string) (*models.Account, error) {
	a, err := s.find(ctx, username)
	if err != nil {
		return nil, err
	}
	if !authz.CanLogin(a.AccountType) {
		return nil, ErrLoginDenied
	}
	if err := s.verify(ctx, a, code); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a.ID, clearedOTP()); err != nil {
		return nil, fmt.Errorf("clear login code: %w", err)
	}
	a.OTP, a.OTPExpiry, a.OTPAttempts = "", 0, 0
	log.Printf("[auth][login] ok username=%s role=%s", a.Username, a.AccountType)
	return a, nil
}

func (s *authService) resettable(ctx context.Context, username string) (*models.Account, error) {
	if !s.notifier.Enabled() {
		return nil, fmt.Errorf("%w: Telegram bot token is not set", ErrConfig)
	}
	a, err := s.find(ctx, username)
	if err != nil {
		return nil, err
	}
	if a.AccountType == models.RoleUser {
		return nil, ErrResetUnavailable
	}
	if a.TelegramID == "" {
		return nil, ErrNoTelegram
	}
	return a, nil
}

func (s *authService) RequestResetCode(ctx context.Context, username, telegramID string) error {
	a, err := s.resettable(ctx, username)
	if err != nil {
		return err
	}
	if strings.TrimSpace(telegramID) != a.TelegramID {
		return ErrTelegramMismatch
	}
	now := s.now()
	if a.OTPLastRequest != nil && now.Sub(*a.OTPLastRequest) < resendThrottle {
		return ErrResendThrottled
	}

	code, fields, err := s.issue()
	if err != nil {
		return err
	}
	fields[models.FieldOtpLastRequest] = now.UTC().Format(time.RFC3339Nano)
	if err := s.repo.Update(ctx, a.ID, fields); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}
	log.Printf("[auth][reset] code issued username=%s", a.Username)
	return s.notifier.Notify(ctx, a.TelegramID, s.codeMessage(code))
}

func (s *authService) ResetPassword(ctx context.Context, username, code, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", ErrValidation)
	}
	a, err := s.resettable(ctx, username)
	if err != nil {
		return err
	}
	if err := s.verify(ctx, a, code); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	fields := clearedOTP()
	fields[models.FieldPassword] = hash
	fields[models.FieldOtpLastRequest] = nil
	if err := s.repo.Update(ctx, a.ID, fields); err != nil {
		return fmt.Errorf("store new password: %w", err)
	}

	log.Printf("[auth][reset] ok username=%s", a.Username)
	msg := fmt.Sprintf("✅ Your password for user *'%s'* has been reset successfully.", a.Username)
	if err := s.notifier.Notify(ctx, a.TelegramID, msg); err != nil {
		log.Printf("[auth][reset] confirmation not sent username=%s err=%v", a.Username, err)
	}
	return nil
}

// verify checks code against the stored OTP and records failed attempts.
func (s *authService) verify(ctx context.Context, a *models.Account, code string) error {
	if a.OTPAttempts >= maxOTPAttempts {
		if err := s.repo.Update(ctx, a.ID, clearedOTP()); err != nil {
			return err
		}
		return ErrTooManyAttempts
	}
	if a.OTP == "" || a.OTPExpiry == 0 || s.now().UnixMilli() > a.OTPExpiry {
		return ErrCodeExpired
	}
	if subtle.ConstantTimeCompare([]byte(a.OTP), []byte(strings.TrimSpace(code))) == 1 {
		return nil
	}

	attempts := a.OTPAttempts + 1
	if attempts >= maxOTPAttempts {
		if err := s.repo.Update(ctx, a.ID, clearedOTP()); err != nil {
			return err
		}
		log.Printf("[auth][otp] invalidated username=%s", a.Username)
		return ErrTooManyAttempts
	}
	if err := s.repo.Update(ctx, a.ID, airtable.Fields{models.FieldOtpAttempts: attempts}); err != nil {
		return err
	}
	return ErrCodeIncorrect
}

func (s *authService) issue() (string, airtable.Fields, error) {
	code, err := s.newCode()
	if err != nil {
		return "", nil, fmt.Errorf("generate code: %w", err)
	}
	return code, airtable.Fields{
		models.FieldOtp:         code,
		models.FieldOtpExpiry:   s.now().Add(otpTTL).UnixMilli(),
		models.FieldOtpAttempts: 0,
	}, nil
}

func (s *authService) codeMessage(code string) string {
	return fmt.Sprintf("Your login OTP is: *%s*\n\nLogin Time: %s\nExpiration Time: +5 minutes\n\n_If you did not request this, please ignore this message._",
		code, s.now().In(s.loc).Format(loginTimeLayout))
}

func clearedOTP() airtable.Fields {
	return airtable.Fields{
		models.FieldOtp:         nil,
		models.FieldOtpExpiry:   nil,
		models.FieldOtpAttempts: nil,
	}
}

// ---- passwords

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt generate: %w", err)
	}
	return string(b), nil
}

// CheckPassword accepts bcrypt hashes and, for old rows, plaintext compared in constant time.
func CheckPassword(stored, given string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
