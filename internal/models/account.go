package models

import (
	"strconv"
	"time"
)

type Role string

const (
	RoleGod      Role = "god"
	RoleAdmin    Role = "admin"
	RoleSeller   Role = "seller"
	RoleReseller Role = "reseller"
	RoleUser     Role = "user"
)

const (
	ExpiryNever = "9999"

	VersionOnline      = "v3"
	VersionMaintenance = "Maintenance"

	PaymentPaid   = "Paid"
	PaymentUnpaid = "Unpaid"

	DeviceSingle    = "single"
	DeviceDouble    = "double"
	DeviceUnlimited = "unlimited"
)

// Account — единственная сущность хранилища (строка таблицы Airtable).
type Account struct {
	ID          string    `json:"id"`
	CreatedTime time.Time `json:"created_time"`

	Username    string `json:"username"`
	Password    string `json:"-"` // bcrypt-хэш или legacy plaintext
	AccountType Role   `json:"account_type"`
	CreatedBy   string `json:"created_by"`
	TelegramID  string `json:"telegram_id,omitempty"`

	// seller / reseller
	Credits int `json:"credits"`

	// admin: расчёты с god
	AmountOwed    float64 `json:"amount_owed"`
	AmountPaid    float64 `json:"amount_paid"`
	PaymentStatus string  `json:"payment_status,omitempty"`
	PaymentDate   string  `json:"payment_date,omitempty"`
	PurchasedDays int     `json:"purchased_days,omitempty"`

	// user
	Expiry string `json:"expiry"`
	Device string `json:"device"`
	HWID   string `json:"hwid,omitempty"`
	HWID2  string `json:"hwid2,omitempty"`

	Version string `json:"version"`

	OTP            string     `json:"-"`
	OTPExpiry      int64      `json:"-"` // unix ms
	OTPAttempts    int        `json:"-"`
	OTPLastRequest *time.Time `json:"-"`
}

// IsNever reports whether the account never expires.
func (a *Account) IsNever() bool { return a.Expiry == ExpiryNever }

// ExpiryUnix parses Expiry as unix seconds. "9999" and non-numeric values report false.
func (a *Account) ExpiryUnix() (int64, bool) {
	if a.IsNever() {
		return 0, false
	}
	v, err := strconv.ParseInt(a.Expiry, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsActive mirrors the panel's status column: never-expiring or expiry in the future.
func (a *Account) IsActive(now time.Time) bool {
	if a.IsNever() {
		return true
	}
	exp, ok := a.ExpiryUnix()
	return ok && exp > now.Unix()
}

// DaysLeft rounds the remaining time up to whole days; expired or never-expiring accounts give 0.
func (a *Account) DaysLeft(now time.Time) int {
	exp, ok := a.ExpiryUnix()
	if !ok || exp <= now.Unix() {
		return 0
	}
	secs := exp - now.Unix()
	return int((secs + 86399) / 86400)
}

// EffectivePaymentStatus treats an empty status as Unpaid.
func (a *Account) EffectivePaymentStatus() string {
	if a.PaymentStatus == "" {
		return PaymentUnpaid
	}
	return a.PaymentStatus
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

type PasswordResetRequest struct {
	Username    string `json:"username" binding:"required"`
	TelegramID  string `json:"telegramId"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// Actor is the signed-in identity carried by the session.
type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	// Session is the token id; listing state is kept per session.
	Session string `json:"-"`
}
