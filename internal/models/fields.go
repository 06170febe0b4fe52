package models

// Имена колонок таблицы аккаунтов.
const (
	FieldUsername       = "Username"
	FieldPassword       = "Password"
	FieldAccountType    = "AccountType"
	FieldCredits        = "Credits"
	FieldAmountOwed     = "AmountOwed"
	FieldAmountPaid     = "AmountPaid"
	FieldPaymentStatus  = "PaymentStatus"
	FieldPaymentDate    = "PaymentDate"
	FieldPurchasedDays  = "PurchasedDays"
	FieldExpiry         = "Expiry"
	FieldDevice         = "Device"
	FieldHWID           = "HWID"
	FieldHWID2          = "HWID2"
	FieldCreatedBy      = "CreatedBy"
	FieldTelegramID     = "TelegramID"
	FieldOtp            = "Otp"
	FieldOtpExpiry      = "OtpExpiry"
	FieldOtpAttempts    = "OtpAttempts"
	FieldOtpLastRequest = "OtpLastRequest"
	FieldVersion        = "Version"
)

// Setting is one row of the key/value settings table.
type Setting struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

const SettingMaintenance = "maintenance"
