package services

import (
	"math"
	"strconv"

	"ninex/internal/models"
)

const PeriodNever = "9999"

// период в часах -> стоимость в кредитах
var creditPricing = map[string]float64{
	"240":     1,
	"480":     2,
	"720":     3,
	"0.08333": 0.5,
	"1":       1,
	"24":      2,
	"9999":    100,
}

var standardPeriods = map[string]bool{"240": true, "480": true, "720": true}

var deviceMultiplier = map[string]float64{
	models.DeviceSingle:    1,
	models.DeviceDouble:    2,
	models.DeviceUnlimited: 4,
}

// PeriodAllowed: god picks any priced period, everyone else the 10/20/30 day packages.
func PeriodAllowed(actor models.Role, period string) bool {
	if _, ok := creditPricing[period]; !ok {
		return false
	}
	return actor == models.RoleGod || standardPeriods[period]
}

func DeviceAllowed(actor models.Role, device string) bool {
	if _, ok := deviceMultiplier[device]; !ok {
		return false
	}
	return device != models.DeviceUnlimited || actor == models.RoleGod || actor == models.RoleAdmin
}

// CreditCost is the credit price of a user account before rounding.
func CreditCost(period, device string) float64 {
	m, ok := deviceMultiplier[device]
	if !ok {
		m = 1
	}
	return creditPricing[period] * m
}

// BillingAmount is what an admin owes for creating a user account.
func BillingAmount(packages map[string]float64, period, device string) float64 {
	m, ok := deviceMultiplier[device]
	if !ok {
		m = 1
	}
	return packages[period] * m
}

// periodSeconds converts a period in hours to whole seconds, truncating.
func periodSeconds(period string) (int64, bool) {
	h, err := strconv.ParseFloat(period, 64)
	if err != nil || h <= 0 {
		return 0, false
	}
	return int64(math.Floor(h * 3600)), true
}
