package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ninex/internal/models"
)

func TestAccountsReport_RendersPDF(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	var accounts []*models.Account
	for i := 0; i < 60; i++ {
		accounts = append(accounts, &models.Account{
			Username:    fmt.Sprintf("user-%02d-with-a-rather-long-name", i),
			AccountType: models.RoleUser,
			CreatedBy:   "boss",
			Expiry:      strconv.FormatInt(now.Unix()+int64(i-30)*86400, 10),
			Device:      models.DeviceSingle,
			Version:     models.VersionOnline,
		})
	}
	accounts = append(accounts,
		&models.Account{Username: "boss", AccountType: models.RoleAdmin, Expiry: models.ExpiryNever},
		&models.Account{Username: "odd", AccountType: models.RoleUser, Expiry: "soon"},
	)

	var buf bytes.Buffer
	g := NewReportGenerator("")
	err := g.AccountsReport(&buf, ReportData{
		GeneratedBy: "root",
		GeneratedAt: now,
		Accounts:    accounts,
		Complete:    false,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestNewReportGenerator_MissingFontFallsBack(t *testing.T) {
	g := NewReportGenerator("/nonexistent/DejaVuSans.ttf")
	assert.Equal(t, "Helvetica", g.fontName)

	var buf bytes.Buffer
	require.NoError(t, g.AccountsReport(&buf, ReportData{GeneratedAt: time.Now(), Complete: true}))
}

func TestExpiryLabel(t *testing.T) {
	assert.Equal(t, "Never", expiryLabel(&models.Account{Expiry: models.ExpiryNever}))
	assert.Equal(t, "garbage", expiryLabel(&models.Account{Expiry: "garbage"}))
	assert.Equal(t, "2023-11-14 22:13", expiryLabel(&models.Account{Expiry: "1700000000"}))
}
