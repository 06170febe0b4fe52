package services

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ninex/internal/models"
	"ninex/internal/paging"
)

var testPackages = map[string]float64{"240": 100, "480": 180, "720": 250}

func newAccountFixture(repo *memRepo) (*accountService, *fixedClock) {
	clock := &fixedClock{t: time.Unix(1_700_000_000, 0)}
	access := NewAccessService(repo)
	bulk := NewBulkService(repo, access)
	maint := NewMaintenanceService(nil, repo, bulk)
	svc := NewAccountService(repo, access, maint, paging.NewStore(time.Hour), testPackages).(*accountService)
	svc.now = clock.now
	return svc, clock
}

func actorOf(a *models.Account) models.Actor {
	return models.Actor{ID: a.ID, Username: a.Username, Role: a.AccountType, Session: "sess-" + a.Username}
}

func TestCreate_SellerPaysCreditsForUser(t *testing.T) {
	repo := newMemRepo()
	sel := repo.add(&models.Account{Username: "sel", AccountType: models.RoleSeller, Credits: 10, Version: models.VersionOnline})
	svc, clock := newAccountFixture(repo)

	a, err := svc.Create(context.Background(), actorOf(sel), CreateAccount{
		Username: " newbie ", Password: "pw", Period: "480", Device: models.DeviceDouble,
	})
	require.NoError(t, err)
	assert.Equal(t, "newbie", a.Username)
	assert.Equal(t, models.RoleUser, a.AccountType)
	assert.Equal(t, "sel", a.CreatedBy)
	assert.Equal(t, strconv.FormatInt(clock.t.Unix()+480*3600, 10), a.Expiry)
	assert.True(t, isBcryptHash(a.Password))
	assert.Equal(t, models.VersionOnline, a.Version)

	assert.Equal(t, 6, repo.byID(sel.ID).Credits)
}

func TestCreate_Rejections(t *testing.T) {
	repo := newMemRepo()
	sel := repo.add(&models.Account{Username: "sel", AccountType: models.RoleSeller, Credits: 1})
	repo.add(&models.Account{Username: "taken", AccountType: models.RoleUser, CreatedBy: "sel"})
	svc, _ := newAccountFixture(repo)
	ctx := context.Background()
	actor := actorOf(sel)

	_, err := svc.Create(ctx, actor, CreateAccount{Username: "x", Password: "pw", Period: "720"})
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	_, err = svc.Create(ctx, actor, CreateAccount{Username: "x", Password: "pw", Period: "24"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, actor, CreateAccount{Username: "x", Password: "pw", Device: models.DeviceUnlimited})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, actor, CreateAccount{Username: "taken", Password: "pw"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.Create(ctx, actor, CreateAccount{Username: "x", Password: "pw", AccountType: models.RoleAdmin})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(ctx, actor, CreateAccount{Username: "x", Password: "pw", AccountType: models.RoleReseller})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, actor, CreateAccount{Username: "x", AccountType: models.RoleUser})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreate_SellerFundsResellerCredits(t *testing.T) {
	repo := newMemRepo()
	sel := repo.add(&models.Account{Username: "sel", AccountType: models.RoleSeller, Credits: 10})
	svc, _ := newAccountFixture(repo)

	a, err := svc.Create(context.Background(), actorOf(sel), CreateAccount{
		Username: "res", Password: "pw", AccountType: models.RoleReseller, Credits: 7, TelegramID: "55",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExpiryNever, a.Expiry)
	assert.Equal(t, 7, a.Credits)
	assert.Equal(t, 3, repo.byID(sel.ID).Credits)
}

func TestCreate_AdminIsBilledInsteadOfCharged(t *testing.T) {
	repo := newMemRepo()
	admin := repo.add(&models.Account{Username: "boss", AccountType: models.RoleAdmin, AmountOwed: 20, PaymentStatus: models.PaymentPaid})
	svc, _ := newAccountFixture(repo)

	_, err := svc.Create(context.Background(), actorOf(admin), CreateAccount{
		Username: "cust", Password: "pw", Period: "240", Device: models.DeviceUnlimited,
	})
	require.NoError(t, err)

	got := repo.byID(admin.ID)
	assert.Equal(t, 420.0, got.AmountOwed)
	assert.Equal(t, models.PaymentUnpaid, got.PaymentStatus)
	assert.Equal(t, 0, got.Credits)
}

func TestCreate_GodNeverPeriodAndMaintenanceVersion(t *testing.T) {
	repo := newMemRepo()
	root := repo.add(&models.Account{Username: "root", AccountType: models.RoleGod, Version: models.VersionMaintenance})
	svc, _ := newAccountFixture(repo)

	a, err := svc.Create(context.Background(), actorOf(root), CreateAccount{
		Username: "vip", Password: "pw", Period: PeriodNever, Device: models.DeviceUnlimited,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExpiryNever, a.Expiry)
	assert.Equal(t, models.VersionMaintenance, a.Version)

	b, err := svc.Create(context.Background(), actorOf(root), CreateAccount{Username: "short", Password: "pw", Period: "0.08333"})
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(1_700_000_000+299, 10), b.Expiry)
}

func TestGiveCredits(t *testing.T) {
	repo := hierarchyRepo()
	repo.byID("rec003").Credits = 5 // sel1
	svc, _ := newAccountFixture(repo)
	ctx := context.Background()

	sel1 := actorOf(repo.byID("rec003"))
	res2 := repo.byID("rec005")

	got, err := svc.GiveCredits(ctx, sel1, res2.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Credits)
	assert.Equal(t, 2, repo.byID("rec003").Credits)

	_, err = svc.GiveCredits(ctx, sel1, res2.ID, 3)
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	// res1 создан boss, не sel1
	_, err = svc.GiveCredits(ctx, sel1, "rec004", 1)
	assert.ErrorIs(t, err, ErrForbidden)

	// user не может получать кредиты
	boss := actorOf(repo.byID("rec002"))
	_, err = svc.GiveCredits(ctx, boss, "rec006", 1)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GiveCredits(ctx, boss, "rec003", 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResetHWIDAndDelete_RespectScope(t *testing.T) {
	repo := hierarchyRepo()
	repo.byID("rec006").HWID = "dev"
	svc, _ := newAccountFixture(repo)
	ctx := context.Background()
	boss := actorOf(repo.byID("rec002"))

	require.NoError(t, svc.ResetHWID(ctx, boss, "rec006"))
	assert.Equal(t, "", repo.byID("rec006").HWID)

	assert.ErrorIs(t, svc.ResetHWID(ctx, boss, "rec008"), ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, boss, "rec008"), ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, boss, "recMissing"), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, boss, boss.ID), ErrValidation)

	require.NoError(t, svc.Delete(ctx, boss, "rec006"))
	assert.Nil(t, repo.byID("rec006"))
}

func TestTogglePayment(t *testing.T) {
	repo := hierarchyRepo()
	admin := repo.byID("rec002")
	admin.AmountOwed, admin.AmountPaid = 300, 100
	svc, _ := newAccountFixture(repo)
	ctx := context.Background()
	root := actorOf(repo.byID("rec001"))

	got, err := svc.TogglePayment(ctx, root, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, 400.0, repo.byID(admin.ID).AmountPaid)
	assert.Equal(t, 0.0, repo.byID(admin.ID).AmountOwed)
	assert.NotEmpty(t, repo.byID(admin.ID).PaymentDate)

	got, err = svc.TogglePayment(ctx, root, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentUnpaid, got.PaymentStatus)
	assert.Equal(t, 400.0, repo.byID(admin.ID).AmountOwed)
	assert.Equal(t, "", repo.byID(admin.ID).PaymentDate)

	_, err = svc.TogglePayment(ctx, actorOf(admin), admin.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.TogglePayment(ctx, root, "rec003")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.SetPurchasedDays(ctx, root, admin.ID, 30))
	assert.Equal(t, 30, repo.byID(admin.ID).PurchasedDays)
}

func TestListPage_WalksAndCachesCursors(t *testing.T) {
	repo := newMemRepo()
	root := repo.add(&models.Account{Username: "root", AccountType: models.RoleGod})
	for i := 0; i < 60; i++ {
		repo.add(&models.Account{Username: fmt.Sprintf("u%02d", i), AccountType: models.RoleUser, CreatedBy: "root"})
	}
	svc, _ := newAccountFixture(repo)
	ctx := context.Background()
	actor := actorOf(root)

	page, err := svc.ListPage(ctx, actor, ListQuery{Page: 3, PageSize: 25})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Len(t, page.Records, 11)
	assert.False(t, page.HasNext)
	assert.Equal(t, 3, repo.fetches)

	// курсор страницы 2 уже известен
	page, err = svc.ListPage(ctx, actor, ListQuery{Page: 2, PageSize: 25})
	require.NoError(t, err)
	assert.True(t, page.HasNext)
	assert.Equal(t, 4, repo.fetches)

	// смена поиска сбрасывает курсоры
	page, err = svc.ListPage(ctx, actor, ListQuery{Page: 1, PageSize: 25, Search: "u1"})
	require.NoError(t, err)
	assert.Len(t, page.Records, 10)
	assert.Equal(t, []int{1}, page.KnownPages)

	// за концом выдаётся последняя страница
	page, err = svc.ListPage(ctx, actor, ListQuery{Page: 9, PageSize: 25})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
}

func TestCountAndStats(t *testing.T) {
	repo := hierarchyRepo()
	now := int64(1_700_000_000)
	repo.byID("rec006").Expiry = strconv.FormatInt(now+10, 10)
	repo.byID("rec007").Expiry = strconv.FormatInt(now-10, 10)
	repo.byID("rec003").Expiry = models.ExpiryNever
	admin := repo.byID("rec002")
	admin.AmountOwed = 120
	svc, _ := newAccountFixture(repo)
	ctx := context.Background()

	n, complete, err := svc.Count(ctx, actorOf(admin), "", "")
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, 4, n)

	st, err := svc.Stats(ctx, actorOf(repo.byID("rec001")))
	require.NoError(t, err)
	assert.Equal(t, 8, st.Total)
	assert.Equal(t, 2, st.Active)
	assert.Equal(t, 6, st.Expired)
	assert.Equal(t, 2, st.Resellers)
	require.NotNil(t, st.TotalOwed)
	assert.Equal(t, 120.0, *st.TotalOwed)

	st, err = svc.Stats(ctx, actorOf(admin))
	require.NoError(t, err)
	assert.Nil(t, st.TotalOwed)
}
