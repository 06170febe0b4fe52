package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"ninex/internal/airtable"
	"ninex/internal/authz"
	"ninex/internal/models"
	"ninex/internal/paging"
	"ninex/internal/query"
	"ninex/internal/repositories"
)

const (
	countSweepGuard  = 100
	statsSweepGuard  = 100
	reportSweepGuard = 100

	DefaultPageSize = 25
)

type ListQuery struct {
	Page     int
	PageSize int
	Search   string
	Sort     string
	Payment  string
	// Refresh re-resolves the cached allow-list.
	Refresh bool
}

type ListPage struct {
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	Records    []*models.Account `json:"records"`
	HasNext    bool              `json:"has_next"`
	KnownPages []int             `json:"known_pages"`
}

type Stats struct {
	Total     int      `json:"total"`
	Active    int      `json:"active"`
	Expired   int      `json:"expired"`
	Resellers int      `json:"resellers"`
	TotalOwed *float64 `json:"total_owed,omitempty"`
	TotalPaid *float64 `json:"total_paid,omitempty"`
	Complete  bool     `json:"complete"`
}

type CreateAccount struct {
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	AccountType models.Role `json:"account_type"`
	// Period is the lifetime in hours ("240", "480", ..., "9999" for never).
	Period     string `json:"period"`
	Device     string `json:"device"`
	Credits    int    `json:"credits"`
	TelegramID string `json:"telegram_id"`
}

type AccountService interface {
	Me(ctx context.Context, actor models.Actor) (*models.Account, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Account, error)
	ListPage(ctx context.Context, actor models.Actor, q ListQuery) (*ListPage, error)
	Count(ctx context.Context, actor models.Actor, search, payment string) (int, bool, error)
	Stats(ctx context.Context, actor models.Actor) (*Stats, error)
	Report(ctx context.Context, actor models.Actor, q ListQuery) ([]*models.Account, bool, error)

	Create(ctx context.Context, actor models.Actor, req CreateAccount) (*models.Account, error)
	GiveCredits(ctx context.Context, actor models.Actor, id string, amount int) (*models.Account, error)
	ResetHWID(ctx context.Context, actor models.Actor, id string) error
	Delete(ctx context.Context, actor models.Actor, id string) error
	TogglePayment(ctx context.Context, actor models.Actor, id string) (*models.Account, error)
	SetPurchasedDays(ctx context.Context, actor models.Actor, id string, days int) error
}

type accountService struct {
	repo        repositories.AccountRepository
	access      AccessService
	maintenance MaintenanceService
	pages       *paging.Store
	billing     map[string]float64

	now func() time.Time
}

func NewAccountService(
	repo repositories.AccountRepository,
	access AccessService,
	maintenance MaintenanceService,
	pages *paging.Store,
	billing map[string]float64,
) AccountService {
	return &accountService{
		repo:        repo,
		access:      access,
		maintenance: maintenance,
		pages:       pages,
		billing:     billing,
		now:         time.Now,
	}
}

// scope returns the actor's allow-list, cached on the session when there is one.
func (s *accountService) scope(ctx context.Context, actor models.Actor, refresh bool) (query.Creators, error) {
	if actor.Session == "" || s.pages == nil {
		return s.access.AllowedCreators(ctx, actor)
	}
	sess := s.pages.Session(actor.Session)
	if c, ok := sess.Creators(); ok && !refresh {
		return c, nil
	}
	c, err := s.access.AllowedCreators(ctx, actor)
	if err != nil {
		return nil, err
	}
	sess.SetCreators(c)
	return c, nil
}

// target loads a record and checks it is inside the actor's scope.
func (s *accountService) target(ctx context.Context, actor models.Actor, id string) (*models.Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: record id is required", ErrValidation)
	}
	a, err := s.repo.Get(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	creators, err := s.scope(ctx, actor, false)
	if err != nil {
		return nil, err
	}
	if !inScope(creators, a) {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *accountService) Me(ctx context.Context, actor models.Actor) (*models.Account, error) {
	a, err := s.repo.Get(ctx, actor.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *accountService) Get(ctx context.Context, actor models.Actor, id string) (*models.Account, error) {
	if id == actor.ID {
		return s.Me(ctx, actor)
	}
	return s.target(ctx, actor, id)
}

func (s *accountService) ListPage(ctx context.Context, actor models.Actor, q ListQuery) (*ListPage, error) {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > airtable.MaxPageSize {
		q.PageSize = airtable.MaxPageSize
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	q.Sort = query.NormalizeSort(q.Sort)

	creators, err := s.scope(ctx, actor, q.Refresh)
	if err != nil {
		return nil, err
	}
	pq := repositories.PageQuery{
		Filter:   query.Filter{Creators: creators, Search: q.Search, Payment: q.Payment},
		Sort:     query.SortFor(q.Sort),
		PageSize: q.PageSize,
	}
	key := paging.Key{
		Role:     actor.Role,
		Username: actor.Username,
		PageSize: q.PageSize,
		Search:   q.Search,
		Sort:     q.Sort,
		Payment:  q.Payment,
	}

	nav := paging.NewNavigator()
	var sess *paging.Session
	if actor.Session != "" && s.pages != nil {
		sess = s.pages.Session(actor.Session)
	}

	var out *ListPage
	run := func(nav *paging.Navigator) {
		if q.Refresh {
			nav.Sync(paging.Key{})
		}
		nav.Sync(key)
		out, err = s.walk(ctx, nav, pq, q.Page)
	}
	if sess != nil {
		sess.With(run)
	} else {
		run(nav)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// walk fetches page, following cursors forward from the nearest known page when needed.
// Asking past the end returns the last page.
func (s *accountService) walk(ctx context.Context, nav *paging.Navigator, pq repositories.PageQuery, page int) (*ListPage, error) {
	p := nav.Nearest(page)
	for {
		cursor, _ := nav.Cursor(p)
		pq.Cursor = cursor
		res, err := s.repo.FetchPage(ctx, pq)
		if err != nil {
			return nil, err
		}
		nav.Record(p, res.Next)

		if p == page || res.Next == "" {
			return &ListPage{
				Page:       p,
				PageSize:   pq.PageSize,
				Records:    res.Records,
				HasNext:    nav.HasNext(p),
				KnownPages: nav.KnownPages(),
			}, nil
		}
		p++
	}
}

func (s *accountService) Count(ctx context.Context, actor models.Actor, search, payment string) (int, bool, error) {
	creators, err := s.scope(ctx, actor, false)
	if err != nil {
		return 0, false, err
	}
	res, err := s.repo.Sweep(ctx, repositories.SweepQuery{
		Filter: query.Filter{Creators: creators, Search: search, Payment: payment},
		Fields: []string{models.FieldUsername},
		Guard:  countSweepGuard,
	})
	if err != nil {
		return 0, false, err
	}
	return len(res.Records), res.Complete, nil
}

func (s *accountService) Stats(ctx context.Context, actor models.Actor) (*Stats, error) {
	creators, err := s.scope(ctx, actor, false)
	if err != nil {
		return nil, err
	}
	res, err := s.repo.Sweep(ctx, repositories.SweepQuery{
		Filter: query.Filter{Creators: creators},
		Fields: []string{
			models.FieldExpiry, models.FieldAccountType,
			models.FieldAmountOwed, models.FieldAmountPaid, models.FieldPaymentStatus,
		},
		Guard: statsSweepGuard,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	st := &Stats{Total: len(res.Records), Complete: res.Complete}
	var owed, paid float64
	for _, a := range res.Records {
		if a.IsActive(now) {
			st.Active++
		}
		if a.AccountType == models.RoleReseller {
			st.Resellers++
		}
		if a.AccountType == models.RoleAdmin {
			if a.EffectivePaymentStatus() == models.PaymentUnpaid {
				owed += a.AmountOwed
			} else {
				paid += a.AmountPaid
			}
		}
	}
	st.Expired = st.Total - st.Active
	if authz.IsGod(actor.Role) {
		st.TotalOwed, st.TotalPaid = &owed, &paid
	}
	return st, nil
}

func (s *accountService) Report(ctx context.Context, actor models.Actor, q ListQuery) ([]*models.Account, bool, error) {
	creators, err := s.scope(ctx, actor, false)
	if err != nil {
		return nil, false, err
	}
	res, err := s.repo.Sweep(ctx, repositories.SweepQuery{
		Filter: query.Filter{Creators: creators, Search: q.Search, Payment: q.Payment},
		Sort:   query.SortFor(q.Sort),
		Guard:  reportSweepGuard,
	})
	if err != nil {
		return nil, false, err
	}
	return res.Records, res.Complete, nil
}

func (s *accountService) Create(ctx context.Context, actor models.Actor, req CreateAccount) (*models.Account, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.TelegramID = strings.TrimSpace(req.TelegramID)
	if req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if req.AccountType == "" {
		req.AccountType = models.RoleUser
	}
	if !authz.Valid(req.AccountType) || !authz.CanCreate(actor.Role, req.AccountType) {
		return nil, ErrForbidden
	}
	if authz.NeedsTelegram(req.AccountType) && req.TelegramID == "" {
		return nil, fmt.Errorf("%w: Telegram ID is required for %s accounts", ErrValidation, req.AccountType)
	}

	privileged := req.AccountType != models.RoleUser
	if privileged {
		if req.Credits < 0 {
			return nil, fmt.Errorf("%w: credits must not be negative", ErrValidation)
		}
	} else {
		req.Credits = 0
		if req.Period == "" {
			req.Period = "240"
		}
		if req.Device == "" {
			req.Device = models.DeviceSingle
		}
		if !PeriodAllowed(actor.Role, req.Period) {
			return nil, fmt.Errorf("%w: period %q is not available", ErrValidation, req.Period)
		}
		if !DeviceAllowed(actor.Role, req.Device) {
			return nil, fmt.Errorf("%w: device %q is not available", ErrValidation, req.Device)
		}
	}

	creator, err := s.repo.Get(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load creator: %w", err)
	}

	// проверка и вставка не атомарны: два параллельных запроса могут создать дубль
	if _, err := s.repo.FindByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrUsernameTaken, req.Username)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	cost := 0
	if !authz.IsPrivileged(actor.Role) {
		if privileged {
			cost = req.Credits
		} else {
			cost = int(math.Ceil(CreditCost(req.Period, req.Device)))
		}
		if creator.Credits < cost {
			return nil, ErrInsufficientCredits
		}
	}

	var billed float64
	if actor.Role == models.RoleAdmin && !privileged {
		billed = BillingAmount(s.billing, req.Period, req.Device)
	}

	expiry := models.ExpiryNever
	if !privileged && req.Period != PeriodNever {
		secs, ok := periodSeconds(req.Period)
		if !ok {
			return nil, fmt.Errorf("%w: invalid period %q", ErrValidation, req.Period)
		}
		expiry = fmt.Sprint(s.now().Unix() + secs)
	}

	version, err := s.maintenance.State(ctx)
	if err != nil {
		log.Printf("[accounts][create] maintenance state unavailable, using %s: %v", models.VersionOnline, err)
		version = models.VersionOnline
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	a := &models.Account{
		Username:    req.Username,
		Password:    hash,
		AccountType: req.AccountType,
		CreatedBy:   actor.Username,
		TelegramID:  req.TelegramID,
		Credits:     req.Credits,
		Expiry:      expiry,
		Device:      req.Device,
		Version:     version,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	log.Printf("[accounts][create] actor=%s username=%s type=%s cost=%d billed=%.2f", actor.Username, a.Username, a.AccountType, cost, billed)

	if billed > 0 {
		if err := s.repo.Update(ctx, creator.ID, airtable.Fields{
			models.FieldAmountOwed:    creator.AmountOwed + billed,
			models.FieldPaymentStatus: models.PaymentUnpaid,
		}); err != nil {
			return a, fmt.Errorf("account created but billing was not recorded: %w", err)
		}
	}
	if cost > 0 {
		if err := s.repo.Update(ctx, creator.ID, airtable.Fields{models.FieldCredits: creator.Credits - cost}); err != nil {
			return a, fmt.Errorf("account created but credits were not debited: %w", err)
		}
	}

	// новый seller/reseller расширяет область видимости
	if privileged && actor.Session != "" && s.pages != nil {
		s.pages.Forget(actor.Session)
	}
	return a, nil
}

func (s *accountService) GiveCredits(ctx context.Context, actor models.Actor, id string, amount int) (*models.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: invalid credit amount", ErrValidation)
	}
	if id == actor.ID {
		return nil, fmt.Errorf("%w: cannot give credits to yourself", ErrValidation)
	}
	t, err := s.target(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanGiveCredits(actor.Role, t.AccountType) {
		return nil, ErrForbidden
	}

	var giver *models.Account
	if !authz.IsPrivileged(actor.Role) {
		giver, err = s.repo.Get(ctx, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("load giver: %w", err)
		}
		if giver.Credits < amount {
			return nil, ErrInsufficientCredits
		}
	}

	t.Credits += amount
	if err := s.repo.Update(ctx, t.ID, airtable.Fields{models.FieldCredits: t.Credits}); err != nil {
		return nil, err
	}
	if giver != nil {
		if err := s.repo.Update(ctx, giver.ID, airtable.Fields{models.FieldCredits: giver.Credits - amount}); err != nil {
			return t, fmt.Errorf("credits given but not debited: %w", err)
		}
	}
	log.Printf("[accounts][credits] actor=%s target=%s amount=%d", actor.Username, t.Username, amount)
	return t, nil
}

func (s *accountService) ResetHWID(ctx context.Context, actor models.Actor, id string) error {
	t, err := s.target(ctx, actor, id)
	if err != nil {
		return err
	}
	log.Printf("[accounts][hwid] actor=%s target=%s", actor.Username, t.Username)
	return s.repo.Update(ctx, t.ID, airtable.Fields{models.FieldHWID: "", models.FieldHWID2: ""})
}

func (s *accountService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if id == actor.ID {
		return fmt.Errorf("%w: cannot delete your own account", ErrValidation)
	}
	t, err := s.target(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, t.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	log.Printf("[accounts][delete] actor=%s target=%s", actor.Username, t.Username)
	return nil
}

func (s *accountService) TogglePayment(ctx context.Context, actor models.Actor, id string) (*models.Account, error) {
	if !authz.IsGod(actor.Role) {
		return nil, ErrForbidden
	}
	t, err := s.target(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if t.AccountType != models.RoleAdmin {
		return nil, fmt.Errorf("%w: payment status applies to admin accounts only", ErrValidation)
	}

	fields := airtable.Fields{}
	if t.EffectivePaymentStatus() == models.PaymentPaid {
		t.PaymentStatus = models.PaymentUnpaid
		t.PaymentDate = ""
		t.AmountOwed += t.AmountPaid
		t.AmountPaid = 0
	} else {
		t.PaymentStatus = models.PaymentPaid
		t.PaymentDate = s.now().UTC().Format(time.RFC3339)
		t.AmountPaid += t.AmountOwed
		t.AmountOwed = 0
	}
	fields[models.FieldPaymentStatus] = t.PaymentStatus
	fields[models.FieldPaymentDate] = t.PaymentDate
	fields[models.FieldAmountOwed] = t.AmountOwed
	fields[models.FieldAmountPaid] = t.AmountPaid

	if err := s.repo.Update(ctx, t.ID, fields); err != nil {
		return nil, err
	}
	log.Printf("[accounts][payment] target=%s status=%s", t.Username, t.PaymentStatus)
	return t, nil
}

func (s *accountService) SetPurchasedDays(ctx context.Context, actor models.Actor, id string, days int) error {
	if !authz.IsGod(actor.Role) {
		return ErrForbidden
	}
	if days <= 0 {
		return fmt.Errorf("%w: days must be a positive number", ErrValidation)
	}
	t, err := s.target(ctx, actor, id)
	if err != nil {
		return err
	}
	if t.AccountType != models.RoleAdmin {
		return fmt.Errorf("%w: purchased days apply to admin accounts only", ErrValidation)
	}
	return s.repo.Update(ctx, t.ID, airtable.Fields{models.FieldPurchasedDays: days})
}
