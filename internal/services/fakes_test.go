package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"ninex/internal/airtable"
	"ninex/internal/models"
	"ninex/internal/repositories"
)

// memRepo is an in-memory AccountRepository. Filters are evaluated with query.Filter.Match.
type memRepo struct {
	mu      sync.Mutex
	records []*models.Account
	nextID  int

	fetches      int
	batchCalls   int
	batchSizes   []int
	updates      []airtable.RecordPatch
	failBatchAt  int // 1-based batch call that fails; 0 = never
	failBatchErr error
}

func newMemRepo(accounts ...*models.Account) *memRepo {
	r := &memRepo{}
	for _, a := range accounts {
		r.add(a)
	}
	return r
}

func (r *memRepo) add(a *models.Account) *models.Account {
	if a.ID == "" {
		r.nextID++
		a.ID = fmt.Sprintf("rec%03d", r.nextID)
	}
	r.records = append(r.records, a)
	return a
}

func (r *memRepo) byID(id string) *models.Account {
	for _, a := range r.records {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (r *memRepo) FetchPage(_ context.Context, q repositories.PageQuery) (*repositories.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++

	var matched []*models.Account
	for _, a := range r.records {
		if q.Filter.Match(a) {
			cp := *a
			matched = append(matched, &cp)
		}
	}
	start := 0
	if q.Cursor != "" {
		start, _ = strconv.Atoi(q.Cursor)
	}
	size := q.PageSize
	if size <= 0 {
		size = 1
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	if start > end {
		start = end
	}
	page := &repositories.Page{Records: matched[start:end]}
	if end < len(matched) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

func (r *memRepo) Sweep(ctx context.Context, q repositories.SweepQuery) (*repositories.SweepResult, error) {
	out := &repositories.SweepResult{}
	cursor := ""
	for {
		page, err := r.FetchPage(ctx, repositories.PageQuery{Filter: q.Filter, PageSize: airtable.MaxPageSize, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		out.Pages++
		out.Records = append(out.Records, page.Records...)
		if page.Next == "" {
			out.Complete = true
			return out, nil
		}
		if out.Pages > q.Guard {
			return out, nil
		}
		cursor = page.Next
	}
}

func (r *memRepo) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.records {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memRepo) Get(_ context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a := r.byID(id); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, repositories.ErrNotFound
}

func (r *memRepo) First(ctx context.Context) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return nil, repositories.ErrNotFound
	}
	cp := *r.records[0]
	return &cp, nil
}

func (r *memRepo) Create(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.add(&cp)
	a.ID = cp.ID
	return nil
}

func (r *memRepo) Update(_ context.Context, id string, fields airtable.Fields) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.byID(id)
	if a == nil {
		return repositories.ErrNotFound
	}
	r.updates = append(r.updates, airtable.RecordPatch{ID: id, Fields: fields})
	return applyFields(a, fields)
}

func (r *memRepo) UpdateBatch(_ context.Context, patches []airtable.RecordPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchCalls++
	r.batchSizes = append(r.batchSizes, len(patches))
	if len(patches) > airtable.MaxBatchSize {
		return errors.New("batch too large")
	}
	if r.failBatchAt == r.batchCalls {
		return r.failBatchErr
	}
	for _, p := range patches {
		if a := r.byID(p.ID); a != nil {
			if err := applyFields(a, p.Fields); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.records {
		if a.ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func applyFields(a *models.Account, f airtable.Fields) error {
	for k, v := range f {
		switch k {
		case models.FieldPassword:
			a.Password = str(v)
		case models.FieldHWID:
			a.HWID = str(v)
		case models.FieldHWID2:
			a.HWID2 = str(v)
		case models.FieldExpiry:
			a.Expiry = str(v)
		case models.FieldVersion:
			a.Version = str(v)
		case models.FieldPaymentStatus:
			a.PaymentStatus = str(v)
		case models.FieldPaymentDate:
			a.PaymentDate = str(v)
		case models.FieldCredits:
			a.Credits = num[int](v)
		case models.FieldPurchasedDays:
			a.PurchasedDays = num[int](v)
		case models.FieldAmountOwed:
			a.AmountOwed = num[float64](v)
		case models.FieldAmountPaid:
			a.AmountPaid = num[float64](v)
		case models.FieldOtp:
			a.OTP = str(v)
		case models.FieldOtpExpiry:
			a.OTPExpiry = num[int64](v)
		case models.FieldOtpAttempts:
			a.OTPAttempts = num[int](v)
		case models.FieldOtpLastRequest:
			a.OTPLastRequest = nil
			if s := str(v); s != "" {
				t, err := time.Parse(time.RFC3339, s)
				if err != nil {
					return err
				}
				a.OTPLastRequest = &t
			}
		default:
			return fmt.Errorf("unexpected field %s", k)
		}
	}
	return nil
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func num[T int | int64 | float64](v any) T {
	switch n := v.(type) {
	case int:
		return T(n)
	case int64:
		return T(n)
	case float64:
		return T(n)
	}
	return 0
}

type sentMessage struct {
	chatID, text string
}

type fakeNotifier struct {
	disabled bool
	sent     []sentMessage
}

func (n *fakeNotifier) Enabled() bool { return !n.disabled }

func (n *fakeNotifier) Notify(_ context.Context, chatID, text string) error {
	n.sent = append(n.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

// fixedClock is a settable clock shared by a service under test.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }
