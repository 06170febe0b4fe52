package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"ninex/internal/airtable"
	"ninex/internal/models"
	"ninex/internal/query"
)

var ErrNotFound = errors.New("record not found")

// RecordStore is the subset of the record-store client the repositories need.
type RecordStore interface {
	List(ctx context.Context, p airtable.ListParams) (*airtable.ListResult, error)
	Get(ctx context.Context, id string) (*airtable.Record, error)
	Create(ctx context.Context, fields airtable.Fields) (*airtable.Record, error)
	Update(ctx context.Context, patches []airtable.RecordPatch) error
	Delete(ctx context.Context, id string) error
}

type PageQuery struct {
	Filter   query.Filter
	Sort     []airtable.SortField
	PageSize int
	Cursor   string
	Fields   []string
}

// Page is one list response. Next == "" means there are no further pages.
type Page struct {
	Records []*models.Account
	Next    string
}

type SweepQuery struct {
	Filter query.Filter
	Sort   []airtable.SortField
	Fields []string
	// сколько страниц сверх первой разрешено пройти
	Guard int
}

// SweepResult.Complete is false when the guard stopped the sweep before the cursor ran out.
type SweepResult struct {
	Records  []*models.Account
	Pages    int
	Complete bool
}

type AccountRepository interface {
	FetchPage(ctx context.Context, q PageQuery) (*Page, error)
	Sweep(ctx context.Context, q SweepQuery) (*SweepResult, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	Get(ctx context.Context, id string) (*models.Account, error)
	First(ctx context.Context) (*models.Account, error)
	Create(ctx context.Context, a *models.Account) error
	Update(ctx context.Context, id string, fields airtable.Fields) error
	UpdateBatch(ctx context.Context, patches []airtable.RecordPatch) error
	Delete(ctx context.Context, id string) error
}

type accountRepository struct {
	store RecordStore
}

func NewAccountRepository(store RecordStore) AccountRepository {
	return &accountRepository{store: store}
}

func (r *accountRepository) FetchPage(ctx context.Context, q PageQuery) (*Page, error) {
	size := q.PageSize
	if size < 1 {
		size = 1
	}
	if size > airtable.MaxPageSize {
		size = airtable.MaxPageSize
	}
	res, err := r.store.List(ctx, airtable.ListParams{
		Filter:   q.Filter.Formula(),
		Sort:     q.Sort,
		PageSize: size,
		Offset:   q.Cursor,
		Fields:   q.Fields,
	})
	if err != nil {
		return nil, err
	}
	accounts, err := decodeAccounts(res.Records)
	if err != nil {
		return nil, err
	}
	return &Page{Records: accounts, Next: res.Offset}, nil
}

func (r *accountRepository) Sweep(ctx context.Context, q SweepQuery) (*SweepResult, error) {
	out := &SweepResult{}
	cursor := ""
	for {
		page, err := r.FetchPage(ctx, PageQuery{
			Filter:   q.Filter,
			Sort:     q.Sort,
			PageSize: airtable.MaxPageSize,
			Cursor:   cursor,
			Fields:   q.Fields,
		})
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
			log.Printf("[accounts][sweep] truncated pages=%d records=%d filter=%q", out.Pages, len(out.Records), q.Filter.Formula())
			return out, nil
		}
		cursor = page.Next
	}
}

func (r *accountRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	res, err := r.store.List(ctx, airtable.ListParams{
		Filter:   query.Filter{Username: username}.Formula(),
		PageSize: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, ErrNotFound
	}
	return decodeAccount(res.Records[0])
}

func (r *accountRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		if airtable.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeAccount(*rec)
}

// First returns whatever record an unfiltered, unsorted page of one yields.
func (r *accountRepository) First(ctx context.Context) (*models.Account, error) {
	page, err := r.FetchPage(ctx, PageQuery{PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Records) == 0 {
		return nil, ErrNotFound
	}
	return page.Records[0], nil
}

func (r *accountRepository) Create(ctx context.Context, a *models.Account) error {
	rec, err := r.store.Create(ctx, accountFields(a))
	if err != nil {
		return err
	}
	a.ID = rec.ID
	if t, err := time.Parse(time.RFC3339, rec.CreatedTime); err == nil {
		a.CreatedTime = t
	}
	return nil
}

func (r *accountRepository) Update(ctx context.Context, id string, fields airtable.Fields) error {
	err := r.store.Update(ctx, []airtable.RecordPatch{{ID: id, Fields: fields}})
	if airtable.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (r *accountRepository) UpdateBatch(ctx context.Context, patches []airtable.RecordPatch) error {
	return r.store.Update(ctx, patches)
}

func (r *accountRepository) Delete(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, id)
	if airtable.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

// ---- decoding

// flexString принимает и строку, и число (TelegramID, Expiry бывают обоими)
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexNumber принимает число или числовую строку; мусор даёт 0
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexNumber(v)
	return nil
}

type accountRecord struct {
	Username       string     `json:"Username"`
	Password       flexString `json:"Password"`
	AccountType    string     `json:"AccountType"`
	Credits        flexNumber `json:"Credits"`
	AmountOwed     flexNumber `json:"AmountOwed"`
	AmountPaid     flexNumber `json:"AmountPaid"`
	PaymentStatus  string     `json:"PaymentStatus"`
	PaymentDate    string     `json:"PaymentDate"`
	PurchasedDays  flexNumber `json:"PurchasedDays"`
	Expiry         flexString `json:"Expiry"`
	Device         string     `json:"Device"`
	HWID           string     `json:"HWID"`
	HWID2          string     `json:"HWID2"`
	CreatedBy      string     `json:"CreatedBy"`
	TelegramID     flexString `json:"TelegramID"`
	Otp            flexString `json:"Otp"`
	OtpExpiry      flexNumber `json:"OtpExpiry"`
	OtpAttempts    flexNumber `json:"OtpAttempts"`
	OtpLastRequest string     `json:"OtpLastRequest"`
	Version        string     `json:"Version"`
}

func decodeAccount(rec airtable.Record) (*models.Account, error) {
	var f accountRecord
	if err := rec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", rec.ID, err)
	}
	a := &models.Account{
		ID:            rec.ID,
		Username:      f.Username,
		Password:      string(f.Password),
		AccountType:   models.Role(f.AccountType),
		Credits:       int(f.Credits),
		AmountOwed:    float64(f.AmountOwed),
		AmountPaid:    float64(f.AmountPaid),
		PaymentStatus: f.PaymentStatus,
		PaymentDate:   f.PaymentDate,
		PurchasedDays: int(f.PurchasedDays),
		Expiry:        string(f.Expiry),
		Device:        f.Device,
		HWID:          f.HWID,
		HWID2:         f.HWID2,
		CreatedBy:     f.CreatedBy,
		TelegramID:    string(f.TelegramID),
		OTP:           string(f.Otp),
		OTPExpiry:     int64(f.OtpExpiry),
		OTPAttempts:   int(f.OtpAttempts),
		Version:       f.Version,
	}
	if t, err := time.Parse(time.RFC3339, rec.CreatedTime); err == nil {
		a.CreatedTime = t
	}
	if f.OtpLastRequest != "" {
		if t, err := time.Parse(time.RFC3339, f.OtpLastRequest); err == nil {
			a.OTPLastRequest = &t
		}
	}
	return a, nil
}

func decodeAccounts(recs []airtable.Record) ([]*models.Account, error) {
	out := make([]*models.Account, 0, len(recs))
	for _, rec := range recs {
		a, err := decodeAccount(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func accountFields(a *models.Account) airtable.Fields {
	f := airtable.Fields{
		models.FieldUsername:    a.Username,
		models.FieldPassword:    a.Password,
		models.FieldAccountType: string(a.AccountType),
		models.FieldCreatedBy:   a.CreatedBy,
		models.FieldExpiry:      a.Expiry,
		models.FieldDevice:      a.Device,
		models.FieldHWID:        a.HWID,
		models.FieldVersion:     a.Version,
	}
	if a.TelegramID != "" {
		f[models.FieldTelegramID] = a.TelegramID
	}
	switch a.AccountType {
	case models.RoleSeller, models.RoleReseller:
		f[models.FieldCredits] = a.Credits
	case models.RoleAdmin:
		f[models.FieldCredits] = a.Credits
		f[models.FieldAmountOwed] = a.AmountOwed
		f[models.FieldAmountPaid] = a.AmountPaid
		f[models.FieldPurchasedDays] = a.PurchasedDays
	}
	return f
}
