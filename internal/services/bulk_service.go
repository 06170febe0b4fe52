package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"ninex/internal/airtable"
	"ninex/internal/authz"
	"ninex/internal/models"
	"ninex/internal/query"
	"ninex/internal/repositories"
)

const (
	bulkSweepGuard    = 200
	approveSweepGuard = 100
)

// BulkUpdate describes one sweep-then-patch operation. Patch returns false to skip a record.
type BulkUpdate struct {
	Filter query.Filter
	Guard  int
	Fields []string
	Patch  func(a *models.Account) (airtable.Fields, bool)
}

// BatchResult enumerates what a bulk update wrote. Failed also lists records never attempted
// because an earlier chunk failed.
type BatchResult struct {
	OperationID string   `json:"operation_id"`
	Matched     int      `json:"matched"`
	Skipped     int      `json:"skipped"`
	Succeeded   []string `json:"succeeded"`
	Failed      []string `json:"failed"`
	Truncated   bool     `json:"truncated"`
}

type BulkService interface {
	Apply(ctx context.Context, u BulkUpdate) (*BatchResult, error)
	ResetAllHWID(ctx context.Context, actor models.Actor) (*BatchResult, error)
	ExtendAllUsers(ctx context.Context, actor models.Actor, days float64) (*BatchResult, error)
	BroadcastVersion(ctx context.Context, actor models.Actor, version string) (*BatchResult, error)
	ApproveAllUnpaid(ctx context.Context, actor models.Actor) (*BatchResult, error)
}

type bulkService struct {
	repo   repositories.AccountRepository
	access AccessService
	now    func() time.Time
}

func NewBulkService(repo repositories.AccountRepository, access AccessService) BulkService {
	return &bulkService{repo: repo, access: access, now: time.Now}
}

func (s *bulkService) Apply(ctx context.Context, u BulkUpdate) (*BatchResult, error) {
	res := &BatchResult{
		OperationID: uuid.NewString(),
		Succeeded:   []string{},
		Failed:      []string{},
	}

	swept, err := s.repo.Sweep(ctx, repositories.SweepQuery{Filter: u.Filter, Fields: u.Fields, Guard: u.Guard})
	if err != nil {
		return nil, err
	}
	res.Matched = len(swept.Records)
	res.Truncated = !swept.Complete

	patches := make([]airtable.RecordPatch, 0, len(swept.Records))
	for _, a := range swept.Records {
		fields, ok := u.Patch(a)
		if !ok {
			res.Skipped++
			continue
		}
		patches = append(patches, airtable.RecordPatch{ID: a.ID, Fields: fields})
	}

	for start := 0; start < len(patches); start += airtable.MaxBatchSize {
		end := start + airtable.MaxBatchSize
		if end > len(patches) {
			end = len(patches)
		}
		chunk := patches[start:end]
		if err := s.repo.UpdateBatch(ctx, chunk); err != nil {
			for _, p := range patches[start:] {
				res.Failed = append(res.Failed, p.ID)
			}
			log.Printf("[bulk][apply] op=%s stopped at=%d/%d err=%v", res.OperationID, start, len(patches), err)
			return res, fmt.Errorf("%w: %w", ErrPartialBatch, err)
		}
		for _, p := range chunk {
			res.Succeeded = append(res.Succeeded, p.ID)
		}
	}

	log.Printf("[bulk][apply] op=%s matched=%d written=%d skipped=%d truncated=%v",
		res.OperationID, res.Matched, len(res.Succeeded), res.Skipped, res.Truncated)
	return res, nil
}

func (s *bulkService) scope(ctx context.Context, actor models.Actor) (query.Creators, error) {
	if !authz.IsPrivileged(actor.Role) {
		return nil, ErrForbidden
	}
	return s.access.AllowedCreators(ctx, actor)
}

func (s *bulkService) ResetAllHWID(ctx context.Context, actor models.Actor) (*BatchResult, error) {
	creators, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, BulkUpdate{
		Filter: query.Filter{Creators: creators},
		Guard:  bulkSweepGuard,
		Fields: []string{models.FieldUsername, models.FieldHWID, models.FieldHWID2},
		Patch: func(*models.Account) (airtable.Fields, bool) {
			return airtable.Fields{models.FieldHWID: "", models.FieldHWID2: ""}, true
		},
	})
}

func (s *bulkService) ExtendAllUsers(ctx context.Context, actor models.Actor, days float64) (*BatchResult, error) {
	if days <= 0 || math.IsNaN(days) || math.IsInf(days, 0) {
		return nil, fmt.Errorf("%w: days must be a positive number", ErrValidation)
	}
	creators, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}

	delta := int64(math.Round(days * 86400))
	now := s.now().Unix()
	return s.Apply(ctx, BulkUpdate{
		Filter: query.Filter{Creators: creators, Roles: []models.Role{models.RoleUser}},
		Guard:  bulkSweepGuard,
		Fields: []string{models.FieldUsername, models.FieldExpiry},
		Patch: func(a *models.Account) (airtable.Fields, bool) {
			exp, ok := a.ExpiryUnix()
			if !ok {
				return nil, false
			}
			return airtable.Fields{models.FieldExpiry: fmt.Sprint(ExtendExpiry(exp, now, delta))}, true
		},
	})
}

// ExtendExpiry adds delta to the later of the current expiry and now.
func ExtendExpiry(current, now, delta int64) int64 {
	base := current
	if base < now {
		base = now
	}
	return base + delta
}

func (s *bulkService) BroadcastVersion(ctx context.Context, actor models.Actor, version string) (*BatchResult, error) {
	if version != models.VersionOnline && version != models.VersionMaintenance {
		return nil, fmt.Errorf("%w: unknown version %q", ErrValidation, version)
	}
	creators, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, BulkUpdate{
		Filter: query.Filter{Creators: creators},
		Guard:  bulkSweepGuard,
		Fields: []string{models.FieldUsername, models.FieldVersion},
		Patch: func(*models.Account) (airtable.Fields, bool) {
			return airtable.Fields{models.FieldVersion: version}, true
		},
	})
}

func (s *bulkService) ApproveAllUnpaid(ctx context.Context, actor models.Actor) (*BatchResult, error) {
	if !authz.IsGod(actor.Role) {
		return nil, ErrForbidden
	}
	paidAt := s.now().UTC().Format(time.RFC3339)
	return s.Apply(ctx, BulkUpdate{
		Filter: query.Filter{Payment: query.PaymentUnpaid},
		Guard:  approveSweepGuard,
		Fields: []string{models.FieldUsername, models.FieldAmountOwed, models.FieldAmountPaid, models.FieldPaymentStatus},
		Patch: func(a *models.Account) (airtable.Fields, bool) {
			return airtable.Fields{
				models.FieldPaymentStatus: models.PaymentPaid,
				models.FieldPaymentDate:   paidAt,
				models.FieldAmountPaid:    a.AmountPaid + a.AmountOwed,
				models.FieldAmountOwed:    0,
			}, true
		},
	})
}
