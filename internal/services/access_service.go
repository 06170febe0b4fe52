package services

import (
	"context"
	"fmt"
	"log"

	"ninex/internal/authz"
	"ninex/internal/models"
	"ninex/internal/query"
	"ninex/internal/repositories"
)

const accessSweepGuard = 50

type AccessService interface {
	// AllowedCreators returns the CreatedBy values the actor may see; nil means everything.
	AllowedCreators(ctx context.Context, actor models.Actor) (query.Creators, error)
}

type accessService struct {
	repo repositories.AccountRepository
}

func NewAccessService(repo repositories.AccountRepository) AccessService {
	return &accessService{repo: repo}
}

func (s *accessService) AllowedCreators(ctx context.Context, actor models.Actor) (query.Creators, error) {
	if authz.IsGod(actor.Role) {
		return nil, nil
	}

	creators := query.Creators{actor.Username}
	subs := authz.SubordinateRoles(actor.Role)
	if len(subs) == 0 {
		return creators, nil
	}

	res, err := s.repo.Sweep(ctx, repositories.SweepQuery{
		Filter: query.Filter{Roles: subs, CreatedBy: actor.Username},
		Fields: []string{models.FieldUsername},
		Guard:  accessSweepGuard,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve subordinates of %s: %w", actor.Username, err)
	}
	if !res.Complete {
		log.Printf("[access][resolve] truncated actor=%s pages=%d", actor.Username, res.Pages)
	}

	for _, a := range res.Records {
		if a.Username != "" && !creators.Contains(a.Username) {
			creators = append(creators, a.Username)
		}
	}
	return creators, nil
}

// inScope reports whether the account is visible under the allow-list.
func inScope(creators query.Creators, a *models.Account) bool {
	return creators.Unrestricted() || creators.Contains(a.CreatedBy)
}
