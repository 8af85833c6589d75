package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/identity"
)

var errNoActor = errors.New("anonymous caller")

// Service is the read side of orders. Owners see every order; customers see
// only their own.
type Service struct {
	Repo *GormRepo
}

// List returns orders newest first. emailFilter only applies to owners.
func (s *Service) List(ctx context.Context, actor identity.Actor, emailFilter string) ([]Summary, error) {
	if !actor.Authenticated() {
		return nil, fmt.Errorf("%w: %w", ErrForbidden, errNoActor)
	}
	if identity.CanManageInventory(actor) {
		return s.Repo.List(ctx, ListFilter{EmailContains: emailFilter})
	}
	uid := actor.UserID
	return s.Repo.List(ctx, ListFilter{UserID: &uid})
}

func (s *Service) Details(ctx context.Context, actor identity.Actor, id uint) (*Details, error) {
	if !actor.Authenticated() {
		return nil, fmt.Errorf("%w: %w", ErrForbidden, errNoActor)
	}
	d, err := s.Repo.Details(ctx, id)
	if err != nil {
		return nil, err
	}
	if !identity.CanManageInventory(actor) && d.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: order %d belongs to another customer", ErrForbidden, id)
	}
	return d, nil
}
