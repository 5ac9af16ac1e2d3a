package service

import (
	"context"

	"exchange_api/internal/domain"
)

// ProfileResolver picks the user that stands in for the current user.
// This is a single-tenant placeholder until requests carry an identity.
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, st UserStore) (*domain.User, error)
}

// LowestIDResolver serves the user with the smallest id
type LowestIDResolver struct{}

func (LowestIDResolver) ResolveProfile(ctx context.Context, st UserStore) (*domain.User, error) {
	return st.FirstUser(ctx)
}

// FixedIDResolver serves a configured user id
type FixedIDResolver struct {
	ID uint
}

func (r FixedIDResolver) ResolveProfile(ctx context.Context, st UserStore) (*domain.User, error) {
	return st.GetUser(ctx, r.ID)
}

// NewProfileResolver returns FixedIDResolver for a non-zero id and LowestIDResolver otherwise
func NewProfileResolver(id uint) ProfileResolver {
	if id == 0 {
		return LowestIDResolver{}
	}
	return FixedIDResolver{ID: id}
}
