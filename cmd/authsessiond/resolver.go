package main

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/store/sqlite"
)

// sqliteResolver maps an externally verified identity to a principal by
// email, creating an active principal without a password on first sight.
type sqliteResolver struct {
	store *sqlite.Store
}

func (r sqliteResolver) ResolveExternal(ctx context.Context, identity authsession.ExternalIdentity) (authsession.Principal, error) {
	p, err := r.store.GetByEmail(ctx, identity.Email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, authsession.ErrPrincipalNotFound) {
		return authsession.Principal{}, err
	}

	p = authsession.Principal{
		ID:     uuid.NewString(),
		Email:  identity.Email,
		Active: true,
		Role:   authsession.RoleOrdinary,
	}
	if err := r.store.CreatePrincipal(ctx, p); err != nil {
		if errors.Is(err, sqlite.ErrDuplicateEmail) {
			return r.store.GetByEmail(ctx, identity.Email)
		}
		return authsession.Principal{}, err
	}
	return r.store.GetByID(ctx, p.ID)
}
