package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/suPer8Hu/medirec/internal/backend"
	"github.com/suPer8Hu/medirec/internal/models"
)

// LoadOrCreateProfile returns the profile row for uid, inserting an empty one
// ({id, "", ""}) when none exists yet.
func LoadOrCreateProfile(ctx context.Context, store backend.ProfileStore, uid string) (*models.Profile, error) {
	p, err := store.GetProfile(ctx, uid)
	if err == nil {
		return checkOwner(p, uid)
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	created, err := store.InsertProfile(ctx, &models.Profile{ID: uid, Username: "", AvatarURL: ""})
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return checkOwner(created, uid)
}

func checkOwner(p *models.Profile, uid string) (*models.Profile, error) {
	if p == nil {
		return nil, fmt.Errorf("profile %s: empty row", uid)
	}
	if p.ID != uid {
		return nil, fmt.Errorf("profile %s: row belongs to %s", uid, p.ID)
	}
	return p, nil
}
