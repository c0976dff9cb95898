package supabase

import (
	"context"
	"net/http"
	"net/url"

	"github.com/suPer8Hu/medirec/internal/backend"
	"github.com/suPer8Hu/medirec/internal/models"
)

const (
	profilesTable = "profiles"
	historyTable  = "prediction_history"

	// objectAccept makes PostgREST answer with one object instead of an array,
	// and with 406/PGRST116 when no row matched.
	objectAccept = "application/vnd.pgrst.object+json"
	noRowsCode   = "PGRST116"
)

// bearer is the signed-in user's access token, or "" for the anon key. Row
// level security on the tables keys off it.
func (c *Client) bearer(ctx context.Context) string {
	s, err := c.CurrentSession(ctx)
	if err != nil || s == nil {
		return ""
	}
	return s.AccessToken
}

func (c *Client) rowRequest(ctx context.Context, method, table string, q url.Values, payload any) (*http.Request, error) {
	return c.newJSONRequest(ctx, method, "/rest/v1/"+table, q, payload, c.bearer(ctx))
}

func (c *Client) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	q := url.Values{"select": {"*"}, "id": {"eq." + id}}
	req, err := c.rowRequest(ctx, http.MethodGet, profilesTable, q, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", objectAccept)

	var p models.Profile
	if err := c.send(req, "get profile", &p); err != nil {
		if codeOf(err) == noRowsCode {
			return nil, backend.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (c *Client) InsertProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	req, err := c.rowRequest(ctx, http.MethodPost, profilesTable, url.Values{"select": {"*"}}, []*models.Profile{p})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", objectAccept)
	req.Header.Set("Prefer", "return=representation")

	var out models.Profile
	if err := c.send(req, "insert profile", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpsertProfile(ctx context.Context, id, username string) error {
	body := map[string]string{"id": id, "username": username}
	req, err := c.rowRequest(ctx, http.MethodPost, profilesTable, nil, body)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	return c.send(req, "upsert profile", nil)
}

func (c *Client) UpdateAvatarURL(ctx context.Context, id, avatarURL string) error {
	q := url.Values{"id": {"eq." + id}}
	req, err := c.rowRequest(ctx, http.MethodPatch, profilesTable, q, map[string]string{"avatar_url": avatarURL})
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	return c.send(req, "update avatar", nil)
}

func (c *Client) InsertPrediction(ctx context.Context, p *models.Prediction) error {
	req, err := c.rowRequest(ctx, http.MethodPost, historyTable, nil, []*models.Prediction{p})
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	return c.send(req, "insert prediction", nil)
}

// ListPredictions returns the user's history, newest first.
func (c *Client) ListPredictions(ctx context.Context, userID string) ([]models.Prediction, error) {
	q := url.Values{
		"select":  {"*"},
		"user_id": {"eq." + userID},
		"order":   {"created_at.desc"},
	}
	req, err := c.rowRequest(ctx, http.MethodGet, historyTable, q, nil)
	if err != nil {
		return nil, err
	}
	out := []models.Prediction{}
	if err := c.send(req, "list predictions", &out); err != nil {
		return nil, err
	}
	return out, nil
}
