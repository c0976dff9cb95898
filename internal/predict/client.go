package predict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/suPer8Hu/medirec/internal/models"
)

const maxBodyBytes = 4 << 20

// Client calls the remote /predict endpoint and normalizes its reply.
// Every call hits the network; nothing is cached or retried.
type Client struct {
	BaseURL string
	Client  *http.Client

	newID func() string
	now   func() time.Time
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		newID:   NewID,
		now:     time.Now,
	}
}

// Predict sends the symptoms (comma-joined, in the given order) and returns a
// normalized record with an empty UserID. Callers must not pass an empty list.
// Any failure is an *Error matching ErrPredictionFailed.
func (c *Client) Predict(ctx context.Context, symptoms []string) (*models.Prediction, error) {
	if c.Client == nil {
		return nil, fail(errors.New("http client is nil"))
	}

	q := url.Values{}
	q.Set("symptoms", strings.Join(symptoms, ","))
	u := fmt.Sprintf("%s/predict?%s", c.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fail(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fail(&NetworkError{Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, fail(&StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fail(&NetworkError{Err: err})
	}

	data, err := parseEnvelope(body)
	if err != nil {
		return nil, fail(err)
	}

	newID, now := c.newID, c.now
	if newID == nil {
		newID = NewID
	}
	if now == nil {
		now = time.Now
	}
	return buildRecord(newID(), symptoms, data, now()), nil
}
