package supabase

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Bucket is one Supabase Storage bucket.
type Bucket struct {
	c    *Client
	name string
}

func (c *Client) Bucket(name string) *Bucket {
	return &Bucket{c: c, name: name}
}

// Upload stores r at path. Existing objects are not overwritten.
func (b *Bucket) Upload(ctx context.Context, path string, r io.Reader, contentType string) error {
	req, err := b.c.newRequest(ctx, http.MethodPost,
		"/storage/v1/object/"+b.name+"/"+escapePath(path), nil, r, b.c.bearer(ctx))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")
	req.Header.Set("x-upsert", "false")
	return b.c.send(req, "upload object", nil)
}

func (b *Bucket) PublicURL(path string) string {
	return b.c.baseURL + "/storage/v1/object/public/" + b.name + "/" + escapePath(path)
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
