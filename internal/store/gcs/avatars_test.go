package gcs

import "testing"

func TestPublicURL(t *testing.T) {
	s := newStore(nil, "medirec-avatars", "")
	got := s.PublicURL("u1-01HZY.png")
	want := "https://storage.googleapis.com/medirec-avatars/u1-01HZY.png"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	cdn := newStore(nil, "medirec-avatars", "https://cdn.example.com/")
	if got := cdn.PublicURL("/a b.jpg"); got != "https://cdn.example.com/medirec-avatars/a%20b.jpg" {
		t.Fatalf("unexpected cdn url %q", got)
	}
}

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"a.PNG":  "image/png",
		"a.jpeg": "image/jpeg",
		"a.webp": "image/webp",
		"a":      "application/octet-stream",
	}
	for key, want := range cases {
		if got := contentTypeForKey(key); got != want {
			t.Fatalf("%s: got %q, want %q", key, got, want)
		}
	}
}
