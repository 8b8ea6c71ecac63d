package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGoogleClient(srvURL string) *GoogleClient {
	c := NewGoogleClient("key", "engine", "en")
	c.baseURL = srvURL
	return c
}

func TestGoogleMapsItemFields(t *testing.T) {
	var gotKey, gotCx, gotQ, gotHl string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotKey, gotCx, gotQ, gotHl = q.Get("key"), q.Get("cx"), q.Get("q"), q.Get("hl")
		w.Write([]byte(`{"items":[{"title":" NVDA Q2 ","link":" https://example.com/q2 ","snippet":" beats estimates "}]}`))
	}))
	defer srv.Close()

	outcome := newTestGoogleClient(srv.URL).Search(context.Background(), "NVDA earnings")
	if outcome.Failed() {
		t.Fatalf("unexpected error: %q", outcome.Err)
	}
	if gotKey != "key" || gotCx != "engine" || gotQ != "NVDA earnings" || gotHl != "en" {
		t.Errorf("request params = (%q, %q, %q, %q)", gotKey, gotCx, gotQ, gotHl)
	}

	r := outcome.Results[0]
	// title/link/snippet 重命名并裁剪为 title/url/content
	if r.Title != "NVDA Q2" || r.URL != "https://example.com/q2" || r.Content != "beats estimates" {
		t.Errorf("mapped result = %+v", r)
	}
}

func TestGoogleServerErrorFieldIsRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	outcome := newTestGoogleClient(srv.URL).Search(context.Background(), "NVDA news")
	if outcome.Err != ErrRequestFailed {
		t.Errorf("Err = %q, want %q", outcome.Err, ErrRequestFailed)
	}
}

func TestGoogleMalformedPayloadIsInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`))
	}))
	defer srv.Close()

	outcome := newTestGoogleClient(srv.URL).Search(context.Background(), "NVDA news")
	if outcome.Err != ErrInvalidResponse {
		t.Errorf("Err = %q, want %q", outcome.Err, ErrInvalidResponse)
	}
}

func TestGoogleMissingItemsIsZeroResultSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"searchInformation":{"totalResults":"0"}}`))
	}))
	defer srv.Close()

	outcome := newTestGoogleClient(srv.URL).Search(context.Background(), "XYZQ risks")
	if outcome.Failed() {
		t.Errorf("zero-result success should not be an error, got %q", outcome.Err)
	}
	if len(outcome.Results) != 0 {
		t.Errorf("Results = %v, want empty", outcome.Results)
	}
}
