package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func guarded(secret string, production bool) (http.Handler, *int) {
	calls := new(int)
	h := RequireSecret(secret, production, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, calls
}

func TestRequireSecret(t *testing.T) {
	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"bearer", "Authorization", "Bearer s3cret", http.StatusNoContent},
		{"custom header", HeaderSecret, "s3cret", http.StatusNoContent},
		{"wrong bearer", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"basic scheme", "Authorization", "Basic czNjcmV0", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, calls := guarded("s3cret", true)
			req := httptest.NewRequest(http.MethodPost, "/internal/soldout/reset", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusUnauthorized && *calls != 0 {
				t.Fatalf("handler ran for a rejected request")
			}
		})
	}
}

func TestRequireSecret_Unconfigured(t *testing.T) {
	h, calls := guarded("", false)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusNoContent || *calls != 1 {
		t.Fatalf("development without secret: status %d, calls %d", rec.Code, *calls)
	}

	h, calls = guarded("", true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusUnauthorized || *calls != 0 {
		t.Fatalf("production without secret: status %d, calls %d", rec.Code, *calls)
	}
}
