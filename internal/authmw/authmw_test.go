package authmw

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body["detail"]
}

func TestBearerToken_Accepted(t *testing.T) {
	t.Parallel()

	h := BearerToken("secret-token-123")(okHandler)

	for _, value := range []string{"Bearer secret-token-123", "secret-token-123", "Token secret-token-123"} {
		t.Run(value, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("Authorization", value)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
}

func TestBearerToken_MissingHeader(t *testing.T) {
	t.Parallel()

	h := BearerToken("secret")(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if got := detail(t, rec); got != MissingToken {
		t.Errorf("detail = %q", got)
	}
}

func TestBearerToken_Rejected(t *testing.T) {
	t.Parallel()

	h := BearerToken("secret")(okHandler)

	tests := []struct {
		name  string
		value string
	}{
		{"wrong token", "Bearer wrong"},
		{"bare wrong", "wrong"},
		{"prefix only", "Bearer "},
		{"token with suffix", "Bearer secretX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("Authorization", tt.value)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			if got := detail(t, rec); got != InvalidToken {
				t.Errorf("detail = %q, want %q", got, InvalidToken)
			}
		})
	}
}

func TestEqual_EmptyExpected(t *testing.T) {
	t.Parallel()

	if Equal("", "") {
		t.Error("empty expected token must never match")
	}
}

func TestTokenFromHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Bearer abc", "abc"},
		{"abc", "abc"},
		{"Bearer a b", "a b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TokenFromHeader(tt.in); got != tt.want {
			t.Errorf("TokenFromHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func FuzzBearerToken(f *testing.F) {
	f.Add("Bearer secret")
	f.Add("")
	f.Add("Bearer")
	f.Add("\x00\xff")

	h := BearerToken("secret")(okHandler)
	f.Fuzz(func(t *testing.T, value string) {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header["Authorization"] = []string{value}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		want := http.StatusUnauthorized
		if TokenFromHeader(value) == "secret" {
			want = http.StatusOK
		}
		if rec.Code != want {
			t.Errorf("status = %d, want %d for %q", rec.Code, want, value)
		}
	})
}
