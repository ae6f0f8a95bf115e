package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	testKey    = "test-key"
	testIssuer = "test-issuer"
)

func TestIssueParseRoundTrip(t *testing.T) {
	tok, exp, err := Issue("staff-7", RoleStaff, testIssuer, testKey, time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Fatal("token already expired")
	}
	claims, err := Parse(tok, testKey, testIssuer)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "staff-7" || claims.Role != RoleStaff {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseRejects(t *testing.T) {
	good, _, _ := Issue("s", RoleStaff, testIssuer, testKey, time.Hour, time.Now())
	expired, _, _ := Issue("s", RoleStaff, testIssuer, testKey, time.Minute, time.Now().Add(-time.Hour))
	cases := map[string]struct{ tok, key, issuer string }{
		"wrong key":    {good, "other", testIssuer},
		"wrong issuer": {good, testKey, "someone-else"},
		"expired":      {expired, testKey, testIssuer},
		"garbage":      {"not.a.token", testKey, testIssuer},
	}
	for name, tc := range cases {
		if _, err := Parse(tc.tok, tc.key, tc.issuer); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	if _, _, err := Issue("", RoleStaff, testIssuer, testKey, time.Hour, time.Now()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRequireMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/any", Require(testKey, testIssuer), func(c *gin.Context) { c.String(http.StatusOK, Subject(c)) })
	r.GET("/admin", Require(testKey, testIssuer, RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	staff, _, _ := Issue("staff-1", RoleStaff, testIssuer, testKey, time.Hour, time.Now())
	cases := []struct {
		path, header string
		want         int
		body         string
	}{
		{"/any", "", http.StatusUnauthorized, ""},
		{"/any", "Bearer nope", http.StatusUnauthorized, ""},
		{"/any", "Bearer " + staff, http.StatusOK, "staff-1"},
		{"/admin", "Bearer " + staff, http.StatusForbidden, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s %q: status %d, want %d", tc.path, tc.header, w.Code, tc.want)
		}
		if tc.body != "" && w.Body.String() != tc.body {
			t.Errorf("%s: body %q, want %q", tc.path, w.Body.String(), tc.body)
		}
	}
}
