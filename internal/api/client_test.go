package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/workbay/garagedesk/internal/nav"
	"github.com/workbay/garagedesk/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// recorded captures what the fake API saw.
type recorded struct {
	mu      sync.Mutex
	auth    []string
	ctype   []string
	reqIDs  []string
	paths   []string
	bodies  []string
	methods []string
}

func (r *recorded) add(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auth = append(r.auth, c.GetHeader("Authorization"))
	r.ctype = append(r.ctype, c.GetHeader("Content-Type"))
	r.reqIDs = append(r.reqIDs, c.GetHeader("X-Request-ID"))
	r.paths = append(r.paths, c.Request.URL.Path)
	r.bodies = append(r.bodies, string(body))
	r.methods = append(r.methods, c.Request.Method)
}

func newFakeAPI(t *testing.T, rec *recorded) *httptest.Server {
	t.Helper()
	r := gin.New()
	r.Use(func(c *gin.Context) { rec.add(c); c.Next() })

	r.POST("/api/garage/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"token": "tok-org", "garage": gin.H{"_id": "g-1", "name": "Torque Bay", "email": "desk@torque.in"}})
	})
	r.POST("/api/garage/user/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"token": "tok-user", "user": gin.H{"_id": "u-1", "name": "Ravi"}})
	})
	r.POST("/api/garage/logout/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "logged out " + c.Param("id")})
	})
	r.POST("/api/verify/send-otp", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "OTP sent"})
	})
	r.GET("/api/garage/jobCards/:id", func(c *gin.Context) {
		switch c.Param("id") {
		case "expired":
			c.JSON(http.StatusUnauthorized, gin.H{"message": "jwt expired"})
		case "forbidden":
			c.JSON(http.StatusForbidden, gin.H{"message": "not your garage"})
		default:
			c.JSON(http.StatusOK, gin.H{"_id": c.Param("id"), "customerName": "Asha"})
		}
	})
	r.PUT("/api/garage/jobCards/:id", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Validation failed",
			"errors":  []gin.H{{"path": "carNumber", "msg": "Invalid car number"}, {"field": "email", "message": "Bad email"}},
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string, start nav.Route) (*Client, *session.Manager, *nav.History) {
	t.Helper()
	sessions := session.NewManager(session.NewMemoryStore())
	hist := nav.NewHistory(start, nil)
	c, err := New(Options{BaseURL: baseURL, Sessions: sessions, Navigator: hist})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, sessions, hist
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{}); err == nil || !strings.Contains(err.Error(), "base URL is required") {
		t.Errorf("err = %v, want base URL is required", err)
	}
	if _, err := New(Options{BaseURL: "http://x"}); err == nil || !strings.Contains(err.Error(), "session manager is required") {
		t.Errorf("err = %v, want session manager is required", err)
	}
}

func TestClient_AttachesBearerToken(t *testing.T) {
	rec := &recorded{}
	srv := newFakeAPI(t, rec)
	c, sessions, _ := newTestClient(t, srv.URL, nav.JobCardNew())

	if err := c.GetJobCard(context.Background(), "jc-1", nil); err != nil {
		t.Fatalf("GetJobCard: %v", err)
	}
	_ = sessions.Set(session.Session{Token: "abc", AccountID: "g-1"})
	if err := c.GetJobCard(context.Background(), "jc-1", nil); err != nil {
		t.Fatalf("GetJobCard: %v", err)
	}

	if rec.auth[0] != "" {
		t.Errorf("first request Authorization = %q, want none", rec.auth[0])
	}
	if rec.auth[1] != "Bearer abc" {
		t.Errorf("second request Authorization = %q, want Bearer abc", rec.auth[1])
	}
	for i, id := range rec.reqIDs {
		if id == "" {
			t.Errorf("request %d missing X-Request-ID", i)
		}
	}
}

func TestClient_LoginKinds(t *testing.T) {
	rec := &recorded{}
	srv := newFakeAPI(t, rec)
	c, _, _ := newTestClient(t, srv.URL, nav.Login())

	org, err := c.Login(context.Background(), session.Organization, "a@b.com", "pw")
	if err != nil {
		t.Fatalf("Login org: %v", err)
	}
	if org.Token != "tok-org" || org.Account().ID != "g-1" {
		t.Errorf("org response = %+v", org)
	}
	user, err := c.Login(context.Background(), session.Individual, "a@b.com", "pw")
	if err != nil {
		t.Fatalf("Login user: %v", err)
	}
	if user.Account().Name != "Ravi" {
		t.Errorf("user response = %+v", user)
	}
	if rec.paths[0] != "/api/garage/login" || rec.paths[1] != "/api/garage/user/login" {
		t.Errorf("paths = %v", rec.paths)
	}
	if rec.ctype[0] != "application/json" {
		t.Errorf("Content-Type = %q", rec.ctype[0])
	}
	if rec.bodies[0] != `{"email":"a@b.com","password":"pw"}` {
		t.Errorf("body = %s", rec.bodies[0])
	}
}

func TestClient_LoginExpiredSubscription(t *testing.T) {
	r := gin.New()
	r.POST("/api/garage/login", func(c *gin.Context) {
		c.JSON(http.StatusForbidden, gin.H{"message": "Subscription expired", "subscriptionExpired": true, "garage": gin.H{"_id": "g-7", "name": "Old Garage"}})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()
	c, _, _ := newTestClient(t, srv.URL, nav.Login())

	resp, err := c.Login(context.Background(), session.Organization, "a@b.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !resp.SubscriptionExpired || resp.Garage.ID != "g-7" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClient_UnauthorizedClearsSessionAndRedirectsOnce(t *testing.T) {
	rec := &recorded{}
	srv := newFakeAPI(t, rec)
	c, sessions, hist := newTestClient(t, srv.URL, nav.JobCardNew())
	_ = sessions.Set(session.Session{Token: "stale", AccountID: "g-1", AccountKind: session.Organization})

	err := c.GetJobCard(context.Background(), "expired", nil)
	if !IsUnauthorized(err) {
		t.Fatalf("err = %v, want 401", err)
	}
	ok, _ := sessions.IsAuthenticated()
	if ok {
		t.Error("session should be cleared after 401")
	}
	if hist.Current().Path != nav.PathLogin {
		t.Errorf("Current = %q, want /login", hist.Current().Path)
	}

	_ = c.GetJobCard(context.Background(), "expired", nil)
	if n := hist.Visits(nav.PathLogin); n != 1 {
		t.Errorf("login visits = %d, want 1", n)
	}
}

func TestClient_UnauthorizedOnLoginScreenDoesNotNavigate(t *testing.T) {
	rec := &recorded{}
	srv := newFakeAPI(t, rec)
	c, _, hist := newTestClient(t, srv.URL, nav.Login())
	_ = c.GetJobCard(context.Background(), "expired", nil)
	if n := hist.Visits(nav.PathLogin); n != 0 {
		t.Errorf("login visits = %d, want 0", n)
	}
}

func TestClient_ForbiddenKeepsSession(t *testing.T) {
	rec := &recorded{}
	srv := newFakeAPI(t, rec)
	c, sessions, hist := newTestClient(t, srv.URL, nav.JobCardNew())
	_ = sessions.Set(session.Session{Token: "t", AccountID: "g-1"})

	err := c.GetJobCard(context.Background(), "forbidden", nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Fatalf("err = %v, want 403", err)
	}
	if apiErr.Message != "not your garage" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	ok, _ := sessions.IsAuthenticated()
	if !ok {
		t.Error("403 must not clear the session")
	}
	if hist.Visits(nav.PathLogin) != 0 {
		t.Error("403 must not redirect")
	}
}

func TestClient_NoConnection(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, _, _ := newTestClient(t, url, nav.Login())
	_, err := c.SendOTP(context.Background(), "user@x.com")
	if !errors.Is(err, ErrNoConnection) {
		t.Fatalf("err = %v, want ErrNoConnection", err)
	}
	if got := Message(err, "x"); !strings.Contains(got, "check your connection") {
		t.Errorf("Message = %q", got)
	}
}

func TestClient_CancelledContextIsNotNoConnection(t *testing.T) {
	rec := &recorded{}
	srv := newFakeAPI(t, rec)
	c, _, _ := newTestClient(t, srv.URL, nav.Login())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.SendOTP(ctx, "user@x.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNoConnection) {
		t.Error("cancelled request should not be reported as no connection")
	}
}

func TestClient_TimeoutIsNoConnection(t *testing.T) {
	r := gin.New()
	r.POST("/api/verify/send-otp", func(c *gin.Context) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-c.Request.Context().Done():
		}
		c.JSON(http.StatusOK, gin.H{"message": "OTP sent"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(Options{
		BaseURL:   srv.URL,
		Timeout:   50 * time.Millisecond,
		Sessions:  session.NewManager(session.NewMemoryStore()),
		Navigator: nav.NewHistory(nav.Login(), nil),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.SendOTP(context.Background(), "user@x.com")
	if !errors.Is(err, ErrNoConnection) {
		t.Fatalf("err = %v, want ErrNoConnection", err)
	}
	if got := Message(err, "Failed to send OTP"); got != "Unable to reach the server. Please check your connection." {
		t.Errorf("Message = %q", got)
	}
}

func TestClient_FieldErrors(t *testing.T) {
	rec := &recorded{}
	srv := newFakeAPI(t, rec)
	c, _, _ := newTestClient(t, srv.URL, nav.JobCardEdit("jc-1"))

	err := c.UpdateJobCard(context.Background(), "jc-1", strings.NewReader(`{}`), "application/json", nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("Status = %d", apiErr.Status)
	}
	if len(apiErr.Fields) != 2 {
		t.Fatalf("Fields = %+v", apiErr.Fields)
	}
	if apiErr.Fields[0] != (FieldError{Field: "carNumber", Message: "Invalid car number"}) {
		t.Errorf("Fields[0] = %+v", apiErr.Fields[0])
	}
	if apiErr.Fields[1] != (FieldError{Field: "email", Message: "Bad email"}) {
		t.Errorf("Fields[1] = %+v", apiErr.Fields[1])
	}
}

func TestClient_LogoutPath(t *testing.T) {
	rec := &recorded{}
	srv := newFakeAPI(t, rec)
	c, _, _ := newTestClient(t, srv.URL, nav.Login())
	if err := c.Logout(context.Background(), "g-1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if rec.paths[0] != "/api/garage/logout/g-1" || rec.methods[0] != http.MethodPost {
		t.Errorf("got %s %s", rec.methods[0], rec.paths[0])
	}
	if rec.bodies[0] != "" {
		t.Errorf("body = %q, want empty", rec.bodies[0])
	}
}

func TestNewError_Shapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantMsg  string
		wantFlds int
	}{
		{"message only", `{"message":"Login failed: bad password"}`, "Login failed: bad password", 0},
		{"error key", `{"error":"boom"}`, "boom", 0},
		{"map errors", `{"message":"x","errors":{"email":"bad"}}`, "x", 1},
		{"not json", `<html>502</html>`, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newError(400, []byte(tt.body))
			if e.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", e.Message, tt.wantMsg)
			}
			if len(e.Fields) != tt.wantFlds {
				t.Errorf("Fields = %+v", e.Fields)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	if got := (&Error{Status: 500}).Error(); got != "api: 500 Internal Server Error" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&Error{Status: 400, Message: "nope"}).Error(); got != "api: 400: nope" {
		t.Errorf("Error() = %q", got)
	}
}

func TestMessage_Fallback(t *testing.T) {
	if got := Message(errors.New("other"), "Login failed"); got != "Login failed" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(&Error{Status: 401, Message: "Invalid credentials"}, "Login failed"); got != "Invalid credentials" {
		t.Errorf("Message = %q", got)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestAuthTransport_DefaultsContentType(t *testing.T) {
	var seen http.Header
	tr := &authTransport{
		base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			seen = r.Header.Clone()
			return &http.Response{StatusCode: 200, Body: http.NoBody, Header: http.Header{}}, nil
		}),
		sessions: session.NewManager(session.NewMemoryStore()),
		logger:   discardLogger(),
	}

	req, _ := http.NewRequest(http.MethodPost, "http://x.test/a", strings.NewReader("{}"))
	if _, err := tr.RoundTrip(req); err != nil {
		t.Fatal(err)
	}
	if seen.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", seen.Get("Content-Type"))
	}
	if req.Header.Get("Content-Type") != "" {
		t.Error("RoundTrip must not mutate the caller's request")
	}

	req, _ = http.NewRequest(http.MethodPost, "http://x.test/a", strings.NewReader("a=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, _ = tr.RoundTrip(req)
	if seen.Get("Content-Type") != "application/x-www-form-urlencoded" {
		t.Errorf("explicit Content-Type overwritten: %q", seen.Get("Content-Type"))
	}

	req, _ = http.NewRequest(http.MethodGet, "http://x.test/a", nil)
	_, _ = tr.RoundTrip(req)
	if seen.Get("Content-Type") != "" {
		t.Errorf("bodiless request got Content-Type %q", seen.Get("Content-Type"))
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
