package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/workbay/garagedesk/internal/api"
	"github.com/workbay/garagedesk/internal/nav"
	"github.com/workbay/garagedesk/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int
	last  map[string]map[string]string
}

func (f *fakeAPI) hit(c *gin.Context) map[string]string {
	body := map[string]string{}
	_ = json.NewDecoder(c.Request.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[c.FullPath()]++
	f.last[c.FullPath()] = body
	return body
}

func (f *fakeAPI) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeAPI) lastBody(path string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last[path]
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.calls {
		n += v
	}
	return n
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{calls: map[string]int{}, last: map[string]map[string]string{}}
	r := gin.New()

	r.POST("/api/garage/login", func(c *gin.Context) {
		body := f.hit(c)
		switch body["email"] {
		case "expired@torque.in":
			c.JSON(http.StatusForbidden, gin.H{
				"message":             "Subscription expired",
				"subscriptionExpired": true,
				"garage":              gin.H{"_id": "g-9", "name": "Torque Bay", "email": "expired@torque.in"},
			})
		case "wrong@torque.in":
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		case "silent@torque.in":
			c.Status(http.StatusInternalServerError)
		default:
			c.JSON(http.StatusOK, gin.H{"token": "tok-org", "garage": gin.H{"_id": "g-1", "name": "Torque Bay", "email": body["email"]}})
		}
	})
	r.POST("/api/garage/user/login", func(c *gin.Context) {
		f.hit(c)
		c.JSON(http.StatusOK, gin.H{"token": "tok-user", "user": gin.H{"_id": "u-1", "name": "Ravi"}})
	})
	r.POST("/api/garage/logout/:id", func(c *gin.Context) {
		f.hit(c)
		if c.Param("id") == "down" {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "boom"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	})
	r.POST("/api/verify/send-otp", func(c *gin.Context) {
		body := f.hit(c)
		if body["email"] == "nobody@torque.in" {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "OTP sent"})
	})
	r.POST("/api/verify/verify-otp", func(c *gin.Context) {
		body := f.hit(c)
		if body["otp"] != "123456" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid OTP"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "OTP verified"})
	})
	r.POST("/api/verify/reset-password", func(c *gin.Context) {
		f.hit(c)
		c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

type harness struct {
	api      *fakeAPI
	client   *api.Client
	sessions *session.Manager
	hist     *nav.History
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f, srv := newFakeAPI(t)
	sessions := session.NewManager(session.NewMemoryStore())
	hist := nav.NewHistory(nav.Login(), nil)
	c, err := api.New(api.Options{BaseURL: srv.URL, Sessions: sessions, Navigator: hist, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return &harness{api: f, client: c, sessions: sessions, hist: hist}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
