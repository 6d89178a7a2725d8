package httpapi

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"

	"audiora/internal/analytics"
	"audiora/internal/book"
	"audiora/internal/kvstore"
	"audiora/internal/logger"
	"audiora/internal/notify"
	"audiora/internal/progress"
	"audiora/internal/session"
	"audiora/internal/user"
	"audiora/pkg/models"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE kv_store (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		t.Fatalf("schema: %v", err)
	}

	log := logger.NewNop()
	store := kvstore.New(db, log)
	books := book.NewRepo(store, log)
	sessions := session.NewRecorder(store, books, log)
	hub := notify.NewHub(log)
	go hub.Run()

	api := &API{
		Users:         user.NewRepo(store, log),
		Books:         books,
		Sessions:      sessions,
		Progress:      progress.NewAggregator(books, sessions, log),
		Analytics:     analytics.NewService(store, log),
		Notifications: notify.NewRepo(store, log),
		Hub:           hub,
		JWTSecret:     []byte("test-secret"),
		TokenTTL:      time.Hour,
		Log:           log,
	}

	r := gin.New()
	api.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func signup(t *testing.T, r *gin.Engine, email string) (userID, token string) {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/auth/signup", "", gin.H{
		"email": email, "password": "hunter2", "name": "Tester",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode signup: %v", err)
	}
	return resp.User.ID, resp.Token
}

func TestSignupSigninFlow(t *testing.T) {
	r := newTestServer(t)
	signup(t, r, "a@example.com")

	w := doJSON(t, r, http.MethodPost, "/auth/signin", "", gin.H{
		"email": "a@example.com", "password": "hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("signin: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/auth/signin", "", gin.H{
		"email": "a@example.com", "password": "nope",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/auth/signup", "", gin.H{
		"email": "a@example.com", "password": "pw",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate signup: %d", w.Code)
	}
}

func TestAuthBoundaries(t *testing.T) {
	r := newTestServer(t)
	aliceID, aliceToken := signup(t, r, "alice@example.com")
	_, bobToken := signup(t, r, "bob@example.com")

	// no token at all
	w := doJSON(t, r, http.MethodGet, "/books/"+aliceID, "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: %d, want 401", w.Code)
	}

	// garbage token
	w = doJSON(t, r, http.MethodGet, "/books/"+aliceID, "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: %d, want 401", w.Code)
	}

	// valid token, someone else's resources
	w = doJSON(t, r, http.MethodGet, "/books/"+aliceID, bobToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("cross-user access: %d, want 403", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/books/"+aliceID, aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Errorf("own access: %d, want 200", w.Code)
	}
}

func TestBookLifecycle(t *testing.T) {
	r := newTestServer(t)
	userID, token := signup(t, r, "a@example.com")

	// duration as an "Xh Ym" string normalizes to seconds
	w := doJSON(t, r, http.MethodPost, "/books/"+userID, token, gin.H{
		"title": "Dune", "author": "Herbert", "genre": "Sci-Fi", "duration": "0h 30m",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create book: %d %s", w.Code, w.Body.String())
	}
	var b models.Book
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode book: %v", err)
	}
	if b.DurationSeconds != 1800 {
		t.Errorf("duration = %d, want 1800", b.DurationSeconds)
	}

	// out-of-range progress clamps
	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/books/%s/%s/progress", userID, b.ID), token, gin.H{"progress": 250})
	if w.Code != http.StatusOK {
		t.Fatalf("update progress: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Progress int `json:"progress"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Progress != 100 {
		t.Errorf("progress = %d, want 100", resp.Progress)
	}

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/books/%s/missing/progress", userID), token, gin.H{"progress": 10})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing book: %d, want 404", w.Code)
	}

	// GET twice without writes returns identical bodies
	w1 := doJSON(t, r, http.MethodGet, "/books/"+userID, token, nil)
	w2 := doJSON(t, r, http.MethodGet, "/books/"+userID, token, nil)
	if w1.Body.String() != w2.Body.String() {
		t.Error("book list not idempotent")
	}
}

func TestSessionFlowUpdatesProgress(t *testing.T) {
	r := newTestServer(t)
	userID, token := signup(t, r, "a@example.com")

	w := doJSON(t, r, http.MethodPost, "/books/"+userID, token, gin.H{
		"title": "Dune", "duration": 1800,
	})
	var b models.Book
	json.Unmarshal(w.Body.Bytes(), &b)

	w = doJSON(t, r, http.MethodPost, "/reading-session/"+userID+"/start", token, gin.H{
		"bookId": b.ID, "startPosition": 0,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("start session: %d %s", w.Code, w.Body.String())
	}
	var s models.ReadingSession
	json.Unmarshal(w.Body.Bytes(), &s)

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/reading-session/%s/%s/end", userID, s.ID), token, gin.H{
		"endPosition": 900,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("end session: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/books/"+userID, token, nil)
	var books []models.Book
	json.Unmarshal(w.Body.Bytes(), &books)
	if len(books) != 1 || books[0].Progress != 50 {
		t.Errorf("book progress after session = %+v", books)
	}

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/reading-session/%s/missing/end", userID), token, gin.H{})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing session: %d, want 404", w.Code)
	}
}

func TestProgressStatsZeroUser(t *testing.T) {
	r := newTestServer(t)
	userID, token := signup(t, r, "a@example.com")

	w := doJSON(t, r, http.MethodGet, "/progress/"+userID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("progress: %d %s", w.Code, w.Body.String())
	}
	var stats models.ProgressStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalBooksRead != 0 || stats.CurrentStreak != 0 || stats.TotalListeningTimeSeconds != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestNotifications(t *testing.T) {
	r := newTestServer(t)
	userID, token := signup(t, r, "a@example.com")

	w := doJSON(t, r, http.MethodPost, "/notifications/"+userID, token, gin.H{
		"title": "Ready", "message": "Dune finished converting", "type": "conversion",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create notification: %d %s", w.Code, w.Body.String())
	}
	var n models.Notification
	json.Unmarshal(w.Body.Bytes(), &n)

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/notifications/%s/%s/read", userID, n.ID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mark read: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/notifications/"+userID, token, nil)
	var list []models.Notification
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list) != 1 || !list[0].Read {
		t.Errorf("list = %+v", list)
	}

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/notifications/%s/missing/read", userID), token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing notification: %d, want 404", w.Code)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	r := newTestServer(t)
	userID, token := signup(t, r, "a@example.com")

	w := doJSON(t, r, http.MethodPost, "/analytics/events", token, gin.H{
		"type": "error", "errorType": "conversion_failed", "message": "pdf too large",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("record event: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/analytics/summary?days=7", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary: %d %s", w.Code, w.Body.String())
	}
	var sum analytics.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(sum.Groups) != 1 || sum.Groups[0].ErrorType != "conversion_failed" {
		t.Errorf("summary = %+v", sum)
	}

	w = doJSON(t, r, http.MethodGet, "/analytics/usage/"+userID+"?period=week", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("usage: %d %s", w.Code, w.Body.String())
	}
}
