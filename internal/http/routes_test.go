package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"strings"
	"testing"
	"time"

	"waitlist_contest/internal/cache"
	"waitlist_contest/internal/config"
	"waitlist_contest/internal/domain"
	"waitlist_contest/internal/http/handlers"
	"waitlist_contest/internal/repository/memstore"
	"waitlist_contest/internal/service"
	"waitlist_contest/internal/ws"

	"github.com/gin-gonic/gin"
)

type okPinger struct{ err error }

func (p okPinger) Ping(context.Context) error { return p.err }

type codeBox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *codeBox) SendCode(_ context.Context, email, code string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[email] = code
	return nil
}

func (b *codeBox) get(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[email]
}

type testServer struct {
	engine *gin.Engine
	store  *memstore.Store
	codes  *codeBox
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	mem := cache.NewMemory()
	codes := &codeBox{codes: map[string]string{}}
	schedule := config.DefaultRewards()
	hub := ws.NewHub()

	audit := service.NewAuditService(store.Audit())
	referrals := service.NewReferralService(store, schedule, config.AwardWeightsPreLaunch, audit, hub)
	otp := service.NewOTPService(mem, codes, time.Minute)
	tokens := service.NewAdminTokens("test-secret")
	token, err := tokens.Issue("tester", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	h := &handlers.Handler{
		Signup:        service.NewSignupService(store, otp, referrals, schedule, audit),
		Leaderboard:   service.NewLeaderboardService(store, mem, 0),
		Ranking:       service.NewRankingService(store, mem, schedule, audit, hub),
		ReferralStats: service.NewReferralStatsService(store, store, schedule),
		Audit:         audit,
	}

	r := gin.New()
	RegisterRoutes(r, Deps{
		Handler: h,
		Health:  handlers.NewHealthHandler(okPinger{}, mem, "test").WatchClients(hub.Clients),
		Hub:     hub,
		Tokens:  tokens,
		Cache:   mem,
		Limits:  Limits{API: 1000, APIWindow: time.Minute, Join: 1000, JoinWindow: time.Minute},
	})
	return &testServer{engine: r, store: store, codes: codes, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func (s *testServer) join(t *testing.T, email, role, code string) handlers.JoinResponse {
	t.Helper()
	w := s.do(t, "POST", "/api/waitlist/join", gin.H{"email": email, "role": role, "referral_code": code}, false)
	if w.Code != http.StatusCreated {
		t.Fatalf("join %s: %d %s", email, w.Code, w.Body.String())
	}
	return decode[handlers.JoinResponse](t, w)
}

func (s *testServer) verify(t *testing.T, email string) {
	t.Helper()
	if w := s.do(t, "POST", "/api/waitlist/send-code", gin.H{"email": email}, false); w.Code != http.StatusAccepted {
		t.Fatalf("send-code %s: %d %s", email, w.Code, w.Body.String())
	}
	w := s.do(t, "POST", "/api/waitlist/verify", gin.H{"email": email, "code": s.codes.get(email)}, false)
	if w.Code != http.StatusOK {
		t.Fatalf("verify %s: %d %s", email, w.Code, w.Body.String())
	}
}

func TestWaitlistFlow(t *testing.T) {
	s := newTestServer(t)

	alice := s.join(t, "alice@example.com", "client", "")
	if !alice.EarlyBird || alice.ProvisionalPoints != 50 || len(alice.ReferralCode) != domain.ReferralCodeLength {
		t.Fatalf("alice = %+v", alice)
	}
	s.join(t, "bob@example.com", "influencer", alice.ReferralCode)
	s.verify(t, "bob@example.com")

	if w := s.do(t, "POST", "/api/waitlist/send-code", gin.H{"email": "bob@example.com"}, false); w.Code != http.StatusConflict {
		t.Fatalf("send-code after verify: %d", w.Code)
	}

	w := s.do(t, "GET", "/api/referral/"+alice.ReferralCode, nil, false)
	if w.Code != http.StatusOK {
		t.Fatalf("referral stats: %d", w.Code)
	}
	stats := decode[service.ReferralStats](t, w)
	if stats.RefCount != 1 || stats.Counters.WaitlistInfluencers != 1 || stats.ProvisionalPoints != 75 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(stats.RecentReferrals) != 1 || stats.RecentReferrals[0].Type != domain.EventWaitlistInfluencer {
		t.Fatalf("recent referrals = %+v", stats.RecentReferrals)
	}
	for _, field := range []string{"referred_id", "referrer_id", "idempotency"} {
		if strings.Contains(w.Body.String(), field) {
			t.Fatalf("public referral stats expose %q: %s", field, w.Body.String())
		}
	}
}

func TestJoinErrors(t *testing.T) {
	s := newTestServer(t)
	s.join(t, "taken@example.com", "client", "")

	cases := []struct {
		name string
		body any
		want int
	}{
		{"missing fields", gin.H{"email": "x@example.com"}, 400},
		{"bad role", gin.H{"email": "x@example.com", "role": "admin"}, 400},
		{"bad email", gin.H{"email": "nope", "role": "client"}, 400},
		{"malformed code", gin.H{"email": "x@example.com", "role": "client", "referral_code": "!!"}, 400},
		{"duplicate", gin.H{"email": "taken@example.com", "role": "client"}, 409},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := s.do(t, "POST", "/api/waitlist/join", tc.body, false); w.Code != tc.want {
				t.Fatalf("status = %d; want %d (%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestVerifyErrors(t *testing.T) {
	s := newTestServer(t)
	s.join(t, "a@example.com", "client", "")

	if w := s.do(t, "POST", "/api/waitlist/send-code", gin.H{"email": "ghost@example.com"}, false); w.Code != 404 {
		t.Fatalf("send-code unknown: %d", w.Code)
	}
	if w := s.do(t, "POST", "/api/waitlist/verify", gin.H{"email": "a@example.com", "code": "123456"}, false); w.Code != 400 {
		t.Fatalf("verify without code issued: %d", w.Code)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	s := newTestServer(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.store.Put(domain.User{Email: "a@x.io", Role: domain.RoleClient, ProvisionalPoints: 10, CreatedAt: base})
	s.store.Put(domain.User{Email: "b@x.io", Role: domain.RoleBeautyPro, ProvisionalPoints: 30, CreatedAt: base})
	s.store.Put(domain.User{Email: "c@x.io", Role: domain.RoleBeautyPro, ProvisionalPoints: 20, CreatedAt: base})

	type page struct {
		Leaderboard []service.LeaderboardEntry `json:"leaderboard"`
		Limit       int                        `json:"limit"`
	}

	w := s.do(t, "GET", "/api/leaderboard", nil, false)
	if w.Code != 200 {
		t.Fatalf("status %d", w.Code)
	}
	all := decode[page](t, w)
	if all.Limit != 50 || len(all.Leaderboard) != 3 || all.Leaderboard[0].Points != 30 {
		t.Fatalf("page = %+v", all)
	}

	pros := decode[page](t, s.do(t, "GET", "/api/leaderboard?role=beautypro&limit=1", nil, false))
	if len(pros.Leaderboard) != 1 || pros.Leaderboard[0].Rank != 1 || pros.Leaderboard[0].Role != domain.RoleBeautyPro {
		t.Fatalf("filtered = %+v", pros)
	}

	for _, q := range []string{"?role=vip", "?limit=0", "?limit=101", "?limit=abc"} {
		if w := s.do(t, "GET", "/api/leaderboard"+q, nil, false); w.Code != 400 {
			t.Fatalf("%s: status %d; want 400", q, w.Code)
		}
	}
}

func TestAdminRanking(t *testing.T) {
	s := newTestServer(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.store.Put(domain.User{Email: "a@x.io", Role: domain.RoleClient, Counters: domain.Counters{ValidatedPros: 3}, CreatedAt: base})
	s.store.Put(domain.User{Email: "b@x.io", Role: domain.RoleClient, Counters: domain.Counters{WaitlistClients: 1}, CreatedAt: base})

	if w := s.do(t, "POST", "/api/admin/recalculate-final-points", nil, false); w.Code != 401 {
		t.Fatalf("unauthenticated: %d", w.Code)
	}

	// Before any run nobody is eligible: an empty list, not null.
	w := s.do(t, "GET", "/api/admin/recalculate-final-points", nil, true)
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"eligibleUsers":[]`) {
		t.Fatalf("snapshot before run: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, "POST", "/api/admin/recalculate-final-points", nil, true)
	if w.Code != 200 {
		t.Fatalf("run: %d %s", w.Code, w.Body.String())
	}
	var run struct {
		Success bool `json:"success"`
		Stats   struct {
			TotalUsers           int `json:"totalUsers"`
			JackpotEligibleCount int `json:"jackpotEligibleCount"`
			TopUser              struct {
				FinalPoints int `json:"final_points"`
				Rank        int `json:"rank"`
			} `json:"topUser"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"stats"`
		FailedUsers int    `json:"failedUsers"`
		Mode        string `json:"mode"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !run.Success || run.Stats.TotalUsers != 2 || run.Stats.JackpotEligibleCount != 1 ||
		run.Stats.TopUser.FinalPoints != 300 || run.Stats.TopUser.Rank != 1 || run.Mode != "atomic" {
		t.Fatalf("run = %+v", run)
	}

	w = s.do(t, "GET", "/api/admin/recalculate-final-points", nil, true)
	if w.Code != 200 {
		t.Fatalf("snapshot: %d", w.Code)
	}
	var snap struct {
		TopUser              domain.User   `json:"topUser"`
		JackpotEligibleCount int           `json:"jackpotEligibleCount"`
		EligibleUsers        []domain.User `json:"eligibleUsers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.TopUser.Email != "a@x.io" || snap.JackpotEligibleCount != 1 || len(snap.EligibleUsers) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	w = s.do(t, "GET", "/api/admin/audit?category=admin", nil, true)
	logs := decode[struct {
		Logs []domain.AuditLog `json:"logs"`
	}](t, w)
	if len(logs.Logs) != 1 || logs.Logs[0].Action != domain.AuditActionRankingRun {
		t.Fatalf("audit = %+v", logs)
	}
}

func TestAdminRankingFailure(t *testing.T) {
	s := newTestServer(t)
	s.store.Put(domain.User{Email: "a@x.io", Role: domain.RoleClient})
	s.store.FailApplyRanking = true

	w := s.do(t, "POST", "/api/admin/recalculate-final-points", nil, true)
	if w.Code != 500 {
		t.Fatalf("status = %d; want 500", w.Code)
	}
	if body := decode[gin.H](t, w); body["success"] != false {
		t.Fatalf("body = %v", body)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		if w := s.do(t, "GET", path, nil, false); w.Code != 200 {
			t.Fatalf("%s: %d", path, w.Code)
		}
	}
	ready := decode[handlers.HealthResponse](t, s.do(t, "GET", "/readyz", nil, false))
	if ready.Checks["ws_clients"] != "0" || ready.Checks["cache"] != "healthy" {
		t.Fatalf("readyz checks = %v", ready.Checks)
	}
	if w := s.do(t, "GET", "/metrics", nil, false); w.Code != 200 {
		t.Fatalf("metrics: %d", w.Code)
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	hh := handlers.NewHealthHandler(okPinger{err: errors.New("down")}, nil, "test")
	r.GET("/readyz", hh.Readiness)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with db down: %d", w.Code)
	}
}
