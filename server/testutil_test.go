package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/gin-gonic/gin"
	"github.com/legit-games/authcode-service/authn"
	"github.com/legit-games/authcode-service/generates"
	"github.com/legit-games/authcode-service/manage"
	"github.com/legit-games/authcode-service/metrics"
	"github.com/legit-games/authcode-service/models"
	"github.com/legit-games/authcode-service/store"
)

const (
	testUsername = "ada"
	testPassword = "lovelace1815"
)

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([0-9a-f]+)"`)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	srv     *Server
	stores  *store.Stores
	metrics *metrics.Metrics
	clock   *testClock
	ts      *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.OpenBunt(":memory:")
	if err != nil {
		t.Fatalf("open buntdb: %v", err)
	}
	stores := store.NewBuntStores(db)
	t.Cleanup(func() { _ = stores.Close() })

	key, err := generates.GenerateSigningKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	mt := metrics.New()
	clk := &testClock{t: time.Now().UTC()}
	cfg := manage.NewConfig()
	cfg.CodeLookupDelay = time.Millisecond
	m, err := manage.NewManager(cfg, key, manage.WithMetrics(mt), manage.WithClock(clk.Now))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	m.MapStores(stores)

	srv := NewServer(NewConfig(), m, stores, key, WithMetrics(mt))
	ts := httptest.NewServer(NewGinEngine(srv))
	t.Cleanup(ts.Close)
	return &testEnv{srv: srv, stores: stores, metrics: mt, clock: clk, ts: ts}
}

// seedUser creates a user with its default client, as registration does.
func (e *testEnv) seedUser(t *testing.T, username string) (*models.User, *models.Client) {
	t.Helper()
	ctx := context.Background()
	hash, err := authn.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{
		ID:           models.NewID(),
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		DateOfBirth:  "1815-12-10",
		PasswordHash: hash,
		Role:         models.DefaultRole,
	}
	if err := e.stores.Users.Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	cli := &models.Client{
		ID:          models.NewID(),
		Secret:      "secret",
		Name:        models.DefaultClientName(u.ID),
		RedirectURI: defaultRedirectURI,
		LandingPage: defaultLandingPage,
		OwnerID:     u.ID,
	}
	if err := e.stores.Clients.Create(ctx, cli); err != nil {
		t.Fatalf("create client: %v", err)
	}
	return u, cli
}

// browser is an http.Client with a cookie jar that does not follow redirects.
type browser struct {
	t    *testing.T
	base string
	c    *http.Client
}

func (e *testEnv) newBrowser(t *testing.T) *browser {
	return &browser{
		t:    t,
		base: e.ts.URL,
		c: &http.Client{
			Jar: httpexpect.NewCookieJar(),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) get(path string) *http.Response {
	b.t.Helper()
	resp, err := b.c.Get(b.base + path)
	if err != nil {
		b.t.Fatalf("GET %s: %v", path, err)
	}
	b.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (b *browser) post(path string, form url.Values) *http.Response {
	b.t.Helper()
	resp, err := b.c.PostForm(b.base+path, form)
	if err != nil {
		b.t.Fatalf("POST %s: %v", path, err)
	}
	b.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.base)
	for _, c := range b.c.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// csrfFrom loads page and returns the CSRF token embedded in its form.
func (b *browser) csrfFrom(page string) string {
	b.t.Helper()
	resp := b.get(page)
	body := readBody(b.t, resp)
	m := csrfPattern.FindStringSubmatch(body)
	if m == nil {
		b.t.Fatalf("no csrf token in %s: %s", page, body)
	}
	return m[1]
}

// login signs in and returns the /authorize query it was redirected to.
func (b *browser) login(username, password string) url.Values {
	b.t.Helper()
	resp := b.post("/login", url.Values{
		"csrf_token": {b.csrfFrom("/login")},
		"username":   {username},
		"password":   {password},
	})
	if resp.StatusCode != http.StatusFound {
		b.t.Fatalf("login status = %d", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil || loc.Path != "/authorize" {
		b.t.Fatalf("login redirect = %q", resp.Header.Get("Location"))
	}
	return loc.Query()
}

// approve walks login and consent and returns the callback location.
func (b *browser) approve(username string) *url.URL {
	b.t.Helper()
	q := b.login(username, testPassword)
	q.Set("decision", "approve")
	q.Del("response_type")
	resp := b.post("/authorize", q)
	if resp.StatusCode != http.StatusFound {
		b.t.Fatalf("authorize status = %d: %s", resp.StatusCode, readBody(b.t, resp))
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		b.t.Fatalf("authorize redirect: %v", err)
	}
	return loc
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}
