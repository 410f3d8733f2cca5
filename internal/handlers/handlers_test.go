package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atharvakonge/papertrade/internal/auth"
	"github.com/atharvakonge/papertrade/internal/config"
	"github.com/atharvakonge/papertrade/internal/session"
	"github.com/atharvakonge/papertrade/internal/testutils"
	"github.com/atharvakonge/papertrade/internal/trading"
	"github.com/atharvakonge/papertrade/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (p *fakePinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePinger) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

type testApp struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
	ledger *testutils.MemoryLedger
	quotes *testutils.StubQuoter
	db     *fakePinger
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger := testutils.NewMemoryLedger()
	quotes := testutils.NewStubQuoter()
	quotes.SetPrice("AAPL", "Apple Inc", "150")

	authSvc, err := auth.NewService(ledger, bcrypt.MinCost, testutils.D(t, "10000.00"), testutils.Logger())
	require.NoError(t, err)

	store, err := session.NewMemoryStore(100)
	require.NoError(t, err)
	sessions := session.NewManager(store, config.SessionConfig{CookieName: "session", TTL: time.Hour}, testutils.Logger())

	pinger := &fakePinger{}
	h := New(trading.NewService(ledger, quotes, testutils.Logger()), authSvc, sessions, pinger, 20*time.Millisecond, testutils.Logger())

	tmpl, err := web.Templates()
	require.NoError(t, err)

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	h.Routes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testApp{t: t, server: server, client: client, ledger: ledger, quotes: quotes, db: pinger}
}

type response struct {
	code     int
	location string
	header   http.Header
	body     string
}

func (a *testApp) do(req *http.Request) response {
	a.t.Helper()
	resp, err := a.client.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return response{
		code:     resp.StatusCode,
		location: resp.Header.Get("Location"),
		header:   resp.Header,
		body:     string(body),
	}
}

func (a *testApp) get(path string) response {
	a.t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.server.URL+path, nil)
	require.NoError(a.t, err)
	return a.do(req)
}

func (a *testApp) post(path string, form url.Values) response {
	a.t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req)
}

// signup registers and logs in a user with the default starting cash
func (a *testApp) signup(username string) {
	a.t.Helper()
	res := a.post("/register", url.Values{
		"username":     {username},
		"password":     {"pw"},
		"confirmation": {"pw"},
	})
	require.Equal(a.t, http.StatusSeeOther, res.code)

	res = a.post("/login", url.Values{"username": {username}, "password": {"pw"}})
	require.Equal(a.t, http.StatusSeeOther, res.code)
	require.Equal(a.t, "/", res.location)
}

func TestNoCacheHeaders(t *testing.T) {
	app := newTestApp(t)

	res := app.get("/login")
	assert.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", res.header.Get("Cache-Control"))
	assert.Equal(t, "0", res.header.Get("Expires"))
	assert.Equal(t, "no-cache", res.header.Get("Pragma"))
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/", "/buy", "/sell", "/quote", "/history", "/add", "/ws/quotes"} {
		res := app.get(path)
		assert.Equal(t, http.StatusFound, res.code, path)
		assert.Equal(t, "/login", res.location, path)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)

	res := app.post("/register", url.Values{
		"username":     {"alice"},
		"password":     {"pw"},
		"confirmation": {"pw"},
	})
	assert.Equal(t, http.StatusSeeOther, res.code)
	assert.Equal(t, "/login", res.location)

	res = app.get("/login")
	assert.Contains(t, res.body, "Registered! Please log in.")

	res = app.post("/login", url.Values{"username": {"alice"}, "password": {"pw"}})
	assert.Equal(t, http.StatusSeeOther, res.code)
	assert.Equal(t, "/", res.location)

	res = app.get("/")
	assert.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, "$10,000.00")
	assert.Contains(t, res.body, "Log Out")
}

func TestRegister_Rejections(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice")

	cases := []struct {
		form url.Values
		want string
	}{
		{url.Values{"password": {"pw"}, "confirmation": {"pw"}}, "must provide username"},
		{url.Values{"username": {"bob"}, "confirmation": {"pw"}}, "must provide password"},
		{url.Values{"username": {"bob"}, "password": {"pw"}}, "must provide password confirmation"},
		{url.Values{"username": {"bob"}, "password": {"pw"}, "confirmation": {"px"}}, "password confirmation does not match"},
		{url.Values{"username": {"alice"}, "password": {"pw"}, "confirmation": {"pw"}}, "username already exists"},
	}
	for _, tc := range cases {
		res := app.post("/register", tc.form)
		assert.Equal(t, http.StatusBadRequest, res.code, tc.want)
		assert.Contains(t, res.body, tc.want)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice")

	res := app.post("/login", url.Values{"username": {"alice"}, "password": {"nope"}})
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Contains(t, res.body, "invalid username and/or password")

	// the failed attempt dropped the earlier login
	assert.Equal(t, http.StatusFound, app.get("/").code)

	res = app.post("/login", url.Values{"username": {"mallory"}, "password": {"pw"}})
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Contains(t, res.body, "invalid username and/or password")
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice")

	res := app.get("/logout")
	assert.Equal(t, http.StatusSeeOther, res.code)
	assert.Equal(t, "/", res.location)

	assert.Equal(t, http.StatusFound, app.get("/").code)
}

// 10000 cash; buy 10 @ 20; sell 4 @ 25; oversell 10 is rejected.
func TestTradingScenario(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice")

	app.quotes.SetPrice("ACME", "Acme Corp", "20")
	res := app.post("/buy", url.Values{"symbol": {"acme"}, "shares": {"10"}})
	assert.Equal(t, http.StatusSeeOther, res.code)
	assert.Equal(t, "/", res.location)

	res = app.get("/")
	assert.Contains(t, res.body, "Purchase completed")
	assert.Contains(t, res.body, "$9,800.00")

	app.quotes.SetPrice("ACME", "Acme Corp", "25")
	res = app.post("/sell", url.Values{"symbol": {"ACME"}, "shares": {"4"}})
	assert.Equal(t, http.StatusSeeOther, res.code)

	res = app.get("/")
	assert.Contains(t, res.body, "Selling completed")
	assert.Contains(t, res.body, "$9,900.00")
	// 6 shares at 25
	assert.Contains(t, res.body, "$150.00")

	res = app.post("/sell", url.Values{"symbol": {"ACME"}, "shares": {"10"}})
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Contains(t, res.body, "enough shares to be sold")

	res = app.get("/add")
	assert.Contains(t, res.body, "$9,900.00")

	res = app.get("/history")
	assert.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, "buy")
	assert.Contains(t, res.body, "-4")
	assert.Contains(t, res.body, "$200.00")
	assert.Contains(t, res.body, "$100.00")
}

func TestBuy_Rejections(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice")

	cases := []struct {
		form url.Values
		want string
	}{
		{url.Values{"shares": {"1"}}, "must provide symbol"},
		{url.Values{"symbol": {"AAPL"}}, "must provide shares"},
		{url.Values{"symbol": {"AAPL"}, "shares": {"1.5"}}, "shares must be an integer"},
		{url.Values{"symbol": {"AAPL"}, "shares": {"0"}}, "shares must be above zero"},
		{url.Values{"symbol": {"NOPE"}, "shares": {"1"}}, "invalid symbol"},
		{url.Values{"symbol": {"AAPL"}, "shares": {"1000"}}, "enough balance to purchase"},
	}
	for _, tc := range cases {
		res := app.post("/buy", tc.form)
		assert.Equal(t, http.StatusBadRequest, res.code, tc.want)
		assert.Contains(t, res.body, tc.want)
	}
	assert.Empty(t, app.ledger.Rows())
}

func TestSell_NoHolding(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice")

	res := app.post("/sell", url.Values{"symbol": {"AAPL"}, "shares": {"1"}})
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Contains(t, res.body, "holdings of this company")
}

func TestSellForm_ListsOwnedSymbols(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice")
	app.quotes.SetPrice("MSFT", "Microsoft", "10")

	require.Equal(t, http.StatusSeeOther, app.post("/buy", url.Values{"symbol": {"MSFT"}, "shares": {"2"}}).code)

	res := app.get("/sell")
	assert.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, `<option value="MSFT">`)
	assert.NotContains(t, res.body, `<option value="AAPL">`)
}

func TestQuote(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice")

	res := app.post("/quote", url.Values{"symbol": {" aapl "}})
	assert.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, "A share of Apple Inc (AAPL) costs $150.00.")

	res = app.post("/quote", url.Values{"symbol": {"NOPE"}})
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Contains(t, res.body, "invalid symbol")

	res = app.post("/quote", url.Values{})
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Contains(t, res.body, "must provide symbol")
}

func TestAddCash(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice")

	res := app.post("/add", url.Values{"cash": {"100.50"}})
	assert.Equal(t, http.StatusSeeOther, res.code)
	assert.Equal(t, "/add", res.location)

	res = app.get("/add")
	assert.Contains(t, res.body, "Balance added")
	assert.Contains(t, res.body, "$10,100.50")

	for _, bad := range []string{"", "abc", "-1", "0", "1000000.01", "1.001"} {
		res = app.post("/add", url.Values{"cash": {bad}})
		assert.Equal(t, http.StatusBadRequest, res.code, bad)
	}
	assert.Empty(t, app.ledger.Rows())
}

func TestInternalErrorIs500(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice")
	app.ledger.SetFailRecord(true)

	res := app.post("/buy", url.Values{"symbol": {"AAPL"}, "shares": {"1"}})
	assert.Equal(t, http.StatusInternalServerError, res.code)
	assert.Contains(t, res.body, "internal server error")
	assert.NotContains(t, res.body, testutils.ErrInjected.Error())

	res = app.get("/add")
	assert.Contains(t, res.body, "$10,000.00")
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	res := app.get("/health")
	assert.Equal(t, http.StatusOK, res.code)
	assert.JSONEq(t, `{"status":"ok"}`, res.body)

	app.db.fail(errors.New("connection refused"))
	res = app.get("/health")
	assert.Equal(t, http.StatusServiceUnavailable, res.code)
}

func TestQuoteStream(t *testing.T) {
	app := newTestApp(t)
	app.signup("alice")
	require.Equal(t, http.StatusSeeOther, app.post("/buy", url.Values{"symbol": {"AAPL"}, "shares": {"2"}}).code)

	serverURL, err := url.Parse(app.server.URL)
	require.NoError(t, err)

	header := http.Header{}
	for _, c := range app.client.Jar.Cookies(serverURL) {
		header.Add("Cookie", c.String())
	}

	wsURL := "ws" + strings.TrimPrefix(app.server.URL, "http") + "/ws/quotes"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var update PriceUpdate
	require.NoError(t, conn.ReadJSON(&update))

	assert.Equal(t, "AAPL", update.Symbol)
	testutils.AssertDecimal(t, "150", update.Price, "price")
	testutils.AssertDecimal(t, "300", update.Total, "total")
}
