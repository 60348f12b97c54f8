package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noxly/redemptions/internal/config"
	"github.com/noxly/redemptions/internal/utils"
)

const secret = "test-secret"

// scopeEcho exposes the owner scope extracted by JWTAuth.
func scopeEcho(roles ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("", JWTAuth(secret), RequireRole(roles...))
	g.GET("/scope", func(c echo.Context) error {
		out := echo.Map{"role": c.Get(CtxRole)}
		if id, err := UserID(c); err == nil {
			out["user_id"] = id
		}
		if id, err := VenueID(c); err == nil {
			out["venue_id"] = id
		}
		return c.JSON(http.StatusOK, out)
	})
	return e
}

func doGet(e *echo.Echo, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func mint(t *testing.T, c utils.Claims, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, c, ttl)
	require.NoError(t, err)
	return tok.Token
}

func TestJWTAuth_VenueScope(t *testing.T) {
	e := scopeEcho(RoleVenue)

	rec := doGet(e, "/scope", mint(t, utils.Claims{UserID: 42, Role: RoleVenue, VenueID: 3}, time.Hour))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VENUE", body["role"])
	assert.Equal(t, float64(42), body["user_id"])
	assert.Equal(t, float64(3), body["venue_id"])
}

func TestJWTAuth_Rejections(t *testing.T) {
	e := scopeEcho(RoleCustomer)

	assert.Equal(t, http.StatusUnauthorized, doGet(e, "/scope", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(e, "/scope", "not-a-jwt").Code)

	expired := mint(t, utils.Claims{UserID: 1, Role: RoleCustomer}, -time.Minute)
	assert.Equal(t, http.StatusUnauthorized, doGet(e, "/scope", expired).Code)

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 1, "role": RoleCustomer}).SignedString([]byte("other"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doGet(e, "/scope", other).Code)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": 1, "role": RoleCustomer}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doGet(e, "/scope", none).Code)
}

func TestRequireRole_Forbidden(t *testing.T) {
	e := scopeEcho(RoleVenue)

	rec := doGet(e, "/scope", mint(t, utils.Claims{UserID: 5, Role: RoleCustomer}, time.Hour))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"required_role":"VENUE"`)
}

func TestRequireRole_CaseInsensitive(t *testing.T) {
	e := scopeEcho(RoleVenue)

	rec := doGet(e, "/scope", mint(t, utils.Claims{UserID: 5, Role: "venue", VenueID: 3}, time.Hour))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClaimID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	for _, v := range []any{uint64(9), 9, int64(9), float64(9), "9"} {
		c.Set(CtxUserID, v)
		id, err := UserID(c)
		require.NoError(t, err, "%T", v)
		assert.Equal(t, uint64(9), id)
	}
	for _, v := range []any{nil, 0, float64(-1), 1.5, "abc", ""} {
		c.Set(CtxUserID, v)
		_, err := UserID(c)
		assert.ErrorIs(t, err, ErrNoIdentity, "%v", v)
	}
	_, err := VenueID(c)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/coupons/1/redeem", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.8")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/coupons/:id/redeem")
	c.Set(CtxUserID, float64(7))

	cfg := config.RateLimitConfig{Prefix: "rl"}
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.8", buildRateKey(cfg, c))
	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "rl:user:7:route:POST /v1/coupons/:id/redeem", buildRateKey(cfg, c))
	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.0.0.8:user:7:route:POST /v1/coupons/:id/redeem", buildRateKey(cfg, c))
}

func TestRedisMiddlewaresPassThroughWithoutClient(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, zerolog.Nop()))
	e.Use(NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil, zerolog.Nop()))
	e.GET("/v1/coupons", func(c echo.Context) error { return c.String(http.StatusOK, "[]") })

	rec := doGet(e, "/v1/coupons", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestCacheKeyIncludesPathParams(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route"}
	key := func(id string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/coupons/"+id, nil), httptest.NewRecorder())
		c.SetPath("/v1/coupons/:id")
		c.SetParamNames("id")
		c.SetParamValues(id)
		return cacheKeyFrom(cfg, c)
	}

	assert.NotEqual(t, key("1"), key("2"))
	assert.Equal(t, key("1"), key("1"))
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, key("1"))
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}

	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("def"))

	assert.True(t, cw.truncated)
	assert.Equal(t, "abc", cw.buf.String())
	assert.Equal(t, "abcdef", rec.Body.String())
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/missing", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "nope") })

	rec := doGet(e, "/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, float64(404), line["status"])
	assert.Equal(t, "/missing", line["path"])
	assert.Equal(t, "anon", line["user"])
}

func TestParseBucketResult(t *testing.T) {
	res, err := parseBucketResult([]interface{}{int64(0), int64(0), int64(1500)})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 1500*time.Millisecond, res.RetryAfter)
	assert.Equal(t, 2, retryAfterSeconds(res.RetryAfter))

	res, err = parseBucketResult([]interface{}{int64(1), "41", int64(0)})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(41), res.Remaining)
	assert.Zero(t, retryAfterSeconds(res.RetryAfter))

	_, err = parseBucketResult("OK")
	assert.Error(t, err)
	_, err = parseBucketResult([]interface{}{int64(1), 2.5, int64(0)})
	assert.Error(t, err)
}

func TestApplyBucketBlocks(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/venue/redemptions/verify", nil), rec)
	called := false
	next := func(echo.Context) error { called = true; return nil }
	cfg := config.RateLimitConfig{Capacity: 10}

	require.NoError(t, applyBucket(c, next, cfg, "k", bucketResult{RetryAfter: 5200 * time.Millisecond}, zerolog.Nop()))

	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "6", rec.Header().Get("Retry-After"))
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}
