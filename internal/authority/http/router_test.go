package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	authorityhttp "github.com/aussiebroadwan/authority/internal/authority/http"
	"github.com/aussiebroadwan/authority/internal/authority/service"
	"github.com/aussiebroadwan/authority/internal/authority/store"
	"github.com/aussiebroadwan/authority/internal/authority/store/drivers/memory"
	"github.com/aussiebroadwan/authority/pkg/authsdk"
	"github.com/aussiebroadwan/authority/pkg/clock"
	"github.com/aussiebroadwan/authority/pkg/cryptox"
	"github.com/aussiebroadwan/authority/pkg/idx"
	"github.com/aussiebroadwan/authority/pkg/jwtx"
	"github.com/aussiebroadwan/authority/pkg/slogx"
)

const internalToken = "internal-secret"

var t0 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	clock  *clock.FakeClock
	server *httptest.Server
	client *authsdk.SDKClient
}

func codec(t *testing.T) *jwtx.HS512Codec {
	t.Helper()
	key, err := cryptox.GenerateKey(cryptox.MinHMACKeySize)
	require.NoError(t, err)
	c, err := jwtx.NewHS512Codec(key)
	require.NoError(t, err)
	return c
}

func newAuthority(t *testing.T, clk clock.Clock, st store.Store, cache store.Cache) *service.Authority {
	t.Helper()
	ids := idx.NewGenerator(clk)

	access, err := service.NewAccessTokenManager(codec(t), ids, nil)
	require.NoError(t, err)
	refresh, err := service.NewRefreshTokenManager(st.RefreshSessions())
	require.NoError(t, err)
	revocations, err := service.NewRevocationStore(cache, access)
	require.NoError(t, err)
	confirmations, err := service.NewConfirmationManager(codec(t), ids, st.ConfirmationTokens())
	require.NoError(t, err)

	a, err := service.NewAuthority(access, refresh, revocations, confirmations, clk, service.DefaultLifetimes)
	require.NoError(t, err)
	return a
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()

	clk := clock.Fake(t0)
	st := store.WithDeadline(memory.NewStore(), store.DefaultTimeout)

	router := authorityhttp.NewRouter(newAuthority(t, clk, st, st.Cache()), st, st.Cache(), "test", slogx.Discard())
	router.InternalToken = token
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client := authsdk.NewSDKClient(srv.URL)
	client.InternalToken = token
	return &harness{clock: clk, server: srv, client: client}
}

func login(t *testing.T, h *harness, clientID string) *authsdk.TokenResponse {
	t.Helper()
	tokens, err := h.client.IssueSession(context.Background(), authsdk.SessionRequest{
		ClientID: clientID,
		UserID:   "u-42",
		Email:    "ada@example.com",
		Roles:    []string{"member", "admin"},
	})
	require.NoError(t, err)
	return tokens
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var oe *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oe)
	return oe.StatusCode
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t, internalToken)
	ctx := context.Background()

	first := login(t, h, "phone")
	require.Equal(t, "Bearer", first.TokenType)
	require.Equal(t, 1800, first.ExpiresIn)

	me, err := h.client.Me(ctx, first.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", me.Subject)
	require.Equal(t, "u-42", me.UserID)
	require.Equal(t, "phone", me.ClientID)
	require.Equal(t, []string{"member", "admin"}, me.Roles)

	h.clock.Advance(29 * time.Minute)
	second, err := h.client.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, second.AccessToken)

	_, err = h.client.Me(ctx, first.AccessToken)
	require.True(t, errors.Is(err, authsdk.ErrInvalidToken), "superseded access token must be revoked")

	_, err = h.client.Refresh(ctx, first.RefreshToken)
	require.True(t, errors.Is(err, authsdk.ErrInvalidGrant), "refresh tokens are single use")

	require.NoError(t, h.client.Logout(ctx, second.AccessToken))

	_, err = h.client.Me(ctx, second.AccessToken)
	require.True(t, errors.Is(err, authsdk.ErrInvalidToken))

	_, err = h.client.Refresh(ctx, second.RefreshToken)
	require.True(t, errors.Is(err, authsdk.ErrInvalidGrant))
}

func TestAccessTokenExpires(t *testing.T) {
	h := newHarness(t, internalToken)
	tokens := login(t, h, "phone")

	h.clock.Advance(31 * time.Minute)
	_, err := h.client.Me(context.Background(), tokens.AccessToken)
	require.True(t, errors.Is(err, authsdk.ErrInvalidToken))

	// The refresh token outlives the access token.
	_, err = h.client.Refresh(context.Background(), tokens.RefreshToken)
	require.NoError(t, err)
}

func TestLogoutOnlyAffectsItsClient(t *testing.T) {
	h := newHarness(t, internalToken)
	ctx := context.Background()

	phone := login(t, h, "phone")
	laptop := login(t, h, "laptop")

	require.NoError(t, h.client.Logout(ctx, phone.AccessToken))

	_, err := h.client.Me(ctx, laptop.AccessToken)
	require.NoError(t, err)
	_, err = h.client.Refresh(ctx, laptop.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsBadRequests(t *testing.T) {
	h := newHarness(t, internalToken)

	post := func(contentType, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, h.server.URL+"/v1/token/refresh", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", contentType)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	require.Equal(t, http.StatusBadRequest, post("application/json", `{"refresh_token":"x"}`).StatusCode)
	require.Equal(t, http.StatusBadRequest, post("application/x-www-form-urlencoded", "").StatusCode)

	_, err := h.client.Refresh(context.Background(), "never-issued")
	require.True(t, errors.Is(err, authsdk.ErrInvalidGrant))
}

func TestMeRequiresBearer(t *testing.T) {
	h := newHarness(t, internalToken)

	resp, err := http.Get(h.server.URL + "/v1/me")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, resp.Header.Get("WWW-Authenticate"), "invalid_token")
}

func TestRegistrationConfirmation(t *testing.T) {
	h := newHarness(t, internalToken)
	ctx := context.Background()

	issued, err := h.client.IssueConfirmation(ctx, authsdk.ConfirmationRequest{UserID: "u-7", Email: "grace@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.Equal(t, 900, issued.ExpiresIn)

	got, err := h.client.ConfirmRegistration(ctx, issued.Token)
	require.NoError(t, err)
	require.Equal(t, "u-7", got.UserID)
	require.Equal(t, "grace@example.com", got.Email)

	// Checking a link does not spend it.
	_, err = h.client.ConfirmRegistration(ctx, issued.Token)
	require.NoError(t, err)

	require.NoError(t, h.client.ConsumeConfirmation(ctx, "u-7"))

	_, err = h.client.ConfirmRegistration(ctx, issued.Token)
	require.True(t, errors.Is(err, authsdk.ErrInvalidConfirmation))
}

func TestRegistrationConfirmationExpiresAndIsSuperseded(t *testing.T) {
	h := newHarness(t, internalToken)
	ctx := context.Background()

	old, err := h.client.IssueConfirmation(ctx, authsdk.ConfirmationRequest{UserID: "u-7", Email: "grace@example.com"})
	require.NoError(t, err)
	fresh, err := h.client.IssueConfirmation(ctx, authsdk.ConfirmationRequest{UserID: "u-7", Email: "grace@example.com"})
	require.NoError(t, err)

	_, err = h.client.ConfirmRegistration(ctx, old.Token)
	require.True(t, errors.Is(err, authsdk.ErrInvalidConfirmation))
	_, err = h.client.ConfirmRegistration(ctx, fresh.Token)
	require.NoError(t, err)

	h.clock.Advance(16 * time.Minute)
	_, err = h.client.ConfirmRegistration(ctx, fresh.Token)
	require.True(t, errors.Is(err, authsdk.ErrInvalidConfirmation))
}

func TestInternalRoutesGuard(t *testing.T) {
	t.Run("wrong token", func(t *testing.T) {
		h := newHarness(t, internalToken)
		h.client.InternalToken = "guess"

		_, err := h.client.IssueSession(context.Background(), authsdk.SessionRequest{
			ClientID: "phone", UserID: "u-1", Email: "a@example.com",
		})
		require.True(t, errors.Is(err, authsdk.ErrAccessDenied))
	})

	t.Run("disabled without a token", func(t *testing.T) {
		h := newHarness(t, "")

		_, err := h.client.IssueSession(context.Background(), authsdk.SessionRequest{
			ClientID: "phone", UserID: "u-1", Email: "a@example.com",
		})
		require.Equal(t, http.StatusNotFound, statusOf(t, err))
	})

	t.Run("incomplete identity", func(t *testing.T) {
		h := newHarness(t, internalToken)

		_, err := h.client.IssueSession(context.Background(), authsdk.SessionRequest{ClientID: "phone", UserID: "u-1"})
		require.True(t, errors.Is(err, authsdk.ErrInvalidRequest))
	})
}

func TestHealth(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	live, err := h.client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := h.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Cache)
}

func TestSwaggerDocs(t *testing.T) {
	h := newHarness(t, "")

	resp, err := http.Get(h.server.URL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.Equal(t, "Token Authority API", doc.Info.Title)

	for path, method := range map[string]string{
		"/v1/token/refresh":                    "post",
		"/v1/logout":                           "post",
		"/v1/me":                               "get",
		"/v1/registration/confirm":             "get",
		"/v1/internal/sessions":                "post",
		"/v1/internal/confirmations":           "post",
		"/v1/internal/confirmations/{user_id}": "delete",
		"/livez":                               "get",
		"/readyz":                              "get",
	} {
		require.Contains(t, doc.Paths, path)
		require.Contains(t, doc.Paths[path], method, path)
	}
}

type brokenCache struct{ store.Cache }

func (brokenCache) Exists(context.Context, string) (bool, error) {
	return false, store.ErrTimeout
}

func TestReadyzReportsCacheFailure(t *testing.T) {
	st := memory.NewStore()
	rec := httptest.NewRecorder()

	authorityhttp.ReadyzHandler(time.Now(), "test", st, brokenCache{st.Cache()}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"degraded"`)
	require.Contains(t, rec.Body.String(), "timed out")
}

type stalledCache struct{ store.Cache }

func (stalledCache) Get(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStorageTimeoutIsRetryable(t *testing.T) {
	clk := clock.Fake(t0)
	st := memory.NewStore()
	timed := store.WithDeadline(st, store.DefaultTimeout)
	cache := store.CacheWithDeadline(stalledCache{st.Cache()}, 20*time.Millisecond)

	router := authorityhttp.NewRouter(newAuthority(t, clk, timed, cache), timed, cache, "test", slogx.Discard())
	router.InternalToken = internalToken
	router.ApplyRoutes()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client := authsdk.NewSDKClient(srv.URL)
	client.InternalToken = internalToken

	tokens, err := client.IssueSession(context.Background(), authsdk.SessionRequest{
		ClientID: "phone", UserID: "u-1", Email: "a@example.com",
	})
	require.NoError(t, err)

	_, err = client.Me(context.Background(), tokens.AccessToken)
	require.Equal(t, http.StatusServiceUnavailable, statusOf(t, err))
}
