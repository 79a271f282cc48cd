package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authority/internal/authority/service"
	"github.com/aussiebroadwan/authority/internal/authority/store"
	"github.com/aussiebroadwan/authority/pkg/httpx"
	"github.com/aussiebroadwan/authority/pkg/slogx"

	_ "github.com/aussiebroadwan/authority/api/authority" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Limits are the rate limit profiles applied per route group.
type Limits struct {
	Credential    httpx.RateLimitConfig // refresh and confirmation links, by IP
	Authenticated httpx.RateLimitConfig // bearer routes, by user
	Internal      httpx.RateLimitConfig // collaborator routes, by IP
	Health        httpx.RateLimitConfig // probes, by IP
}

var DefaultLimits = Limits{
	Credential:    httpx.StrictLimit,
	Authenticated: httpx.ModerateLimit,
	Internal:      httpx.PublicLimit,
	Health:        httpx.PublicLimit,
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	authority    *service.Authority
	store        store.Store
	cache        store.Cache
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	// InternalToken enables the /v1/internal routes when set.
	InternalToken string
	Limits        Limits
}

func NewRouter(
	authority *service.Authority,
	st store.Store,
	cache store.Cache,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		authority:    authority,
		store:        st,
		cache:        cache,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		Limits:       DefaultLimits,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerRegistration()
	r.registerInternal()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP applies the global middleware chain.
//
//	@title			Token Authority API
//	@version		0.1.0
//	@description	Issues, validates, rotates and revokes session and registration tokens. Access tokens are HS512-signed JWTs; refresh tokens are opaque and single-use.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/authority
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerTokens() {
	r.Mux.Handle("POST /v1/token/refresh",
		httpx.Chain(&RefreshHandler{Authority: r.authority},
			httpx.RateLimitByIP(r.Limits.Credential),
		),
	)

	r.Mux.Handle("POST /v1/logout",
		httpx.Chain(&LogoutHandler{Authority: r.authority},
			httpx.AuthnMiddleware(r.authority),
			httpx.RateLimitByUser(r.Limits.Authenticated),
		),
	)

	r.Mux.Handle("GET /v1/me",
		httpx.Chain(MeHandler(),
			httpx.AuthnMiddleware(r.authority),
			httpx.RateLimitByUser(r.Limits.Authenticated),
		),
	)
}

func (r *Router) registerRegistration() {
	r.Mux.Handle("GET /v1/registration/confirm",
		httpx.Chain(&ConfirmHandler{Authority: r.authority},
			httpx.RateLimitByIP(r.Limits.Credential),
		),
	)
}

// registerInternal exposes session and confirmation issuance to trusted
// collaborators (the login and sign-up flows). Without a token configured
// the routes do not exist.
func (r *Router) registerInternal() {
	if r.InternalToken == "" {
		r.logger.Info("internal routes disabled, no internal token configured")
		return
	}

	guard := RequireInternalToken(r.InternalToken)
	h := &InternalHandler{Authority: r.authority}

	r.Mux.Handle("POST /v1/internal/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleIssueSession),
			httpx.RateLimitByIP(r.Limits.Internal),
			guard,
		),
	)
	r.Mux.Handle("POST /v1/internal/confirmations",
		httpx.Chain(http.HandlerFunc(h.HandleIssueConfirmation),
			httpx.RateLimitByIP(r.Limits.Internal),
			guard,
		),
	)
	r.Mux.Handle("DELETE /v1/internal/confirmations/{user_id}",
		httpx.Chain(http.HandlerFunc(h.HandleConsumeConfirmation),
			httpx.RateLimitByIP(r.Limits.Internal),
			guard,
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Health),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.cache),
			httpx.RateLimitByIP(r.Limits.Health),
		),
	)
}
