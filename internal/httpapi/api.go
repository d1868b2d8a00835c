// Package httpapi serves the read endpoints of the catalog service: user
// lookups behind the short-TTL cache, the status page, and vote-status
// checks. Mutating CRUD belongs to the upstream service and is not served
// here.
package httpapi

import (
	"net/http"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/simobotlist/gateway/internal/catalog"
	runtimepkg "github.com/simobotlist/gateway/internal/runtime"
	"github.com/simobotlist/gateway/internal/runtime/cache"
	"github.com/simobotlist/gateway/internal/runtime/logging"
)

// GatewayStats is the slice of the gateway the status endpoint reports on.
type GatewayStats interface {
	Connections() int
}

// Options wires an API. Store is mandatory; everything else has a default.
type Options struct {
	Store     catalog.Store
	CacheTTL  time.Duration
	JWTSecret string
	Logger    logging.ServiceLogger
	Metrics   *runtimepkg.Metrics
	Gateway   GatewayStats

	// MetricsHandler, when set, is mounted at /metrics.
	MetricsHandler http.Handler
}

// API holds the handlers and their caches.
type API struct {
	store     catalog.Store
	users     *cache.Cache[string, *catalog.User]
	counts    *cache.Cache[string, int]
	jwtSecret string
	logger    logging.ServiceLogger
	metrics   *runtimepkg.Metrics
	gateway   GatewayStats
	metricsH  http.Handler
	startedAt time.Time
}

func New(opts Options) *API {
	if opts.Store == nil {
		panic("httpapi: catalog store is required")
	}
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = time.Minute
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	return &API{
		store:     opts.Store,
		users:     cache.New[string, *catalog.User](ttl),
		counts:    cache.New[string, int](ttl),
		jwtSecret: opts.JWTSecret,
		logger:    log,
		metrics:   opts.Metrics,
		gateway:   opts.Gateway,
		metricsH:  opts.MetricsHandler,
		startedAt: time.Now(),
	}
}

// Router builds the gin engine with every read route mounted.
func (a *API) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), a.logRequests())

	api := router.Group("/api")
	api.GET("/users/:id", a.getUser)
	api.GET("/status", a.getStatus)
	api.GET("/vote-status/:id", a.getVoteStatus)

	if a.metricsH != nil {
		router.GET("/metrics", gin.WrapH(a.metricsH))
	}
	return router
}

func (a *API) getUser(c *gin.Context) {
	id := c.Param("id")

	if id == "@me" {
		authorID, ok := a.userIDFromJWT(c)
		if !ok {
			return
		}
		id = authorID
	}

	if user, ok := a.users.Get(id); ok {
		a.countCacheLookup("user", "hit")
		c.JSON(http.StatusOK, user)
		return
	}
	a.countCacheLookup("user", "miss")

	user, err := a.store.FindUserByID(c.Request.Context(), id)
	if err != nil {
		a.logger.Error("user lookup failed", err, logging.LogFields{"user_id": id})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "LOOKUP_FAILED", "message": "could not load the user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "UNKNOWN_USER", "message": "no user exists with that id"})
		return
	}

	a.users.Set(id, user)
	c.JSON(http.StatusOK, user)
}

func (a *API) getStatus(c *gin.Context) {
	ctx := c.Request.Context()

	bots, botsOK := a.counts.Get("bots")
	users, usersOK := a.counts.Get("users")
	if !botsOK || !usersOK {
		a.countCacheLookup("counts", "miss")
		var err error
		if bots, err = a.store.CountBots(ctx); err != nil {
			a.logger.Error("bot count failed", err, nil)
		}
		if users, err = a.store.CountUsers(ctx); err != nil {
			a.logger.Error("user count failed", err, nil)
		}
		a.counts.Set("bots", bots)
		a.counts.Set("users", users)
	} else {
		a.countCacheLookup("counts", "hit")
	}

	var mem goruntime.MemStats
	goruntime.ReadMemStats(&mem)

	uptime := time.Since(a.startedAt)
	connections := 0
	if a.gateway != nil {
		connections = a.gateway.Connections()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UnixMilli(),
		"statistics": gin.H{
			"users": users,
			"bots":  bots,
		},
		"gateway": gin.H{
			"connections": connections,
		},
		"system": gin.H{
			"go_version":    goruntime.Version(),
			"goroutines":    goruntime.NumGoroutine(),
			"heap_alloc_mb": mem.HeapAlloc / (1024 * 1024),
		},
		"uptime": gin.H{
			"milliseconds": uptime.Milliseconds(),
			"started_at":   a.startedAt.UnixMilli(),
		},
	})
}

// getVoteStatus reports whether the addressed user can vote for the
// addressed bot. With a user JWT the path parameter is the bot id; with a
// bot api key the path parameter is the user id.
func (a *API) getVoteStatus(c *gin.Context) {
	ctx := c.Request.Context()
	auth := c.GetHeader("Authorization")

	var userID, botID string
	if strings.HasPrefix(auth, "User ") {
		id, ok := a.userIDFromJWT(c)
		if !ok {
			return
		}
		userID = id
		botID = c.Param("id")
	} else {
		bot, err := a.store.FindBotByAPIKey(ctx, auth)
		if err != nil {
			a.logger.Error("api key lookup failed", err, nil)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "AUTH_ERROR", "message": "could not validate the api key"})
			return
		}
		if bot == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_API_KEY", "message": "the provided api key does not match any bot"})
			return
		}
		botID = bot.ID
		userID = c.Param("id")
	}

	user, err := a.store.FindUserByID(ctx, userID)
	if err != nil || user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "UNKNOWN_USER", "message": "no user exists with that id"})
		return
	}
	bot, err := a.store.FindBotByID(ctx, botID)
	if err != nil || bot == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "UNKNOWN_BOT", "message": "no bot exists with that id"})
		return
	}

	var vote *catalog.Vote
	for i := range bot.Votes {
		if bot.Votes[i].UserID == userID {
			vote = &bot.Votes[i]
			break
		}
	}
	if vote == nil {
		c.JSON(http.StatusOK, gin.H{"can_vote": true, "rest_time": nil})
		return
	}

	lastVote, err := time.Parse(time.RFC3339, vote.LastVote)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"can_vote": true, "rest_time": nil})
		return
	}

	cooldown := user.PremiumType.Limits().VoteCooldown
	elapsed := time.Since(lastVote)
	if elapsed > cooldown {
		c.JSON(http.StatusOK, gin.H{"can_vote": true, "rest_time": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"can_vote":  false,
		"rest_time": (cooldown - elapsed).Milliseconds(),
	})
}

// userIDFromJWT authenticates the "User <token>" scheme and extracts the
// account id claim. On failure it writes the error response and reports
// false.
func (a *API) userIDFromJWT(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "User ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "MISSING_TOKEN", "message": "no user token was provided"})
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(auth, "User "))
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(a.jwtSecret), nil
	})
	if err != nil || !parsed.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_TOKEN", "message": "the user token is invalid or expired"})
		return "", false
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_TOKEN", "message": "the user token is invalid or expired"})
		return "", false
	}
	id, _ := claims["id"].(string)
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_TOKEN", "message": "the user token carries no account id"})
		return "", false
	}
	return id, true
}

func (a *API) countCacheLookup(resource, outcome string) {
	if a.metrics != nil {
		a.metrics.CacheLookups.WithLabelValues(resource, outcome).Inc()
	}
}
