package handler

import (
	"net/http"
	"sync"
	"time"

	"talk-chat/config"
	"talk-chat/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

const (
	ContextUserIDKey = "session_user_id"
	MaxBodyBytes     = 8 << 20
)

// RequireSession resolves the bearer session from X-Authorization, falling
// back to Authorization, and stores the user id for CurrentUserID.
func RequireSession(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("X-Authorization")
		if header == "" {
			header = c.GetHeader("Authorization")
		}

		userID, err := sessions.Resolve(c.Request.Context(), header)
		if err != nil {
			response.FromError(c, err)
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// CurrentUserID returns the id stored by RequireSession, or 0.
func CurrentUserID(c *gin.Context) uint {
	id, _ := c.Get(ContextUserIDKey)
	uid, _ := id.(uint)
	return uid
}

// CORS applies the rs/cors policy and answers every OPTIONS request with an
// empty 200, whether or not a route exists for the path.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	policy := cors.New(cors.Options{
		AllowedOrigins:       cfg.AllowedOrigins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "X-Authorization", "Authorization"},
		OptionsSuccessStatus: http.StatusOK,
		MaxAge:               600,
	})

	wildcard := false
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
	}

	return func(c *gin.Context) {
		policy.HandlerFunc(c.Writer, c.Request)
		// rs/cors writes nothing when the request carries no Origin.
		if wildcard && c.Writer.Header().Get("Access-Control-Allow-Origin") == "" {
			c.Header("Access-Control-Allow-Origin", "*")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// BodyLimit caps request bodies.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

type keyLimiter struct {
	lim *rate.Limiter
	ts  time.Time
}

// RateLimiter holds one token bucket per client IP and route.
type RateLimiter struct {
	mu   sync.Mutex
	m    map[string]*keyLimiter
	r    rate.Limit
	b    int
	ttl  time.Duration
	stop chan struct{}
	once sync.Once
}

func NewRateLimiter(cfg config.RateLimitConfig, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		m:    make(map[string]*keyLimiter),
		r:    rate.Limit(cfg.RPS),
		b:    cfg.Burst,
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go rl.gc()
	return rl
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	kl, ok := rl.m[key]
	if ok {
		kl.ts = time.Now()
		return kl.lim
	}
	lim := rate.NewLimiter(rl.r, rl.b)
	rl.m[key] = &keyLimiter{lim: lim, ts: time.Now()}
	return lim
}

func (rl *RateLimiter) gc() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for k, v := range rl.m {
				if now.Sub(v.ts) > rl.ttl {
					delete(rl.m, k)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop ends the gc goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !rl.get(c.ClientIP() + "|" + path).Allow() {
			response.Error(c, http.StatusTooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}
