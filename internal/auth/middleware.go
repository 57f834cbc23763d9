package auth

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/psds-microservice/supportbot/internal/apperr"
)

const ctxStaff = "staff"

// RequireStaff rejects requests without a valid session. API calls get a
// JSON 401, pages are redirected to the login form.
func (a *Authenticator) RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := tokenFrom(c)
		if tok != "" {
			claims, err := a.Parse(tok)
			if err == nil {
				c.Set(ctxStaff, claims.Username)
				c.Next()
				return
			}
			ClearCookie(c)
		}

		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			apperr.Abort(c, apperr.Unauthorized("staff session required"))
			return
		}
		c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}

// Staff returns the signed-in username.
func Staff(c *gin.Context) string {
	return c.GetString(ctxStaff)
}

func tokenFrom(c *gin.Context) string {
	if v, err := c.Cookie(CookieName); err == nil && v != "" {
		return v
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func SetCookie(c *gin.Context, token string, expires time.Time, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

func ClearCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginLimiter throttles login attempts per client IP.
type LoginLimiter struct {
	mu       sync.Mutex
	perMin   int
	visitors map[string]*visitor
	now      func() time.Time
}

// NewLoginLimiter allows perMinute attempts per IP, refilled evenly; zero
// disables the limit.
func NewLoginLimiter(perMinute int) *LoginLimiter {
	return &LoginLimiter{perMin: perMinute, visitors: make(map[string]*visitor), now: time.Now}
}

func (l *LoginLimiter) Allow(key string) bool {
	if l.perMin <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > time.Hour {
			delete(l.visitors, k)
		}
	}
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *LoginLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			apperr.Abort(c, apperr.TooManyRequests("too many login attempts, try again later"))
			return
		}
		c.Next()
	}
}
