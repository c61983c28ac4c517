// admin.go - privacy-conscious analytics and the admin dashboard
package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

const (
	adminCookie   = "admin_token"
	adminTokenTTL = 24 * time.Hour
)

var (
	ErrAdminTokenExpired = errors.New("admin token expired")
	ErrAdminTokenInvalid = errors.New("invalid admin token")
)

// AdminAuth checks credentials and issues signed session cookies.
type AdminAuth struct {
	username string
	password string
	secret   []byte
	log      *zap.SugaredLogger
}

type adminClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// NewAdminAuth falls back to admin/admin123 only in gin debug mode. In
// release mode an unset password disables the admin login.
func NewAdminAuth(cfg AdminConfig, log *zap.SugaredLogger) *AdminAuth {
	a := &AdminAuth{username: cfg.Username, password: cfg.Password, log: log}

	if cfg.Secret != "" {
		a.secret = []byte(cfg.Secret)
	} else {
		a.secret = []byte(randomHex(32))
	}

	if gin.Mode() == gin.DebugMode {
		if a.username == "" {
			a.username = "admin"
			log.Warn("using default admin username, set ADMIN_USERNAME")
		}
		if a.password == "" {
			a.password = "admin123"
			log.Warn("using default admin password, set ADMIN_PASSWORD")
		}
	} else if a.password == "" {
		log.Warn("ADMIN_PASSWORD not set, admin login disabled")
	}

	log.Info("admin access available at /admin/login")
	return a
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

func (a *AdminAuth) Enabled() bool { return a.password != "" }

func (a *AdminAuth) CheckCredentials(username, password string) bool {
	if !a.Enabled() {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	return userOK && passOK
}

func (a *AdminAuth) IssueToken(now time.Time) (string, error) {
	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(adminTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        randomHex(8),
		},
		Username: a.username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AdminAuth) ValidateToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &adminClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAdminTokenInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrAdminTokenExpired
		}
		return ErrAdminTokenInvalid
	}
	claims, ok := token.Claims.(*adminClaims)
	if !ok || !token.Valid || claims.Username != a.username {
		return ErrAdminTokenInvalid
	}
	return nil
}

// Middleware to check admin authentication
func (a *AdminAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || a.ValidateToken(token) != nil {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// visitorTrackingMiddleware records page views with hashed IPs. Assets,
// admin, API and probe paths are skipped, and so is anyone sending DNT.
func visitorTrackingMiddleware(store *Store, metrics *Metrics, log *zap.SugaredLogger) gin.HandlerFunc {
	skip := []string{"/static/", "/admin", "/api/", "/metrics", "/healthz", "/favicon", "/privacy", "/contact"}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet || c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}
		for _, prefix := range skip {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		metrics.RecordPageView()
		ip, ua := c.ClientIP(), c.GetHeader("User-Agent")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.TrackVisit(ctx, ip, ua, path); err != nil {
				log.Errorw("error recording visitor", "error", err)
			}
		}()
		c.Next()
	}
}

// setupAdminRoutes wires the login flow and the protected dashboard.
func (s *Server) setupAdminRoutes(r *gin.Engine) {
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{
			"title":         "Privacy Policy",
			"owner":         s.content.Current().Owner,
			"retentionDays": s.cfg.RetentionDays,
		})
	})

	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{"title": "Admin Login"})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		username := c.PostForm("username")
		password := c.PostForm("password")
		hashed := s.store.HashIP(c.ClientIP())

		if !s.admin.CheckCredentials(username, password) {
			s.log.Warnw("failed admin login attempt", "client", hashed)
			c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
				"title": "Admin Login",
				"error": "Invalid credentials",
			})
			return
		}

		token, err := s.admin.IssueToken(time.Now())
		if err != nil {
			s.log.Errorw("issue admin token", "error", err)
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Login failed"})
			return
		}
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookie, token, int(adminTokenTTL.Seconds()), "/admin", "", c.Request.TLS != nil, true)
		s.log.Infow("admin login successful", "client", hashed)
		c.Redirect(http.StatusFound, "/admin/dashboard")
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", c.Request.TLS != nil, true)
		s.log.Infow("admin logout", "client", s.store.HashIP(c.ClientIP()))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	adminGroup := r.Group("/admin")
	adminGroup.Use(s.admin.Middleware())

	adminGroup.GET("/dashboard", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context())
		if err != nil {
			s.log.Errorw("error loading admin stats", "error", err)
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load statistics",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{"stats": stats})
	})

	adminGroup.GET("/api/stats", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	adminGroup.GET("/visitors", func(c *gin.Context) {
		visitors, err := s.store.RecentVisitors(c.Request.Context(), 200)
		if err != nil {
			s.log.Errorw("error loading visitors", "error", err)
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{
				"error": "Failed to load visitors",
			})
			return
		}
		c.HTML(http.StatusOK, "admin-visitors.html", gin.H{"visitors": visitors})
	})

	adminGroup.POST("/privacy/cleanup", func(c *gin.Context) {
		deleted := s.retention.RunOnce(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup completed", "deleted": deleted})
	})

	// Admin statistics export (for backups or analysis)
	adminGroup.GET("/export/stats", func(c *gin.Context) {
		stats, err := s.store.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		s.log.Infow("admin stats exported", "client", s.store.HashIP(c.ClientIP()))
		c.JSON(http.StatusOK, stats)
	})
}
