package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"geoattend/internal/apperr"
	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/config"
	"geoattend/internal/geo"
	"geoattend/internal/httpmiddleware"
	"geoattend/internal/logger"
	"geoattend/internal/queue"
	"geoattend/internal/security"
	"geoattend/internal/session"
	"geoattend/internal/store"
	"geoattend/internal/vpncheck"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	zlog := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = zlog.Sync() }()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var work queue.Queue
	if cfg.QueueBackend == "memory" {
		work = queue.NewInMemory(64)
	} else {
		work = queue.NewRedisQueue(redisClient.Client, "")
	}

	sessions := session.NewRegistry(session.NewRepository(db.Client), cfg.DefaultRadiusMeters, zlog)
	ledger := attendance.NewLedger(attendance.NewRepository(db.Client), sessions, work, cfg.VPNBlock, zlog)
	monitor := security.NewMonitor(redisClient.Client, nil, zlog)
	vpn := vpncheck.New(cfg.VPNCheckURL, cfg.VPNCheckTimeout, cfg.VPNCheckSkip)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Token exchange for session management; requires the deployment's
	// organizer key.
	r.POST("/v1/organizer/token", func(c *gin.Context) {
		var req struct {
			Name         string `json:"name"`
			OrganizerKey string `json:"organizer_key" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.OrganizerKey != cfg.OrganizerKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid organizer key"})
			return
		}
		if req.Name == "" {
			req.Name = "organizer"
		}
		token, err := auth.Issue(req.Name, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token": token.Value,
			"expires_at":   token.ExpiresAt.Unix(),
		})
	})

	// QR landing info for scanners; active sessions only.
	r.GET("/v1/sessions/:id", func(c *gin.Context) {
		sess, err := sessions.FindActive(c.Request.Context(), c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": gin.H{
			"session_id":  sess.SessionID,
			"group_label": sess.GroupLabel,
			"date":        sess.Date,
			"time_slot":   sess.TimeSlot,
		}})
	})

	markLimiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)

	r.POST("/v1/attendance", markLimiter.GinMiddleware(), func(c *gin.Context) {
		// Latitude/longitude/accuracy arrive as JSON numbers or numeric
		// strings depending on the client; parsed and range-checked
		// before any distance math runs.
		var req struct {
			SessionID   string `json:"session_id" binding:"required"`
			StudentID   string `json:"student_id" binding:"required"`
			StudentName string `json:"student_name"`
			Latitude    any    `json:"latitude" binding:"required"`
			Longitude   any    `json:"longitude" binding:"required"`
			Accuracy    any    `json:"accuracy"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		loc, err := geo.ParseCoordinate(req.Latitude, req.Longitude, req.Accuracy)
		if err != nil {
			renderError(c, apperr.Validation(apperr.ReasonBadInput, "invalid location: "+err.Error()))
			return
		}

		clientIP := c.ClientIP()
		reputation := vpn.Lookup(c.Request.Context(), clientIP)

		outcome, err := ledger.RecordClaim(c.Request.Context(), attendance.Claim{
			SessionID:    req.SessionID,
			StudentID:    req.StudentID,
			StudentName:  req.StudentName,
			Location:     &loc,
			OriginIP:     clientIP,
			Device:       attendance.ParseDeviceContext(c.Request.UserAgent()),
			VPNSuspected: reputation.SuspectedVPN,
		})
		if err != nil {
			if apperr.ReasonOf(err) == apperr.ReasonAlreadyMarked && outcome.Record.ID != "" {
				c.JSON(apperr.HTTPStatus(err), gin.H{
					"error":      err.Error(),
					"reason":     apperr.ReasonOf(err),
					"attendance": outcome.Record,
				})
				return
			}
			renderError(c, err)
			return
		}

		status := http.StatusOK
		message := "attendance already marked for this student from this device"
		if outcome.Created {
			status = http.StatusCreated
			message = "attendance marked successfully"
		}
		c.JSON(status, gin.H{
			"message":    message,
			"created":    outcome.Created,
			"attendance": outcome.Record,
		})
	})

	authGroup := r.Group("/v1", auth.OrganizerAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/sessions", func(c *gin.Context) {
		var req struct {
			GroupLabel string  `json:"group_label" binding:"required"`
			Date       string  `json:"date" binding:"required"`
			TimeSlot   string  `json:"time_slot" binding:"required"`
			Notes      string  `json:"notes"`
			Latitude   any     `json:"latitude" binding:"required"`
			Longitude  any     `json:"longitude" binding:"required"`
			RadiusM    float64 `json:"radius_m"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		anchor, err := geo.ParseCoordinate(req.Latitude, req.Longitude, nil)
		if err != nil {
			renderError(c, apperr.Validation(apperr.ReasonBadInput, "invalid anchor location: "+err.Error()))
			return
		}
		date, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			if date, err = time.Parse("2006-01-02", req.Date); err != nil {
				renderError(c, apperr.Validation(apperr.ReasonBadInput, "invalid date format"))
				return
			}
		}

		createdBy := "organizer"
		if claimsAny, ok := c.Get("claims"); ok {
			if claims, ok := claimsAny.(auth.Claims); ok && claims.Subject != "" {
				createdBy = claims.Subject
			}
		}

		sess, err := sessions.Create(c.Request.Context(), session.CreateParams{
			GroupLabel:   req.GroupLabel,
			Date:         date,
			TimeSlot:     req.TimeSlot,
			Notes:        req.Notes,
			CreatedBy:    createdBy,
			Anchor:       anchor,
			RadiusMeters: req.RadiusM,
		})
		if err != nil {
			renderError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"session": sess,
			"qr_url":  sess.JoinURL(cfg.FrontendBaseURL),
		})
	})

	authGroup.GET("/sessions", func(c *gin.Context) {
		includeEnded := c.Query("show_ended") == "true"
		list, err := sessions.List(c.Request.Context(), includeEnded)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": list})
	})

	authGroup.POST("/sessions/:id/end", func(c *gin.Context) {
		if err := sessions.End(c.Request.Context(), c.Param("id")); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "session ended; its QR code no longer resolves"})
	})

	authGroup.DELETE("/sessions/:id", func(c *gin.Context) {
		if err := sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "session and its attendance records deleted"})
	})

	authGroup.GET("/sessions/:id/attendance", func(c *gin.Context) {
		records, err := ledger.SessionAttendance(c.Request.Context(), c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}
		if records == nil {
			records = []attendance.Record{}
		}
		c.JSON(http.StatusOK, gin.H{"attendance": records})
	})

	authGroup.GET("/students/:id/origins", func(c *gin.Context) {
		history, err := monitor.History(c.Request.Context(), c.Param("id"))
		if err != nil {
			zlog.Warn("origin history fetch failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "origin history unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"origins": history})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("forced shutdown", zap.Error(err))
	}

	zlog.Info("server exited")
	return nil
}

// renderError maps a classified error to its HTTP response. Internal
// details never leak to the caller.
func renderError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status >= 500 {
		msg = "internal error, please try again"
	}
	c.JSON(status, gin.H{"error": msg, "reason": apperr.ReasonOf(err)})
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
