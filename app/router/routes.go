// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/amirphl/hylacviet-media/app/dto"
	"github.com/amirphl/hylacviet-media/app/handlers"
	"github.com/amirphl/hylacviet-media/app/middleware"
	"github.com/amirphl/hylacviet-media/config"
	"github.com/amirphl/hylacviet-media/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/gofiber/fiber/v3/middleware/static"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	healthPath      = "/api/v1/health"
	serviceName     = "hylacviet-media"
	serviceVersion  = "1.0.0"
	headerRequestID = "X-Request-ID"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            *config.Config
	mediaHandler   handlers.MediaHandlerInterface
	authMiddleware *middleware.AuthMiddleware
	limiterStorage fiber.Storage
	logger         *slog.Logger
}

// NewFiberRouter creates a new Fiber router. limiterStorage may be nil, in which
// case rate limit counters live in process memory.
func NewFiberRouter(
	cfg *config.Config,
	mediaHandler handlers.MediaHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	limiterStorage fiber.Storage,
	logger *slog.Logger,
) Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &FiberRouter{
		cfg:            cfg,
		mediaHandler:   mediaHandler,
		authMiddleware: authMiddleware,
		limiterStorage: limiterStorage,
		logger:         logger.With("component", "router"),
	}

	r.app = fiber.New(fiber.Config{
		AppName:          "Hy Lac Viet Media API",
		ServerHeader:     serviceName,
		ErrorHandler:     r.errorHandler,
		BodyLimit:        cfg.Server.BodyLimit,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      cfg.Server.IdleTimeout,
		JSONEncoder:      json.Marshal,
		JSONDecoder:      json.Unmarshal,
		TrustProxy:       len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{Proxies: cfg.Server.TrustedProxies},
		ProxyHeader:      cfg.Server.ProxyHeader,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info("Setting up routes")

	r.setupMiddleware()

	// Stored artifacts are public; the filename is the only capability
	r.app.Get(strings.TrimSuffix(r.cfg.Media.PublicPrefix, "/")+"/*", static.New(r.cfg.Media.StorageDir, static.Config{
		ByteRange: true,
	}))

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	r.app.Get(healthPath, r.healthCheck)

	api := r.app.Group("/api")

	if r.cfg.Security.GlobalRateLimit > 0 {
		api.Use(r.rateLimiter("global", r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		}))
	}

	adminOnly := r.authMiddleware.AdminAuthenticate()
	var uploadLimit fiber.Handler = passThrough
	if r.cfg.Security.UploadRateLimit > 0 {
		uploadLimit = r.rateLimiter("upload", r.cfg.Security.UploadRateLimit, nil)
	}

	api.Post("/upload", adminOnly, uploadLimit, r.mediaHandler.Upload)
	api.Post("/v1/media/upload", adminOnly, uploadLimit, r.mediaHandler.Upload)

	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured successfully")
}

// rateLimiter keys by client IP. The name scopes keys when counters share a Redis database.
func (r *FiberRouter) rateLimiter(name string, limit int, next func(c fiber.Ctx) bool) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return name + ":" + c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next:    next,
		Storage: r.limiterStorage,
	})
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    headerRequestID,
		Generator: uuid.NewString,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("panic recovered",
				"request_id", requestid.FromContext(c),
				"error", e,
				"path", c.Path(),
				"method", c.Method(),
				"ip", c.IP(),
			)
		},
	}))

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	// Served images are embedded by the storefront on another origin
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     append(append([]string{}, r.cfg.Security.AllowedHeaders...), headerRequestID),
		ExposeHeaders:    []string{headerRequestID},
		AllowCredentials: r.cfg.Security.AllowCredentials && !containsWildcard(r.cfg.Security.AllowedOrigins),
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		uploadsPrefix := strings.TrimSuffix(r.cfg.Media.PublicPrefix, "/") + "/"
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// Images are already compressed
				return strings.HasPrefix(c.Path(), uploadsPrefix)
			},
		}))
	}

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.Info("Starting server", "address", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNowUnix(),
			"version":   serviceVersion,
			"service":   serviceName,
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// errorHandler renders errors that escaped the handlers
func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	errCode := "INTERNAL_ERROR"
	message := "An internal server error occurred"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		switch code {
		case fiber.StatusRequestEntityTooLarge:
			errCode = "PAYLOAD_TOO_LARGE"
			message = "Request body too large"
		case fiber.StatusNotFound:
			errCode = "NOT_FOUND"
			message = "The requested resource was not found"
		default:
			if code < fiber.StatusInternalServerError {
				errCode = "REQUEST_ERROR"
				message = fe.Message
			}
		}
	}

	requestID := requestid.FromContext(c)
	if code >= fiber.StatusInternalServerError {
		r.logger.Error("request failed", "status", code, "error", err, "request_id", requestID, "path", c.Path())
	} else {
		r.logger.Warn("request rejected", "status", code, "error", err, "request_id", requestID, "path", c.Path())
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNowUnix(),
				"request_id": requestID,
			},
		},
	})
}

func passThrough(c fiber.Ctx) error {
	return c.Next()
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
