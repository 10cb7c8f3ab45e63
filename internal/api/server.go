package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	authmw "memoji/internal/api/middleware"
	"memoji/internal/api/validator"
	"memoji/internal/bot"
	"memoji/internal/config"
	"memoji/internal/policy"
	"memoji/internal/services"
	console "memoji/internal/utils/logger"
)

var log = console.New("API-Server")

// Server hosts the gateway webhook and the JWT-protected admin API.
type Server struct {
	echo     *echo.Echo
	config   *config.Config
	bot      *bot.Bot
	policies *policy.Manager
	emojis   services.EmojiRepository
}

func NewServer(cfg *config.Config, b *bot.Bot, policies *policy.Manager, emojis services.EmojiRepository) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Validator = validator.NewValidator()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit("2M"))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(50))))

	s := &Server{
		echo:     e,
		config:   cfg,
		bot:      b,
		policies: policies,
		emojis:   emojis,
	}

	e.GET("/health", s.healthCheck)
	e.POST("/webhook", s.handleWebhook)

	auth := authmw.NewAuthMiddleware(cfg.JWT.Secret)
	admin := e.Group("/api/v1", auth.Middleware())
	admin.GET("/policy/rules", s.listPolicyRules)
	admin.GET("/emojis", s.listEmojis)

	return s
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleWebhook accepts one gateway event and hands it to the bot.
// The gateway retries on non-2xx, so the message is dispatched in the
// background and acknowledged immediately.
func (s *Server) handleWebhook(c echo.Context) error {
	if secret := s.config.Gateway.WebhookSecret; secret != "" {
		provided := c.Request().Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid webhook secret")
		}
	}

	msg := &bot.IncomingMessage{}
	if err := c.Bind(msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid event payload")
	}
	if err := c.Validate(msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.bot.HandleMessage(ctx, msg)
	}()

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listPolicyRules(c echo.Context) error {
	list := s.policies.ListRules()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"custom":   list.Custom,
		"defaults": list.Defaults,
	})
}

type listEmojisQuery struct {
	Scope string `query:"scope" validate:"omitempty,scope"`
	Page  string `query:"page"`
	Limit string `query:"limit"`
}

func (s *Server) listEmojis(c echo.Context) error {
	q := &listEmojisQuery{}
	if err := c.Bind(q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query")
	}
	if err := c.Validate(q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	scope := q.Scope
	if scope == "" {
		scope = string(policy.ScopeGlobal)
	}
	page, _ := strconv.Atoi(q.Page)
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Limit)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	emojis, total, err := s.emojis.List(c.Request().Context(), scope, "", "", page, limit)
	if err != nil {
		return log.Error("Failed to list emojis", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": emojis,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}
