package main

import (
	"context"
	"fmt"
	"log"

	common_api "go-helpdesk/internal/common/api"
	"go-helpdesk/internal/cache"
	"go-helpdesk/internal/config"
	"go-helpdesk/internal/database"
	"go-helpdesk/internal/features/profile"
	"go-helpdesk/internal/features/sync"
	"go-helpdesk/internal/features/ticket"
	"go-helpdesk/internal/logger"
	"go-helpdesk/internal/middleware"
	"go-helpdesk/internal/store"
	"go-helpdesk/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config, zlog *zap.Logger) {
	utils.SetSecret(cfg.JWTSecret)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				zlog.Info("server listening", zap.String("port", cfg.Port))
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// NewTicketCache binds the Redis-backed cache to its interface using the
// configured TTL and per-user entry cap.
func NewTicketCache(r *cache.Redis, cfg *config.Config, zlog *zap.Logger) cache.TicketCache {
	return cache.NewRedisTicketCache(r, cfg.CacheTTL, cfg.CacheCap, zlog)
}

func main() {
	fx.New(
		fx.Provide(
			config.LoadConfig,
			database.NewDatabase,
			logger.NewLogger,
			store.NewMongoStore,
			cache.NewRedis,
			NewTicketCache,
			profile.NewService,
			sync.NewManager,
			sync.NewSweeper,
			func(m *sync.Manager) ticket.PlaceholderTracker { return m },
			ticket.NewTicketService,
			ticket.NewTicketController,
			sync.NewFeedController,
			NewFiberServer,

			AsRoute(ticket.NewTicketApi),
			AsRoute(sync.NewFeedApi),
		),
		fx.WithLogger(func(zlog *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zlog}
		}),
		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(*sync.Sweeper) {},
		),
	).Run()
}
