package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bistro/internal/cache"
	"bistro/internal/config"
	"bistro/internal/handlers"
	"bistro/internal/middleware"
	"bistro/internal/models"
	"bistro/internal/repositories"
	"bistro/internal/services"
	"bistro/pkg/payment"
	"bistro/pkg/rabbitmq"
)

// App is the wired server and the resources it owns.
type App struct {
	Fiber *fiber.App
	Auth  *services.AuthService

	db       *gorm.DB
	mqClient *rabbitmq.Client
}

// NewApp connects every dependency described by cfg and registers the routes.
// RabbitMQ and Redis are optional; the app runs without them.
func NewApp(cfg *config.Config) (*App, error) {
	// --- Database ---
	db, err := repositories.OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := repositories.Migrate(db); err != nil {
		return nil, err
	}

	// --- Cache ---
	var orderCache cache.Cache = cache.NewMemoryCache("bistro")
	cacheKind := "memory"
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr, "bistro")
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := cache.Ping(pingCtx, redisCache)
		cancel()
		if err != nil {
			log.Printf("Warning: Redis at %s unreachable, using in-memory cache: %v", cfg.RedisAddr, err)
		} else {
			orderCache = redisCache
			cacheKind = "redis"
		}
	}

	// --- Repositories ---
	productRepo := repositories.NewGORMProductRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	orderRepo := repositories.NewCachedOrderRepository(repositories.NewGORMOrderRepository(db), orderCache, cfg.CacheTTL)

	// --- RabbitMQ ---
	app := &App{db: db}
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Printf("Warning: RabbitMQ unavailable, status events will not be published: %v", err)
		} else {
			app.mqClient = mqClient
			publisher = mqClient
			kitchen := services.NewKitchenFeed()
			if err := mqClient.Consume(rabbitmq.KitchenQueue, models.RoutingKeyStatusChanged, kitchen.Handle); err != nil {
				log.Printf("Failed to start kitchen feed consumer: %v", err)
			}
		}
	}

	// --- Services ---
	engine := services.NewStatusEngine(orderRepo, publisher, cfg.MinimumOrderValue)
	authService := services.NewAuthService(userRepo, cfg.JWTSecret)
	productService := services.NewProductService(productRepo)
	cartService := services.NewCartService(orderRepo, productRepo, engine, cfg.DeliveryFee)
	orderService := services.NewOrderService(orderRepo, engine, payment.NewMockGateway(cfg.PaymentFailureRate), cfg.DeliveryFee)
	queryService := services.NewOrderQueryService(orderRepo)
	app.Auth = authService

	seedCtx := context.Background()
	if cfg.StaffUsername != "" && cfg.StaffPassword != "" {
		if err := authService.EnsureStaffUser(seedCtx, cfg.StaffUsername, cfg.StaffPassword); err != nil {
			app.Close()
			return nil, err
		}
	}
	seedProducts(seedCtx, productRepo)

	// --- Fiber ---
	f := fiber.New(fiber.Config{AppName: "bistro"})
	f.Use(recover.New())
	f.Use(logger.New())
	f.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.CSRFHeader,
	}))

	f.Get("/health", func(c *fiber.Ctx) error {
		mqStatus := "disabled"
		if app.mqClient != nil {
			mqStatus = "connected"
		}
		dbStatus := "up"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			dbStatus = "down"
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": dbStatus,
			"rabbitMQ": mqStatus,
			"cache":    cacheKind,
		})
	})

	apiV1 := f.Group("/api/v1")
	if cfg.CSRFEnabled {
		apiV1.Use(middleware.CSRF())
	}

	// Authentication routes (public)
	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)

	protectedRoutes := apiV1.Group("", middleware.AuthRequired(authService))
	handlers.NewProductHandler(productService).RegisterRoutes(protectedRoutes)
	handlers.NewOrderHandler(cartService, orderService, queryService).RegisterRoutes(protectedRoutes)

	app.Fiber = f
	return app, nil
}

// Close releases the broker connection and the database pool.
func (a *App) Close() {
	if a.mqClient != nil {
		if err := a.mqClient.Close(); err != nil {
			log.Printf("Error closing RabbitMQ client: %v", err)
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

func main() {
	cfg := config.Load()

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Close()

	log.Printf("Starting server on port %s", cfg.AppPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Fiber.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}

// seedProducts fills an empty catalog with the house menu.
func seedProducts(ctx context.Context, repo repositories.ProductRepository) {
	existing, err := repo.GetAll(ctx, false)
	if err != nil {
		log.Printf("Error checking catalog before seeding: %v", err)
		return
	}
	if len(existing) > 0 {
		return
	}

	products := []models.Product{
		{Name: "Margherita", Description: "Tomato, mozzarella, basil", Category: "pizza", Price: price("10.00"), Available: true, PrepMinutes: 15},
		{Name: "Quattro Formaggi", Description: "Four cheeses", Category: "pizza", Price: price("12.50"), Available: true, PrepMinutes: 15},
		{Name: "Caesar Salad", Description: "Romaine, parmesan, croutons", Category: "starters", Price: price("7.00"), Available: true, PrepMinutes: 5},
		{Name: "Tiramisu", Description: "House dessert", Category: "desserts", Price: price("6.00"), Available: true, PrepMinutes: 2},
		{Name: "Soda", Description: "Can, 350ml", Category: "drinks", Price: price("5.00"), Available: true, PrepMinutes: 1},
	}
	for i := range products {
		if err := repo.Create(ctx, &products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Name, err)
		} else {
			log.Printf("Seeded product: %s (ID: %s)", products[i].Name, products[i].ID)
		}
	}
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
