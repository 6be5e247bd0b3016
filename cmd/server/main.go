package main

import (
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/kazuhito/yoyaku/internal/admission"
	"github.com/kazuhito/yoyaku/internal/availability"
	"github.com/kazuhito/yoyaku/internal/config"
	"github.com/kazuhito/yoyaku/internal/database"
	"github.com/kazuhito/yoyaku/internal/handler"
	"github.com/kazuhito/yoyaku/internal/lock"
	"github.com/kazuhito/yoyaku/internal/model"
	"github.com/kazuhito/yoyaku/internal/queue"
	"github.com/kazuhito/yoyaku/internal/repository"
	"github.com/kazuhito/yoyaku/internal/router"
	"github.com/kazuhito/yoyaku/internal/service"
	"github.com/kazuhito/yoyaku/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}

	cfg := config.Load()

	var (
		rules        repository.RuleStore
		reservations admission.ReservationStore
		resLister    handler.ReservationLister
		operators    repository.OperatorStore
	)
	switch cfg.DBDriver {
	case "memory":
		// Datastore-free mode for local development and demos.
		memRes := repository.NewMemoryReservationStore()
		rules = repository.NewMemoryRuleStore()
		reservations = memRes
		resLister = memRes
		operators = seedDevOperator(cfg)
		log.Println("running with in-memory stores; data will not survive a restart")
	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		resRepo := repository.NewReservationRepo(db)
		rules = repository.NewRuleRepo(db)
		reservations = resRepo
		resLister = resRepo
		operators = repository.NewOperatorRepo(db)
	}

	rdb := config.NewRedisClient()

	var locks lock.ScopeLock
	if cfg.LockBackend == "redis" && rdb != nil {
		locks = lock.NewRedis(rdb, "scopelock", 2*cfg.LockTimeout)
	} else {
		if cfg.LockBackend == "redis" {
			log.Println("redis unavailable, falling back to local scope locks")
		}
		locks = lock.NewLocal()
	}

	idem := admission.NewMemoryIdempotency()
	controller := admission.NewController(rules, reservations, locks, idem, admission.Options{
		LockTimeout:    cfg.LockTimeout,
		IdempotencyTTL: cfg.IdemTTL,
	})

	// The read path tolerates slightly stale rules; the write path above
	// always reads through to the store.
	cachedRules := repository.NewCachedRuleStore(rules, cfg.RuleCacheTTL)
	projector := availability.NewProjector(cachedRules, reservations, cfg.OpenTime, cfg.CloseTime, cfg.SlotMinutes)

	commands := service.NewCommandService(rules)

	publish := os.Getenv("RABBITMQ_URL") != "" || os.Getenv("AMQP_URL") != ""
	if publish {
		go func() {
			if err := queue.StartAuditConsumer(); err != nil {
				log.Printf("audit consumer stopped: %v", err)
			}
		}()
	}

	h := router.Handlers{
		Auth:         handler.NewAuthHandler(operators, cfg.JWTSecret, cfg.AccessTTLMin),
		Command:      handler.NewCommandHandler(commands),
		Reservation:  handler.NewReservationHandler(controller, resLister, publish),
		Availability: handler.NewAvailabilityHandler(projector),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, h, cfg, rdb)

	log.Printf("listening on :%s (env=%s, db=%s, locks=%s)", cfg.Port, cfg.Env, cfg.DBDriver, cfg.LockBackend)
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

// seedDevOperator registers one operator account in the in-memory store
// so login and the command surface work without a database.
func seedDevOperator(cfg config.Config) *repository.MemoryOperatorStore {
	store := repository.NewMemoryOperatorStore()
	hash, err := utils.HashPassword(cfg.DevOperatorPass, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hashing dev operator password: %v", err)
	}
	store.Put(model.Operator{
		ID:           uuid.NewString(),
		StoreID:      cfg.DevStoreID,
		Email:        cfg.DevOperatorEmail,
		PasswordHash: hash,
		Role:         model.RoleOperator,
		CreatedAt:    time.Now().UTC(),
	})
	log.Printf("seeded dev operator %s for store %s", cfg.DevOperatorEmail, cfg.DevStoreID)
	return store
}
