package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"chatfm/chat"
	"chatfm/config"
	"chatfm/db"
	"chatfm/main/routes"
	"chatfm/realtime"
)

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func rateLimitErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
}

// Initialize the HTTP server
func main() {
	// Load .env when present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading configuration: ", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	database, err := db.InitDB(cfg.DBFile)
	if err != nil {
		log.Fatal("Error opening database: ", err)
	}
	defer db.CloseDB(database)

	hub := realtime.NewHub(logger)
	api := chat.New(
		cfg,
		db.NewChannelRepo(database, logger),
		db.NewMessageRepo(database, logger),
		db.NewUserRepo(database, logger),
		hub,
		logger,
	)

	r := gin.Default()

	// Rate Limit
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Second,
		Limit: 100,
	})
	r.Use(ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: rateLimitErrorHandler,
		KeyFunc:      keyFunc,
	}))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	routes.SetupAPIRoutes(r, cfg, api, hub)

	logger.Info("chat module listening", "port", cfg.Port, "prefix", cfg.RoutePrefix)
	if err := r.Run(cfg.Port); err != nil {
		log.Fatal(err)
	}
}
