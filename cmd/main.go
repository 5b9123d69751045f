package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"filevault/config"
	"filevault/jobs"
	"filevault/repository"
	"filevault/routes"
	"filevault/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	config.LoadConfig()
	cfg := config.AppConfig

	ctx, cancel := config.CreateContext(10 * time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		disconnectCtx, disconnectCancel := config.CreateContext(5 * time.Second)
		defer disconnectCancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Printf("Failed to disconnect MongoDB: %v", err)
		}
	}()

	if err := mongoClient.Ping(ctx, nil); err != nil {
		log.Fatalf("Failed to ping MongoDB: %v", err)
	}
	log.Println("Connected to MongoDB successfully")

	store := repository.NewMongoStore(mongoClient, mongoClient.Database(cfg.DatabaseName))

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize blob storage: %v", err)
	}

	container := routes.NewServiceContainer(store, blobs, routes.ContainerConfig{
		JWTSecret:          cfg.JWTSecret,
		JWTExpirationHours: cfg.JWTExpirationHours,
		KeyDerivationSalt:  cfg.KeyDerivationSalt,
		MaxFileSize:        cfg.MaxFileSize,
		CopyWorkers:        cfg.CopyWorkers,
	})

	router := gin.Default()
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	api := router.Group("/api")
	routes.SetupRoutes(api, container)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	if cfg.StaleUploadSweepInterval > 0 {
		sweeper := jobs.NewStaleUploadSweeper(store, blobs, cfg.StaleUploadTTL, cfg.StaleUploadSweepInterval)
		go sweeper.Start(context.Background())
		log.Printf("Started stale upload sweeper running every %v", cfg.StaleUploadSweepInterval)
	}

	log.Printf("Starting filevault server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func buildBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.BlobBackend {
	case "b2":
		return storage.NewB2Store(ctx, cfg.B2ApplicationKeyID, cfg.B2ApplicationKey, cfg.B2BucketName, "blobs/")
	default:
		return storage.NewDiskStore(cfg.BlobRoot)
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestOrigin := c.Request.Header.Get("Origin")

		allowOrigin := ""
		for _, allowed := range allowedOrigins {
			if allowed == "*" || allowed == requestOrigin {
				allowOrigin = requestOrigin
				if allowed == "*" {
					allowOrigin = "*"
				}
				break
			}
		}
		if allowOrigin == "" && len(allowedOrigins) > 0 {
			allowOrigin = allowedOrigins[0]
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, X-File-Hash, X-Local-Name, X-Resume-Upload")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
