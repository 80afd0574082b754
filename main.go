package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	uuid "github.com/twinj/uuid"

	"labelscope/autolabel"
	"labelscope/controllers"
	"labelscope/models"
	"labelscope/utils"
	"labelscope/workspace"
)

// corsMiddleware Use middleware for CORS (Cross-Origin Resource Sharing)
// TODO: Read the allowed origins from the config file instead of allowing all.
func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "GET", "POST", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Disposition", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// requestIDMiddleware Generate a UUID and attach it to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		_uuid := uuid.NewV4()
		c.Writer.Header().Set("X-Request-Id", _uuid.String())
		c.Next()
	}
}

func main() {
	log.Info("Starting LabelScope...")

	configPath, debugMode, err := utils.ParseFlags()
	if err != nil {
		log.Fatal(err)
	}
	config, err := utils.NewConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	level, err := log.ParseLevel(config.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(level)

	// Debug mode enables gin-gonic debug mode
	if debugMode {
		log.SetLevel(log.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := models.ConnectDataBase(config.Database); err != nil {
		log.Fatal(err)
	}

	detector, err := autolabel.FromConfig(config.AutoLabel)
	if err != nil {
		log.Fatal(err)
	}

	// Sessions are flushed to the database when they expire and on shutdown.
	cache := workspace.NewCache(config.Session.TTL, config.Session.CleanupInterval, models.Flusher{DB: models.DB})

	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Version tag to test against
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "v0.1.0",
		})
	})

	api := r.Group("/api")
	controllers.RegisterRoutes(api.Group("/v1"), cache, detector, config)

	srv := &http.Server{
		Addr:         net.JoinHostPort(config.Server.Host, config.Server.Port),
		Handler:      r,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	go func() {
		log.Info(fmt.Sprintf("Listening on %s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with
	// a timeout of 5 seconds.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server Shutdown: ", err)
	}

	log.Info("Flushing session cache...")
	cache.Close()

	log.Info("Server exiting")
}
