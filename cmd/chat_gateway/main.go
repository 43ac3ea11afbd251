package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"vehicle_marketplace_chat/internal/gateway/app"
	"vehicle_marketplace_chat/internal/gateway/repository"
	"vehicle_marketplace_chat/internal/gateway/router"
	"vehicle_marketplace_chat/pkg/config"
	"vehicle_marketplace_chat/pkg/database"
	"vehicle_marketplace_chat/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatGateway, config.EnvConfig.ChatGatewayLogPath)
	cfg := config.LoadConfig[config.Gateway](config.EnvConfig.ChatGateway, config.EnvConfig.ChatGatewayYAMLPath)

	// mongo holds messages and read watermarks
	ctx := context.Background()
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval),
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s]", uri)),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	// redis pub/sub fans messages out across gateway nodes
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// postgres holds the marketplace request/offer directory
	pgURI := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database)
	pgPool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    pgURI,
		RetryCount:    cfg.Postgres.RetryCount,
		RetryInterval: time.Duration(cfg.Postgres.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect postgres err : %v", err))
	}
	defer pgPool.Close()

	msgRepo := repository.NewMongoMessageRepository(mongo.Database)
	markRepo := repository.NewMongoWatermarkRepository(mongo.Database)
	directory := repository.NewDirectoryRepository(pgPool)
	fanout := repository.NewRedisPubSub(redisClient)

	messageUC := app.NewMessageUseCase(msgRepo, markRepo, fanout)

	r := fiber.New(fiber.Config{UnescapePath: true})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatGatewayLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r,
		app.NewChatWebsocketHandler(messageUC, fanout),
		app.NewChatHTTPHandler(messageUC, directory),
	)

	port := ":" + cfg.Port
	log.Printf("Chat Gateway listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
