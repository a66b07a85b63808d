package main

import (
	"context"
	"errors"
	"log"

	"factory-ops/config"
	"factory-ops/internal/events"
	"factory-ops/internal/handler"
	"factory-ops/internal/redis"
	"factory-ops/internal/repository"
	"factory-ops/internal/server"
	"factory-ops/internal/services"
	"factory-ops/internal/storage"
	"factory-ops/internal/websocket"
	"factory-ops/pkg/database"
	"factory-ops/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	var redisClient *goredis.Client
	if cfg.RedisEnabled {
		redisClient, err = redis.Connect(rootCtx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	// Realtime core
	eventLogger := websocket.NewEventLogger(l.Logger)
	var mirror websocket.PresenceMirror
	if redisClient != nil {
		mirror = redis.NewPresenceStore(redisClient, 0)
	}
	directory := websocket.NewSessionDirectory(mirror, l.Logger)
	hub := websocket.NewHub(directory, cfg.MaxRoomsPerWS, eventLogger)

	var broadcaster services.Broadcaster = hub
	if redisClient != nil {
		fanout := events.NewRedisFanout(hub, redis.NewPublisher(redisClient), redis.NewSubscriber(redisClient), l.Logger)
		go func() {
			if err := fanout.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				l.Logger.Error("redis fanout stopped", zap.Error(err))
			}
		}()
		broadcaster = fanout
	}

	var outbound events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		outbound = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		l.Infof("Publishing domain events to kafka topic %s", cfg.KafkaTopic)
	}

	var objectStore services.ObjectStore
	if cfg.StorageEnabled() {
		s3Client, err := storage.NewClient(rootCtx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PublicBase: cfg.S3PublicBase,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			log.Fatalf("Failed to configure attachment storage: %v", err)
		}
		objectStore = s3Client
	}

	// Services
	publisher := services.NewEventPublisher(broadcaster, outbound, l.Logger)
	authService := services.NewAuthService(userRepo, cfg)
	notificationService := services.NewNotificationService(notificationRepo, publisher, cfg.NotificationDedupWindow)
	chatService := services.NewChatService(userRepo, conversationRepo, messageRepo, notificationService, publisher, l.Logger)
	receiptService := services.NewReceiptService(conversationRepo, messageRepo, publisher, l.Logger)
	membershipService := services.NewMembershipService(conversationRepo)
	conversationService := services.NewConversationService(conversationRepo, messageRepo, userRepo, publisher)
	userService := services.NewUserService(userRepo)
	attachmentService := services.NewAttachmentService(objectStore, cfg.S3PresignTTL)

	dispatcher := websocket.NewDispatcher(membershipService, chatService, receiptService, eventLogger)
	wsHandler := websocket.NewHandler(authService, hub, dispatcher, eventLogger, websocket.HandlerOptions{
		CookieName:     cfg.AuthCookieName,
		SendBuffer:     cfg.WSSendBuffer,
		AllowedOrigins: cfg.CORSOrigins,
	})

	handlers := &server.Handlers{
		Conversation: handler.NewConversationHandler(conversationService),
		Message:      handler.NewMessageHandler(conversationService),
		Notification: handler.NewNotificationHandler(notificationService),
		Attachment:   handler.NewAttachmentHandler(attachmentService),
		User:         handler.NewUserHandler(userService, directory),
		Realtime:     wsHandler,
	}

	deps := server.Dependencies{
		Auth: authService,
		Health: func(context.Context) error {
			return database.HealthCheck(db)
		},
	}
	if redisClient != nil {
		deps.Limiter = redis.NewRateLimiter(redisClient)
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(handlers, deps)
	srv.OnShutdown(func(context.Context) {
		hub.Shutdown()
		chatService.Wait()
		stop()
		if err := outbound.Close(); err != nil {
			l.Warnf("Closing event publisher: %v", err)
		}
	})

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
