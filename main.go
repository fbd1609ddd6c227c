package main

import (
	"log"

	api "chatsync-backend/cmd/api"
	authUsecase "chatsync-backend/internal/auth/usecase"
	chatdomain "chatsync-backend/internal/chat/domain"
	chatRepo "chatsync-backend/internal/chat/repository"
	"chatsync-backend/internal/chat/scheduler"
	chatUsecase "chatsync-backend/internal/chat/usecase"
	identitydomain "chatsync-backend/internal/identity/domain"
	identityRepo "chatsync-backend/internal/identity/repository"
	identityUsecase "chatsync-backend/internal/identity/usecase"
	"chatsync-backend/pkg/config"
	"chatsync-backend/pkg/database"
	"chatsync-backend/pkg/googlechat"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&identitydomain.Identity{}, &chatdomain.Account{}, &chatdomain.Conversation{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	identityRepository := identityRepo.NewIdentityRepository(db)
	accountRepository := chatRepo.NewAccountRepository(db)
	conversationRepository := chatRepo.NewConversationRepository(db)

	// Google Chat + Directory provider, one limiter shared by every account
	limiter := googlechat.NewLimiter(cfg.RemoteConcurrency, cfg.RemoteQPS, cfg.RemoteTimeout)
	chatService := googlechat.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, limiter, cfg.RemotePageSize)

	// Initialize use cases (dependency injection)
	resolver := identityUsecase.NewResolver(identityRepository)
	chatUsecaseInstance := chatUsecase.NewChatUsecase(accountRepository, conversationRepository, identityRepository, resolver, chatService, cfg)
	authUsecaseInstance := authUsecase.NewAuthUsecase(cfg)
	if !authUsecaseInstance.Enabled() {
		log.Printf("[WARN] JWT_SECRET not configured, API routes are unauthenticated")
	}

	// Background sync
	syncScheduler, err := scheduler.NewSyncScheduler(chatUsecaseInstance, cfg.SyncSchedule)
	if err != nil {
		log.Fatal("Failed to create sync scheduler:", err)
	}
	syncScheduler.Start()
	defer syncScheduler.Stop()

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, chatUsecaseInstance, resolver, cfg)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
