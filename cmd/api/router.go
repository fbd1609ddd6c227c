package api

import (
	"net/http"

	"chatsync-backend/internal/auth/delivery"
	authUsecase "chatsync-backend/internal/auth/usecase"
	chatDelivery "chatsync-backend/internal/chat/delivery"
	identityDelivery "chatsync-backend/internal/identity/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, chatHandler *chatDelivery.ChatHandler, identityHandler *identityDelivery.IdentityHandler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Account routes (protected)
		accounts := api.Group("/accounts")
		accounts.Use(delivery.AuthMiddleware(authUsecase))
		{
			accounts.POST("", chatHandler.CreateAccount)
			accounts.GET("", chatHandler.ListAccounts)
			accounts.POST("/:id/sync", chatHandler.SyncAccount)
			accounts.GET("/:id/conversations", chatHandler.ListConversations)
		}

		// Identity routes (protected), ids contain slashes
		identities := api.Group("/identities")
		identities.Use(delivery.AuthMiddleware(authUsecase))
		{
			identities.GET("/*externalUserId", identityHandler.GetIdentity)
			identities.PUT("/*externalUserId", identityHandler.SetIdentity)
			identities.DELETE("/*externalUserId", identityHandler.DeleteIdentity)
		}
	}
}
