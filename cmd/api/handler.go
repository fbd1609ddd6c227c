package api

import (
	authUsecase "chatsync-backend/internal/auth/usecase"
	chatDelivery "chatsync-backend/internal/chat/delivery"
	chatUsecasePkg "chatsync-backend/internal/chat/usecase"
	identityDelivery "chatsync-backend/internal/identity/delivery"
	identityUsecase "chatsync-backend/internal/identity/usecase"
	"chatsync-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase     authUsecase.AuthUsecase
	config          *config.Config
	chatHandler     *chatDelivery.ChatHandler
	identityHandler *identityDelivery.IdentityHandler
}

func NewHandler(authUc authUsecase.AuthUsecase, chatUc chatUsecasePkg.ChatUsecase, resolver identityUsecase.Resolver, cfg *config.Config) *Handler {
	return &Handler{
		authUsecase:     authUc,
		config:          cfg,
		chatHandler:     chatDelivery.NewChatHandler(chatUc),
		identityHandler: identityDelivery.NewIdentityHandler(resolver),
	}
}

// Engine builds the gin engine with middleware and routes
func (h *Handler) Engine() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.chatHandler, h.identityHandler)
	return r
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	return h.Engine().Run(addr)
}
