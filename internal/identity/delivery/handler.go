package delivery

import (
	"errors"
	"net/http"
	"strings"

	identitydto "chatsync-backend/internal/identity/dto"
	"chatsync-backend/internal/identity/usecase"

	"github.com/gin-gonic/gin"
)

type IdentityHandler struct {
	resolver usecase.Resolver
}

func NewIdentityHandler(resolver usecase.Resolver) *IdentityHandler {
	return &IdentityHandler{
		resolver: resolver,
	}
}

// externalUserID reads the catch-all param, ids look like "users/123"
func externalUserID(c *gin.Context) string {
	return strings.Trim(c.Param("externalUserId"), "/ ")
}

func (h *IdentityHandler) GetIdentity(c *gin.Context) {
	id := externalUserID(c)
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "external user id is required"})
		return
	}

	identity, err := h.resolver.Lookup(id)
	if err != nil {
		if errors.Is(err, usecase.ErrIdentityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, identity)
}

func (h *IdentityHandler) SetIdentity(c *gin.Context) {
	id := externalUserID(c)
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "external user id is required"})
		return
	}

	var req identitydto.SetIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, err := h.resolver.SetIdentity(id, req.DisplayName, req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, identity)
}

func (h *IdentityHandler) DeleteIdentity(c *gin.Context) {
	id := externalUserID(c)
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "external user id is required"})
		return
	}

	if err := h.resolver.DeleteIdentity(id); err != nil {
		if errors.Is(err, usecase.ErrIdentityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "identity not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "identity deleted"})
}
