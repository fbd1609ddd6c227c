package delivery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	identitydomain "chatsync-backend/internal/identity/domain"
	"chatsync-backend/internal/identity/repository"
	"chatsync-backend/internal/identity/usecase"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newRouter(t *testing.T) (*gin.Engine, repository.IdentityRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&identitydomain.Identity{}))

	store := repository.NewIdentityRepository(db)
	h := NewIdentityHandler(usecase.NewResolver(store))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/identities/*externalUserId", h.GetIdentity)
	r.PUT("/identities/*externalUserId", h.SetIdentity)
	r.DELETE("/identities/*externalUserId", h.DeleteIdentity)
	return r, store
}

func TestIdentityLifecycle(t *testing.T) {
	router, store := newRouter(t)

	_, err := store.Upsert(identitydomain.NewIdentity("users/42", "User 42", "", 30, identitydomain.ProvenanceHeuristicFallback))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/identities/users/42", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got identitydomain.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "users/42", got.ExternalUserID)
	assert.Equal(t, 30, got.Confidence)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/identities/users/42",
		strings.NewReader(`{"display_name":"Dana","email":"Dana@Y.com"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Dana", got.DisplayName)
	assert.Equal(t, "dana@y.com", got.Email)
	assert.Equal(t, identitydomain.ConfidenceManual, got.Confidence)
	assert.Equal(t, identitydomain.ProvenanceManual, got.ResolvedBy)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/identities/users/42", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/identities/users/42", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/identities/users/42", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetIdentityValidation(t *testing.T) {
	router, _ := newRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/identities/users/7", strings.NewReader(`{"email":"x@y.com"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/identities/", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
