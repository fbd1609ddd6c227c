package usecase

import (
	"errors"

	authdomain "chatsync-backend/internal/auth/domain"
	"chatsync-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthUsecase validates the access tokens issued by the surrounding application
type AuthUsecase interface {
	// Enabled is false when no JWT secret is configured
	Enabled() bool
	ValidateToken(tokenString string) (*authdomain.Principal, error)
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	config *config.Config
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(cfg *config.Config) AuthUsecase {
	return &authUsecase{
		config: cfg,
	}
}

func (u *authUsecase) Enabled() bool {
	return u.config.JWTSecret != ""
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, errors.New("invalid token claims")
	}
	email, _ := claims["email"].(string)

	return &authdomain.Principal{UserID: userID, Email: email}, nil
}
