package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/school-system/reportgen/internal/config"
	"github.com/school-system/reportgen/internal/models"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotActive      = errors.New("user not active")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrInvalidRole        = errors.New("invalid role")
)

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// ValidRole reports whether role can be assigned to a user.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleTeacher
}

type AuthService struct {
	db     *gorm.DB
	cfg    *config.Config
	params *argon2id.Params
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	TokenType string    `json:"typ"`
	jwt.RegisteredClaims
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	params := &argon2id.Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}

	return &AuthService{
		db:     db,
		cfg:    cfg,
		params: params,
	}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, s.params)
}

func (s *AuthService) VerifyPassword(hash, password string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, hash)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, *models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !user.IsActive {
		return nil, nil, ErrUserNotActive
	}

	match, err := s.VerifyPassword(user.PasswordHash, password)
	if err != nil || !match {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.GenerateTokenPair(ctx, &user)
	if err != nil {
		return nil, nil, err
	}

	return tokens, &user, nil
}

func (s *AuthService) GenerateTokenPair(ctx context.Context, user *models.User) (*TokenPair, error) {
	now := time.Now()

	accessClaims := &Claims{
		UserID:    user.ID,
		Role:      user.Role,
		Email:     user.Email,
		TokenType: tokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}
	accessTokenString, err := s.sign(accessClaims)
	if err != nil {
		return nil, err
	}

	// The jti keeps two refresh tokens issued in the same second distinct.
	refreshClaims := &Claims{
		UserID:    user.ID,
		TokenType: tokenRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.RefreshExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}
	refreshTokenString, err := s.sign(refreshClaims)
	if err != nil {
		return nil, err
	}

	rt := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshTokenString,
		ExpiresAt: now.Add(s.cfg.JWT.RefreshExpiry),
	}
	if err := s.db.WithContext(ctx).Create(rt).Error; err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(s.cfg.JWT.AccessExpiry.Seconds()),
	}, nil
}

func (s *AuthService) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWT.Secret))
}

func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenRefresh {
		return nil, ErrInvalidToken
	}

	db := s.db.WithContext(ctx)

	var rt models.RefreshToken
	if err := db.Where("token = ?", refreshToken).First(&rt).Error; err != nil {
		return nil, ErrInvalidToken
	}
	if rt.Revoked || time.Now().After(rt.ExpiresAt) {
		return nil, ErrTokenRevoked
	}

	var user models.User
	if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserNotActive
	}

	res := db.Model(&rt).Where("revoked = ?", false).Update("revoked", true)
	if res.Error != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrTokenRevoked
	}

	return s.GenerateTokenPair(ctx, &user)
}

// VerifyToken validates an access token.
func (s *AuthService) VerifyToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

func (s *AuthService) RevokeToken(ctx context.Context, refreshToken string) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ?", refreshToken).
		Update("revoked", true).Error
}

func (s *AuthService) CreateUser(ctx context.Context, user *models.User, password string) error {
	if !ValidRole(user.Role) {
		return ErrInvalidRole
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.PasswordHash = hash
	return s.db.WithContext(ctx).Create(user).Error
}
