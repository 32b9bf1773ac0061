package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ksred/klear-splitter/internal/accounts"
	"github.com/ksred/klear-splitter/internal/types"
	"github.com/ksred/klear-splitter/pkg/response"
)

var (
	ErrTokenGeneration = errors.New("failed to generate token")
	ErrInvalidToken    = errors.New("invalid token")
)

// DefaultTokenTTL is the lifetime of an issued access token
const DefaultTokenTTL = 24 * time.Hour

// Credentials is the signup/login request body
type Credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Claims represents the JWT claims structure. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Service issues and validates access tokens for registered users
type Service struct {
	jwtSecret []byte
	tokenTTL  time.Duration
	accounts  *accounts.Service
}

// NewService creates a new authentication service with the given JWT secret
func NewService(jwtSecret string, tokenTTL time.Duration, accountService *accounts.Service) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Service{
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		accounts:  accountService,
	}
}

// Signup registers a user and returns a token for them
func (s *Service) Signup(creds Credentials) (*types.TokenResponse, error) {
	user, err := s.accounts.Register(creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}
	return s.GenerateToken(user)
}

// Login verifies credentials and returns a fresh token
func (s *Service) Login(creds Credentials) (*types.TokenResponse, error) {
	user, err := s.accounts.Authenticate(creds.Email, creds.Password)
	if err != nil {
		return nil, err
	}
	return s.GenerateToken(user)
}

// Me returns the profile of the authenticated user
func (s *Service) Me(userID string) (*types.ProfileResponse, error) {
	user, err := s.accounts.FindByID(userID)
	if err != nil {
		return nil, err
	}
	return &types.ProfileResponse{
		UserID:  user.ID,
		Email:   user.Email,
		Balance: user.Balance,
	}, nil
}

// GenerateToken signs an HS256 token for user
func (s *Service) GenerateToken(user *accounts.User) (*types.TokenResponse, error) {
	now := time.Now()
	expiration := now.Add(s.tokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		Email: user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &types.TokenResponse{
		AccessToken: tokenString,
		Expiration:  expiration,
	}, nil
}

// ValidateToken verifies signature and expiry and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// SignupHandler handles POST requests registering a new user
func (h *GinHandlers) SignupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.Signup(creds)
		response.Handle(c, token, err)
	}
}

// LoginHandler handles POST requests exchanging credentials for a token
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.Login(creds)
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			response.Unauthorized(c, "Invalid credentials")
			return
		}
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.OK(c, token)
	}
}

// MeHandler handles GET requests for the authenticated user's profile.
// Requires JWTAuth upstream.
func (h *GinHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := c.Get("claims")
		if !exists {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		userID := GetUserID(claims)
		if userID == "" {
			response.Unauthorized(c, "Invalid user ID in token")
			return
		}

		profile, err := h.service.Me(userID)
		response.Handle(c, profile, err)
	}
}

// GetUserID extracts the subject from JWT map claims.
// Returns empty string if the subject is missing.
func GetUserID(claims interface{}) string {
	if jwtClaims, ok := claims.(jwt.MapClaims); ok {
		if sub, ok := jwtClaims["sub"].(string); ok {
			return sub
		}
	}
	return ""
}
