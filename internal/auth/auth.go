package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/openbid/auction-api/pkg/apperrors"
	"github.com/openbid/auction-api/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = fmt.Errorf("email already registered: %w", apperrors.ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", apperrors.ErrUnauthorized)
	ErrInvalidRole        = fmt.Errorf("role must be buyer or seller: %w", apperrors.ErrValidation)
	ErrUserNotFound       = fmt.Errorf("user: %w", apperrors.ErrNotFound)
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Service handles registration, login and token validation
type Service struct {
	db        *Database
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewService creates a new authentication service backed by the given database
func NewService(gormDB *gorm.DB, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register creates a new user account. The admin role cannot be
// self-assigned; an unspecified role defaults to buyer.
func (s *Service) Register(req RegisterRequest) (*User, error) {
	role := req.Role
	if role == "" {
		role = RoleBuyer
	}
	if role != RoleBuyer && role != RoleSeller {
		return nil, ErrInvalidRole
	}

	existing, err := s.db.GetUserByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	user, err := NewUser(req.Email, req.Password, req.DisplayName, role)
	if err != nil {
		return nil, err
	}

	if err := s.db.CreateUser(user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login verifies credentials and issues a signed token
func (s *Service) Login(email, password string) (*TokenResponse, error) {
	user, err := s.db.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	expiration := time.Now().Add(s.tokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID: user.UserID,
		Email:  user.Email,
		Role:   user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
		User:       user,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
// Verifies token signature, signing method and expiration
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", apperrors.ErrUnauthorized)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token claims: %w", apperrors.ErrUnauthorized)
}

// GetProfile retrieves a user by ID
func (s *Service) GetProfile(userID string) (*User, error) {
	user, err := s.db.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile changes the display name. Email and role are immutable
// through this path.
func (s *Service) UpdateProfile(userID, displayName string) (*User, error) {
	user, err := s.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	user.DisplayName = displayName
	user.UpdatedAt = time.Now()
	if err := s.db.UpdateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// DisplayName resolves a user ID to the name shown in bid events.
func (s *Service) DisplayName(userID string) (string, error) {
	user, err := s.GetProfile(userID)
	if err != nil {
		return "", err
	}
	return user.DisplayName, nil
}

// GinHandlers contains HTTP handlers for authentication and profile endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RegisterHandler handles POST requests to create user accounts
func (h *GinHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		user, err := h.service.Register(req)
		response.Handle(c, user, err)
	}
}

// LoginHandler handles POST requests to exchange credentials for a JWT
func (h *GinHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.Login(req.Email, req.Password)
		response.Handle(c, token, err)
	}
}

// GetProfileHandler handles GET requests for the authenticated user's profile
func (h *GinHandlers) GetProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		user, err := h.service.GetProfile(userID)
		response.Handle(c, user, err)
	}
}

// UpdateProfileHandler handles PUT requests to update the authenticated
// user's profile
func (h *GinHandlers) UpdateProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userID")
		if userID == "" {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		var req UpdateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		user, err := h.service.UpdateProfile(userID, req.DisplayName)
		response.Handle(c, user, err)
	}
}
