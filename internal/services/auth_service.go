package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bistro/internal/models"
	"bistro/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by LoginUser for any unknown user or wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService handles registration, login and token validation.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenDurat time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour,
	}
}

// RegisterUser registers a new customer. The role is always customer; staff
// accounts are provisioned with EnsureStaffUser.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	user.Role = models.RoleCustomer
	return s.createUser(ctx, user)
}

// EnsureStaffUser creates the staff account username if it does not exist
// yet. A non-staff account already holding the name is a ConflictError.
func (s *AuthService) EnsureStaffUser(ctx context.Context, username, password string) error {
	if existing, err := s.userRepo.GetByUsername(ctx, username); err == nil && existing != nil {
		if existing.Role != models.RoleStaff {
			return &ConflictError{Message: fmt.Sprintf("user '%s' exists with role %s, not staff", username, existing.Role)}
		}
		return nil
	}
	staff := &models.User{
		Username: username,
		Email:    username + "@staff.local",
		Password: password,
		Role:     models.RoleStaff,
	}
	if err := s.createUser(ctx, staff); err != nil {
		return fmt.Errorf("failed to seed staff user %s: %w", username, err)
	}
	log.Printf("Staff user %s created", username)
	return nil
}

func (s *AuthService) createUser(ctx context.Context, user *models.User) error {
	if existingUser, err := s.userRepo.GetByUsername(ctx, user.Username); err == nil && existingUser != nil {
		return &ConflictError{Message: fmt.Sprintf("username '%s' already taken", user.Username)}
	}
	if existingUser, err := s.userRepo.GetByEmail(ctx, user.Email); err == nil && existingUser != nil {
		return &ConflictError{Message: fmt.Sprintf("email '%s' already registered", user.Email)}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)

	if err := s.userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

// LoginUser authenticates a user and returns a signed JWT.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	role := user.Role
	if role == "" {
		role = models.RoleCustomer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(role),
		"exp":      time.Now().Add(s.tokenDurat).Unix(),
		"iat":      time.Now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// ActorFromClaims builds the actor identity carried by a validated token.
func ActorFromClaims(claims jwt.MapClaims) (models.Actor, error) {
	id, _ := claims["user_id"].(string)
	if id == "" {
		return models.Actor{}, fmt.Errorf("token has no user_id claim")
	}
	role, _ := claims["role"].(string)
	switch models.Role(role) {
	case models.RoleCustomer, models.RoleStaff:
	case "":
		role = string(models.RoleCustomer)
	default:
		return models.Actor{}, fmt.Errorf("token carries unsupported role %q", role)
	}
	return models.Actor{ID: id, Role: models.Role(role)}, nil
}
