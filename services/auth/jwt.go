package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pk55-api/database"
	"pk55-api/models"
	"pk55-api/utils"
)

const DefaultTokenDuration = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserExists         = errors.New("user already exists")
	ErrMissingCredentials = errors.New("username and password are required")
)

type JWTService struct {
	secretKey []byte
	issuer    string
	duration  time.Duration
	users     database.UserStore
}

type Claims struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewJWTService(secretKey, issuer string, duration time.Duration, users database.UserStore) *JWTService {
	if duration <= 0 {
		duration = DefaultTokenDuration
	}
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		duration:  duration,
		users:     users,
	}
}

// Authenticate checks the credentials against the stored bcrypt hash and
// issues a token. Unknown user and wrong password are indistinguishable.
func (j *JWTService) Authenticate(ctx context.Context, username, password string) (*models.AuthResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := j.users.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !utils.CheckPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}

	return j.issue(models.AuthUser{ID: user.ID, Username: user.Username})
}

// Register creates a user and issues a token for it.
func (j *JWTService) Register(ctx context.Context, username, password string) (*models.AuthResponse, error) {
	user, err := j.CreateUser(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return j.issue(models.AuthUser{ID: user.ID, Username: user.Username})
}

// CreateUser stores a new user with a hashed password.
func (j *JWTService) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{Username: username, Password: hash}
	if err := j.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return user, nil
}

func (j *JWTService) issue(user models.AuthUser) (*models.AuthResponse, error) {
	token, expiresAt, err := j.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}
	return &models.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// GenerateToken signs an HS256 token for user.
func (j *JWTService) GenerateToken(user models.AuthUser) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(j.duration)
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken parses a token and returns the identity it carries.
func (j *JWTService) ValidateToken(tokenString string) (*models.AuthUser, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}

	return &models.AuthUser{
		ID:       claims.UserID,
		Username: claims.Username,
	}, nil
}
