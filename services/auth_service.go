package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/popularity-cup/models"
	"github.com/Dosada05/popularity-cup/repositories"
	"github.com/Dosada05/popularity-cup/utils"
)

const (
	ClaimUserID      = "user_id"
	ClaimRole        = "role"
	ClaimDisplayName = "name"

	DefaultTokenTTL = 24 * time.Hour

	minPasswordLength = 8
	// bcrypt игнорирует всё после 72 байт.
	maxPasswordBytes  = 72
	maxDisplayNameLen = 64
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

type AuthService interface {
	Register(ctx context.Context, input models.RegisterInput) (models.Actor, error)
	// Login checks the password of a registered user and signs a bearer token.
	// A correct staff key grants the staff role on top.
	Login(ctx context.Context, creds models.Credentials) (string, models.Actor, error)
}

type AuthConfig struct {
	JWTSecret    string
	StaffKeyHash string
	TokenTTL     time.Duration
	// BcryptCost defaults to utils.BcryptCost.
	BcryptCost int
}

type authService struct {
	users        repositories.UserRepository
	jwtSecret    []byte
	staffKeyHash string
	ttl          time.Duration
	bcryptCost   int
	now          func() time.Time
	logger       *slog.Logger
}

func NewAuthService(users repositories.UserRepository, cfg AuthConfig, logger *slog.Logger) AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = utils.BcryptCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		users:        users,
		jwtSecret:    []byte(cfg.JWTSecret),
		staffKeyHash: cfg.StaffKeyHash,
		ttl:          cfg.TokenTTL,
		bcryptCost:   cfg.BcryptCost,
		now:          time.Now,
		logger:       logger,
	}
}

func (s *authService) Register(ctx context.Context, input models.RegisterInput) (models.Actor, error) {
	userID := strings.TrimSpace(input.UserID)
	if !userIDPattern.MatchString(userID) {
		return models.Actor{}, fmt.Errorf("%w: user_id must be 3-32 letters, digits, '.', '_' or '-'", ErrValidationFailed)
	}
	if len(input.Password) < minPasswordLength || len(input.Password) > maxPasswordBytes {
		return models.Actor{}, fmt.Errorf("%w: password must be %d to %d bytes long", ErrValidationFailed, minPasswordLength, maxPasswordBytes)
	}
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		name = userID
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		return models.Actor{}, fmt.Errorf("%w: display_name is longer than %d characters", ErrValidationFailed, maxDisplayNameLen)
	}

	hash, err := utils.HashPasswordWithCost(input.Password, s.bcryptCost)
	if err != nil {
		return models.Actor{}, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user := &models.User{
		ID:           userID,
		DisplayName:  name,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserExists) {
			return models.Actor{}, ErrUserIDTaken
		}
		return models.Actor{}, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", userID))
	return models.Actor{ID: user.ID, DisplayName: user.DisplayName, Role: models.RoleMember}, nil
}

func (s *authService) Login(ctx context.Context, creds models.Credentials) (string, models.Actor, error) {
	userID := strings.TrimSpace(creds.UserID)
	if userID == "" || creds.Password == "" {
		return "", models.Actor{}, fmt.Errorf("%w: user_id and password are required", ErrValidationFailed)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return "", models.Actor{}, ErrAuthenticationFailed
		}
		return "", models.Actor{}, fmt.Errorf("failed to find user: %w", err)
	}
	if !utils.CheckPasswordHash(creds.Password, user.PasswordHash) {
		s.logger.WarnContext(ctx, "failed login", slog.String("user_id", userID))
		return "", models.Actor{}, ErrAuthenticationFailed
	}

	role := models.RoleMember
	if creds.StaffKey != "" {
		if s.staffKeyHash == "" || !utils.CheckPasswordHash(creds.StaffKey, s.staffKeyHash) {
			s.logger.WarnContext(ctx, "rejected staff key", slog.String("user_id", userID))
			return "", models.Actor{}, ErrAuthenticationFailed
		}
		role = models.RoleStaff
	}

	actor := models.Actor{ID: user.ID, DisplayName: user.DisplayName, Role: role}
	token, err := s.signToken(actor)
	if err != nil {
		return "", models.Actor{}, err
	}
	return token, actor, nil
}

func (s *authService) signToken(actor models.Actor) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		ClaimUserID:      actor.ID,
		ClaimRole:        string(actor.Role),
		ClaimDisplayName: actor.DisplayName,
		"exp":            now.Add(s.ttl).Unix(),
		"iat":            now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
