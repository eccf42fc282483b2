package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/example/qr-pointage/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// UpdateUser keeps the stored hash when passwordHash is empty.
	UpdateUser(ctx context.Context, user User, passwordHash string) (User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)
}

// UserSettings tunes account validation.
type UserSettings struct {
	CompanyDomain string
}

// UserService orchestrates validation, authorization, and persistence for users.
// It also resolves roles for the attendance service.
type UserService struct {
	users         UserRepository
	hashPassword  PasswordHasher
	idGenerator   func() string
	now           func() time.Time
	companyDomain string
	logger        *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, hasher PasswordHasher, idGenerator func() string, now func() time.Time, settings UserSettings) *UserService {
	return NewUserServiceWithLogger(users, hasher, idGenerator, now, settings, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(users UserRepository, hasher PasswordHasher, idGenerator func() string, now func() time.Time, settings UserSettings, logger *slog.Logger) *UserService {
	if hasher == nil {
		hasher = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:         users,
		hashPassword:  hasher,
		idGenerator:   idGenerator,
		now:           now,
		companyDomain: normalizeDomain(settings.CompanyDomain),
		logger:        defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input and persists a new user for managers.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateUser", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID, "role", user.Role).InfoContext(ctx, "user created")
	}()

	if !params.Principal.IsManager() {
		err = ErrUnauthorized
		return
	}

	user, err = s.create(ctx, params.Input)
	return
}

// UpdateUser changes the profile, role or password of a user for managers.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateUser",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	if !params.Principal.IsManager() {
		err = ErrUnauthorized
		return
	}

	var existing User
	existing, err = s.users.GetUser(ctx, params.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	normalized := normalizeUserInput(params.Input)
	vErr := s.validateUserInput(normalized, false)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var passwordHash string
	if normalized.Password != "" {
		if passwordHash, err = s.hashPassword(normalized.Password); err != nil {
			err = fmt.Errorf("hash password: %w", err)
			return
		}
	}

	updated := existing
	updated.Email = normalized.Email
	updated.DisplayName = normalized.DisplayName
	updated.Role = normalized.Role
	updated.UpdatedAt = s.now()

	user, err = s.users.UpdateUser(ctx, updated, passwordHash)
	err = mapUserRepoError(err)
	return
}

// DeleteUser removes a user without attendance records when requested by a manager.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteUser", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user deleted")
	}()

	if !principal.IsManager() {
		return ErrUnauthorized
	}
	if principal.UserID == userID {
		return fieldError("user_id", "managers cannot delete their own account")
	}
	return mapUserRepoError(s.users.DeleteUser(ctx, userID))
}

// ListUsers returns all users ordered by e-mail for managers.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.IsManager() {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	out := make([]User, len(users))
	copy(out, users)

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Email, out[j].Email) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})

	return out, nil
}

// GetUser returns a user to itself or to a manager.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if principal.UserID != userID && !principal.IsManager() {
		return User{}, ErrUnauthorized
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return user, nil
}

// RoleOf returns the stored role of userID.
func (s *UserService) RoleOf(ctx context.Context, userID string) (Role, error) {
	if s == nil || s.users == nil {
		return "", fmt.Errorf("user repository not configured")
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", mapUserRepoError(err)
	}
	return user.Role, nil
}

// EnsureBootstrapManager creates the configured manager account unless a user
// with that e-mail already exists. A blank e-mail disables seeding.
func (s *UserService) EnsureBootstrapManager(ctx context.Context, manager BootstrapManager) (user User, created bool, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}
	email := strings.ToLower(strings.TrimSpace(manager.Email))
	if email == "" {
		return
	}

	logger := s.loggerWith(ctx, "EnsureBootstrapManager", "email", email)

	user, err = s.users.GetUserByEmail(ctx, email)
	if err == nil {
		if user.Role != RoleManager {
			logger.WarnContext(ctx, "bootstrap account exists without manager role", "user_id", user.ID)
		}
		return user, false, nil
	}
	if !isNotFound(err) {
		err = mapUserRepoError(err)
		return
	}

	displayName := manager.DisplayName
	if strings.TrimSpace(displayName) == "" {
		displayName = "Manager"
	}
	user, err = s.create(ctx, UserInput{
		Email:       email,
		DisplayName: displayName,
		Role:        RoleManager,
		Password:    manager.Password,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to seed manager", "error", err, "error_kind", ErrorKind(err))
		return User{}, false, err
	}
	logger.InfoContext(ctx, "manager seeded", "user_id", user.ID)
	return user, true, nil
}

func (s *UserService) create(ctx context.Context, input UserInput) (User, error) {
	normalized := normalizeUserInput(input)
	if normalized.Role == "" {
		normalized.Role = RoleEmployee
	}
	if vErr := s.validateUserInput(normalized, true); vErr.HasErrors() {
		return User{}, vErr
	}

	passwordHash, err := s.hashPassword(normalized.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := User{
		ID:          s.idGenerator(),
		Email:       normalized.Email,
		DisplayName: normalized.DisplayName,
		Role:        normalized.Role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	persisted, err := s.users.CreateUser(ctx, user, passwordHash)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return persisted, nil
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Role:        Role(strings.ToLower(strings.TrimSpace(string(input.Role)))),
		Password:    input.Password,
	}
}

func (s *UserService) validateUserInput(input UserInput, requirePassword bool) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	} else if !emailInDomain(input.Email, s.companyDomain) {
		vErr.add("email", "email must belong to the company domain")
	}

	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}

	if _, err := ParseRole(string(input.Role)); err != nil {
		vErr.add("role", "role must be employee or manager")
	}

	switch {
	case input.Password == "" && requirePassword:
		vErr.add("password", "password is required")
	case input.Password != "" && len(input.Password) < MinPasswordLength:
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	return vErr
}

func mapUserRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrUserHasRecords
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fieldError("user", "user violates a storage constraint")
	}
	return err
}
