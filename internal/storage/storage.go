package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fuelgrid/gridauth/internal/config"
	"github.com/fuelgrid/gridauth/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrRoleNotFound    = errors.New("role not found")
	ErrSessionNotFound = errors.New("session not found")
)

type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserDisplayName(ctx context.Context, id, name string) error
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	UpdateUserLastLogin(ctx context.Context, id string) error
	ListUsers(ctx context.Context, tenantID string, page, pageSize int, search string) ([]models.User, int64, error)

	CreateRole(ctx context.Context, role *models.Role) error
	GetRoleByCode(ctx context.Context, code string) (*models.Role, error)
	AssignRole(ctx context.Context, userID string, roleID int64, position int) error

	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
	DeactivateSession(ctx context.Context, id string) error
	DeactivateUserSessions(ctx context.Context, userID string) error
	ListUserSessions(ctx context.Context, userID string) ([]models.Session, error)
}

type PostgresStorage struct {
	db *gorm.DB
}

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.RoleAssignment{},
		&models.Session{},
	); err != nil {
		return nil, err
	}

	return &PostgresStorage{db: db}, nil
}

func (s *PostgresStorage) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	return s.db.WithContext(ctx).Create(user).Error
}

// GetUserByEmail loads a user with its role assignments in assignment order.
// Email lookup is case-insensitive.
func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.preloadRoles(ctx).First(&user, "email = ?", NormalizeEmail(email)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.preloadRoles(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStorage) preloadRoles(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Roles", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Preload("Roles.Role")
}

func (s *PostgresStorage) UpdateUserDisplayName(ctx context.Context, id, name string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("display_name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateUserPassword stores a bcrypt hash and clears the legacy columns so
// the old scheme can never be used for the account again.
func (s *PostgresStorage) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"legacy_salt":   "",
			"legacy_hash":   "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStorage) UpdateUserLastLogin(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("last_login", time.Now()).Error
}

func (s *PostgresStorage) ListUsers(ctx context.Context, tenantID string, page, pageSize int, search string) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{}).Where("tenant_id = ?", tenantID)

	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(display_name) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	offset := (page - 1) * pageSize
	err := query.
		Preload("Roles", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Preload("Roles.Role").
		Order("created_at DESC").
		Offset(offset).Limit(pageSize).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (s *PostgresStorage) CreateRole(ctx context.Context, role *models.Role) error {
	return s.db.WithContext(ctx).Create(role).Error
}

func (s *PostgresStorage) GetRoleByCode(ctx context.Context, code string) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).First(&role, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (s *PostgresStorage) AssignRole(ctx context.Context, userID string, roleID int64, position int) error {
	return s.db.WithContext(ctx).Create(&models.RoleAssignment{
		UserID:   userID,
		RoleID:   roleID,
		Position: position,
	}).Error
}

func (s *PostgresStorage) CreateSession(ctx context.Context, session *models.Session) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *PostgresStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *PostgresStorage) SaveSession(ctx context.Context, session *models.Session) error {
	return s.db.WithContext(ctx).Save(session).Error
}

func (s *PostgresStorage) DeactivateSession(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeactivateUserSessions bulk-invalidates every session belonging to the
// user, used on password change.
func (s *PostgresStorage) DeactivateUserSessions(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND active = ?", userID, true).
		Update("active", false).Error
}

func (s *PostgresStorage) ListUserSessions(ctx context.Context, userID string) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("issued_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// InMemoryStorage backs tests and local development.
type InMemoryStorage struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	roles    map[int64]*models.Role
	sessions map[string]*models.Session
	nextRole int64
	nextAsn  int64
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		users:    make(map[string]*models.User),
		roles:    make(map[int64]*models.Role),
		sessions: make(map[string]*models.Session),
	}
}

func (s *InMemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.Email = NormalizeEmail(user.Email)
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *InMemoryStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return s.withRoles(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *InMemoryStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.withRoles(u), nil
}

// withRoles returns a copy with assignments ordered by position and role
// records attached, mirroring the Postgres preload.
func (s *InMemoryStorage) withRoles(u *models.User) *models.User {
	cp := *u
	cp.Roles = append([]models.RoleAssignment(nil), u.Roles...)
	sort.SliceStable(cp.Roles, func(i, j int) bool {
		if cp.Roles[i].Position != cp.Roles[j].Position {
			return cp.Roles[i].Position < cp.Roles[j].Position
		}
		return cp.Roles[i].ID < cp.Roles[j].ID
	})
	for i := range cp.Roles {
		if r, ok := s.roles[cp.Roles[i].RoleID]; ok {
			cp.Roles[i].Role = *r
		}
	}
	return &cp
}

func (s *InMemoryStorage) UpdateUserDisplayName(ctx context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.DisplayName = name
	return nil
}

func (s *InMemoryStorage) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.LegacySalt = ""
	u.LegacyHash = ""
	return nil
}

func (s *InMemoryStorage) UpdateUserLastLogin(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastLogin = time.Now()
	return nil
}

func (s *InMemoryStorage) ListUsers(ctx context.Context, tenantID string, page, pageSize int, search string) ([]models.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(search)
	var matched []models.User
	for _, u := range s.users {
		if u.TenantID != tenantID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.DisplayName), search) {
			continue
		}
		matched = append(matched, *s.withRoles(u))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	offset := (page - 1) * pageSize
	if offset >= len(matched) {
		return []models.User{}, total, nil
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (s *InMemoryStorage) CreateRole(ctx context.Context, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role.ID == 0 {
		s.nextRole++
		role.ID = s.nextRole
	}
	cp := *role
	s.roles[role.ID] = &cp
	return nil
}

func (s *InMemoryStorage) GetRoleByCode(ctx context.Context, code string) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.Code == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrRoleNotFound
}

func (s *InMemoryStorage) AssignRole(ctx context.Context, userID string, roleID int64, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if _, ok := s.roles[roleID]; !ok {
		return ErrRoleNotFound
	}
	s.nextAsn++
	u.Roles = append(u.Roles, models.RoleAssignment{
		ID:       s.nextAsn,
		UserID:   userID,
		RoleID:   roleID,
		Position: position,
	})
	return nil
}

func (s *InMemoryStorage) CreateSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *InMemoryStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *InMemoryStorage) SaveSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *InMemoryStorage) DeactivateSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Active = false
	return nil
}

func (s *InMemoryStorage) DeactivateUserSessions(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			sess.Active = false
		}
	}
	return nil
}

func (s *InMemoryStorage) ListUserSessions(ctx context.Context, userID string) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sessions []models.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Active {
			sessions = append(sessions, *sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].IssuedAt.After(sessions[j].IssuedAt)
	})
	return sessions, nil
}

// NormalizeEmail lowercases and trims an email so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
}
