package store

import (
	"context" // Request-scoped cancellation for queries
	"errors"  // Error matching
	"fmt"     // Error wrapping
	"time"    // Transaction date default

	"exchange_api/internal/domain" // Importing domain models

	mysqldriver "github.com/go-sql-driver/mysql" // Raw MySQL error codes
	"gorm.io/gorm"                               // GORM ORM library
)

// MySQL server error numbers
const (
	errDuplicateEntry = 1062 // ER_DUP_ENTRY
	errNoReferenced   = 1452 // ER_NO_REFERENCED_ROW_2
)

var (
	// ErrNotFound is returned when the referenced record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConstraintViolation is returned when a write hits the unique email index
	ErrConstraintViolation = errors.New("unique constraint violated")
)

// UserFields are the mutable columns of a user
type UserFields struct {
	Name        string
	Email       string
	Phone       string
	Address     string
	MemberSince string
}

// Store persists users and their transactions with GORM
type Store struct {
	db *gorm.DB
}

// New creates a Store on top of an open GORM connection
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ListUsers returns every user ordered by ascending id
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	if err := s.db.WithContext(ctx).Order("id asc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser returns the user with the given id
func (s *Store) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate("get user", err)
	}
	return &user, nil
}

// FirstUser returns the user with the smallest id
func (s *Store) FirstUser(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).Order("id asc").Take(&user).Error; err != nil {
		return nil, translate("first user", err)
	}
	return &user, nil
}

// FindUserByEmail looks a user up by exact email match
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error; err != nil {
		return nil, translate("find user by email", err)
	}
	return &user, nil
}

// InsertUser creates the user and sets its generated id
func (s *Store) InsertUser(ctx context.Context, user *domain.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return translate("insert user", err)
	}
	return nil
}

// UpdateUser overwrites the mutable columns of the user with the given id
func (s *Store) UpdateUser(ctx context.Context, id uint, fields UserFields) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		user.Name = fields.Name
		user.Email = fields.Email
		user.Phone = fields.Phone
		user.Address = fields.Address
		user.MemberSince = fields.MemberSince
		return tx.Model(&user).Updates(map[string]any{
			"name":         user.Name,
			"email":        user.Email,
			"phone":        user.Phone,
			"address":      user.Address,
			"member_since": user.MemberSince,
		}).Error
	})
	if err != nil {
		return nil, translate("update user", err)
	}
	return &user, nil
}

// DeleteUser removes the user and all of its transactions atomically
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Cascade: the user's transactions go in the same transaction
		if err := tx.Where("user_id = ?", id).Delete(&domain.Transaction{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound // Rolls back the transaction delete as well
		}
		return nil
	})
	if err != nil {
		return translate("delete user", err)
	}
	return nil
}

// InsertTransaction records a transaction for an existing user
func (s *Store) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	t.ApplyDefaults(time.Now())
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return translate("insert transaction", err)
	}
	return nil
}

// GetTransaction returns the transaction with the given id
func (s *Store) GetTransaction(ctx context.Context, id uint) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, translate("get transaction", err)
	}
	return &t, nil
}

// ListTransactionsByUser returns the user's transactions, newest first
func (s *Store) ListTransactionsByUser(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	txs := []domain.Transaction{}
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date desc").
		Order("id desc").
		Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// translate maps driver and GORM errors onto the store's sentinel errors
func translate(op string, err error) error {
	var myErr *mysqldriver.MySQLError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrConstraintViolation)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrNotFound
	case errors.As(err, &myErr) && myErr.Number == errDuplicateEntry:
		return fmt.Errorf("%s: %w", op, ErrConstraintViolation)
	case errors.As(err, &myErr) && myErr.Number == errNoReferenced:
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
