package service

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks exchange_api/internal/service UserStore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"exchange_api/internal/cache"
	"exchange_api/internal/domain"
	"exchange_api/internal/store"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrConflict   = errors.New("a user with this email already exists")
	ErrBadRequest = errors.New("invalid user")
)

const listCacheKey = "users:all"

func userCacheKey(id uint) string {
	return "user:" + strconv.FormatUint(uint64(id), 10)
}

// UserStore is the persistence the service needs
type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id uint) (*domain.User, error)
	FirstUser(ctx context.Context) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	InsertUser(ctx context.Context, user *domain.User) error
	UpdateUser(ctx context.Context, id uint, fields store.UserFields) (*domain.User, error)
	DeleteUser(ctx context.Context, id uint) error
}

// Cache is a read-through cache for user reads. Get reports the key's
// generation; Set stores only if the generation is unchanged, and Delete
// advances it, so an invalidation always beats a concurrent read.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (found bool, gen int64, err error)
	Set(ctx context.Context, key string, gen int64, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// UserInput carries create and update requests. Nil optional fields mean
// "not supplied".
type UserInput struct {
	Name        string
	Email       string
	Phone       *string
	Address     *string
	MemberSince *string
}

// UserService applies normalization, validation and uniqueness policy in
// front of the store.
type UserService struct {
	store   UserStore
	cache   Cache
	ttl     time.Duration
	profile ProfileResolver
	now     func() time.Time
}

type Option func(*UserService)

// WithCache enables caching of Get and List for ttl
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *UserService) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithProfileResolver replaces the default lowest-id profile strategy
func WithProfileResolver(r ProfileResolver) Option {
	return func(s *UserService) { s.profile = r }
}

// WithClock overrides the time source used for memberSince defaults
func WithClock(now func() time.Time) Option {
	return func(s *UserService) { s.now = now }
}

func NewUserService(st UserStore, opts ...Option) *UserService {
	s := &UserService{
		store:   st,
		cache:   cache.Nop{},
		profile: LowestIDResolver{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns all users ordered by ascending id
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	found, gen, cerr := s.cacheGet(ctx, listCacheKey, &users)
	if found {
		return users, nil
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if cerr == nil {
		s.cacheSet(ctx, listCacheKey, gen, users)
	}
	return users, nil
}

// Get returns a single user
func (s *UserService) Get(ctx context.Context, id uint) (*domain.User, error) {
	key := userCacheKey(id)
	var cached domain.User
	found, gen, cerr := s.cacheGet(ctx, key, &cached)
	if found {
		return &cached, nil
	}
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if cerr == nil {
		s.cacheSet(ctx, key, gen, user)
	}
	return user, nil
}

// Create registers a new user. The email pre-check only produces a friendlier
// error; the unique index decides races.
func (s *UserService) Create(ctx context.Context, in UserInput) (*domain.User, error) {
	d := normalize(in)
	if in.MemberSince == nil {
		d.MemberSince = domain.FormatMemberSince(s.now())
	}
	if err := validateDraft(d); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, d.Email, 0); err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:        d.Name,
		Email:       d.Email,
		Phone:       d.Phone,
		Address:     d.Address,
		MemberSince: d.MemberSince,
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		return nil, conflict(err)
	}

	s.invalidate(ctx, listCacheKey)
	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User created")
	return user, nil
}

// Update replaces the user's fields. A nil MemberSince keeps the stored value.
func (s *UserService) Update(ctx context.Context, id uint, in UserInput) (*domain.User, error) {
	d := normalize(in)
	if err := validateDraft(d); err != nil {
		return nil, err
	}

	current, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	if err := s.ensureEmailFree(ctx, d.Email, id); err != nil {
		return nil, err
	}

	if in.MemberSince == nil {
		d.MemberSince = current.MemberSince
	}
	user, err := s.store.UpdateUser(ctx, id, store.UserFields{
		Name:        d.Name,
		Email:       d.Email,
		Phone:       d.Phone,
		Address:     d.Address,
		MemberSince: d.MemberSince,
	})
	if err != nil {
		return nil, notFound(conflict(err))
	}

	s.invalidate(ctx, userCacheKey(id), listCacheKey)
	logrus.WithFields(logrus.Fields{
		"user_id": id,
		"email":   user.Email,
	}).Info("User updated")
	return user, nil
}

// Delete removes the user together with its transactions
func (s *UserService) Delete(ctx context.Context, id uint) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return notFound(err)
	}
	s.invalidate(ctx, userCacheKey(id), listCacheKey)
	logrus.WithField("user_id", id).Info("User deleted")
	return nil
}

// GetProfile returns the user acting as the current profile
func (s *UserService) GetProfile(ctx context.Context) (*domain.User, error) {
	user, err := s.profile.ResolveProfile(ctx, s.store)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// UpdateProfile resolves the profile user and updates it like Update
func (s *UserService) UpdateProfile(ctx context.Context, in UserInput) (*domain.User, error) {
	profile, err := s.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, profile.ID, in)
}

// ensureEmailFree fails with ErrConflict when email belongs to a user other
// than self (0 matches no user).
func (s *UserService) ensureEmailFree(ctx context.Context, email string, self uint) error {
	existing, err := s.store.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return ErrConflict
	}
	return nil
}

// cacheGet logs failures; a non-nil error means gen is unknown and the
// loaded value must not be cached
func (s *UserService) cacheGet(ctx context.Context, key string, dest any) (bool, int64, error) {
	found, gen, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache read failed")
		return false, 0, err
	}
	return found, gen, nil
}

func (s *UserService) cacheSet(ctx context.Context, key string, gen int64, value any) {
	err := s.cache.Set(ctx, key, gen, value, s.ttl)
	switch {
	case errors.Is(err, cache.ErrStale):
		logrus.WithField("key", key).Debug("Skipped caching value invalidated during read")
	case err != nil:
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache write failed")
	}
}

func (s *UserService) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logrus.WithFields(logrus.Fields{"keys": keys, "error": err.Error()}).Warn("Cache invalidation failed")
	}
}

// normalize trims every field and turns absent phone/address into ""
func normalize(in UserInput) userDraft {
	return userDraft{
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		Phone:       trimOptional(in.Phone),
		Address:     trimOptional(in.Address),
		MemberSince: trimOptional(in.MemberSince),
	}
}

func trimOptional(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// conflict reports a lost uniqueness race as ErrConflict, keeping the store error
func conflict(err error) error {
	if errors.Is(err, store.ErrConstraintViolation) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
