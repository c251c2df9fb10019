package schema

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"familyphotos/internal/database"
	"familyphotos/internal/identity"
)

// Store owns the database handle, the model registry and change propagation
type Store struct {
	db       *database.DB
	hub      *Hub
	broker   Broker
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
	newID    func() string

	mu        sync.RWMutex
	models    map[string]*Model
	resources map[string]Resource
	order     []string
}

// NewStore creates a store. Mutations are published on broker, which must
// eventually dispatch them to hub for subscriptions to see them.
func NewStore(db *database.DB, hub *Hub, broker Broker, logger *zap.Logger) *Store {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &Store{
		db:        db,
		hub:       hub,
		broker:    broker,
		logger:    logger,
		validate:  v,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		models:    make(map[string]*Model),
		resources: make(map[string]Resource),
	}
}

// SetClock replaces the time source used for timestamps
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Hub returns the hub serving this store's subscriptions
func (s *Store) Hub() *Hub {
	return s.hub
}

// Resource looks up a registered model by name, ignoring case
func (s *Store) Resource(name string) (Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[strings.ToLower(name)]
	return r, ok
}

// Resources returns every registered model in registration order
func (s *Store) Resources() []Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Resource, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.resources[name])
	}
	return out
}

// ModelNames returns the registered model names, sorted
func (s *Store) ModelNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.models))
	for _, m := range s.models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) model(name string) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[strings.ToLower(name)]
	return m, ok
}

// Validate checks v against its validate tags and reports the first failure
func (s *Store) Validate(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Message: ruleMessage(fe)}
	}
	return &ValidationError{Message: err.Error()}
}

// ValidateVar checks a single value against validator rules such as "required,email"
func (s *Store) ValidateVar(v interface{}, rules string) error {
	return s.validate.Var(v, rules)
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "email":
		return "must be a valid email address"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func (s *Store) publish(ctx context.Context, change Change) {
	if err := s.broker.Publish(ctx, change); err != nil {
		s.logger.Error("failed to publish change",
			zap.String("model", change.Model),
			zap.String("id", change.ID),
			zap.String("kind", string(change.Kind)),
			zap.Error(err))
	}
}

func (s *Store) exists(ctx context.Context, model, id string) (bool, error) {
	m, ok := s.model(model)
	if !ok {
		return false, fmt.Errorf("unknown model %s", model)
	}
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+m.Table+" WHERE id = ?", id); err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", model, err)
	}
	return count > 0, nil
}

func requireUser(ctx context.Context) (*identity.User, error) {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return nil, &AuthorizationError{Message: "authentication required"}
	}
	return user, nil
}

// Register describes T and adds it to the store as a collection
func Register[T any, PT RecordPtr[T]](s *Store, name, table string, opts ...ModelOption) (*Collection[T, PT], error) {
	m, err := describe(name, table, reflect.TypeOf((*T)(nil)).Elem(), opts...)
	if err != nil {
		return nil, err
	}
	c := &Collection[T, PT]{store: s, model: m}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	if _, dup := s.models[key]; dup {
		return nil, fmt.Errorf("model %s already registered", name)
	}
	s.models[key] = m
	s.resources[key] = c
	s.order = append(s.order, key)
	return c, nil
}
