package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"familyphotos/internal/models"
)

const (
	// DefaultListLimit applies when a list call passes no limit
	DefaultListLimit = 100
	// MaxListLimit caps every list call
	MaxListLimit = 1000
)

// Record is implemented by every entity through models.Base
type Record interface {
	Meta() *models.Base
}

// RecordPtr constrains PT to be *T and a Record
type RecordPtr[T any] interface {
	*T
	Record
}

// Patch is a partial update keyed by external field name
type Patch map[string]interface{}

// Collection provides typed access to one entity type
type Collection[T any, PT RecordPtr[T]] struct {
	store *Store
	model *Model
}

// Model returns the collection's descriptor
func (c *Collection[T, PT]) Model() *Model {
	return c.model
}

// Create validates rec, assigns its id and timestamps, and persists it
func (c *Collection[T, PT]) Create(ctx context.Context, rec PT) (PT, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	m := c.model
	if m.ReadOwner != "" && c.stringField(rec, m.ReadOwner) != user.ID {
		return nil, &AuthorizationError{Message: fmt.Sprintf("%s.%s must be the caller", m.Name, m.ReadOwner)}
	}

	c.normalize(rec)
	if err := c.store.Validate(rec); err != nil {
		return nil, err
	}
	if err := c.checkReferences(ctx, rec, nil); err != nil {
		return nil, err
	}

	now := c.timestamp()
	meta := rec.Meta()
	meta.ID = c.store.newID()
	meta.CreatedAt = now
	meta.UpdatedAt = now

	if err := c.insert(ctx, rec); err != nil {
		return nil, err
	}
	c.store.publish(ctx, Change{Model: m.Name, ID: meta.ID, Kind: ChangeCreated})
	return rec, nil
}

// Get returns the record with id
func (c *Collection[T, PT]) Get(ctx context.Context, id string) (PT, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	rec := PT(new(T))
	err = c.store.db.GetContext(ctx, rec, c.selectSQL()+" WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Model: c.model.Name, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", c.model.Name, err)
	}
	if !c.readable(rec, user.ID) {
		return nil, &NotFoundError{Model: c.model.Name, ID: id}
	}
	return rec, nil
}

// BatchGet returns the records for ids in one query, in the order given.
// Unknown ids are skipped.
func (c *Collection[T, PT]) BatchGet(ctx context.Context, ids []string) ([]PT, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return []PT{}, nil
	}

	query, args, err := sqlx.In(c.selectSQL()+" WHERE id IN (?)", unique)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch query: %w", err)
	}
	var rows []T
	if err := c.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to batch get %s: %w", c.model.Name, err)
	}

	byID := make(map[string]PT, len(rows))
	for i := range rows {
		rec := PT(&rows[i])
		if c.readable(rec, user.ID) {
			byID[rec.Meta().ID] = rec
		}
	}
	out := make([]PT, 0, len(byID))
	for _, id := range unique {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// List returns up to limit records matching filter, oldest first
func (c *Collection[T, PT]) List(ctx context.Context, filter Filter, limit int) ([]PT, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if c.model.ReadOwner != "" {
		filter = append(append(Filter{}, filter...), Eq(c.model.ReadOwner, user.ID))
	}
	return c.query(ctx, filter, clampLimit(limit))
}

// First returns the oldest record matching filter, or nil when there is none
func (c *Collection[T, PT]) First(ctx context.Context, filter Filter) (PT, error) {
	recs, err := c.List(ctx, filter, 1)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// Count returns how many records match filter. Counts ignore the owner read
// rule since they disclose no record contents.
func (c *Collection[T, PT]) Count(ctx context.Context, filter Filter) (int, error) {
	if _, err := requireUser(ctx); err != nil {
		return 0, err
	}
	where, args, err := c.model.where(c.store.db.Dialect, filter)
	if err != nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM " + c.model.Table
	if where != "" {
		query += " WHERE " + where
	}
	var count int
	if err := c.store.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.model.Name, err)
	}
	return count, nil
}

// Update merges patch into the record with id. The patch must carry the
// model's owner key with its stored value. Last write wins.
func (c *Collection[T, PT]) Update(ctx context.Context, id string, patch Patch) (PT, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	m := c.model
	if m.OwnerKey != "" {
		if _, ok := patch[m.OwnerKey]; !ok {
			return nil, invalid(m.OwnerKey, "is required on update")
		}
	}
	for name := range patch {
		if _, ok := m.byName[name]; !ok {
			return nil, invalid(name, "is not a field of %s", m.Name)
		}
	}

	current, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	v := reflect.ValueOf(current).Elem()
	touched := make(map[string]bool, len(patch))
	var sets []string
	var args []interface{}
	for _, f := range m.Fields {
		raw, ok := patch[f.Name]
		if !ok {
			continue
		}
		if f.System {
			if f.Name == "id" && raw != id {
				return nil, invalid(f.Name, "cannot be changed")
			}
			continue
		}
		val, err := coerce(f, raw)
		if err != nil {
			return nil, err
		}
		fv := v.FieldByIndex(f.index)
		next := reflect.ValueOf(val).Convert(fv.Type())
		if f.Immutable {
			if !reflect.DeepEqual(fv.Interface(), next.Interface()) {
				return nil, invalid(f.Name, "cannot be changed")
			}
			continue
		}
		fv.Set(next)
		touched[f.Name] = true
		sets = append(sets, f.Column+" = ?")
		args = append(args, fv.Interface())
	}

	if err := c.store.Validate(current); err != nil {
		return nil, err
	}
	if err := c.checkReferences(ctx, current, touched); err != nil {
		return nil, err
	}

	now := c.timestamp()
	current.Meta().UpdatedAt = now
	sets = append(sets, "updated_at = ?")
	args = append(args, now, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", m.Table, strings.Join(sets, ", "))
	if _, err := c.store.db.ExecContext(ctx, query, args...); err != nil {
		if c.store.db.Dialect.IsUniqueViolation(err) {
			return nil, &ConflictError{Model: m.Name, Message: "duplicate value for a unique field", Err: err}
		}
		return nil, fmt.Errorf("failed to update %s: %w", m.Name, err)
	}
	c.store.publish(ctx, Change{Model: m.Name, ID: id, Kind: ChangeUpdated})
	return current, nil
}

// Delete removes the record with id. Nothing else is removed with it.
func (c *Collection[T, PT]) Delete(ctx context.Context, id string) error {
	if _, err := requireUser(ctx); err != nil {
		return err
	}
	if c.model.ReadOwner != "" {
		if _, err := c.Get(ctx, id); err != nil {
			return err
		}
	}
	res, err := c.store.db.ExecContext(ctx, "DELETE FROM "+c.model.Table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", c.model.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &NotFoundError{Model: c.model.Name, ID: id}
	}
	c.store.publish(ctx, Change{Model: c.model.Name, ID: id, Kind: ChangeDeleted})
	return nil
}

// Observe opens a live query over filter. The subscription ends when Cancel
// is called or ctx is done.
func (c *Collection[T, PT]) Observe(ctx context.Context, filter Filter, limit int) (*Subscription[[]PT], error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	if _, _, err := c.model.where(c.store.db.Dialect, filter); err != nil {
		return nil, err
	}
	return subscribe(ctx, c.store.hub, c.model.Name, c.store.logger, func(ctx context.Context) ([]PT, error) {
		return c.List(ctx, filter, limit)
	})
}

// Export returns every record. It bypasses authorization and is meant for maintenance tooling.
func (c *Collection[T, PT]) Export(ctx context.Context) ([]PT, error) {
	var rows []T
	if err := c.store.db.SelectContext(ctx, &rows, c.selectSQL()+" ORDER BY created_at, id"); err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", c.model.Name, err)
	}
	out := make([]PT, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

// Restore inserts rec keeping its id and timestamps. It bypasses authorization
// and reference checks and is meant for maintenance tooling.
func (c *Collection[T, PT]) Restore(ctx context.Context, rec PT) error {
	c.normalize(rec)
	if err := c.store.Validate(rec); err != nil {
		return err
	}
	meta := rec.Meta()
	if meta.ID == "" {
		meta.ID = c.store.newID()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = c.timestamp()
	}
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = meta.CreatedAt
	}
	if err := c.insert(ctx, rec); err != nil {
		return err
	}
	c.store.publish(ctx, Change{Model: c.model.Name, ID: meta.ID, Kind: ChangeCreated})
	return nil
}

func (c *Collection[T, PT]) query(ctx context.Context, filter Filter, limit int) ([]PT, error) {
	where, args, err := c.model.where(c.store.db.Dialect, filter)
	if err != nil {
		return nil, err
	}
	query := c.selectSQL()
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at, id LIMIT ?"
	args = append(args, limit)

	var rows []T
	if err := c.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.model.Name, err)
	}
	out := make([]PT, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

func (c *Collection[T, PT]) insert(ctx context.Context, rec PT) error {
	cols := c.model.Columns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", c.model.Table, strings.Join(cols, ", "), placeholders)

	if _, err := c.store.db.ExecContext(ctx, query, c.values(rec)...); err != nil {
		if c.store.db.Dialect.IsUniqueViolation(err) {
			return &ConflictError{Model: c.model.Name, Message: "duplicate value for a unique field", Err: err}
		}
		return fmt.Errorf("failed to insert %s: %w", c.model.Name, err)
	}
	return nil
}

func (c *Collection[T, PT]) selectSQL() string {
	return "SELECT " + strings.Join(c.model.Columns(), ", ") + " FROM " + c.model.Table
}

func (c *Collection[T, PT]) values(rec PT) []interface{} {
	v := reflect.ValueOf(rec).Elem()
	args := make([]interface{}, len(c.model.Fields))
	for i, f := range c.model.Fields {
		args[i] = v.FieldByIndex(f.index).Interface()
	}
	return args
}

// normalize replaces nil lists so they persist as empty arrays
func (c *Collection[T, PT]) normalize(rec PT) {
	v := reflect.ValueOf(rec).Elem()
	for _, f := range c.model.Fields {
		if f.Type != TypeStringList {
			continue
		}
		fv := v.FieldByIndex(f.index)
		if fv.IsNil() {
			fv.Set(reflect.ValueOf(models.StringList{}))
		}
	}
}

func (c *Collection[T, PT]) stringField(rec PT, name string) string {
	f, ok := c.model.byName[name]
	if !ok {
		return ""
	}
	s, _ := reflect.ValueOf(rec).Elem().FieldByIndex(f.index).Interface().(string)
	return s
}

func (c *Collection[T, PT]) readable(rec PT, userID string) bool {
	return c.model.ReadOwner == "" || c.stringField(rec, c.model.ReadOwner) == userID
}

// checkReferences verifies foreign keys. With only set, just those fields are checked.
func (c *Collection[T, PT]) checkReferences(ctx context.Context, rec PT, only map[string]bool) error {
	for _, ref := range c.model.References {
		if only != nil && !only[ref.Field] {
			continue
		}
		id := c.stringField(rec, ref.Field)
		if id == "" {
			continue
		}
		ok, err := c.store.exists(ctx, ref.Model, id)
		if err != nil {
			return err
		}
		if !ok {
			return invalid(ref.Field, "references a %s that does not exist", ref.Model)
		}
	}
	return nil
}

func (c *Collection[T, PT]) timestamp() time.Time {
	return c.store.now().UTC().Truncate(time.Microsecond)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
