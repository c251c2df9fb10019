package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
)

// Resource is the untyped view of a Collection used by generic transports
// such as the HTTP data API and the backup tool
type Resource interface {
	Model() *Model
	CreateJSON(ctx context.Context, body []byte) (interface{}, error)
	GetRecord(ctx context.Context, id string) (interface{}, error)
	BatchGetRecords(ctx context.Context, ids []string) (interface{}, error)
	ListRecords(ctx context.Context, filter Filter, limit int) (interface{}, error)
	UpdateRecord(ctx context.Context, id string, patch Patch) (interface{}, error)
	Delete(ctx context.Context, id string) error
	ObserveRecords(ctx context.Context, filter Filter, limit int) (*Subscription[interface{}], error)
	ExportRecords(ctx context.Context) (interface{}, error)
	RestoreJSON(ctx context.Context, body []byte) error
}

// CreateJSON decodes body strictly and creates the record.
// Any id or timestamps in body are replaced.
func (c *Collection[T, PT]) CreateJSON(ctx context.Context, body []byte) (interface{}, error) {
	rec, err := c.decode(body)
	if err != nil {
		return nil, err
	}
	created, err := c.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetRecord is Get without the static type
func (c *Collection[T, PT]) GetRecord(ctx context.Context, id string) (interface{}, error) {
	rec, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// BatchGetRecords is BatchGet without the static type
func (c *Collection[T, PT]) BatchGetRecords(ctx context.Context, ids []string) (interface{}, error) {
	recs, err := c.BatchGet(ctx, ids)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// ListRecords is List without the static type
func (c *Collection[T, PT]) ListRecords(ctx context.Context, filter Filter, limit int) (interface{}, error) {
	recs, err := c.List(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// UpdateRecord is Update without the static type
func (c *Collection[T, PT]) UpdateRecord(ctx context.Context, id string, patch Patch) (interface{}, error) {
	rec, err := c.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ObserveRecords is Observe with snapshots delivered as interface{}
func (c *Collection[T, PT]) ObserveRecords(ctx context.Context, filter Filter, limit int) (*Subscription[interface{}], error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	if _, _, err := c.model.where(c.store.db.Dialect, filter); err != nil {
		return nil, err
	}
	return subscribe(ctx, c.store.hub, c.model.Name, c.store.logger, func(ctx context.Context) (interface{}, error) {
		recs, err := c.List(ctx, filter, limit)
		if err != nil {
			return nil, err
		}
		return recs, nil
	})
}

// ExportRecords is Export without the static type
func (c *Collection[T, PT]) ExportRecords(ctx context.Context) (interface{}, error) {
	recs, err := c.Export(ctx)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// RestoreJSON decodes a single exported record and restores it
func (c *Collection[T, PT]) RestoreJSON(ctx context.Context, body []byte) error {
	rec, err := c.decode(body)
	if err != nil {
		return err
	}
	return c.Restore(ctx, rec)
}

func (c *Collection[T, PT]) decode(body []byte) (PT, error) {
	rec := PT(new(T))
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(rec); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, invalid(typeErr.Field, "must be a %s", typeErr.Type)
		}
		return nil, &ValidationError{Message: "invalid " + c.model.Name + " body: " + err.Error()}
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		return nil, &ValidationError{Message: "body must contain a single JSON object"}
	}
	return rec, nil
}
