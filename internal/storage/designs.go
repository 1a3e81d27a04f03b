package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keagan/cutline/internal/monitor"
	"github.com/rs/zerolog"
)

// Keys used by Designs
const (
	listKey     = "designs-list"
	lastIDKey   = "last-design-id"
	designKeyFn = "designs/%s.json"
	previewFn   = "designs/%s.jpg"
)

// DesignInfo is one entry of the design list
type DesignInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Design is a saved design document with its preview image
type Design struct {
	DesignInfo
	Document json.RawMessage `json:"document"`
	Preview  []byte          `json:"-"`
}

// Designs stores design documents and previews on top of a Store. Every
// call is observed by the watcher when one is set.
type Designs struct {
	logger  zerolog.Logger
	store   Store
	watcher *monitor.Watcher
	now     func() time.Time

	// serializes read-modify-write of the design list
	mu sync.Mutex
}

// NewDesigns creates a design repository
func NewDesigns(logger zerolog.Logger, store Store, watcher *monitor.Watcher) *Designs {
	return &Designs{
		logger:  logger.With().Str("component", "storage").Logger(),
		store:   store,
		watcher: watcher,
		now:     time.Now,
	}
}

// Save writes the document and preview and records the design in the
// list. An empty id creates a new design. The saved id becomes the last
// design id.
func (d *Designs) Save(ctx context.Context, id, name string, document json.RawMessage, preview []byte) (string, error) {
	if !json.Valid(document) {
		return "", errors.New("design document is not valid JSON")
	}
	if id == "" {
		id = uuid.NewString()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	args := map[string]any{"id": id, "name": name, "size": len(document), "preview": len(preview)}
	_, err := monitor.Watch(ctx, d.watcher, "saveDesign", args, func(ctx context.Context) (struct{}, error) {
		if len(preview) > 0 {
			if err := d.store.Set(ctx, fmt.Sprintf(previewFn, id), preview); err != nil {
				return struct{}{}, err
			}
		}
		if err := d.store.Set(ctx, fmt.Sprintf(designKeyFn, id), document); err != nil {
			return struct{}{}, err
		}

		list, err := d.List(ctx)
		if err != nil {
			return struct{}{}, err
		}
		found := false
		for i := range list {
			if list[i].ID == id {
				list[i].Name = name
				list[i].UpdatedAt = d.now().UTC()
				found = true
			}
		}
		if !found {
			list = append(list, DesignInfo{ID: id, Name: name, UpdatedAt: d.now().UTC()})
		}
		if err := d.writeList(ctx, list); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, d.store.Set(ctx, lastIDKey, []byte(id))
	})
	if err != nil {
		return "", fmt.Errorf("failed to save design %s: %w", id, err)
	}

	d.logger.Info().Str("id", id).Str("name", name).Msg("design saved")
	return id, nil
}

// Load returns the design with id
func (d *Designs) Load(ctx context.Context, id string) (*Design, error) {
	return monitor.Watch(ctx, d.watcher, "loadById", map[string]string{"id": id}, func(ctx context.Context) (*Design, error) {
		doc, err := d.store.Get(ctx, fmt.Sprintf(designKeyFn, id))
		if err != nil {
			return nil, fmt.Errorf("failed to load design %s: %w", id, err)
		}

		design := &Design{DesignInfo: DesignInfo{ID: id}, Document: doc}
		list, err := d.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, info := range list {
			if info.ID == id {
				design.DesignInfo = info
			}
		}

		preview, err := d.store.Get(ctx, fmt.Sprintf(previewFn, id))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		design.Preview = preview
		return design, nil
	})
}

// Preview returns the preview image of a design
func (d *Designs) Preview(ctx context.Context, id string) ([]byte, error) {
	return d.store.Get(ctx, fmt.Sprintf(previewFn, id))
}

// List returns the saved designs in save order
func (d *Designs) List(ctx context.Context) ([]DesignInfo, error) {
	raw, err := d.store.Get(ctx, listKey)
	if errors.Is(err, ErrNotFound) {
		return []DesignInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	var list []DesignInfo
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("corrupt design list: %w", err)
	}
	return list, nil
}

// Delete removes a design, its preview and its list entry
func (d *Designs) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := monitor.Watch(ctx, d.watcher, "deleteDesign", map[string]string{"id": id}, func(ctx context.Context) (struct{}, error) {
		list, err := d.List(ctx)
		if err != nil {
			return struct{}{}, err
		}
		kept := list[:0]
		for _, info := range list {
			if info.ID != id {
				kept = append(kept, info)
			}
		}
		if err := d.writeList(ctx, kept); err != nil {
			return struct{}{}, err
		}
		if err := d.store.Delete(ctx, fmt.Sprintf(designKeyFn, id)); err != nil {
			return struct{}{}, err
		}
		if err := d.store.Delete(ctx, fmt.Sprintf(previewFn, id)); err != nil {
			return struct{}{}, err
		}

		last, err := d.LastID(ctx)
		if err == nil && last == id {
			return struct{}{}, d.store.Delete(ctx, lastIDKey)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete design %s: %w", id, err)
	}
	d.logger.Info().Str("id", id).Msg("design deleted")
	return nil
}

// LastID returns the id of the most recently saved design
func (d *Designs) LastID(ctx context.Context) (string, error) {
	raw, err := d.store.Get(ctx, lastIDKey)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (d *Designs) writeList(ctx context.Context, list []DesignInfo) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return d.store.Set(ctx, listKey, raw)
}
