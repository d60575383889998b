package conversation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWidgetNotFound = errors.New("widget not found")
	ErrImageNotFound  = errors.New("image not found")
)

// Image is an uploaded file kept for display while its widget is mounted.
type Image struct {
	Ref         string
	Filename    string
	ContentType string
	Data        []byte
}

// Widget is one mounted chat widget: its conversation store plus the images
// the user uploaded during the session.
type Widget struct {
	ID        string
	CreatedAt time.Time
	Store     *Store

	mu         sync.RWMutex
	images     map[string]Image
	lastActive atomic.Int64
}

// NewWidget creates a standalone widget instance that is not tracked by a registry.
func NewWidget() *Widget {
	id := uuid.NewString()
	w := &Widget{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Store:     NewStore(id),
		images:    make(map[string]Image),
	}
	w.touch(w.CreatedAt)
	return w
}

func (w *Widget) touch(now time.Time) {
	w.lastActive.Store(now.UnixNano())
}

// LastActive is the last time the widget was mounted or looked up.
func (w *Widget) LastActive() time.Time {
	return time.Unix(0, w.lastActive.Load()).UTC()
}

// idle reports whether nothing has used the widget since the cutoff. A widget
// with a live binding or a pending response is never idle.
func (w *Widget) idle(cutoff time.Time) bool {
	if w.Store.Subscribers() > 0 || w.Store.Snapshot().IsAwaitingResponse {
		return false
	}
	return w.LastActive().Before(cutoff)
}

// PutImage keeps an uploaded file and returns the reference used by the transcript.
func (w *Widget) PutImage(filename, contentType string, data []byte) string {
	img := Image{
		Ref:         uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
	}

	w.mu.Lock()
	w.images[img.Ref] = img
	w.mu.Unlock()
	return img.Ref
}

// Image returns a previously uploaded file.
func (w *Widget) Image(ref string) (Image, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	img, ok := w.images[ref]
	if !ok {
		return Image{}, ErrImageNotFound
	}
	return img, nil
}

// DiscardImage forgets an uploaded file.
func (w *Widget) DiscardImage(ref string) {
	w.mu.Lock()
	delete(w.images, ref)
	w.mu.Unlock()
}

func (w *Widget) release() {
	w.Store.Close()
	w.mu.Lock()
	w.images = make(map[string]Image)
	w.mu.Unlock()
}

// Registry tracks the mounted widgets of this process.
type Registry struct {
	mu      sync.RWMutex
	widgets map[string]*Widget
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{widgets: make(map[string]*Widget)}
}

// Mount creates a widget seeded with the greeting.
func (r *Registry) Mount(_ context.Context) (*Widget, error) {
	w := NewWidget()

	r.mu.Lock()
	r.widgets[w.ID] = w
	r.mu.Unlock()

	return w, nil
}

// Get looks up a mounted widget.
func (r *Registry) Get(_ context.Context, id string) (*Widget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.widgets[id]
	if !ok {
		return nil, ErrWidgetNotFound
	}
	w.touch(time.Now())
	return w, nil
}

// Unmount discards a widget together with its transcript and images.
func (r *Registry) Unmount(_ context.Context, id string) error {
	r.mu.Lock()
	w, ok := r.widgets[id]
	delete(r.widgets, id)
	r.mu.Unlock()

	if !ok {
		return ErrWidgetNotFound
	}
	w.release()
	return nil
}

// Len reports how many widgets are mounted.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.widgets)
}

// Reap unmounts every widget that has been idle for longer than ttl as of
// now and returns the removed widgets.
func (r *Registry) Reap(now time.Time, ttl time.Duration) []*Widget {
	cutoff := now.Add(-ttl)

	r.mu.Lock()
	var reaped []*Widget
	for id, w := range r.widgets {
		if w.idle(cutoff) {
			delete(r.widgets, id)
			reaped = append(reaped, w)
		}
	}
	r.mu.Unlock()

	for _, w := range reaped {
		w.release()
	}
	return reaped
}

// RunReaper calls Reap every interval until ctx is done. onReap, when set,
// is called for each removed widget.
func (r *Registry) RunReaper(ctx context.Context, interval, ttl time.Duration, onReap func(*Widget)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, w := range r.Reap(now, ttl) {
				if onReap != nil {
					onReap(w)
				}
			}
		}
	}
}
