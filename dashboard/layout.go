package dashboard

import (
	"context"
	"sync"

	"newtab/models"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	// DriftThreshold is how many rows a saved widget may sit away from its
	// default row before it is snapped back to the default geometry
	DriftThreshold = 5

	DefaultContainerWidth = 1200
)

// LayoutStore is satisfied by *storage.Storage
type LayoutStore interface {
	GetLayout(ctx context.Context) models.LayoutConfig
	SetLayout(ctx context.Context, layout models.LayoutConfig) error
}

// Reconcile merges a saved layout with the default one. Saved widgets are
// kept in order, default widgets missing from the saved layout are
// appended, and a saved widget whose row drifted more than DriftThreshold
// from its default row gets the default position and size back.
func Reconcile(saved, defaults models.LayoutConfig) models.LayoutConfig {
	merged := saved.Clone()
	merged.Widgets = lo.UniqBy(merged.Widgets, func(w models.Widget) string { return w.ID })

	for _, def := range defaults.Widgets {
		if !lo.ContainsBy(merged.Widgets, func(w models.Widget) bool { return w.ID == def.ID }) {
			merged.Widgets = append(merged.Widgets, def)
		}
	}

	for i := range merged.Widgets {
		widget := &merged.Widgets[i]
		def, ok := lo.Find(defaults.Widgets, func(w models.Widget) bool { return w.ID == widget.ID })
		if !ok {
			continue
		}
		if abs(widget.Y-def.Y) > DriftThreshold {
			log.WithFields(log.Fields{
				"widget": widget.ID,
				"from":   widget.Y,
				"to":     def.Y,
			}).Info("Resetting drifted widget to default position")
			widget.X, widget.Y, widget.W, widget.H = def.X, def.Y, def.W, def.H
		}
	}

	return merged
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Layout is the widget grid state
type Layout struct {
	mu             sync.RWMutex
	store          LayoutStore
	defaults       models.LayoutConfig
	layout         models.LayoutConfig
	editing        bool
	containerWidth int
	onChange       func(models.LayoutConfig)
}

func NewLayout(store LayoutStore, defaults models.LayoutConfig) *Layout {
	return &Layout{
		store:          store,
		defaults:       defaults.Clone(),
		layout:         defaults.Clone(),
		containerWidth: DefaultContainerWidth,
	}
}

// OnChange registers fn to be called after the layout is saved or reset
func (l *Layout) OnChange(fn func(models.LayoutConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

func (l *Layout) notify() {
	l.mu.RLock()
	fn := l.onChange
	layout := l.layout.Clone()
	l.mu.RUnlock()
	if fn != nil {
		fn(layout)
	}
}

// Load reads the saved layout and reconciles it with the defaults
func (l *Layout) Load(ctx context.Context) models.LayoutConfig {
	saved := l.store.GetLayout(ctx)

	l.mu.Lock()
	l.layout = Reconcile(saved, l.defaults)
	layout := l.layout.Clone()
	l.mu.Unlock()

	log.WithFields(log.Fields{
		"widgets": len(layout.Widgets),
		"visible": lo.Map(lo.Filter(layout.Widgets, func(w models.Widget, _ int) bool { return w.Visible }),
			func(w models.Widget, _ int) string { return w.ID }),
	}).Info("Layout loaded")
	return layout
}

func (l *Layout) Save(ctx context.Context) error {
	l.mu.RLock()
	layout := l.layout.Clone()
	l.mu.RUnlock()

	if err := l.store.SetLayout(ctx, layout); err != nil {
		return err
	}
	l.notify()
	return nil
}

func (l *Layout) Get() models.LayoutConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.layout.Clone()
}

// Replace swaps in a complete layout and saves it
func (l *Layout) Replace(ctx context.Context, layout models.LayoutConfig) error {
	l.mu.Lock()
	l.layout = layout.Clone()
	l.mu.Unlock()
	return l.Save(ctx)
}

func (l *Layout) withWidget(id string, fn func(w *models.Widget)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.layout.Widgets {
		if l.layout.Widgets[i].ID == id {
			fn(&l.layout.Widgets[i])
			return true
		}
	}
	return false
}

// UpdateWidgetPosition moves a widget. Returns false for unknown ids.
func (l *Layout) UpdateWidgetPosition(id string, x, y int) bool {
	return l.withWidget(id, func(w *models.Widget) {
		w.X = x
		w.Y = y
	})
}

// UpdateWidgetSize resizes a widget. Returns false for unknown ids.
func (l *Layout) UpdateWidgetSize(id string, width, height int) bool {
	return l.withWidget(id, func(w *models.Widget) {
		w.W = width
		w.H = height
	})
}

// ToggleWidgetVisibility flips a widget's visibility. Returns false for
// unknown ids.
func (l *Layout) ToggleWidgetVisibility(id string) bool {
	return l.withWidget(id, func(w *models.Widget) {
		w.Visible = !w.Visible
	})
}

// Reset restores a deep copy of the default layout and saves it
func (l *Layout) Reset(ctx context.Context) error {
	l.mu.Lock()
	l.layout = l.defaults.Clone()
	l.mu.Unlock()

	log.Info("Layout reset to defaults")
	return l.Save(ctx)
}

func (l *Layout) StartEditing() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.editing = true
}

// StopEditing leaves edit mode and saves the layout
func (l *Layout) StopEditing(ctx context.Context) error {
	l.mu.Lock()
	l.editing = false
	l.mu.Unlock()
	return l.Save(ctx)
}

func (l *Layout) IsEditing() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.editing
}

func (l *Layout) SetContainerWidth(width int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.containerWidth = width
}

// GridWidth is the width of one grid column in pixels
func (l *Layout) GridWidth() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cols := l.layout.GridCols
	if cols <= 0 {
		return 0
	}
	return float64(l.containerWidth-(cols-1)*l.layout.Gap) / float64(cols)
}

func (l *Layout) VisibleWidgets() []models.Widget {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return lo.Filter(l.layout.Widgets, func(w models.Widget, _ int) bool { return w.Visible })
}

// UpdateWidgetOpacity sets the panel opacity, clamped to [0, 1]
func (l *Layout) UpdateWidgetOpacity(opacity float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.layout.WidgetOpacity = lo.Clamp(opacity, 0, 1)
}
