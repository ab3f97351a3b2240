package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jaki95/timeline-editor/internal/storage"
)

// ShortcutsKey is the record id under which custom key bindings are stored.
const ShortcutsKey = "editor_shortcuts"

// ShortcutMap binds editor commands to key combinations.
type ShortcutMap struct {
	Split     string `json:"split"`
	Delete    string `json:"delete"`
	PlayPause string `json:"playPause"`
	Cut       string `json:"cut"`
	Copy      string `json:"copy"`
	Paste     string `json:"paste"`
}

// DefaultShortcuts returns the stock key bindings.
func DefaultShortcuts() ShortcutMap {
	return ShortcutMap{
		Split:     "Ctrl+B",
		Delete:    "Delete",
		PlayPause: "Space",
		Cut:       "Ctrl+X",
		Copy:      "Ctrl+C",
		Paste:     "Ctrl+V",
	}
}

// Shortcuts returns the saved bindings layered over the defaults.
func (e *Engine) Shortcuts(ctx context.Context) ShortcutMap {
	shortcuts := DefaultShortcuts()
	if e.store == nil {
		return shortcuts
	}

	records, err := e.store.GetAll(ctx)
	if err != nil {
		e.logger.Warn("Failed to load shortcuts", "error", err)
		return shortcuts
	}
	for _, r := range records {
		if r.ID != ShortcutsKey {
			continue
		}
		// Unmarshal over the defaults so missing keys keep their stock binding.
		if err := json.Unmarshal(r.Data, &shortcuts); err != nil {
			e.logger.Warn("Failed to parse shortcuts", "error", err)
			return DefaultShortcuts()
		}
	}
	return shortcuts
}

// SaveShortcuts persists custom bindings.
func (e *Engine) SaveShortcuts(ctx context.Context, shortcuts ShortcutMap) error {
	if e.store == nil {
		return nil
	}
	data, err := json.Marshal(shortcuts)
	if err != nil {
		return fmt.Errorf("failed to encode shortcuts: %w", err)
	}
	return e.store.Put(ctx, storage.Record{ID: ShortcutsKey, Data: data, UpdatedAt: time.Now().UTC()})
}

// ResetShortcuts drops custom bindings.
func (e *Engine) ResetShortcuts(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.Delete(ctx, ShortcutsKey)
}
