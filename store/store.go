// Package store decodes the read-only collaborators a request is built from:
// the household safety profile, the pantry inventory and usage history.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"pantrygen"
	"pantrygen/storage"
)

type inventoryDoc struct {
	Ingredients []pantrygen.InventoryItem `json:"ingredients"`
}

type historyDoc struct {
	History []pantrygen.HistoryEntry `json:"history"`
}

// LoadProfile reads a SafetyProfile. Allergen lists are kept exactly as
// declared so the precondition gate can tell "none" from "never asked".
func LoadProfile(ctx context.Context, src storage.Source) (pantrygen.SafetyProfile, error) {
	b, err := src.Load(ctx)
	if err != nil {
		return pantrygen.SafetyProfile{}, fmt.Errorf("read profile: %w", err)
	}
	var p pantrygen.SafetyProfile
	if err := json.Unmarshal(b, &p); err != nil {
		return pantrygen.SafetyProfile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}

// LoadInventory reads the pantry and keys every item by its canonical name.
func LoadInventory(ctx context.Context, src storage.Source) ([]pantrygen.InventoryItem, error) {
	b, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	var doc inventoryDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}

	// Initialize to prevent nil when empty
	items := make([]pantrygen.InventoryItem, 0, len(doc.Ingredients))
	for _, it := range doc.Ingredients {
		if it.ID == "" {
			it.ID = CanonicalID(it.Name)
		}
		if it.ID == "" {
			slog.Warn("STORE: Skipping inventory item without id or name")
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// LoadHistory reads usage history, either a bare array or {"history": [...]}.
// A missing source is an empty history.
func LoadHistory(ctx context.Context, src storage.Source) ([]pantrygen.HistoryEntry, error) {
	b, err := src.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		slog.Info("STORE: No history found, starting fresh")
		return []pantrygen.HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "[") {
		var entries []pantrygen.HistoryEntry
		if err := json.Unmarshal(b, &entries); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		return entries, nil
	}
	var doc historyDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if doc.History == nil {
		doc.History = []pantrygen.HistoryEntry{}
	}
	return doc.History, nil
}

// CanonicalID turns a display name into an inventory id: "Black Beans" -> "black_beans".
func CanonicalID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}
