// Package tray renders profile state as a flat system-tray menu and routes
// menu clicks back into the apply engine. The menu is always rebuilt from a
// fresh query, never patched in place.
package tray

import (
	"context"

	"github.com/IGLOU-EU/go-wildcard/v2"

	"github.com/switchyard-project/switchyard/internal/profiles"
)

// Kind classifies a menu item.
type Kind int

const (
	KindPlain Kind = iota
	KindCheck
	KindSeparator
)

// Well-known item ids. Profile items use "apply:<family>:<id>".
const (
	ItemOpen = "open"
	ItemQuit = "quit"
)

// Item is one row of the flat menu.
type Item struct {
	ID      string
	Title   string
	Kind    Kind
	Checked bool
	Enabled bool
}

// Host is the platform menu surface. SetMenu replaces the whole menu; clicks
// come back through the host's callback carrying the item id.
type Host interface {
	SetMenu(items []Item) error
}

// Builder derives the menu from current profile state.
type Builder struct {
	profiles *profiles.Manager
	hidden   []string
}

// NewBuilder creates a Builder. hidden holds wildcard id patterns excluded
// from the menu.
func NewBuilder(manager *profiles.Manager, hidden []string) *Builder {
	return &Builder{profiles: manager, hidden: hidden}
}

// Build queries every family and renders the flat menu: an open entry, one
// section per family (separator, disabled header, check items or a disabled
// placeholder), and a quit entry.
func (b *Builder) Build(ctx context.Context) []Item {
	items := []Item{
		{ID: ItemOpen, Title: "Open Switchyard", Kind: KindPlain, Enabled: true},
	}

	for _, family := range profiles.Families() {
		items = append(items,
			Item{Kind: KindSeparator},
			Item{
				ID:    "header:" + family.Name,
				Title: "──── " + family.Label + " ────",
				Kind:  KindPlain,
			},
		)

		visible := 0
		for _, profile := range b.profiles.List(ctx, family) {
			if b.isHidden(profile.ID) {
				continue
			}
			items = append(items, Item{
				ID:      "apply:" + family.Name + ":" + profile.ID,
				Title:   profile.Name,
				Kind:    KindCheck,
				Checked: profile.Applied,
				Enabled: true,
			})
			visible++
		}
		if visible == 0 {
			items = append(items, Item{
				ID:    "empty:" + family.Name,
				Title: "  No profiles yet",
				Kind:  KindPlain,
			})
		}
	}

	items = append(items,
		Item{Kind: KindSeparator},
		Item{ID: ItemQuit, Title: "Quit", Kind: KindPlain, Enabled: true},
	)
	return items
}

func (b *Builder) isHidden(id string) bool {
	for _, pattern := range b.hidden {
		if wildcard.Match(pattern, id) {
			return true
		}
	}
	return false
}
