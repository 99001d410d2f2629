package tray

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/events"
	"github.com/switchyard-project/switchyard/internal/profiles"
)

// Controller keeps the host menu in sync with profile state and dispatches
// menu clicks.
type Controller struct {
	builder  *Builder
	profiles *profiles.Manager
	notifier *events.Notifier
	host     Host

	openFn func() error
	quitFn func()
}

// NewController wires a controller. openFn opens the window surface, quitFn
// shuts the application down.
func NewController(builder *Builder, manager *profiles.Manager, notifier *events.Notifier, host Host, openFn func() error, quitFn func()) *Controller {
	return &Controller{
		builder:  builder,
		profiles: manager,
		notifier: notifier,
		host:     host,
		openFn:   openFn,
		quitFn:   quitFn,
	}
}

// Run renders the initial menu, then rebuilds it on every change event until
// the context ends or the notifier closes. The subscription is taken before
// the initial render so a mutation landing in between is not missed.
func (c *Controller) Run(ctx context.Context) {
	sub := c.notifier.Subscribe()
	defer sub.Unsubscribe()

	c.Rebuild(ctx)

	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			c.Rebuild(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Rebuild re-derives the whole menu from a fresh query and hands it to the
// host. Host failures are logged; the next change event retries.
func (c *Controller) Rebuild(ctx context.Context) {
	if err := c.host.SetMenu(c.builder.Build(ctx)); err != nil {
		log.Warn().Err(err).Msg("Updating tray menu failed")
	}
}

// HandleClick dispatches one menu click by item id. Profile items trigger a
// full apply tagged with the tray origin; the resulting broadcast rebuilds
// the menu.
func (c *Controller) HandleClick(ctx context.Context, id string) {
	switch {
	case id == ItemOpen:
		if err := c.openFn(); err != nil {
			log.Warn().Err(err).Msg("Opening window from tray failed")
		}
	case id == ItemQuit:
		c.quitFn()
	case strings.HasPrefix(id, "apply:"):
		parts := strings.SplitN(id, ":", 3)
		if len(parts) != 3 {
			log.Warn().Str("item", id).Msg("Malformed tray item id")
			return
		}
		family, ok := profiles.FamilyByName(parts[1])
		if !ok {
			log.Warn().Str("family", parts[1]).Msg("Tray click for unknown family")
			return
		}
		if err := c.profiles.Apply(ctx, family, parts[2], events.OriginTray); err != nil {
			log.Error().Err(err).
				Str("family", family.Name).
				Str("profile", parts[2]).
				Msg("Applying profile from tray failed")
		}
	default:
		log.Debug().Str("item", id).Msg("Ignoring tray click")
	}
}
