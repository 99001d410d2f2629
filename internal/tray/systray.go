package tray

import (
	"fmt"
	"strings"
	"sync"

	"github.com/getlantern/systray"
	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/profiles"
)

// profileSlots is the checkbox pool size per family. The host menu cannot
// grow or reorder after creation, so slots are pre-allocated and retitled on
// every rebuild; profiles beyond the pool are dropped from the menu with a
// logged warning.
const profileSlots = 24

type familySlots struct {
	header      *systray.MenuItem
	profiles    []*systray.MenuItem
	placeholder *systray.MenuItem
}

// Systray adapts the Host contract onto getlantern/systray, which only
// supports appending items. A fixed skeleton is created once on Run and
// every SetMenu maps the flat item list onto it.
type Systray struct {
	mu       sync.Mutex
	open     *systray.MenuItem
	quit     *systray.MenuItem
	families map[string]*familySlots
	slotIDs  map[*systray.MenuItem]string
	onClick  func(id string)
	ready    chan struct{}
}

// NewSystray creates the adapter. onClick receives the clicked item id.
func NewSystray(onClick func(id string)) *Systray {
	return &Systray{
		families: make(map[string]*familySlots),
		slotIDs:  make(map[*systray.MenuItem]string),
		onClick:  onClick,
		ready:    make(chan struct{}),
	}
}

// Run enters the platform tray loop. It must be called from the process main
// goroutine and blocks until Quit; onReady runs once the menu skeleton
// exists, onExit after the loop ends.
func (s *Systray) Run(onReady func(), onExit func()) {
	systray.Run(func() {
		systray.SetTitle("Switchyard")
		systray.SetTooltip("Switchyard profile switcher")
		s.buildSkeleton()
		close(s.ready)
		if onReady != nil {
			go onReady()
		}
	}, onExit)
}

// Quit ends the tray loop started by Run.
func (s *Systray) Quit() {
	systray.Quit()
}

func (s *Systray) buildSkeleton() {
	s.open = systray.AddMenuItem("Open Switchyard", "Open the Switchyard window")
	go s.watch(s.open, ItemOpen)

	for _, family := range profiles.Families() {
		systray.AddSeparator()

		slots := &familySlots{
			header: systray.AddMenuItem("", ""),
		}
		slots.header.Disable()

		for i := 0; i < profileSlots; i++ {
			slot := systray.AddMenuItemCheckbox("", "", false)
			slot.Hide()
			slots.profiles = append(slots.profiles, slot)
			go s.watch(slot, "")
		}

		slots.placeholder = systray.AddMenuItem("", "")
		slots.placeholder.Disable()
		slots.placeholder.Hide()

		s.families[family.Name] = slots
	}

	systray.AddSeparator()
	s.quit = systray.AddMenuItem("Quit", "Quit Switchyard")
	go s.watch(s.quit, ItemQuit)
}

// watch forwards clicks on one slot. Pool slots pass an empty fixedID and
// resolve their current id per click.
func (s *Systray) watch(slot *systray.MenuItem, fixedID string) {
	for range slot.ClickedCh {
		id := fixedID
		if id == "" {
			s.mu.Lock()
			id = s.slotIDs[slot]
			s.mu.Unlock()
		}
		if id != "" && s.onClick != nil {
			s.onClick(id)
		}
	}
}

// SetMenu maps the flat item list onto the pre-allocated skeleton.
func (s *Systray) SetMenu(items []Item) error {
	select {
	case <-s.ready:
	default:
		return fmt.Errorf("tray menu not ready")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for slot := range s.slotIDs {
		delete(s.slotIDs, slot)
	}
	for _, slots := range s.families {
		slots.placeholder.Hide()
		for _, slot := range slots.profiles {
			slot.Hide()
		}
	}

	used := make(map[string]int, len(s.families))
	for _, item := range items {
		switch {
		case item.Kind == KindSeparator:
			// Separators are fixed in the skeleton.
		case item.ID == ItemOpen:
			s.open.SetTitle(item.Title)
		case item.ID == ItemQuit:
			s.quit.SetTitle(item.Title)
		case strings.HasPrefix(item.ID, "header:"):
			if slots, ok := s.families[strings.TrimPrefix(item.ID, "header:")]; ok {
				slots.header.SetTitle(item.Title)
			}
		case strings.HasPrefix(item.ID, "empty:"):
			if slots, ok := s.families[strings.TrimPrefix(item.ID, "empty:")]; ok {
				slots.placeholder.SetTitle(item.Title)
				slots.placeholder.Show()
			}
		case strings.HasPrefix(item.ID, "apply:"):
			parts := strings.SplitN(item.ID, ":", 3)
			if len(parts) != 3 {
				continue
			}
			slots, ok := s.families[parts[1]]
			if !ok {
				continue
			}
			index := used[parts[1]]
			if index >= len(slots.profiles) {
				log.Warn().
					Str("family", parts[1]).
					Int("slots", len(slots.profiles)).
					Msg("Too many profiles for the tray menu; dropping the rest")
				continue
			}
			used[parts[1]] = index + 1

			slot := slots.profiles[index]
			slot.SetTitle(item.Title)
			if item.Checked {
				slot.Check()
			} else {
				slot.Uncheck()
			}
			slot.Show()
			s.slotIDs[slot] = item.ID
		}
	}
	return nil
}
