package menu

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/skobkin/macsniff/internal/button"
)

// Option is one entry of the start menu.
type Option string

const (
	OptionScan Option = "scan"
	OptionDump Option = "dump"
	OptionSize Option = "size"
	OptionExit Option = "exit"
)

// DefaultOptions is the four-entry menu: Scan, Dump, Size, Exit.
var DefaultOptions = []Option{OptionScan, OptionDump, OptionSize, OptionExit}

const SelectedMarker = "-"

var ErrStateCorrupted = errors.New("menu state corrupted by an interrupted update")

// ParseOption accepts the config spelling of an option.
func ParseOption(raw string) (Option, error) {
	switch Option(strings.ToLower(strings.TrimSpace(raw))) {
	case OptionScan:
		return OptionScan, nil
	case OptionDump:
		return OptionDump, nil
	case OptionSize:
		return OptionSize, nil
	case OptionExit:
		return OptionExit, nil
	default:
		return "", fmt.Errorf("unknown menu option: %q", raw)
	}
}

// Label is the text drawn on the display.
func (o Option) Label() string {
	s := string(o)
	if s == "" {
		return ""
	}

	return strings.ToUpper(s[:1]) + s[1:]
}

// Item is a render-ready menu row.
type Item struct {
	Option   Option
	Selected bool
}

// Text returns the row label with the selection marker applied.
func (i Item) Text() string {
	if i.Selected {
		return SelectedMarker + i.Option.Label()
	}

	return i.Option.Label()
}

// State is the cyclic selector. ShortPress advances, everything else leaves it alone;
// LongPress is the caller's "confirm" signal and is never a mutation here.
type State struct {
	mu        sync.Mutex
	options   []Option
	selected  int
	corrupted bool
}

func New(options []Option) (*State, error) {
	if len(options) == 0 {
		return nil, errors.New("menu needs at least one option")
	}
	seen := make(map[Option]struct{}, len(options))
	for _, opt := range options {
		if _, dup := seen[opt]; dup {
			return nil, fmt.Errorf("duplicate menu option: %q", opt)
		}
		seen[opt] = struct{}{}
	}

	return &State{options: append([]Option(nil), options...)}, nil
}

// Apply feeds one button event into the state machine.
func (s *State) Apply(ev button.Event) error {
	return s.update(func() {
		if ev != button.ShortPress {
			return
		}
		s.selected = (s.selected + 1) % len(s.options)
	})
}

func (s *State) Selected() (Option, error) {
	var opt Option
	err := s.update(func() {
		opt = s.options[s.selected]
	})

	return opt, err
}

// Items snapshots every row for rendering.
func (s *State) Items() ([]Item, error) {
	var items []Item
	err := s.update(func() {
		items = make([]Item, len(s.options))
		for i, opt := range s.options {
			items[i] = Item{Option: opt, Selected: i == s.selected}
		}
	})

	return items, err
}

// Reset moves the selection back to the first option.
func (s *State) Reset() error {
	return s.update(func() { s.selected = 0 })
}

func (s *State) Len() int {
	return len(s.options)
}

func (s *State) update(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupted {
		return ErrStateCorrupted
	}
	s.corrupted = true
	fn()
	s.corrupted = false

	return nil
}
