package ledger

import (
	"context"
	"fmt"
	"strings"
)

// =============================================================================
// SECTIONS - Fixed, closed set of isolated partitions
// =============================================================================

type Section string

const (
	SectionPersonal Section = "personal"
	SectionFamily   Section = "family"
	SectionBusiness Section = "business"
)

// DefaultSection is used by InfoFor when a key is unknown.
const DefaultSection = SectionPersonal

// SectionInfo describes a section. Emoji and Color are display metadata only.
type SectionInfo struct {
	Key      Section
	Label    string
	Emoji    string
	Color    string
	Filename string // base name of the per-user backing file
}

var sections = []SectionInfo{
	{Key: SectionPersonal, Label: "Personal", Emoji: "👤", Color: "#e74c3c", Filename: "personal_expenses"},
	{Key: SectionFamily, Label: "Family", Emoji: "👨‍👩‍👧", Color: "#3498db", Filename: "family_expenses"},
	{Key: SectionBusiness, Label: "Business", Emoji: "💼", Color: "#2ecc71", Filename: "business_expenses"},
}

// Sections returns every section in display order.
func Sections() []SectionInfo {
	out := make([]SectionInfo, len(sections))
	copy(out, sections)
	return out
}

// LookupSection returns the info for key and whether key is a known section.
func LookupSection(key Section) (SectionInfo, bool) {
	for _, info := range sections {
		if info.Key == key {
			return info, true
		}
	}
	return SectionInfo{}, false
}

// ParseSection converts user input ("Family", " business ") into a Section.
func ParseSection(s string) (Section, error) {
	key := Section(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := LookupSection(key); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, s)
	}
	return key, nil
}

// InfoFor returns the info for key, falling back to the default section.
func InfoFor(key Section) SectionInfo {
	if info, ok := LookupSection(key); ok {
		return info
	}
	info, _ := LookupSection(DefaultSection)
	return info
}

// =============================================================================
// REGISTRY - Per-user map from section to RecordStore
// =============================================================================

// Registry hands out the RecordStore of each section for one user. Stores are
// opened lazily and cached for the registry's lifetime. A Registry is not safe
// for concurrent use.
type Registry struct {
	backend Backend
	user    string
	stores  map[Section]RecordStore
}

func NewRegistry(backend Backend, user string) *Registry {
	return &Registry{
		backend: backend,
		user:    user,
		stores:  make(map[Section]RecordStore),
	}
}

func (r *Registry) User() string { return r.user }

// StoreFor returns the cached RecordStore of section, opening it on first use.
// Unknown sections are rejected rather than mapped to the default.
func (r *Registry) StoreFor(section Section) (RecordStore, error) {
	if s, ok := r.stores[section]; ok {
		return s, nil
	}
	info, ok := LookupSection(section)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}
	s, err := r.backend.Open(info, r.user)
	if err != nil {
		return nil, fmt.Errorf("open %s store for %s: %w", section, r.user, err)
	}
	r.stores[section] = s
	return s, nil
}

// InfoFor returns the section's display info, falling back to the default section.
func (r *Registry) InfoFor(section Section) SectionInfo {
	return InfoFor(section)
}

// Manager builds a fresh Manager over the section's store.
func (r *Registry) Manager(ctx context.Context, section Section, opts ...Option) (*Manager, error) {
	store, err := r.StoreFor(section)
	if err != nil {
		return nil, err
	}
	return NewManager(ctx, store, InfoFor(section), r.user, opts...)
}
