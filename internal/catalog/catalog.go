package catalog

import (
	"calc-server/internal/model"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Iblock codes of the calculator catalog.
const (
	SectionDetails            = "CALC_DETAILS"
	SectionStages             = "CALC_STAGES"
	SectionSettings           = "CALC_SETTINGS"
	SectionOperations         = "CALC_OPERATIONS"
	SectionOperationsVariants = "CALC_OPERATIONS_VARIANTS"
	SectionMaterials          = "CALC_MATERIALS"
	SectionMaterialsVariants  = "CALC_MATERIALS_VARIANTS"
	SectionEquipment          = "CALC_EQUIPMENT"
)

// Detail TYPE values (VALUE_XML_ID).
const (
	TypeDetail  = "DETAIL"
	TypeBinding = "BINDING"
)

// ErrNotFound is returned by lookups of absent sections or elements.
var ErrNotFound = errors.New("catalog: element not found")

// Error reports a malformed or missing part of the catalog. It is fatal for
// the request.
type Error struct {
	Section   string
	ElementID int
	Property  string
	Reason    string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("catalog: ")
	b.WriteString(e.Section)
	if e.ElementID != 0 {
		fmt.Fprintf(&b, " element %d", e.ElementID)
	}
	if e.Property != "" {
		b.WriteString(" property ")
		b.WriteString(e.Property)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Entry is an indexed element with its recognized properties decoded.
type Entry struct {
	Element *model.Element
	Props   Properties
}

type section struct {
	order []*Entry
	byID  map[int]*Entry
}

// Index is a read-only view of an elements store. Safe for concurrent use
// once built.
type Index struct {
	sections map[string]*section
}

// Build indexes every section of the store and validates recognized property
// codes, so shape problems surface here and not in the middle of a calculation.
func Build(store model.ElementsStore) (*Index, error) {
	const operation = "catalog.Build"

	codes := make([]string, 0, len(store))
	for code := range store {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	ix := &Index{sections: make(map[string]*section, len(store))}
	for _, code := range codes {
		elements := store[code]
		sec := &section{
			order: make([]*Entry, 0, len(elements)),
			byID:  make(map[int]*Entry, len(elements)),
		}
		for i := range elements {
			el := &elements[i]
			if _, dup := sec.byID[el.ID]; dup {
				return nil, fmt.Errorf("%s: %w", operation, &Error{Section: code, ElementID: el.ID, Reason: "duplicate element id"})
			}
			props, err := decodeProperties(code, el)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", operation, err)
			}
			entry := &Entry{Element: el, Props: props}
			sec.order = append(sec.order, entry)
			sec.byID[el.ID] = entry
		}
		ix.sections[code] = sec
	}
	return ix, nil
}

// Has reports whether the store carried the section.
func (ix *Index) Has(code string) bool {
	_, ok := ix.sections[code]
	return ok
}

// Require fails with *Error for the first absent section.
func (ix *Index) Require(codes ...string) error {
	for _, code := range codes {
		if !ix.Has(code) {
			return &Error{Section: code, Reason: "section is missing from elements store"}
		}
	}
	return nil
}

// ByID looks an element up. A missing section or element yields ErrNotFound;
// whether that is fatal is the caller's decision.
func (ix *Index) ByID(code string, id int) (*Entry, error) {
	sec, ok := ix.sections[code]
	if !ok {
		return nil, fmt.Errorf("%s %d (no section): %w", code, id, ErrNotFound)
	}
	e, ok := sec.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", code, id, ErrNotFound)
	}
	return e, nil
}

// Elements returns the section's entries in source order.
func (ix *Index) Elements(code string) []*Entry {
	sec, ok := ix.sections[code]
	if !ok {
		return nil
	}
	return sec.order
}

func parseID(s string) (int, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// ParseNumber accepts both "2.5" and the "2,5" form the CMS stores for ru locales.
func ParseNumber(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
