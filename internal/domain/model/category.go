package model

import (
	"regexp"
	"strings"
)

// OverallKey is the reserved course key holding organization-wide data.
const OverallKey = "overall"

// invalidKeyChars matches characters not allowed in a course key.
var invalidKeyChars = regexp.MustCompile(`[<>:"/\\|?* ]`)

// SanitizeKey lowercases a category display name and replaces invalid
// path characters with underscores, producing the store key for a course.
func SanitizeKey(name string) string {
	return strings.ToLower(invalidKeyChars.ReplaceAllString(name, "_"))
}

// Category is one course as reported by the analytics source.
type Category struct {
	ID   int64
	Name string
}

// Key returns the sanitized store key for the category.
func (c Category) Key() string {
	return SanitizeKey(c.Name)
}

// CategoryMap holds the course catalogue for one bootstrap/reset cycle.
type CategoryMap struct {
	categories []Category
}

// NewCategoryMap builds a CategoryMap, dropping categories whose IDs are
// in the exclude set.
func NewCategoryMap(categories []Category, exclude []int64) CategoryMap {
	drop := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		drop[id] = struct{}{}
	}
	kept := make([]Category, 0, len(categories))
	for _, c := range categories {
		if _, skip := drop[c.ID]; skip {
			continue
		}
		kept = append(kept, c)
	}
	return CategoryMap{categories: kept}
}

// All returns the retained categories.
func (m CategoryMap) All() []Category {
	return m.categories
}

// Len returns the number of retained categories.
func (m CategoryMap) Len() int {
	return len(m.categories)
}

// Keys returns the sanitized course keys of all retained categories.
func (m CategoryMap) Keys() []string {
	keys := make([]string, 0, len(m.categories))
	for _, c := range m.categories {
		keys = append(keys, c.Key())
	}
	return keys
}

// IdentityMap maps numeric user IDs to usernames.
type IdentityMap map[int64]string

// Username resolves a user ID; the second return reports presence.
func (m IdentityMap) Username(id int64) (string, bool) {
	name, ok := m[id]
	return name, ok
}
