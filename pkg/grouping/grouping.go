// Package grouping guesses which files were recorded by the same device
// from their names (e.g. GH010045.MP4 and GH010046.MP4 both belong to "GH").
package grouping

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// DefaultName is the group name of files whose names say nothing.
const DefaultName = "Import"

// DeviceGroup is the files attributed to one device.
type DeviceGroup struct {
	Name  string
	Paths []string
}

// DeviceKey returns the device name prefix of the file: the stem without
// trailing digits and the separators before them. If nothing remains, the
// first 4 characters of the stem are used.
func DeviceKey(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	key := strings.TrimRightFunc(stem, unicode.IsDigit)
	key = strings.TrimRight(key, "_- .")
	if key != "" {
		return key
	}
	runes := []rune(stem)
	if len(runes) > 4 {
		runes = runes[:4]
	}
	if len(runes) == 0 {
		return DefaultName
	}
	return string(runes)
}

// Group splits the paths by DeviceKey. Groups are in the order of their first
// appearance; paths within a group are sorted by their case-insensitive file name.
func Group(paths []string) []DeviceGroup {
	var groups []DeviceGroup
	index := map[string]int{}
	for _, path := range paths {
		key := DeviceKey(path)
		idx, ok := index[key]
		if !ok {
			idx = len(groups)
			index[key] = idx
			groups = append(groups, DeviceGroup{Name: key})
		}
		groups[idx].Paths = append(groups[idx].Paths, path)
	}
	for _, g := range groups {
		sort.SliceStable(g.Paths, func(i, j int) bool {
			return strings.ToLower(filepath.Base(g.Paths[i])) < strings.ToLower(filepath.Base(g.Paths[j]))
		})
	}
	return groups
}
