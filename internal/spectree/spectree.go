// Package spectree locates and scans a checkout tree of RPM spec
// files, extracting the URL, source and patch fields of each package.
package spectree

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultPattern matches every entry directly under the tree root.
const DefaultPattern = "*"

// Style is the layout convention of the user's spec file checkout.
type Style string

const (
	StyleUnknown    Style = "unknown"
	StyleMassive    Style = "massive"
	StyleIndividual Style = "individual"
	StyleSpecOnly   Style = "spec_only"
)

// Label returns the display name used in logs and reports.
func (s Style) Label() string {
	switch s {
	case StyleMassive:
		return "massive checkout"
	case StyleIndividual:
		return "individual packages"
	case StyleSpecOnly:
		return "spec only"
	default:
		return "unknown"
	}
}

// PackageDirs returns the sorted package directories matching pattern
// under root. Non-directory matches are skipped.
func PackageDirs(root, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := filepath.Glob(filepath.Join(root, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad package pattern %q: %w", pattern, err)
	}

	dirs := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.IsDir() {
			continue
		}
		dirs = append(dirs, match)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// DetectStyle determines the checkout layout by probing one
// representative package directory.
func DetectStyle(root, pattern string) (Style, error) {
	dirs, err := PackageDirs(root, pattern)
	if err != nil {
		return StyleUnknown, err
	}
	if len(dirs) == 0 {
		return StyleUnknown, fmt.Errorf("no package directories found under %s", root)
	}

	probe := dirs[len(dirs)-1]

	if info, err := os.Stat(filepath.Join(probe, "current", "SPECS")); err == nil && info.IsDir() {
		return StyleMassive, nil
	}
	if info, err := os.Stat(filepath.Join(probe, "SPECS")); err == nil && info.IsDir() {
		return StyleIndividual, nil
	}
	pkg := filepath.Base(probe)
	if info, err := os.Stat(filepath.Join(probe, pkg+".spec")); err == nil && info.Mode().IsRegular() {
		return StyleSpecOnly, nil
	}
	return StyleUnknown, nil
}

// SpecPath builds the spec file path for a package directory under
// the given checkout style.
func SpecPath(packageDir string, style Style) (string, error) {
	pkg := filepath.Base(packageDir)
	switch style {
	case StyleMassive:
		return filepath.Join(packageDir, "current", "SPECS", pkg+".spec"), nil
	case StyleIndividual:
		return filepath.Join(packageDir, "SPECS", pkg+".spec"), nil
	case StyleSpecOnly:
		return filepath.Join(packageDir, pkg+".spec"), nil
	default:
		return "", fmt.Errorf("unsupported checkout style %q", style)
	}
}
