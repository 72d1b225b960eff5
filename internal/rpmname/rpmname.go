// Package rpmname parses SRPM file names into their components.
package rpmname

import (
	"regexp"
)

// DefaultDistTag is the distribution tag embedded in release fields,
// the "mga" in foo-1.2-3.mga10.src.rpm.
const DefaultDistTag = "mga"

// NVR holds the components of an SRPM file name.
type NVR struct {
	Name        string
	Version     string
	Release     string
	DistTag     string
	DistRelease string // numeric part after the dist tag, e.g. "10"
	Section     string // optional repository section suffix, e.g. "nonfree"
}

// BaseName returns the canonical name-version-release.tagN stub with
// any section suffix stripped.
func (n NVR) BaseName() string {
	return n.Name + "-" + n.Version + "-" + n.Release + "." + n.DistTag + n.DistRelease
}

// Parser extracts NVR components for one distribution tag. The zero
// value is not usable; construct with New.
type Parser struct {
	distTag string
	fileRE  *regexp.Regexp
	baseRE  *regexp.Regexp
}

// New builds a Parser for the given dist tag ("" means DefaultDistTag).
func New(distTag string) *Parser {
	if distTag == "" {
		distTag = DefaultDistTag
	}
	tag := regexp.QuoteMeta(distTag)

	// The name may itself contain dashes, so it greedily takes
	// everything up to the last -version-release run. Version and
	// release cannot contain dashes.
	return &Parser{
		distTag: distTag,
		fileRE:  regexp.MustCompile(`^(.*)-([\w.+~^]+)-([\w.]+)\.` + tag + `(\d+)(?:\.(\w+))?\.src\.rpm$`),
		baseRE:  regexp.MustCompile(`^(.*)-([\w.+~^]+)-([\w.]+)\.` + tag + `(\d+)`),
	}
}

// DistTag returns the tag this parser was built for.
func (p *Parser) DistTag() string {
	return p.distTag
}

// ParseFile decomposes a full SRPM file name such as
// foo-1.2.3-4.mga10.nonfree.src.rpm. ok is false when the name does
// not look like an SRPM of this distribution.
func (p *Parser) ParseFile(name string) (NVR, bool) {
	m := p.fileRE.FindStringSubmatch(name)
	if m == nil {
		return NVR{}, false
	}
	return NVR{
		Name:        m[1],
		Version:     m[2],
		Release:     m[3],
		DistTag:     p.distTag,
		DistRelease: m[4],
		Section:     m[5],
	}, true
}

// ParseBase decomposes a name-version-release.tagN stub. Anything
// after the dist release, such as a distro_section suffix that some
// specs append, is ignored.
func (p *Parser) ParseBase(stub string) (NVR, bool) {
	m := p.baseRE.FindStringSubmatch(stub)
	if m == nil {
		return NVR{}, false
	}
	return NVR{
		Name:        m[1],
		Version:     m[2],
		Release:     m[3],
		DistTag:     p.distTag,
		DistRelease: m[4],
	}, true
}

// Canonical normalizes a stub to its canonical base name, stripping
// any distro_section suffix (lgeneral-1.2-3.mga5.nonfree becomes
// lgeneral-1.2-3.mga5) so names compare reliably.
func (p *Parser) Canonical(stub string) (string, bool) {
	nvr, ok := p.ParseFile(stub + ".src.rpm")
	if !ok {
		return "", false
	}
	return nvr.BaseName(), true
}
