package partition

import (
	"regexp"
	"strings"
	"unicode"
)

// ModuleID identifies a module. It is the module's root namespace.
type ModuleID string

// Identity maps a namespace to the module it belongs to, if any.
type Identity interface {
	ModuleOf(namespace string) (ModuleID, bool)
}

// IdentityFunc adapts a function to Identity.
type IdentityFunc func(namespace string) (ModuleID, bool)

// ModuleOf calls f.
func (f IdentityFunc) ModuleOf(namespace string) (ModuleID, bool) { return f(namespace) }

// Prefix places a namespace in module Root+Sep+seg, where seg is the segment
// directly under Root. Root itself, and anything not under Root, belongs to
// no module.
type Prefix struct {
	Root string
	Sep  string
}

// ModuleOf implements Identity.
func (p Prefix) ModuleOf(namespace string) (ModuleID, bool) {
	sep := p.Sep
	if sep == "" {
		sep = "/"
	}
	prefix := ""
	if p.Root != "" {
		prefix = p.Root + sep
	}
	rest, ok := strings.CutPrefix(namespace, prefix)
	if !ok {
		return "", false
	}
	seg, _, _ := strings.Cut(rest, sep)
	if i := strings.IndexFunc(seg, unicode.IsSpace); i >= 0 {
		seg = seg[:i]
	}
	if seg == "" {
		return "", false
	}
	return ModuleID(prefix + seg), true
}

// Regexp uses the first capture group of re, or the whole match when re has
// no groups, as the module id. A blank capture means no module.
func Regexp(re *regexp.Regexp) Identity {
	return IdentityFunc(func(namespace string) (ModuleID, bool) {
		match := re.FindStringSubmatch(namespace)
		if match == nil {
			return "", false
		}
		id := match[0]
		if len(match) > 1 {
			id = match[1]
		}
		if strings.TrimSpace(id) == "" {
			return "", false
		}
		return ModuleID(id), true
	})
}
