package licenseexpr

import (
	"fmt"
	"strings"
	"sync"

	"github.com/github/go-spdx/v2/spdxexp"
	"github.com/github/go-spdx/v2/spdxexp/spdxlicenses"
)

// validateLicenses reports whether every given single-license expression is
// known to the SPDX license and exception lists, and returns the ones that
// are not.
var validateLicenses = spdxexp.ValidateLicenses

// spdxLists maps lower-cased identifiers to their spelling on the SPDX lists.
// SPDX identifiers match case-insensitively, so "mit" and "MIT" must land on
// the same canonical key.
type spdxLists struct {
	licenses   map[string]string // active and deprecated
	exceptions map[string]string
}

var lists = sync.OnceValue(func() spdxLists {
	l := spdxLists{
		licenses:   make(map[string]string),
		exceptions: make(map[string]string),
	}
	for _, ids := range [][]string{spdxlicenses.GetLicenses(), spdxlicenses.GetDeprecated()} {
		for _, id := range ids {
			l.licenses[strings.ToLower(id)] = id
		}
	}
	for _, id := range spdxlicenses.GetExceptions() {
		l.exceptions[strings.ToLower(id)] = id
	}
	return l
})

// checkIdentifiers looks up every leaf that is not user defined. A user
// defined leaf is still checked for its WITH exception, which must come from
// the SPDX exception list.
func checkIdentifiers(leaves []License) error {
	ids := make([]string, 0, len(leaves))
	var unknown []string
	for _, l := range leaves {
		if !l.UserDefined() {
			ids = append(ids, l.String())
			continue
		}
		if l.Exception == "" {
			continue
		}
		if _, ok := lists().exceptions[strings.ToLower(l.Exception)]; !ok {
			unknown = append(unknown, l.Exception)
		}
	}
	if len(ids) > 0 {
		if ok, invalid := validateLicenses(ids); !ok {
			unknown = append(unknown, invalid...)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownLicense, strings.Join(unknown, ", "))
	}
	return nil
}

// canonicalize rewrites every list identifier and exception in n to its
// SPDX-list spelling. User-defined identifiers are kept as written.
func canonicalize(n Node) Node {
	switch n := n.(type) {
	case License:
		if !n.UserDefined() {
			if id, ok := lists().licenses[strings.ToLower(n.ID)]; ok {
				n.ID = id
			}
		}
		if exc, ok := lists().exceptions[strings.ToLower(n.Exception)]; ok {
			n.Exception = exc
		}
		return n
	case Compound:
		n.Left = canonicalize(n.Left)
		n.Right = canonicalize(n.Right)
		return n
	}
	return n
}
