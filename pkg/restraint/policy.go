package restraint

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const restrictPrefix = "restrict:"

// Policy is the operator's safety policy, read once at process start.
type Policy struct {
	// Disallowed kinds can never be offered, consented to, or applied.
	Disallowed []Kind
	// Restrictions are free-text rules passed verbatim to the narrator.
	Restrictions []string
	// Unknown holds names that did not match the catalog.
	Unknown []string
}

// LoadPolicy reads a policy file. A missing file yields an empty policy.
func LoadPolicy(path string, catalog *Catalog) (*Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Policy{}, nil
		}
		return nil, fmt.Errorf("failed to open safety policy: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParsePolicy(f, catalog)
}

// ParsePolicy reads one disallowed machine name per line. Blank lines and
// lines starting with '#' are ignored, and lines starting with "restrict:"
// are free-text restrictions.
func ParsePolicy(r io.Reader, catalog *Catalog) (*Policy, error) {
	p := &Policy{}
	seen := make(map[Kind]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if len(line) >= len(restrictPrefix) && strings.EqualFold(line[:len(restrictPrefix)], restrictPrefix) {
			if text := strings.TrimSpace(line[len(restrictPrefix):]); text != "" {
				p.Restrictions = append(p.Restrictions, text)
			}
			continue
		}

		// trailing comments: "gag  # no gags on this server"
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		k := Kind(strings.ToLower(line))
		if !catalog.Has(k) {
			p.Unknown = append(p.Unknown, line)
			continue
		}
		if !seen[k] {
			seen[k] = true
			p.Disallowed = append(p.Disallowed, k)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read safety policy: %w", err)
	}

	return p, nil
}

// IsDisallowed reports whether k is globally forbidden.
func (p *Policy) IsDisallowed(k Kind) bool {
	if p == nil {
		return false
	}
	for _, d := range p.Disallowed {
		if d == k {
			return true
		}
	}
	return false
}
