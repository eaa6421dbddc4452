package manifest

import (
	"slices"
	"strings"
)

// Changes lists the differences between a local and a remote manifest.
type Changes struct {
	// Missing keys exist remotely but not locally.
	Missing []string
	// Changed keys exist on both sides with different checksums.
	Changed []string
	// Extra keys exist only locally.
	Extra []string
}

// Diff compares local against remote. Keys are normalized before comparison
// and checksums are compared case-insensitively.
func Diff(local, remote *Manifest) *Changes {
	var (
		l       = local.Normalized()
		r       = remote.Normalized()
		changes = new(Changes)
	)

	for key, remoteChecksum := range r.Files {
		localChecksum, ok := l.Files[key]

		switch {
		case !ok:
			changes.Missing = append(changes.Missing, key)
		case !strings.EqualFold(localChecksum, remoteChecksum):
			changes.Changed = append(changes.Changed, key)
		}
	}

	for key := range l.Files {
		if _, ok := r.Files[key]; !ok {
			changes.Extra = append(changes.Extra, key)
		}
	}

	slices.Sort(changes.Missing)
	slices.Sort(changes.Changed)
	slices.Sort(changes.Extra)

	return changes
}

// Empty reports whether both manifests list the same files with the same content.
func (c *Changes) Empty() bool {
	return len(c.Missing) == 0 && len(c.Changed) == 0 && len(c.Extra) == 0
}

// Pending returns the keys a client has to download, in lexical order.
func (c *Changes) Pending() []string {
	pending := make([]string, 0, len(c.Missing)+len(c.Changed))
	pending = append(pending, c.Missing...)
	pending = append(pending, c.Changed...)

	slices.Sort(pending)

	return pending
}
