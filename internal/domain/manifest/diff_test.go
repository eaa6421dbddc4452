package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDiff classifies missing, changed and extra files.
func TestDiff(t *testing.T) {
	t.Parallel()

	local := New("", "")
	local.Files["/same.txt"] = "5d41402abc4b2a76b9719d911017c592"
	local.Files["/changed.txt"] = "7d793037a0760186574b0282f2f435e7"
	local.Files["/extra.txt"] = "d41d8cd98f00b204e9800998ecf8427e"

	// Remote was built on Windows and uses upper-case digests.
	remote := New("http://x/files", `\bin.exe`)
	remote.Files[`\same.txt`] = "5D41402ABC4B2A76B9719D911017C592"
	remote.Files[`\changed.txt`] = "5d41402abc4b2a76b9719d911017c592"
	remote.Files[`\sub\new.txt`] = "7d793037a0760186574b0282f2f435e7"

	changes := Diff(local, remote)

	require.Equal(t, []string{"/sub/new.txt"}, changes.Missing)
	require.Equal(t, []string{"/changed.txt"}, changes.Changed)
	require.Equal(t, []string{"/extra.txt"}, changes.Extra)
	require.Equal(t, []string{"/changed.txt", "/sub/new.txt"}, changes.Pending())
	require.False(t, changes.Empty())
}

// TestDiff_Identical reports no changes for equal manifests.
func TestDiff_Identical(t *testing.T) {
	t.Parallel()

	m := New("u", "/b")
	m.Files["/a.txt"] = "5d41402abc4b2a76b9719d911017c592"

	changes := Diff(m, m)
	require.True(t, changes.Empty())
	require.Empty(t, changes.Pending())
}
