package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/update-manifest/internal/domain/manifest"
)

const (
	helloChecksum = "5d41402abc4b2a76b9719d911017c592"
	worldChecksum = "7d793037a0760186574b0282f2f435e7"
)

// writeFile creates name under root with the given contents, creating parents.
func writeFile(t *testing.T, root, name, contents string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

// exampleTree creates a.txt and sub/b.txt.
func exampleTree(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "sub/b.txt", "world")

	return root
}

// TestBuild_Example checks the reference manifest and its JSON encoding.
func TestBuild_Example(t *testing.T) {
	t.Parallel()

	root := exampleTree(t)

	result, err := Build(context.Background(), &Options{
		RootDir: root,
		URL:     "http://x/files",
		Binary:  "/bin.exe",
	})
	require.NoError(t, err)
	require.True(t, result.Complete())

	data, err := json.Marshal(result.Manifest)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"url":"http://x/files","binary":"/bin.exe","files":{"/a.txt":"`+helloChecksum+`","/sub/b.txt":"`+worldChecksum+`"}}`,
		string(data),
	)
}

// TestBuild_Cardinality lists exactly one key per regular file and no directories.
func TestBuild_Cardinality(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	const filesPerDir = 7

	for _, dir := range []string{"", "one", "one/two", "one/two/three", "four"} {
		for i := range filesPerDir {
			writeFile(t, root, filepath.ToSlash(filepath.Join(dir, fmt.Sprintf("f%d.bin", i))), fmt.Sprint(dir, i))
		}
	}

	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty", "nested"), 0o755))

	result, err := Build(context.Background(), &Options{RootDir: root, Workers: 3})
	require.NoError(t, err)
	require.Len(t, result.Manifest.Files, 5*filesPerDir)

	for key, checksum := range result.Manifest.Files {
		require.True(t, manifest.IsChecksum(checksum), key)
		require.NotContains(t, key, root)
		require.NotContains(t, key, "empty")
	}
}

// TestBuild_Deterministic yields identical checksums across runs and worker counts.
func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	root := exampleTree(t)

	first, err := Build(context.Background(), &Options{RootDir: root, Workers: 1})
	require.NoError(t, err)

	second, err := Build(context.Background(), &Options{RootDir: root, Workers: 8})
	require.NoError(t, err)

	require.Equal(t, first.Manifest, second.Manifest)
}

// TestBuild_PathSpelling produces the same keys however the root path is spelled.
func TestBuild_PathSpelling(t *testing.T) {
	t.Parallel()

	root := exampleTree(t)

	want, err := Build(context.Background(), &Options{RootDir: root})
	require.NoError(t, err)

	spellings := []string{
		root + string(filepath.Separator),
		filepath.Join(root, "sub", ".."),
		root + "/./",
	}

	for _, spelling := range spellings {
		got, err := Build(context.Background(), &Options{RootDir: spelling})
		require.NoError(t, err, spelling)
		require.Equal(t, want.Manifest.Keys(), got.Manifest.Keys(), spelling)
	}
}

// TestBuild_MissingRoot fails with ErrNotFound and no manifest.
func TestBuild_MissingRoot(t *testing.T) {
	t.Parallel()

	result, err := Build(context.Background(), &Options{RootDir: "/does/not/exist"})
	require.ErrorIs(t, err, manifest.ErrNotFound)
	require.Nil(t, result)

	// A regular file is not a valid root either.
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	result, err = Build(context.Background(), &Options{RootDir: file})
	require.ErrorIs(t, err, manifest.ErrNotFound)
	require.Nil(t, result)
}

// TestBuild_EmptyDirectory succeeds with no entries and keeps the metadata.
func TestBuild_EmptyDirectory(t *testing.T) {
	t.Parallel()

	result, err := Build(context.Background(), &Options{
		RootDir: t.TempDir(),
		URL:     "http://x/files",
		Binary:  "/bin.exe",
	})
	require.NoError(t, err)
	require.Empty(t, result.Manifest.Files)
	require.Equal(t, "http://x/files", result.Manifest.URL)
	require.Equal(t, "/bin.exe", result.Manifest.Binary)
}

// TestBuild_Cancelled discards partial results.
func TestBuild_Cancelled(t *testing.T) {
	t.Parallel()

	root := exampleTree(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Build(ctx, &Options{RootDir: root})
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, result)
}

// TestBuild_SkipsSymlinks lists neither symbolic links nor what they point to.
func TestBuild_SkipsSymlinks(t *testing.T) {
	t.Parallel()

	root := exampleTree(t)

	// A link back to the root would loop forever if followed.
	if err := os.Symlink(root, filepath.Join(root, "loop")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	require.NoError(t, os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "link.txt")))

	result, err := Build(context.Background(), &Options{RootDir: root})
	require.NoError(t, err)
	require.Equal(t, []string{"/a.txt", "/sub/b.txt"}, result.Manifest.Keys())
}

// TestBuild_Exclude leaves excluded keys out.
func TestBuild_Exclude(t *testing.T) {
	t.Parallel()

	root := exampleTree(t)

	result, err := Build(context.Background(), &Options{
		RootDir: root,
		Exclude: []string{"/sub/b.txt"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"/a.txt"}, result.Manifest.Keys())
}

// TestBuild_SkipsUnreadableFile reports a file that cannot be read without aborting.
//
//nolint:paralleltest // Replaces the package-level checksumFile function.
func TestBuild_SkipsUnreadableFile(t *testing.T) {
	root := exampleTree(t)
	writeFile(t, root, "locked.txt", "secret")

	previous := checksumFile
	t.Cleanup(func() {
		checksumFile = previous
	})

	checksumFile = func(path string) (string, error) {
		if filepath.Base(path) == "locked.txt" {
			return "", &os.PathError{Op: "open", Path: path, Err: os.ErrPermission}
		}

		return previous(path)
	}

	result, err := Build(context.Background(), &Options{RootDir: root})
	require.NoError(t, err)
	require.False(t, result.Complete())
	require.Len(t, result.Skipped, 1)
	require.Equal(t, "/locked.txt", result.Skipped[0].Key)
	require.ErrorIs(t, result.Skipped[0].Err, manifest.ErrUnreadable)
	require.ErrorIs(t, result.Skipped[0].Err, os.ErrPermission)
	require.Equal(t, []string{"/a.txt", "/sub/b.txt"}, result.Manifest.Keys())
}

// TestBuild_SkipsUnreadableDirectory reports a subdirectory that cannot be listed and keeps the rest.
//
//nolint:paralleltest // Replaces the package-level readDir function.
func TestBuild_SkipsUnreadableDirectory(t *testing.T) {
	root := exampleTree(t)
	writeFile(t, root, "other/c.txt", "hello")

	previous := readDir
	t.Cleanup(func() {
		readDir = previous
	})

	readDir = func(dir string) ([]os.DirEntry, error) {
		if filepath.Base(dir) == "sub" {
			return nil, &os.PathError{Op: "open", Path: dir, Err: os.ErrPermission}
		}

		return previous(dir)
	}

	result, err := Build(context.Background(), &Options{RootDir: root})
	require.NoError(t, err)
	require.Len(t, result.Skipped, 1)
	require.Equal(t, "/sub", result.Skipped[0].Key)
	require.ErrorIs(t, result.Skipped[0].Err, manifest.ErrUnreadable)
	require.Equal(t, []string{"/a.txt", "/other/c.txt"}, result.Manifest.Keys())
}

// TestBuild_UnreadableRoot fails when the root itself cannot be listed.
//
//nolint:paralleltest // Replaces the package-level readDir function.
func TestBuild_UnreadableRoot(t *testing.T) {
	root := exampleTree(t)

	previous := readDir
	t.Cleanup(func() {
		readDir = previous
	})

	readDir = func(dir string) ([]os.DirEntry, error) {
		return nil, &os.PathError{Op: "open", Path: dir, Err: os.ErrPermission}
	}

	result, err := Build(context.Background(), &Options{RootDir: root})
	require.ErrorIs(t, err, manifest.ErrUnreadable)
	require.Nil(t, result)
}

// TestBuild_BackslashInName keeps a backslash as part of a POSIX file name.
func TestBuild_BackslashInName(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("backslash is the path separator on windows")
	}

	root := t.TempDir()
	writeFile(t, root, `a\b.txt`, "hello")
	writeFile(t, root, "a/b.txt", "world")
	writeFile(t, root, `data\x.txt`, "hello")

	result, err := Build(context.Background(), &Options{RootDir: root})
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		`/a\b.txt`:    helloChecksum,
		"/a/b.txt":    worldChecksum,
		`/data\x.txt`: helloChecksum,
	}, result.Manifest.Files)

	// Every key names the file it was built from.
	for key := range result.Manifest.Files {
		_, err = os.Stat(filepath.Join(root, filepath.FromSlash(key)))
		require.NoError(t, err, key)
	}
}

// TestChecksum matches the reference digests.
func TestChecksum(t *testing.T) {
	t.Parallel()

	root := exampleTree(t)

	got, err := Checksum(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, helloChecksum, got)

	_, err = Checksum(filepath.Join(root, "missing"))
	require.Error(t, err)
}

// TestLive rebuilds on every call and sees new files.
func TestLive(t *testing.T) {
	t.Parallel()

	root := exampleTree(t)
	live := NewLive(&Options{RootDir: root})

	first, err := live.Current(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Manifest.Files, 2)

	writeFile(t, root, "c.txt", "new")

	second, err := live.Current(context.Background())
	require.NoError(t, err)
	require.Len(t, second.Manifest.Files, 3)
}
