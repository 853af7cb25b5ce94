package relocator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/godedup/internal/grouper"
	"github.com/dbsmedya/godedup/internal/logger"
)

var errBusy = errors.New("device or resource busy")

// renameFailFs fails Rename for the listed sources.
type renameFailFs struct {
	afero.Fs
	fail map[string]bool
}

func (fs renameFailFs) Rename(oldname, newname string) error {
	if fs.fail[oldname] {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: errBusy}
	}
	return fs.Fs.Rename(oldname, newname)
}

type stubVerifier struct {
	match bool
	err   error
	calls []string
}

func (v *stubVerifier) Matches(path, digest string) (bool, error) {
	v.calls = append(v.calls, path)
	return v.match, v.err
}

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
}

func group(digest string, paths ...string) grouper.DuplicateGroup {
	g := grouper.DuplicateGroup{Digest: digest}
	for _, p := range paths {
		g.Files = append(g.Files, grouper.FileRecord{Path: p, Digest: digest, Size: 4})
	}
	return g
}

func newRelocator(t *testing.T, fs afero.Fs, opts Options) *Relocator {
	t.Helper()
	r, err := New(fs, "/data/_Duplicates", opts, logger.NewNop())
	require.NoError(t, err)
	return r
}

func exists(t *testing.T, fs afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, path)
	require.NoError(t, err)
	return ok
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, "/q", Options{}, nil)
	assert.Error(t, err)

	_, err = New(afero.NewMemMapFs(), "", Options{}, nil)
	assert.Error(t, err)

	r, err := New(afero.NewMemMapFs(), "/data/_Duplicates/", Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/data/_Duplicates", r.QuarantineDir())
}

func TestRelocateKeepsFirstMovesRest(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/data/A1":     "aaaa",
		"/data/sub/A2": "aaaa",
		"/data/B1":     "bbbb",
		"/data/B2":     "bbbb",
		"/data/C":      "cccc",
	})

	r := newRelocator(t, fs, Options{})
	out, err := r.Relocate(context.Background(), []grouper.DuplicateGroup{
		group("d1", "/data/A1", "/data/sub/A2"),
		group("d2", "/data/B1", "/data/B2"),
	})
	require.NoError(t, err)

	require.Len(t, out.Moves, 2)
	assert.Empty(t, out.Failures)
	assert.False(t, out.Interrupted)

	assert.Equal(t, "/data/sub/A2", out.Moves[0].Source)
	assert.Equal(t, "/data/_Duplicates/A2", out.Moves[0].Destination)
	assert.Equal(t, "/data/A1", out.Moves[0].Keeper)
	assert.Equal(t, "/data/_Duplicates/B2", out.Moves[1].Destination)

	for _, kept := range []string{"/data/A1", "/data/B1", "/data/C"} {
		assert.True(t, exists(t, fs, kept), kept)
	}
	for _, moved := range []string{"/data/sub/A2", "/data/B2"} {
		assert.False(t, exists(t, fs, moved), moved)
	}
	assert.True(t, exists(t, fs, "/data/_Duplicates/A2"))
	assert.True(t, exists(t, fs, "/data/_Duplicates/B2"))
}

func TestRelocateNeverOverwritesQuarantinedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/data/_Duplicates/a.txt": "earlier run",
		"/data/x/a.txt":           "new!",
		"/data/y/a.txt":           "new!",
	})

	r := newRelocator(t, fs, Options{})
	out, err := r.Relocate(context.Background(), []grouper.DuplicateGroup{
		group("d", "/data/x/a.txt", "/data/y/a.txt"),
	})
	require.NoError(t, err)
	require.Len(t, out.Moves, 1)
	assert.Equal(t, "/data/_Duplicates/a_1.txt", out.Moves[0].Destination)

	earlier, err := afero.ReadFile(fs, "/data/_Duplicates/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "earlier run", string(earlier))

	moved, err := afero.ReadFile(fs, "/data/_Duplicates/a_1.txt")
	require.NoError(t, err)
	assert.Equal(t, "new!", string(moved))
}

func TestRelocateCollisionSuffixSequence(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/data/_Duplicates/photo.jpg":   "old",
		"/data/_Duplicates/photo_1.jpg": "old",
		"/data/1/photo.jpg":             "same",
		"/data/2/photo.jpg":             "same",
		"/data/3/photo.jpg":             "same",
		"/data/4/photo.jpg":             "same",
	})

	r := newRelocator(t, fs, Options{})
	out, err := r.Relocate(context.Background(), []grouper.DuplicateGroup{
		group("d", "/data/1/photo.jpg", "/data/2/photo.jpg", "/data/3/photo.jpg", "/data/4/photo.jpg"),
	})
	require.NoError(t, err)
	require.Len(t, out.Moves, 3)

	assert.Equal(t, "/data/_Duplicates/photo_2.jpg", out.Moves[0].Destination)
	assert.Equal(t, "/data/_Duplicates/photo_3.jpg", out.Moves[1].Destination)
	assert.Equal(t, "/data/_Duplicates/photo_4.jpg", out.Moves[2].Destination)
}

func TestResolveDestinationNames(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/data/_Duplicates/.bashrc":        "x",
		"/data/_Duplicates/archive.tar.gz": "x",
		"/data/_Duplicates/README":         "x",
	})
	r := newRelocator(t, fs, Options{})

	tests := []struct {
		base string
		want string
	}{
		{".bashrc", "/data/_Duplicates/.bashrc_1"},
		{"archive.tar.gz", "/data/_Duplicates/archive.tar_1.gz"},
		{"README", "/data/_Duplicates/README_1"},
		{"fresh.txt", "/data/_Duplicates/fresh.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := r.resolveDestination(tt.base, map[string]bool{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelocateContinuesAfterMoveFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	writeFiles(t, base, map[string]string{
		"/data/k":  "same",
		"/data/d1": "same",
		"/data/d2": "same",
	})
	fs := renameFailFs{Fs: base, fail: map[string]bool{"/data/d1": true}}

	r := newRelocator(t, fs, Options{})
	out, err := r.Relocate(context.Background(), []grouper.DuplicateGroup{
		group("d", "/data/k", "/data/d1", "/data/d2"),
	})
	require.NoError(t, err)

	require.Len(t, out.Failures, 1)
	assert.Equal(t, "/data/d1", out.Failures[0].Source)
	assert.True(t, errors.Is(out.Failures[0], errBusy))
	assert.True(t, exists(t, fs, "/data/d1"), "failed source must stay in place")

	require.Len(t, out.Moves, 1)
	assert.Equal(t, "/data/d2", out.Moves[0].Source)
	assert.Equal(t, "/data/_Duplicates/d2", out.Moves[0].Destination)
}

func TestRelocateCreatesQuarantineOnlyWhenNeeded(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0755))

	r := newRelocator(t, fs, Options{})
	out, err := r.Relocate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out.Moves)
	assert.False(t, exists(t, fs, "/data/_Duplicates"))

	// An existing quarantine directory is fine.
	require.NoError(t, fs.MkdirAll("/data/_Duplicates", 0755))
	writeFiles(t, fs, map[string]string{"/data/a": "x", "/data/b": "x"})
	out, err = r.Relocate(context.Background(), []grouper.DuplicateGroup{group("d", "/data/a", "/data/b")})
	require.NoError(t, err)
	assert.Len(t, out.Moves, 1)
}

func TestRelocateQuarantineCreationFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	writeFiles(t, base, map[string]string{"/data/a": "x", "/data/b": "x"})
	fs := afero.NewReadOnlyFs(base)

	r := newRelocator(t, fs, Options{})
	_, err := r.Relocate(context.Background(), []grouper.DuplicateGroup{group("d", "/data/a", "/data/b")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quarantine directory")
	assert.True(t, exists(t, base, "/data/b"))
}

func TestRelocateDryRunTouchesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/data/x/a.txt": "same",
		"/data/y/a.txt": "same",
		"/data/z/a.txt": "same",
	})

	r := newRelocator(t, fs, Options{DryRun: true})
	out, err := r.Relocate(context.Background(), []grouper.DuplicateGroup{
		group("d", "/data/x/a.txt", "/data/y/a.txt", "/data/z/a.txt"),
	})
	require.NoError(t, err)

	assert.True(t, out.DryRun)
	require.Len(t, out.Moves, 2)
	assert.Equal(t, "/data/_Duplicates/a.txt", out.Moves[0].Destination)
	assert.Equal(t, "/data/_Duplicates/a_1.txt", out.Moves[1].Destination)

	assert.False(t, exists(t, fs, "/data/_Duplicates"))
	assert.True(t, exists(t, fs, "/data/y/a.txt"))
	assert.True(t, exists(t, fs, "/data/z/a.txt"))
}

func TestRelocateVerification(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/data/a": "x", "/data/b": "x", "/data/c": "x"})

	good := &stubVerifier{match: true}
	r := newRelocator(t, fs, Options{Verifier: good})
	out, err := r.Relocate(context.Background(), []grouper.DuplicateGroup{group("d", "/data/a", "/data/b")})
	require.NoError(t, err)
	require.Len(t, out.Moves, 1)
	assert.True(t, out.Moves[0].Verified)
	assert.Equal(t, []string{"/data/_Duplicates/b"}, good.calls)

	bad := &stubVerifier{match: false}
	r = newRelocator(t, fs, Options{Verifier: bad})
	out, err = r.Relocate(context.Background(), []grouper.DuplicateGroup{group("d", "/data/a", "/data/c")})
	require.NoError(t, err)
	require.Len(t, out.Moves, 1)
	assert.False(t, out.Moves[0].Verified)
	require.Len(t, out.Failures, 1)
	assert.ErrorIs(t, out.Failures[0], ErrVerifyMismatch)
}

func TestRelocateInterrupted(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/data/a": "x", "/data/b": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRelocator(t, fs, Options{})
	out, err := r.Relocate(ctx, []grouper.DuplicateGroup{group("d", "/data/a", "/data/b")})
	require.NoError(t, err)
	assert.True(t, out.Interrupted)
	assert.Empty(t, out.Moves)
	assert.True(t, exists(t, fs, "/data/b"))
}

func TestRelocateOnDiskPreservesFileCount(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"A1":        "alpha",
		"nested/A2": "alpha",
		"B1":        "bravo",
		"B2":        "bravo",
		"C":         "charlie",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	r, err := New(afero.NewOsFs(), filepath.Join(root, "_Duplicates"), Options{}, logger.NewNop())
	require.NoError(t, err)

	out, err := r.Relocate(context.Background(), []grouper.DuplicateGroup{
		group("d1", filepath.Join(root, "A1"), filepath.Join(root, "nested", "A2")),
		group("d2", filepath.Join(root, "B1"), filepath.Join(root, "B2")),
	})
	require.NoError(t, err)
	assert.Len(t, out.Moves, 2)

	count := 0
	require.NoError(t, filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			count++
		}
		return err
	}))
	assert.Equal(t, len(files), count)

	moved, err := os.ReadFile(filepath.Join(root, "_Duplicates", "A2"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(moved))
}

func TestRelocateFailedMoveDoesNotReserveName(t *testing.T) {
	base := afero.NewMemMapFs()
	writeFiles(t, base, map[string]string{
		"/data/keep":    "same",
		"/data/x/a.txt": "same",
		"/data/y/a.txt": "same",
		"/data/z/a.txt": "same",
	})
	fs := renameFailFs{Fs: base, fail: map[string]bool{"/data/x/a.txt": true}}

	r := newRelocator(t, fs, Options{})
	out, err := r.Relocate(context.Background(), []grouper.DuplicateGroup{
		group("d", "/data/keep", "/data/x/a.txt", "/data/y/a.txt", "/data/z/a.txt"),
	})
	require.NoError(t, err)

	require.Len(t, out.Failures, 1)
	assert.Equal(t, "/data/_Duplicates/a.txt", out.Failures[0].Destination)

	require.Len(t, out.Moves, 2)
	assert.Equal(t, "/data/_Duplicates/a.txt", out.Moves[0].Destination)
	assert.Equal(t, "/data/_Duplicates/a_1.txt", out.Moves[1].Destination)
}

func TestRelocateLeavesQuarantinedAndLinkedMembers(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/data/keep":             "same",
		"/data/target":           "same",
		"/data/_Duplicates/keep": "same",
		"/data/copy":             "same",
	})

	g := grouper.DuplicateGroup{Digest: "d", Files: []grouper.FileRecord{
		{Path: "/data/keep", Digest: "d", Size: 4},
		{Path: "/data/target", Digest: "d", Size: 4, Linked: true},
		{Path: "/data/_Duplicates/keep", Digest: "d", Size: 4, Quarantined: true},
		{Path: "/data/copy", Digest: "d", Size: 4},
	}}

	r := newRelocator(t, fs, Options{})
	out, err := r.Relocate(context.Background(), []grouper.DuplicateGroup{g})
	require.NoError(t, err)

	assert.Empty(t, out.Failures)
	require.Len(t, out.Moves, 1)
	assert.Equal(t, "/data/copy", out.Moves[0].Source)
	assert.Equal(t, "/data/_Duplicates/copy", out.Moves[0].Destination)

	assert.True(t, exists(t, fs, "/data/target"))
	assert.True(t, exists(t, fs, "/data/_Duplicates/keep"))
	assert.False(t, exists(t, fs, "/data/_Duplicates/keep_1"))
}

func TestRelocateRelativeSymlinkStillResolves(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("same"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "x.txt"), []byte("same"), 0644))
	rel, err := filepath.Rel(root, filepath.Join(outside, "x.txt"))
	require.NoError(t, err)
	link := filepath.Join(root, "b_link")
	require.NoError(t, os.Symlink(rel, link))

	r, err := New(afero.NewOsFs(), filepath.Join(root, "_Duplicates"), Options{}, logger.NewNop())
	require.NoError(t, err)

	g := grouper.DuplicateGroup{Digest: "d", Files: []grouper.FileRecord{
		{Path: filepath.Join(root, "a.txt"), Digest: "d", Size: 4},
		{Path: link, Digest: "d", Size: 4, Link: true},
	}}
	out, err := r.Relocate(context.Background(), []grouper.DuplicateGroup{g})
	require.NoError(t, err)
	assert.Empty(t, out.Failures)
	require.Len(t, out.Moves, 1)

	dest := filepath.Join(root, "_Duplicates", "b_link")
	assert.Equal(t, dest, out.Moves[0].Destination)

	_, err = os.Lstat(link)
	assert.True(t, os.IsNotExist(err))

	target, err := os.Readlink(dest)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(target))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "same", string(data))
}
