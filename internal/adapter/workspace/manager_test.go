package workspace_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/review-agent/internal/adapter/workspace"
	"github.com/bkyoung/review-agent/internal/domain"
)

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

// initOrigin builds a local clone source laid out like a forge:
// <root>/<owner>/<repo>.git, reachable through a file:// base URL.
func initOrigin(t *testing.T) (baseURL, repository string) {
	t.Helper()
	root := t.TempDir()
	repository = "acme/widgets"

	dir := filepath.Join(root, repository+".git")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	gitCmd(t, dir, "init", "--initial-branch=main")
	gitCmd(t, dir, "config", "user.email", "ci@example.com")
	gitCmd(t, dir, "config", "user.name", "CI")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# widgets\n"), 0o644))
	gitCmd(t, dir, "add", "README.md")
	gitCmd(t, dir, "commit", "-m", "initial import")
	gitCmd(t, dir, "branch", "feature/retry")

	return "file://" + root, repository
}

func newManager(t *testing.T, baseURL string) *workspace.Manager {
	t.Helper()
	m, err := workspace.NewManager(workspace.Options{
		BaseDir:       t.TempDir(),
		GitHubBaseURL: baseURL,
	})
	require.NoError(t, err)
	return m
}

func TestCreateMakesDirectoryUnderBase(t *testing.T) {
	m := newManager(t, "")

	path, err := m.Create("3f2a")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(path, m.Base()+string(os.PathSeparator)))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateUniquePathsForSameTask(t *testing.T) {
	m := newManager(t, "")

	first, err := m.Create("same-id")
	require.NoError(t, err)
	second, err := m.Create("same-id")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestCreateRejectsTraversalTaskID(t *testing.T) {
	m := newManager(t, "")

	for _, id := range []string{
		"../../../tmp/evil",
		"../sibling",
		"a/../../b",
	} {
		_, err := m.Create(id)
		assert.ErrorIs(t, err, domain.ErrInvalidWorkspacePath, "task id %q", id)
	}
}

func TestPopulateClonesAndChecksOutBranch(t *testing.T) {
	baseURL, repository := initOrigin(t)
	m := newManager(t, baseURL)

	path, err := m.Create("t1")
	require.NoError(t, err)

	require.NoError(t, m.Populate(context.Background(), path, repository, "feature/retry"))

	_, err = os.Stat(filepath.Join(path, "README.md"))
	require.NoError(t, err)
	head := strings.TrimSpace(gitCmd(t, path, "rev-parse", "--abbrev-ref", "HEAD"))
	assert.Equal(t, "feature/retry", head)
}

func TestPopulateKeepsDefaultBranchWhenUnset(t *testing.T) {
	baseURL, repository := initOrigin(t)
	m := newManager(t, baseURL)

	path, err := m.Create("t2")
	require.NoError(t, err)

	require.NoError(t, m.Populate(context.Background(), path, repository, ""))
	head := strings.TrimSpace(gitCmd(t, path, "rev-parse", "--abbrev-ref", "HEAD"))
	assert.Equal(t, "main", head)
}

func TestPopulateRejectsMalformedRepository(t *testing.T) {
	m := newManager(t, "file:///nowhere")
	path, err := m.Create("t3")
	require.NoError(t, err)

	for _, repo := range []string{
		"",
		"acme",
		"acme/widgets/extra",
		"ac me/widgets",
		"acme/widg;ts",
		"-acme/widgets",
		"acme/..",
		"acme/widgets$(whoami)",
	} {
		err := m.Populate(context.Background(), path, repo, "main")
		require.Error(t, err, "repository %q", repo)
		var vErr *domain.ValidationError
		assert.ErrorAs(t, err, &vErr, "repository %q", repo)
	}
}

func TestPopulateRejectsMalformedBranch(t *testing.T) {
	m := newManager(t, "file:///nowhere")
	path, err := m.Create("t4")
	require.NoError(t, err)

	for _, branch := range []string{
		"feat ure",
		"feature~1",
		"/leading",
		"-leading",
		"a..b",
		"trailing/",
		"refs/heads/x\x01",
		"branch`id`",
	} {
		err := m.Populate(context.Background(), path, "acme/widgets", branch)
		require.Error(t, err, "branch %q", branch)
		var vErr *domain.ValidationError
		assert.ErrorAs(t, err, &vErr, "branch %q", branch)
	}
}

func TestPopulateFailsForUnknownRepository(t *testing.T) {
	baseURL, _ := initOrigin(t)
	m := newManager(t, baseURL)

	path, err := m.Create("t5")
	require.NoError(t, err)

	err = m.Populate(context.Background(), path, "acme/nonexistent", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git clone")
}

func TestPopulateFailsForUnknownBranch(t *testing.T) {
	baseURL, repository := initOrigin(t)
	m := newManager(t, baseURL)

	path, err := m.Create("t6")
	require.NoError(t, err)

	err = m.Populate(context.Background(), path, repository, "no-such-branch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git checkout")
}

func TestDestroyRemovesWorkspaceTree(t *testing.T) {
	m := newManager(t, "")

	path, err := m.Create("t7")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(path, "scratch.txt"), []byte("x"), 0o644))

	require.NoError(t, m.Destroy(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDestroyToleratesMissingPath(t *testing.T) {
	m := newManager(t, "")
	assert.NoError(t, m.Destroy(filepath.Join(m.Base(), "task-gone-123")))
}

func TestDestroyRejectsPathsOutsideBase(t *testing.T) {
	m := newManager(t, "")

	for _, path := range []string{
		"/etc",
		m.Base(),
		filepath.Join(m.Base(), ".."),
		filepath.Join(m.Base(), "..", "sibling"),
	} {
		err := m.Destroy(path)
		assert.ErrorIs(t, err, domain.ErrInvalidWorkspacePath, "path %q", path)
	}
}
