// Package gitmirror keeps the cache directory under version control. Every
// successful cache write is staged immediately; one commit at the end of the
// run captures the batch. The mirror shells out to the git CLI so the data
// directory stays a plain repository that humans can inspect and push.
package gitmirror

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/homecharge/homecharge/core/cache"
	"github.com/homecharge/homecharge/infra/logger"
)

// Config locates the repository the cache directory lives in.
type Config struct {
	// RepoDir is the working tree root. Defaults to the cache directory
	// itself, which is then expected to be a repository.
	RepoDir string `json:"repo_dir"`
	// Message overrides the commit message. The current timestamp is
	// appended either way so consecutive runs stay distinguishable.
	Message string `json:"message"`
}

// Mirror implements cache.Mirror on top of a git working tree.
type Mirror struct {
	dir string
	msg string
	log logger.Logger
	now func() time.Time
}

var _ cache.Mirror = (*Mirror)(nil)

// New builds a Mirror for the repository at cfg.RepoDir. The repository must
// already exist; the mirror never runs git init on its own.
func New(cfg Config, log logger.Logger) (*Mirror, error) {
	if cfg.RepoDir == "" {
		return nil, fmt.Errorf("gitmirror: repo_dir is required")
	}
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("gitmirror: git not found in PATH: %w", err)
	}
	msg := cfg.Message
	if msg == "" {
		msg = "update charging data"
	}
	if log == nil {
		log = logger.New("gitmirror")
	}
	return &Mirror{dir: cfg.RepoDir, msg: msg, log: log, now: time.Now}, nil
}

// Record stages one freshly written file. The commit happens later in Commit
// so a sync run produces a single history entry.
func (m *Mirror) Record(path string) error {
	rel, err := filepath.Rel(m.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("gitmirror: %s is outside the repository", path)
	}
	if out, err := m.git("add", "--", rel); err != nil {
		return fmt.Errorf("gitmirror: stage %s: %w (%s)", rel, err, strings.TrimSpace(out))
	}
	return nil
}

// Commit records the staged batch. A clean tree is a no-op, so running it
// after a fully cached sync costs nothing.
func (m *Mirror) Commit() error {
	out, err := m.git("status", "--porcelain")
	if err != nil {
		return fmt.Errorf("gitmirror: status: %w (%s)", err, strings.TrimSpace(out))
	}
	if strings.TrimSpace(out) == "" {
		m.log.Debugf("mirror clean, nothing to commit")
		return nil
	}
	msg := fmt.Sprintf("%s %s", m.msg, m.now().Format("2006-01-02 15:04"))
	if out, err := m.git("commit", "-m", msg); err != nil {
		return fmt.Errorf("gitmirror: commit: %w (%s)", err, strings.TrimSpace(out))
	}
	m.log.Infof("committed cache changes: %s", msg)
	return nil
}

func (m *Mirror) git(args ...string) (string, error) {
	full := append([]string{"-C", m.dir}, args...)
	out, err := exec.Command("git", full...).CombinedOutput()
	return string(out), err
}
