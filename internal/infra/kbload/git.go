package kbload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	giturls "github.com/whilp/git-urls"

	"github.com/jinford/kbchat/internal/core/kb"
)

// GitLoader は Git リポジトリをローカルキャッシュへ同期してから
// DirLoader で読み込む kb.Loader 実装。
type GitLoader struct {
	url         string
	cacheDir    string
	sshKeyPath  string
	sshPassword string
	logger      *slog.Logger
	dirOpts     []DirLoaderOption
}

// GitLoaderOption は GitLoader のオプション設定
type GitLoaderOption func(*GitLoader)

// WithSSHKey はSSH認証に使う鍵ファイルを設定する
func WithSSHKey(keyPath, password string) GitLoaderOption {
	return func(l *GitLoader) {
		l.sshKeyPath = keyPath
		l.sshPassword = password
	}
}

// WithGitLogger は GitLoader にロガーを設定する
func WithGitLogger(logger *slog.Logger) GitLoaderOption {
	return func(l *GitLoader) {
		l.logger = logger
	}
}

// WithDirOptions はクローン後の DirLoader に渡すオプションを設定する
func WithDirOptions(opts ...DirLoaderOption) GitLoaderOption {
	return func(l *GitLoader) {
		l.dirOpts = opts
	}
}

// NewGitLoader は新しい GitLoader を作成する。
// cacheDir 配下にリポジトリごとのディレクトリを作って同期する。
func NewGitLoader(url, cacheDir string, opts ...GitLoaderOption) *GitLoader {
	loader := &GitLoader{
		url:      url,
		cacheDir: cacheDir,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(loader)
	}
	return loader
}

var _ kb.Loader = (*GitLoader)(nil)

// Load はリポジトリを clone または pull してからドキュメントを読み込む
func (l *GitLoader) Load(ctx context.Context) ([]kb.Document, error) {
	dir, err := urlToDirectoryName(l.url)
	if err != nil {
		return nil, err
	}
	repoDir := filepath.Join(l.cacheDir, dir)

	if err := l.cloneOrPull(ctx, repoDir); err != nil {
		return nil, err
	}

	dirLoader := NewDirLoader(repoDir, append([]DirLoaderOption{WithLogger(l.logger)}, l.dirOpts...)...)
	return dirLoader.Load(ctx)
}

func (l *GitLoader) cloneOrPull(ctx context.Context, repoDir string) error {
	auth, err := l.sshAuth()
	if err != nil {
		return err
	}

	gitDir := filepath.Join(repoDir, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		l.logger.Info("cloning knowledge base repository", "url", l.url, "dir", repoDir)
		_, err := git.PlainCloneContext(ctx, repoDir, false, &git.CloneOptions{
			URL:  l.url,
			Auth: auth,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repository: %w", err)
		}
		return nil
	}

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	l.logger.Info("updating knowledge base repository", "url", l.url, "dir", repoDir)
	err = worktree.PullContext(ctx, &git.PullOptions{
		RemoteName: "origin",
		Auth:       auth,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("failed to pull repository: %w", err)
	}
	return nil
}

func (l *GitLoader) sshAuth() (transport.AuthMethod, error) {
	if l.sshKeyPath == "" {
		return nil, nil
	}
	if _, err := os.Stat(l.sshKeyPath); os.IsNotExist(err) {
		return nil, nil
	}

	auth, err := ssh.NewPublicKeysFromFile("git", l.sshKeyPath, l.sshPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key: %w", err)
	}
	return auth, nil
}

// urlToDirectoryName はGit URLをキャッシュディレクトリ名に変換する
func urlToDirectoryName(gitURL string) (string, error) {
	u, err := giturls.Parse(gitURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse git URL: %w", err)
	}

	hostname := u.Hostname()
	if hostname == "" {
		hostname = u.Host
	}

	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")

	return filepath.Join(hostname, path), nil
}
