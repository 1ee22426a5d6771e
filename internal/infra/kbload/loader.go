package kbload

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-enry/go-enry/v2"

	"github.com/jinford/kbchat/internal/core/kb"
)

// defaultExtensions は読み込み対象のファイル拡張子
var defaultExtensions = []string{".md", ".txt"}

// DirLoader はディレクトリ配下のドキュメントを読み込む kb.Loader 実装。
// SourceID にはルートからの相対パス（スラッシュ区切り）を使う。
type DirLoader struct {
	root       string
	extensions []string
	logger     *slog.Logger
}

// DirLoaderOption は DirLoader のオプション設定
type DirLoaderOption func(*DirLoader)

// WithExtensions は読み込み対象の拡張子を上書きする
func WithExtensions(extensions ...string) DirLoaderOption {
	return func(l *DirLoader) {
		l.extensions = extensions
	}
}

// WithLogger は DirLoader にロガーを設定する
func WithLogger(logger *slog.Logger) DirLoaderOption {
	return func(l *DirLoader) {
		l.logger = logger
	}
}

// NewDirLoader は新しい DirLoader を作成する
func NewDirLoader(root string, opts ...DirLoaderOption) *DirLoader {
	loader := &DirLoader{
		root:       root,
		extensions: defaultExtensions,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(loader)
	}
	return loader
}

var _ kb.Loader = (*DirLoader)(nil)

// Load はルート配下の対象ファイルを SourceID 順で返す。
// .kbignore にマッチするパスとバイナリファイルはスキップする。
func (l *DirLoader) Load(ctx context.Context) ([]kb.Document, error) {
	info, err := os.Stat(l.root)
	if err != nil {
		return nil, fmt.Errorf("knowledge base root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge base root %s is not a directory", l.root)
	}

	filter, err := newIgnoreFilter(l.root)
	if err != nil {
		return nil, err
	}

	var documents []kb.Document
	err = filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return fmt.Errorf("failed to resolve relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if filter.shouldIgnore(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		if !l.hasTargetExtension(path) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		if enry.IsBinary(content) {
			l.logger.Warn("skipping binary file", "path", rel)
			return nil
		}

		documents = append(documents, kb.Document{
			SourceID:    rel,
			ContentType: detectContentType(path, content),
			Text:        string(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk knowledge base: %w", err)
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].SourceID < documents[j].SourceID
	})

	l.logger.Info("loaded knowledge base documents", "root", l.root, "count", len(documents))
	return documents, nil
}

func (l *DirLoader) hasTargetExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, target := range l.extensions {
		if ext == target {
			return true
		}
	}
	return false
}
