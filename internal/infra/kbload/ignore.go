package kbload

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// ignoreFileName はナレッジベース直下に置く除外パターンファイル
const ignoreFileName = ".kbignore"

// ignoreFilter は .kbignore のパターンマッチングを提供する
type ignoreFilter struct {
	patterns *gitignore.GitIgnore
}

// newIgnoreFilter は root 直下の .kbignore を読み込む。
// ファイルが無い場合はデフォルトパターンのみ適用する。
func newIgnoreFilter(root string) (*ignoreFilter, error) {
	patterns := defaultIgnorePatterns()

	ignorePath := filepath.Join(root, ignoreFileName)
	if _, err := os.Stat(ignorePath); err == nil {
		lines, err := readIgnoreFile(ignorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", ignoreFileName, err)
		}
		patterns = append(patterns, lines...)
	}

	return &ignoreFilter{
		patterns: gitignore.CompileIgnoreLines(patterns...),
	}, nil
}

// shouldIgnore はパスが除外対象かどうかを判定する
func (f *ignoreFilter) shouldIgnore(path string) bool {
	if f.patterns == nil {
		return false
	}
	return f.patterns.MatchesPath(path)
}

func readIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// defaultIgnorePatterns はナレッジベースとして読み込まないパスの既定値
func defaultIgnorePatterns() []string {
	return []string{
		".git",
		".gitignore",
		ignoreFileName,
		".DS_Store",
		"node_modules",
		"tmp",
		"*.tmp",
		"*.log",
		".env",
		".env.local",
	}
}
