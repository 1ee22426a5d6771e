package kbload

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// detectContentType はファイルパスと内容からMIMEタイプを判定する
func detectContentType(path string, content []byte) string {
	filename := filepath.Base(path)
	language := enry.GetLanguage(filename, content)

	if mime := languageToMimeType(language); mime != "" {
		return mime
	}

	if len(content) > 0 {
		detected := http.DetectContentType(content)
		if idx := strings.Index(detected, ";"); idx != -1 {
			detected = detected[:idx]
		}
		return strings.TrimSpace(detected)
	}

	return "text/plain"
}

func languageToMimeType(language string) string {
	mapping := map[string]string{
		"Markdown":         "text/markdown",
		"Text":             "text/plain",
		"reStructuredText": "text/x-rst",
		"AsciiDoc":         "text/asciidoc",
		"HTML":             "text/html",
		"YAML":             "text/x-yaml",
		"JSON":             "application/json",
		"CSV":              "text/csv",
	}
	return mapping[language]
}
