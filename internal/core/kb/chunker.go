package kb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig はチャンク分割パラメータが不正な場合のエラー
var ErrInvalidConfig = errors.New("invalid chunker config")

// Chunker はドキュメントを固定長ルーン窓＋オーバーラップで分割する。
// 分割は決定的であり、同一入力からは常に同じ境界が得られる。
type Chunker struct {
	maxChars     int
	overlapChars int
}

// NewChunker は新しい Chunker を作成する。
// overlap >= max の場合は前進できなくなるため ErrInvalidConfig を返す。
func NewChunker(maxChars, overlapChars int) (*Chunker, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: maxChars must be positive, got %d", ErrInvalidConfig, maxChars)
	}
	if overlapChars < 0 {
		return nil, fmt.Errorf("%w: overlapChars must be non-negative, got %d", ErrInvalidConfig, overlapChars)
	}
	if overlapChars >= maxChars {
		return nil, fmt.Errorf("%w: overlapChars (%d) must be smaller than maxChars (%d)", ErrInvalidConfig, overlapChars, maxChars)
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars}, nil
}

// Split はドキュメントをチャンク列に分割する。
// 各チャンクは maxChars ルーン以下で、連続するチャンクは overlapChars 程度重なる。
// 改行・空白の境界を優先して切るが、オフセットを保持するため
// 非オーバーラップ区間を連結すれば元テキストが復元できる。
func (c *Chunker) Split(doc Document) ([]Chunk, error) {
	text := normalizeNewlines(doc.Text)
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	pos := 0
	ordinal := 0
	for pos < len(runes) {
		end := pos + c.maxChars
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.adjustBoundary(runes, pos, end)
		}

		body := string(runes[pos:end])
		chunks = append(chunks, Chunk{
			ID:       chunkID(doc.SourceID, ordinal, body),
			SourceID: doc.SourceID,
			Ordinal:  ordinal,
			Text:     body,
			Start:    pos,
			End:      end,
		})
		ordinal++

		if end == len(runes) {
			break
		}

		next := end - c.overlapChars
		if next <= pos {
			// オーバーラップが境界調整で窓幅を上回った場合でも必ず前進させる
			next = pos + 1
		}
		pos = next
	}

	return chunks, nil
}

// adjustBoundary は窓の終端を直近の段落・改行・空白境界まで戻す。
// 窓の後半に境界が無い場合はハード分割のまま返す。
func (c *Chunker) adjustBoundary(runes []rune, start, end int) int {
	window := string(runes[start:end])
	floor := len([]rune(window)) / 2

	for _, sep := range []string{"\n\n", "\n", " "} {
		if idx := lastIndexRunes(window, sep); idx > floor {
			return start + idx + len([]rune(sep))
		}
	}
	return end
}

// lastIndexRunes は s 内で sep が最後に出現するルーン位置を返す。
func lastIndexRunes(s, sep string) int {
	byteIdx := strings.LastIndex(s, sep)
	if byteIdx < 0 {
		return -1
	}
	return len([]rune(s[:byteIdx]))
}

// normalizeNewlines は改行コードをLFへ正規化する。
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
