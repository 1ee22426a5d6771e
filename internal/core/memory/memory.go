package memory

import (
	"time"

	"github.com/google/uuid"
)

// Role は発話者の種別を表す
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn は会話の1発話を表す。追記専用で、過去の発話は変更されない。
type Turn struct {
	ID        uuid.UUID
	Role      Role
	Content   string
	Timestamp time.Time
}

// NewTurn は新しい Turn を作成する
func NewTurn(role Role, content string) Turn {
	return Turn{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// DefaultCapacity は容量未指定時の保持発話数
const DefaultCapacity = 20

// Log は容量固定のリングバッファで会話履歴を保持する。
// 容量超過時は最古の発話からFIFOで追い出す。途中の発話の削除や要約は行わない。
// 単一会話を逐次処理する前提のため排他制御は持たない。
type Log struct {
	turns []Turn
	head  int
	size  int
}

// NewLog は指定容量の Log を作成する。capacity が正でない場合は DefaultCapacity。
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{turns: make([]Turn, capacity)}
}

// Append は発話を末尾へ追加する。満杯の場合は最古の発話を追い出す。
func (l *Log) Append(turn Turn) {
	idx := (l.head + l.size) % len(l.turns)
	l.turns[idx] = turn
	if l.size < len(l.turns) {
		l.size++
	} else {
		l.head = (l.head + 1) % len(l.turns)
	}
}

// Recent は直近 n 件の発話を古い順で返す。
// n が保持数を超える場合は保持している全発話を返す。
func (l *Log) Recent(n int) []Turn {
	if n <= 0 || l.size == 0 {
		return nil
	}
	if n > l.size {
		n = l.size
	}
	out := make([]Turn, 0, n)
	start := l.size - n
	for i := start; i < l.size; i++ {
		out = append(out, l.turns[(l.head+i)%len(l.turns)])
	}
	return out
}

// Len は保持している発話数を返す
func (l *Log) Len() int {
	return l.size
}

// Clear は全履歴を破棄する。個別の発話だけを消す手段は提供しない。
func (l *Log) Clear() {
	l.head = 0
	l.size = 0
}
