package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendAndRecentOldestFirst(t *testing.T) {
	log := NewLog(10)

	log.Append(NewTurn(RoleUser, "first question"))
	log.Append(NewTurn(RoleAssistant, "first answer"))
	log.Append(NewTurn(RoleUser, "second question"))

	turns := log.Recent(3)
	require.Len(t, turns, 3)
	assert.Equal(t, "first question", turns[0].Content)
	assert.Equal(t, "first answer", turns[1].Content)
	assert.Equal(t, "second question", turns[2].Content)
}

func TestLog_EvictsOldestBeyondCapacity(t *testing.T) {
	const capacity = 4
	log := NewLog(capacity)

	for i := 0; i < 10; i++ {
		log.Append(NewTurn(RoleUser, fmt.Sprintf("turn %d", i)))
	}

	assert.Equal(t, capacity, log.Len())

	turns := log.Recent(capacity)
	require.Len(t, turns, capacity)
	// 直近 capacity 件だけが古い順で残る
	for i, turn := range turns {
		assert.Equal(t, fmt.Sprintf("turn %d", 10-capacity+i), turn.Content)
	}
}

func TestLog_RecentLimitsWindow(t *testing.T) {
	log := NewLog(10)
	for i := 0; i < 6; i++ {
		log.Append(NewTurn(RoleUser, fmt.Sprintf("turn %d", i)))
	}

	turns := log.Recent(2)
	require.Len(t, turns, 2)
	assert.Equal(t, "turn 4", turns[0].Content)
	assert.Equal(t, "turn 5", turns[1].Content)

	assert.Len(t, log.Recent(100), 6)
	assert.Nil(t, log.Recent(0))
}

func TestLog_ClearEmptiesHistory(t *testing.T) {
	log := NewLog(5)
	log.Append(NewTurn(RoleUser, "hello"))
	log.Append(NewTurn(RoleAssistant, "hi"))

	log.Clear()

	assert.Equal(t, 0, log.Len())
	for _, n := range []int{1, 5, 100} {
		assert.Empty(t, log.Recent(n))
	}

	// クリア後も追記は通常どおり動く
	log.Append(NewTurn(RoleUser, "again"))
	turns := log.Recent(1)
	require.Len(t, turns, 1)
	assert.Equal(t, "again", turns[0].Content)
}

func TestLog_DefaultCapacity(t *testing.T) {
	log := NewLog(0)
	for i := 0; i < DefaultCapacity+5; i++ {
		log.Append(NewTurn(RoleUser, fmt.Sprintf("turn %d", i)))
	}
	assert.Equal(t, DefaultCapacity, log.Len())
}
