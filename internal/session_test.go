package internal_test

import (
	"testing"

	"github.com/koopa0/system-design/14-connect-four/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStartedSession 創建已開局的雙人會話（c1 席位一，c2 席位二）
func newStartedSession(t *testing.T) *internal.Session {
	t.Helper()

	session := internal.NewSession("room1", "c1", "玩家一")
	slot, err := session.Join("c2", "玩家二")
	require.NoError(t, err)
	require.Equal(t, internal.Slot2, slot)
	require.Equal(t, internal.StatusInProgress, session.Status())
	return session
}

// TestNewSession 測試創建會話
func TestNewSession(t *testing.T) {
	session := internal.NewSession("room1", "c1", "玩家一")

	assert.Equal(t, "room1", session.ID)
	assert.Equal(t, internal.StatusWaiting, session.Status())
	assert.Equal(t, internal.SlotNone, session.Turn())
	assert.Equal(t, 1, session.PlayerCount())

	players := session.Players()
	require.Len(t, players, 1)
	assert.Equal(t, internal.Slot1, players[0].Slot)
	assert.Equal(t, "玩家一", players[0].Name)
}

// TestSession_Join 測試加入會話
func TestSession_Join(t *testing.T) {
	t.Run("second player starts the game", func(t *testing.T) {
		session := internal.NewSession("room1", "c1", "玩家一")

		slot, err := session.Join("c2", "玩家二")
		require.NoError(t, err)
		assert.Equal(t, internal.Slot2, slot)
		assert.Equal(t, internal.StatusInProgress, session.Status())
		assert.Equal(t, internal.Slot1, session.Turn())
		assert.Equal(t, internal.Board{}, session.BoardSnapshot())
	})

	t.Run("third player rejected", func(t *testing.T) {
		session := newStartedSession(t)

		_, err := session.Join("c3", "玩家三")
		assert.ErrorIs(t, err, internal.ErrRoomFull)
		assert.Equal(t, 2, session.PlayerCount())
	})

	t.Run("joiner fills the free slot after the host left", func(t *testing.T) {
		session := newStartedSession(t)

		// 房主離座後席位一空出，新玩家補進席位一
		_, err := session.Leave("c1")
		require.NoError(t, err)

		slot, err := session.Join("c3", "玩家三")
		require.NoError(t, err)
		assert.Equal(t, internal.Slot1, slot)
		assert.Equal(t, internal.StatusInProgress, session.Status())
	})
}

// TestSession_ApplyMove 測試落子驗證順序
func TestSession_ApplyMove(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(t *testing.T) *internal.Session
		connID      string
		column      int
		expectedErr error
	}{
		{
			name: "waiting session rejects moves",
			setup: func(t *testing.T) *internal.Session {
				return internal.NewSession("room1", "c1", "玩家一")
			},
			connID:      "c1",
			column:      0,
			expectedErr: internal.ErrSessionNotInProgress,
		},
		{
			name:        "stranger rejected",
			setup:       newStartedSession,
			connID:      "c3",
			column:      0,
			expectedErr: internal.ErrNotAPlayer,
		},
		{
			name:        "not your turn",
			setup:       newStartedSession,
			connID:      "c2",
			column:      0,
			expectedErr: internal.ErrNotYourTurn,
		},
		{
			name:        "column out of range",
			setup:       newStartedSession,
			connID:      "c1",
			column:      7,
			expectedErr: internal.ErrInvalidColumn,
		},
		{
			name:        "negative column",
			setup:       newStartedSession,
			connID:      "c1",
			column:      -1,
			expectedErr: internal.ErrInvalidColumn,
		},
		{
			name: "column full",
			setup: func(t *testing.T) *internal.Session {
				session := newStartedSession(t)
				conns := []string{"c1", "c2"}
				for i := 0; i < internal.BoardRows; i++ {
					_, err := session.ApplyMove(conns[i%2], 0)
					require.NoError(t, err)
				}
				return session
			},
			connID:      "c1",
			column:      0,
			expectedErr: internal.ErrColumnFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := tt.setup(t)
			before := session.BoardSnapshot()

			result, err := session.ApplyMove(tt.connID, tt.column)
			require.ErrorIs(t, err, tt.expectedErr)
			assert.Nil(t, result)

			// 驗證失敗不改動棋盤
			assert.Equal(t, before, session.BoardSnapshot())
		})
	}
}

// TestSession_TurnAlternation 測試回合交替
func TestSession_TurnAlternation(t *testing.T) {
	session := newStartedSession(t)

	moves := []struct {
		connID string
		column int
	}{
		{"c1", 0}, {"c2", 1}, {"c1", 2}, {"c2", 3}, {"c1", 4}, {"c2", 5},
	}

	for i, m := range moves {
		expectedTurn := internal.Slot1
		if i%2 == 1 {
			expectedTurn = internal.Slot2
		}
		assert.Equal(t, expectedTurn, session.Turn())

		result, err := session.ApplyMove(m.connID, m.column)
		require.NoError(t, err)
		assert.False(t, result.Finished)
	}

	assert.Equal(t, internal.Slot1, session.Turn())
}

// TestSession_HorizontalWin 測試橫向獲勝流程
//
// 席位一連下 0,1,2,3 列，席位二每次都下第 6 列。
func TestSession_HorizontalWin(t *testing.T) {
	session := newStartedSession(t)

	moves := []struct {
		connID string
		column int
	}{
		{"c1", 0}, {"c2", 6},
		{"c1", 1}, {"c2", 6},
		{"c1", 2}, {"c2", 6},
	}
	for _, m := range moves {
		result, err := session.ApplyMove(m.connID, m.column)
		require.NoError(t, err)
		require.False(t, result.Finished)
	}

	result, err := session.ApplyMove("c1", 3)
	require.NoError(t, err)

	assert.True(t, result.Finished)
	assert.Equal(t, internal.Slot1, result.Winner)
	assert.Equal(t, "玩家一", result.WinnerName)
	assert.False(t, result.Draw)

	assert.Equal(t, internal.StatusFinished, session.Status())
	assert.Equal(t, internal.SlotNone, session.Turn())

	// 終局後不接受任何落子
	_, err = session.ApplyMove("c2", 5)
	assert.ErrorIs(t, err, internal.ErrSessionNotInProgress)
}

// TestSession_VerticalWin 測試縱向獲勝
func TestSession_VerticalWin(t *testing.T) {
	session := newStartedSession(t)

	// 席位一堆第 0 列，席位二分散在 1,2,3 列
	moves := []struct {
		connID string
		column int
	}{
		{"c1", 0}, {"c2", 1},
		{"c1", 0}, {"c2", 2},
		{"c1", 0}, {"c2", 3},
	}
	for _, m := range moves {
		_, err := session.ApplyMove(m.connID, m.column)
		require.NoError(t, err)
	}

	result, err := session.ApplyMove("c1", 0)
	require.NoError(t, err)
	assert.True(t, result.Finished)
	assert.Equal(t, internal.Slot1, result.Winner)
}

// TestSession_Draw 測試 42 手填滿棋盤的平手
//
// 每一輪按固定列序填滿一行；行與行的棋子互補，
// 任何方向都連不到四子。
func TestSession_Draw(t *testing.T) {
	session := newStartedSession(t)

	order := []int{0, 2, 1, 3, 4, 6, 5}
	conns := []string{"c1", "c2"}

	var last *internal.MoveResult
	move := 0
	for round := 0; round < internal.BoardRows; round++ {
		for _, column := range order {
			result, err := session.ApplyMove(conns[move%2], column)
			require.NoError(t, err, "move %d column %d", move, column)
			last = result
			move++
		}
	}

	require.Equal(t, internal.BoardRows*internal.BoardCols, move)
	require.NotNil(t, last)

	assert.True(t, last.Finished)
	assert.True(t, last.Draw)
	assert.Equal(t, internal.SlotNone, last.Winner)
	assert.True(t, last.Board.IsFull())
	assert.Equal(t, internal.StatusFinished, session.Status())
}

// TestSession_Leave 測試離座
func TestSession_Leave(t *testing.T) {
	t.Run("leaving a two player game finishes it", func(t *testing.T) {
		session := newStartedSession(t)

		result, err := session.Leave("c1")
		require.NoError(t, err)

		assert.False(t, result.Empty)
		require.Len(t, result.Remaining, 1)
		assert.Equal(t, "c2", result.Remaining[0].ConnID)

		assert.Equal(t, internal.StatusFinished, session.Status())
		assert.Equal(t, internal.SlotNone, session.Turn())
	})

	t.Run("last player leaving empties the session", func(t *testing.T) {
		session := newStartedSession(t)
		session.Leave("c1")

		result, err := session.Leave("c2")
		require.NoError(t, err)
		assert.True(t, result.Empty)
		assert.Empty(t, result.Remaining)
	})

	t.Run("stranger cannot leave", func(t *testing.T) {
		session := newStartedSession(t)

		_, err := session.Leave("c9")
		assert.ErrorIs(t, err, internal.ErrNotAPlayer)
		assert.Equal(t, 2, session.PlayerCount())
	})
}

// finishGame 快速打完一局（席位一橫向獲勝）
func finishGame(t *testing.T, session *internal.Session) {
	t.Helper()

	moves := []struct {
		connID string
		column int
	}{
		{"c1", 0}, {"c2", 6},
		{"c1", 1}, {"c2", 6},
		{"c1", 2}, {"c2", 6},
		{"c1", 3},
	}
	for _, m := range moves {
		_, err := session.ApplyMove(m.connID, m.column)
		require.NoError(t, err)
	}
	require.Equal(t, internal.StatusFinished, session.Status())
}

// TestSession_Rematch 測試重賽協議
func TestSession_Rematch(t *testing.T) {
	t.Run("single vote waits for the opponent", func(t *testing.T) {
		session := newStartedSession(t)
		finishGame(t, session)

		result, err := session.RequestRematch("c1")
		require.NoError(t, err)
		assert.False(t, result.Restarted)
		assert.Equal(t, "c2", result.OpponentConn)

		// 單方投票不重置棋盤
		assert.Equal(t, internal.StatusFinished, session.Status())
		board := session.BoardSnapshot()
		assert.True(t, board.HasFourInRow(internal.Slot1))
	})

	t.Run("both votes restart the game", func(t *testing.T) {
		session := newStartedSession(t)
		finishGame(t, session)

		_, err := session.RequestRematch("c1")
		require.NoError(t, err)

		result, err := session.RequestRematch("c2")
		require.NoError(t, err)

		assert.True(t, result.Restarted)
		assert.Equal(t, internal.Board{}, result.Board)
		assert.Equal(t, internal.StatusInProgress, session.Status())
		assert.Equal(t, internal.Slot1, session.Turn())
		assert.Equal(t, internal.Board{}, session.BoardSnapshot())
	})

	t.Run("votes are cleared after a restart", func(t *testing.T) {
		session := newStartedSession(t)
		finishGame(t, session)
		session.RequestRematch("c1")
		session.RequestRematch("c2")

		// 再打一局再重賽，仍然需要兩票
		finishGame(t, session)

		result, err := session.RequestRematch("c1")
		require.NoError(t, err)
		assert.False(t, result.Restarted)
	})

	t.Run("waiting session rejects rematch", func(t *testing.T) {
		session := internal.NewSession("room1", "c1", "玩家一")

		_, err := session.RequestRematch("c1")
		assert.ErrorIs(t, err, internal.ErrSessionNotFinished)
	})

	t.Run("in progress session rejects rematch", func(t *testing.T) {
		session := newStartedSession(t)

		_, err := session.RequestRematch("c1")
		assert.ErrorIs(t, err, internal.ErrSessionNotFinished)
	})

	t.Run("abandoned session rejects rematch", func(t *testing.T) {
		session := newStartedSession(t)
		finishGame(t, session)
		session.Leave("c1")

		_, err := session.RequestRematch("c2")
		assert.ErrorIs(t, err, internal.ErrSessionNotFinished)
	})

	t.Run("stranger cannot vote", func(t *testing.T) {
		session := newStartedSession(t)
		finishGame(t, session)

		_, err := session.RequestRematch("c9")
		assert.ErrorIs(t, err, internal.ErrNotAPlayer)
	})
}
