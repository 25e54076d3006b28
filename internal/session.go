package internal

import (
	"sync"
	"time"
)

// 系統設計問題：
//   如何管理一場雙人對局的生命週期，讓回合歸屬、終局轉換與重賽投票
//   在併發操作下仍保持一致？
//
// 設計方案：
//   ✅ 有限狀態機（FSM）- waiting → in_progress → finished，重賽可回到 in_progress
//   ✅ 每房間一把互斥鎖 - applyMove / leave / requestRematch 都是讀後寫，必須序列化
//   ✅ 操作回傳快照 - 棋盤複製後交給廣播層，外部拿不到活狀態

// SessionStatus 對局狀態
//
// 狀態轉換規則：
//   - waiting → in_progress：第二位玩家成功加入（棋盤清空，席位一先手）
//   - in_progress → finished：獲勝、平手、或玩家中途離開
//   - finished → in_progress：雙方都投了重賽票（棋盤清空，票數歸零）
//
// 為什麼需要狀態機？
//   - 防止非法操作（等待中落子、結束後落子）
//   - 終局之後只接受重賽協議，不接受任何棋盤變更
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "waiting"     // 等待第二位玩家
	StatusInProgress SessionStatus = "in_progress" // 對局進行中，輪流落子
	StatusFinished   SessionStatus = "finished"    // 終局：獲勝、平手或棄局
)

// Player 對局中的一位玩家
//
// 由所屬 Session 獨佔持有：玩家離線或會話銷毀時一併銷毀。
type Player struct {
	ConnID       string    `json:"-"`             // 連線識別（不序列化）
	Slot         Slot      `json:"player_number"` // 席位：1 或 2
	Name         string    `json:"player_name"`   // 顯示名稱（排行榜的持久身份）
	RematchReady bool      `json:"-"`             // 重賽投票
	JoinedAt     time.Time `json:"joined_at"`
}

// Session 一場四連對局
//
// 併發控制：
//   - 單一寫者：所有讀後寫操作持有同一把互斥鎖，跨房間操作完全獨立
//   - 回合歸屬、席位容量、棋盤合法性等不變式都在鎖內驗證
type Session struct {
	ID string // 房間識別，存活期間不重用

	mu             sync.RWMutex
	players        []*Player // 最多 2 位
	board          Board
	turn           Slot // 只在 in_progress 時有意義
	status         SessionStatus
	everInProgress bool // 是否曾進入對局（等待中的房間不允許重賽）
	createdAt      time.Time
	lastActive     time.Time
}

// NewSession 創建對局：房主入座席位一，狀態為等待
func NewSession(id, hostConnID, hostName string) *Session {
	now := time.Now()
	return &Session{
		ID: id,
		players: []*Player{{
			ConnID:   hostConnID,
			Slot:     Slot1,
			Name:     hostName,
			JoinedAt: now,
		}},
		turn:       SlotNone,
		status:     StatusWaiting,
		createdAt:  now,
		lastActive: now,
	}
}

// Join 第二位玩家加入
//
// 成功時：入座空席位（正常流程是席位二；若房主棄局後席位一空出，
// 則補席位一，保證每個席位只有一位玩家），棋盤清空，
// 狀態轉為 in_progress，席位一先手。
// 兩個席位都有人時回傳 ErrRoomFull。
func (s *Session) Join(connID, name string) (Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.players) >= 2 {
		return SlotNone, ErrRoomFull
	}

	slot := Slot1
	for _, p := range s.players {
		if p.Slot == Slot1 {
			slot = Slot2
		}
	}

	s.players = append(s.players, &Player{
		ConnID:   connID,
		Slot:     slot,
		Name:     name,
		JoinedAt: time.Now(),
	})

	s.board.Reset()
	s.turn = Slot1
	s.status = StatusInProgress
	s.everInProgress = true
	s.lastActive = time.Now()

	return slot, nil
}

// MoveResult 一次合法落子的結果快照
type MoveResult struct {
	Board      Board // 落子後的棋盤（複本）
	Finished   bool  // 是否進入終局
	Winner     Slot  // 獲勝席位；平手或未終局為 SlotNone
	Draw       bool  // 棋盤填滿且無人獲勝
	WinnerName string
}

// ApplyMove 落子
//
// 驗證順序（狀態機）：
//  1. 對局必須進行中
//  2. 呼叫者必須入座本局
//  3. 必須輪到呼叫者
//  4. 列號必須在 [0, 7) 內
//  5. 該列不能已滿
//
// 通過後執行重力落子，接著判定勝負、平手，否則交換回合。
// 任一驗證失敗都不改動棋盤。
func (s *Session) ApplyMove(connID string, column int) (*MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return nil, ErrSessionNotInProgress
	}

	player := s.findPlayer(connID)
	if player == nil {
		return nil, ErrNotAPlayer
	}

	if player.Slot != s.turn {
		return nil, ErrNotYourTurn
	}

	// Drop 自身驗證列號與列容量，失敗時棋盤不變
	if _, err := s.board.Drop(column, player.Slot); err != nil {
		return nil, err
	}

	s.lastActive = time.Now()

	result := &MoveResult{Board: s.board}

	switch {
	case s.board.HasFourInRow(player.Slot):
		s.status = StatusFinished
		s.turn = SlotNone
		result.Finished = true
		result.Winner = player.Slot
		result.WinnerName = player.Name

	case s.board.IsFull():
		s.status = StatusFinished
		s.turn = SlotNone
		result.Finished = true
		result.Draw = true

	default:
		s.turn = player.Slot.Other()
	}

	return result, nil
}

// LeaveResult 玩家離座的結果
type LeaveResult struct {
	Remaining []*Player // 仍在座的玩家（複本，用於通知）
	Empty     bool      // 房間是否已空（可從註冊表移除）
}

// Leave 玩家離座
//
// 統一的離開路徑：主動離開與連線中斷都走這裡，行為一致。
// 無論原狀態為何，一律先轉入 finished 再考慮銷毀——
// 剩下的那位玩家由呼叫端通知 opponentLeft，房間空了才由呼叫端移除。
func (s *Session) Leave(connID string) (*LeaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.players {
		if p.ConnID == connID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrNotAPlayer
	}

	s.players = append(s.players[:idx], s.players[idx+1:]...)
	s.status = StatusFinished
	s.turn = SlotNone
	s.lastActive = time.Now()

	// 清空重賽票：離座者的票不能殘留
	for _, p := range s.players {
		p.RematchReady = false
	}

	result := &LeaveResult{Empty: len(s.players) == 0}
	for _, p := range s.players {
		cp := *p
		result.Remaining = append(result.Remaining, &cp)
	}

	return result, nil
}

// RematchResult 重賽投票的結果
type RematchResult struct {
	Restarted    bool   // 雙方都投票，對局已重啟
	Board        Board  // 重啟後的空棋盤（僅 Restarted 時有意義）
	OpponentConn string // 尚未投票的對手連線（僅單方投票時有意義）
}

// RequestRematch 投重賽票
//
// 只有「曾經開局、現已終局、兩個席位都還有人」的會話接受投票——
// 等待中的房間與被棄的房間都不行。
// 雙方都投票後：棋盤清空、席位一先手、票數歸零、狀態回到 in_progress。
// 投票不會過期（沒有超時機制，這是刻意保留的行為）。
func (s *Session) RequestRematch(connID string) (*RematchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player := s.findPlayer(connID)
	if player == nil {
		return nil, ErrNotAPlayer
	}

	if s.status != StatusFinished || !s.everInProgress || len(s.players) != 2 {
		return nil, ErrSessionNotFinished
	}

	player.RematchReady = true
	s.lastActive = time.Now()

	for _, p := range s.players {
		if !p.RematchReady {
			return &RematchResult{OpponentConn: p.ConnID}, nil
		}
	}

	// 雙方都準備好了：重新開局
	s.board.Reset()
	s.turn = Slot1
	s.status = StatusInProgress
	for _, p := range s.players {
		p.RematchReady = false
	}

	return &RematchResult{Restarted: true, Board: s.board}, nil
}

// findPlayer 以連線識別找玩家（呼叫者需持有鎖）
func (s *Session) findPlayer(connID string) *Player {
	for _, p := range s.players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

// Status 目前狀態
func (s *Session) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Turn 目前輪到的席位
func (s *Session) Turn() Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turn
}

// BoardSnapshot 棋盤快照（複本）
func (s *Session) BoardSnapshot() Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board
}

// Players 在座玩家的複本
func (s *Session) Players() []*Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		cp := *p
		players = append(players, &cp)
	}
	return players
}

// PlayerCount 在座人數
func (s *Session) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

// Abandoned 房間是否已被棄置（空座且超過寬限期）
//
// 正常流程下空房間會在斷線路徑上同步移除；
// 這是給註冊表定期清掃用的後備判斷。
func (s *Session) Abandoned(grace time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players) == 0 && time.Since(s.lastActive) > grace
}

// State 對局狀態（用於序列化）
func (s *Session) State() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		cp := *p
		players = append(players, &cp)
	}

	return map[string]any{
		"room_id":    s.ID,
		"status":     s.status,
		"turn":       s.turn,
		"board":      s.board,
		"players":    players,
		"created_at": s.createdAt,
	}
}
