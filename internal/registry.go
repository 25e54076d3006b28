package internal

import (
	"crypto/rand"
	"log/slog"
	"sync"
	"time"
)

// 房間清掃參數
const (
	sweepInterval  = time.Minute     // 清掃頻率
	abandonedGrace = 5 * time.Minute // 空房間的寬限期
)

// roomIDLength 房間識別長度：5 字符的 base36 短令牌
const roomIDLength = 5

const roomIDChars = "0123456789abcdefghijklmnopqrstuvwxyz"

// Registry 房間註冊表
//
// 程序級共享狀態，顯式初始化、顯式生命週期（Stop 結束清掃協程），
// 不依賴任何隱式全域變數。
//
// 併發控制：
//   - 註冊表自身的 map 由 RWMutex 保護（創建 / 查詢 / 移除）
//   - 房間內部的讀後寫由各 Session 自己的鎖序列化
type Registry struct {
	rooms  map[string]*Session // roomID -> Session
	mu     sync.RWMutex
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRegistry 創建房間註冊表並啟動清掃協程
func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		rooms:  make(map[string]*Session),
		logger: logger,
		stopCh: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.sweepLoop()

	return r
}

// CreateRoom 創建房間：房主入座席位一，狀態為等待
//
// 房間識別是短隨機令牌，生成後必須檢查是否與存活房間衝突，
// 衝突則重新生成——註冊表保證同時存活的房間識別全域唯一
// （樸素的隨機生成沒有這個保證，這是刻意的補強）。
func (r *Registry) CreateRoom(hostConnID, displayName string) (*Session, error) {
	if displayName == "" {
		return nil, ErrNameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var roomID string
	for {
		roomID = generateRoomID()
		if _, taken := r.rooms[roomID]; !taken {
			break
		}
	}

	session := NewSession(roomID, hostConnID, displayName)
	r.rooms[roomID] = session

	r.logger.Info("房間已創建",
		"room_id", roomID,
		"host_name", displayName)

	return session, nil
}

// JoinRoom 加入房間：成功時入座席位二，對局開始
func (r *Registry) JoinRoom(roomID, connID, displayName string) (*Session, Slot, error) {
	if displayName == "" {
		return nil, SlotNone, ErrNameRequired
	}

	session, err := r.Get(roomID)
	if err != nil {
		return nil, SlotNone, err
	}

	slot, err := session.Join(connID, displayName)
	if err != nil {
		return nil, SlotNone, err
	}

	r.logger.Info("玩家加入房間",
		"room_id", roomID,
		"player_name", displayName,
		"slot", slot)

	return session, slot, nil
}

// Get 查詢房間
func (r *Registry) Get(roomID string) (*Session, error) {
	r.mu.RLock()
	session, exists := r.rooms[roomID]
	r.mu.RUnlock()

	if !exists {
		return nil, ErrRoomNotFound
	}

	return session, nil
}

// RemoveRoom 移除房間（冪等：不存在也不報錯）
func (r *Registry) RemoveRoom(roomID string) {
	r.mu.Lock()
	_, exists := r.rooms[roomID]
	delete(r.rooms, roomID)
	r.mu.Unlock()

	if exists {
		r.logger.Info("房間已移除", "room_id", roomID)
	}
}

// RoomCount 存活房間數
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Stats 統計資訊
func (r *Registry) Stats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statusCount := make(map[SessionStatus]int)
	totalPlayers := 0
	for _, session := range r.rooms {
		statusCount[session.Status()]++
		totalPlayers += session.PlayerCount()
	}

	return map[string]any{
		"total_rooms":   len(r.rooms),
		"total_players": totalPlayers,
		"by_status":     statusCount,
	}
}

// sweepLoop 定期清掃被棄置的房間
//
// 正常情況下房間在最後一位玩家斷線時同步移除；
// 清掃只是後備，避免異常路徑留下的空房間佔用記憶體。
func (r *Registry) sweepLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

// Sweep 執行一次清掃（公開方法供測試使用）
func (r *Registry) Sweep() {
	r.sweep()
}

func (r *Registry) sweep() {
	r.mu.RLock()
	var toRemove []string
	for roomID, session := range r.rooms {
		if session.Abandoned(abandonedGrace) {
			toRemove = append(toRemove, roomID)
		}
	}
	r.mu.RUnlock()

	for _, roomID := range toRemove {
		r.RemoveRoom(roomID)
		r.logger.Info("棄置房間已清掃", "room_id", roomID)
	}
}

// Stop 停止註冊表（結束清掃協程）
func (r *Registry) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("房間註冊表已停止")
}

// generateRoomID 生成短隨機房間識別
//
// 逐字節拒絕採樣：256 不是 36 的倍數，直接取模會偏向字母表前段，
// 超出最大 36 倍數（252）的字節值一律丟棄重抽。
func generateRoomID() string {
	const limit = 256 - 256%len(roomIDChars)

	id := make([]byte, 0, roomIDLength)
	buf := make([]byte, roomIDLength*2)
	for len(id) < roomIDLength {
		// crypto/rand.Read 自 Go 1.24 起保證填滿且不回傳錯誤
		rand.Read(buf)
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			id = append(id, roomIDChars[int(b)%len(roomIDChars)])
			if len(id) == roomIDLength {
				break
			}
		}
	}
	return string(id)
}
