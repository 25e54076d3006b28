package internal

import "sync"

// 設計重構：
//   原始設計把「目前所在房間」「席位」當作可變欄位掛在傳輸物件上，
//   斷線清理與主動離開因此走了兩條不一致的路徑。
//   這裡改為以連線識別為鍵的顯式綁定表，所有入站動作
//   與斷線清理都先經過同一次查詢。

// Binding 一條連線目前佔用的 (房間, 席位)
//
// 一條連線同時最多只綁定一個房間。
type Binding struct {
	RoomID string
	Slot   Slot
}

// BindingTable 連線綁定表
type BindingTable struct {
	mu     sync.RWMutex
	byConn map[string]Binding // connID -> Binding
}

// NewBindingTable 創建綁定表
func NewBindingTable() *BindingTable {
	return &BindingTable{
		byConn: make(map[string]Binding),
	}
}

// Bind 綁定連線到房間席位（覆蓋舊綁定）
func (t *BindingTable) Bind(connID, roomID string, slot Slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byConn[connID] = Binding{RoomID: roomID, Slot: slot}
}

// Resolve 解析連線目前的綁定
func (t *BindingTable) Resolve(connID string) (Binding, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.byConn[connID]
	return b, ok
}

// Unbind 解除連線的綁定（冪等）
func (t *BindingTable) Unbind(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byConn, connID)
}

// Count 目前綁定數
func (t *BindingTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byConn)
}
