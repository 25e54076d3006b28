package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何把入站動作路由到正確的對局，並把權威狀態即時推回兩位玩家？
//
// 核心挑戰：
//   1. 連線繫結：一條連線最多佔用一個房間席位，斷線要走同一條清理路徑
//   2. 單寫者紀律：一條連線的動作在自己的讀協程上依序處理到完為止
//   3. 心跳機制：檢測死連接（54s Ping / 60s 讀取超時）
//   4. 錯誤定址：驗證失敗只回給出錯的連線，對手看不到
//
// 設計方案：
//   ✅ Hub 模式 - 集中管理連線，會話操作回傳快照後由 Hub 廣播
//   ✅ 緩衝 Send channel - 異步發送，慢客戶端不拖累對手

// Event 出站事件（服務端 → 客戶端）
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// clientMessage 入站訊息（客戶端 → 服務端）
type clientMessage struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	RoomID string `json:"room_id,omitempty"`
	Column int    `json:"column"`
}

// Hub WebSocket 連線中心
//
// 持有註冊表、繫結表與排行榜的引用；入站動作先經繫結表
// 解析到房間，再進入該房間的會話（房間鎖內序列化），
// 回傳的快照由 Hub 廣播給在座雙方。
type Hub struct {
	registry    *Registry
	bindings    *BindingTable
	leaderboard *Leaderboard
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	clients     map[string]*Client // connID -> Client
	mu          sync.RWMutex
}

// Client 一條 WebSocket 連線
//
// 連線識別是服務端生成的不透明 UUID；
// 顯示名稱由 setName 設定後才允許創建或加入房間。
type Client struct {
	ID        string
	Name      string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
	LastPing  time.Time
	mu        sync.Mutex
	closeOnce sync.Once // 確保 channel 只關閉一次
}

// NewHub 創建 WebSocket Hub
func NewHub(registry *Registry, leaderboard *Leaderboard, logger *slog.Logger) *Hub {
	return &Hub{
		registry:    registry,
		bindings:    NewBindingTable(),
		leaderboard: leaderboard,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]*Client),
	}
}

// ServeWS 處理 WebSocket 連接
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
		LastPing: time.Now(),
	}

	hub.mu.Lock()
	hub.clients[client.ID] = client
	hub.mu.Unlock()

	go client.writePump()
	go client.readPump()

	hub.logger.Info("WebSocket 連接建立", "conn_id", client.ID)
}

// unregister 連線終止時的統一清理路徑
//
// 不論是主動關閉分頁還是網絡中斷，都先走一次離房流程
// （剩餘玩家收到 opponentLeft，空房間從註冊表移除），
// 再移除連線自身。
func (hub *Hub) unregister(c *Client) {
	hub.leaveCurrentRoom(c)

	// 關閉 Send 必須在寫鎖內：sendToConn 持讀鎖發送，
	// 兩者互斥才不會對已關閉的 channel 發送
	hub.mu.Lock()
	if actual, exists := hub.clients[c.ID]; exists && actual == c {
		delete(hub.clients, c.ID)
	}
	c.closeOnce.Do(func() {
		close(c.Send)
	})
	hub.mu.Unlock()

	hub.logger.Info("WebSocket 連接關閉", "conn_id", c.ID)
}

// sendToConn 發送事件給指定連線
func (hub *Hub) sendToConn(connID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		hub.logger.Error("序列化事件失敗", "error", err, "event", event.Type)
		return
	}

	// 讀鎖跨越整個發送：與 unregister / Stop 在寫鎖內的 close 互斥
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	client := hub.clients[connID]
	if client == nil {
		return
	}

	select {
	case client.Send <- data:
	default:
		// 連接緩衝區滿了，丟棄（慢客戶端不拖累對手）
		hub.logger.Warn("連接緩衝區滿", "conn_id", connID, "event", event.Type)
	}
}

// broadcastToSession 廣播事件給會話中在座的所有玩家
func (hub *Hub) broadcastToSession(session *Session, events ...Event) {
	players := session.Players()
	for _, event := range events {
		for _, p := range players {
			hub.sendToConn(p.ConnID, event)
		}
	}
}

// sendEvent 發送事件給本連線
func (c *Client) sendEvent(event Event) {
	c.Hub.sendToConn(c.ID, event)
}

// sendError 錯誤只定址給出錯的呼叫者，攜帶穩定錯誤碼
func (c *Client) sendError(err error) {
	c.sendEvent(Event{Type: "error", Data: ErrorCode(err)})
}

// handleMessage 分派入站動作
//
// 在 readPump 協程上同步執行：同一條連線的動作天然依序，
// 不同連線對同一房間的動作由會話鎖序列化。
func (c *Client) handleMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.Hub.logger.Error("解析客戶端訊息失敗", "error", err, "conn_id", c.ID)
		return
	}

	switch msg.Type {
	case "setName":
		c.setName(msg.Name)
	case "createGame":
		c.Hub.createGame(c)
	case "joinGame":
		c.Hub.joinGame(c, msg.RoomID)
	case "makeMove":
		c.Hub.makeMove(c, msg.RoomID, msg.Column)
	case "playAgain", "requestRematch":
		c.Hub.playAgain(c, msg.RoomID)
	case "leaveGame":
		c.Hub.leaveGame(c)
	case "ping":
		c.sendEvent(Event{Type: "pong"})
	default:
		c.Hub.logger.Debug("收到未知訊息類型", "type", msg.Type, "conn_id", c.ID)
	}
}

// setName 設定顯示名稱
func (c *Client) setName(name string) {
	if name == "" {
		c.sendError(ErrNameRequired)
		return
	}
	c.Name = name
	c.Hub.logger.Debug("玩家名稱已設定", "conn_id", c.ID, "name", name)
}

// createGame 創建房間：呼叫者入座席位一
func (hub *Hub) createGame(c *Client) {
	if c.Name == "" {
		c.sendError(ErrNameRequired)
		return
	}

	// 一條連線最多一個房間：先離開舊房間
	hub.leaveCurrentRoom(c)

	session, err := hub.registry.CreateRoom(c.ID, c.Name)
	if err != nil {
		c.sendError(err)
		return
	}

	hub.bindings.Bind(c.ID, session.ID, Slot1)

	c.sendEvent(Event{Type: "gameCreated", Data: session.ID})
	c.sendEvent(Event{Type: "playerInfo", Data: map[string]any{"player_number": Slot1}})
}

// joinGame 加入房間：呼叫者入座席位二，對局開始
func (hub *Hub) joinGame(c *Client, roomID string) {
	if c.Name == "" {
		c.sendError(ErrNameRequired)
		return
	}

	hub.leaveCurrentRoom(c)

	session, slot, err := hub.registry.JoinRoom(roomID, c.ID, c.Name)
	if err != nil {
		c.sendError(err)
		return
	}

	hub.bindings.Bind(c.ID, session.ID, slot)

	// 開局廣播：雙方都收到棋盤，各自收到自己的席位
	board := session.BoardSnapshot()
	for _, p := range session.Players() {
		hub.sendToConn(p.ConnID, Event{Type: "startGame", Data: map[string]any{"board": board}})
		hub.sendToConn(p.ConnID, Event{Type: "playerInfo", Data: map[string]any{"player_number": p.Slot}})
	}

	hub.broadcastToSession(session, Event{Type: "leaderboardUpdate", Data: hub.leaderboard.SortedView()})
}

// makeMove 落子
//
// 成功：權威棋盤廣播給雙方；終局時追加 gameOver，
// 獲勝還會更新排行榜並廣播新視圖。
// 失敗：錯誤只回給呼叫者，棋盤與對手視角不受影響。
func (hub *Hub) makeMove(c *Client, roomID string, column int) {
	if roomID == "" {
		binding, ok := hub.bindings.Resolve(c.ID)
		if !ok {
			c.sendError(ErrRoomNotFound)
			return
		}
		roomID = binding.RoomID
	}

	session, err := hub.registry.Get(roomID)
	if err != nil {
		c.sendError(err)
		return
	}

	result, err := session.ApplyMove(c.ID, column)
	if err != nil {
		c.sendError(err)
		return
	}

	hub.broadcastToSession(session, Event{Type: "updateBoard", Data: result.Board})

	if !result.Finished {
		return
	}

	if result.Winner != SlotNone {
		hub.leaderboard.RecordWin(result.WinnerName)
		hub.broadcastToSession(session,
			Event{Type: "gameOver", Data: map[string]any{"winner": result.Winner}},
			Event{Type: "leaderboardUpdate", Data: hub.leaderboard.SortedView()},
		)
		hub.logger.Info("對局結束",
			"room_id", roomID,
			"winner", result.Winner,
			"winner_name", result.WinnerName)
		return
	}

	// 平手
	hub.broadcastToSession(session, Event{Type: "gameOver", Data: map[string]any{"winner": 0}})
	hub.logger.Info("對局平手", "room_id", roomID)
}

// playAgain 重賽投票
func (hub *Hub) playAgain(c *Client, roomID string) {
	if roomID == "" {
		binding, ok := hub.bindings.Resolve(c.ID)
		if !ok {
			c.sendError(ErrRoomNotFound)
			return
		}
		roomID = binding.RoomID
	}

	session, err := hub.registry.Get(roomID)
	if err != nil {
		c.sendError(err)
		return
	}

	result, err := session.RequestRematch(c.ID)
	if err != nil {
		c.sendError(err)
		return
	}

	if result.Restarted {
		hub.broadcastToSession(session,
			Event{Type: "startGame", Data: map[string]any{"board": result.Board}},
			Event{Type: "playAgainReady", Data: map[string]any{}},
		)
		hub.logger.Info("重賽開始", "room_id", roomID)
		return
	}

	// 單方投票：投票者等待中，對手收到重賽邀請
	c.sendEvent(Event{Type: "rematchStatus", Data: map[string]any{"waiting": true}})
	hub.sendToConn(result.OpponentConn, Event{Type: "rematchStatus", Data: map[string]any{"waiting": false}})
}

// leaveGame 主動離開房間
func (hub *Hub) leaveGame(c *Client) {
	hub.leaveCurrentRoom(c)
}

// leaveCurrentRoom 統一的離房路徑
//
// 主動離開與斷線清理都走這裡：解除繫結、會話轉入終局、
// 通知剩餘玩家、空房間從註冊表移除。無繫結時為空操作。
func (hub *Hub) leaveCurrentRoom(c *Client) {
	binding, ok := hub.bindings.Resolve(c.ID)
	if !ok {
		return
	}
	hub.bindings.Unbind(c.ID)

	session, err := hub.registry.Get(binding.RoomID)
	if err != nil {
		return
	}

	result, err := session.Leave(c.ID)
	if err != nil {
		return
	}

	if result.Empty {
		hub.registry.RemoveRoom(binding.RoomID)
		return
	}

	for _, p := range result.Remaining {
		hub.sendToConn(p.ConnID, Event{Type: "opponentLeft"})
		hub.sendToConn(p.ConnID, Event{Type: "gameOver", Data: map[string]any{
			"winner": nil,
			"reason": "opponent_left",
		}})
	}

	hub.logger.Info("玩家離開房間", "room_id", binding.RoomID, "conn_id", c.ID)
}

// ClientCount 目前連線數
func (hub *Hub) ClientCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

// Stop 停止 Hub：關閉所有連線
//
// close 與 unregister 一樣放在寫鎖內，與持讀鎖的發送互斥。
func (hub *Hub) Stop() {
	hub.mu.Lock()
	for _, client := range hub.clients {
		client.closeOnce.Do(func() {
			close(client.Send)
		})
		client.Conn.Close()
	}
	hub.clients = make(map[string]*Client)
	hub.mu.Unlock()

	hub.logger.Info("WebSocket Hub 已停止")
}

// readPump 讀取客戶端訊息
//
// 心跳機制（讀取端）：60 秒內沒有任何訊息（包括 Pong）就關閉連接，
// 配合 writePump 的 54 秒 Ping 留 6 秒余量。
// 連線終止時走 unregister 的統一清理路徑。
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	if err := c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.Hub.logger.Error("設置讀取期限失敗", "error", err)
	}

	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			c.Hub.logger.Error("設置讀取期限失敗", "error", err)
		}
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket 讀取錯誤", "error", err, "conn_id", c.ID)
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.handleMessage(message)
		}
	}
}

// writePump 寫入訊息到客戶端
//
// 心跳機制（發送端）：每 54 秒發送 Ping，避開常見的 60 秒代理超時。
// 異步發送：Send channel 緩衝訊息，緩衝區滿時由發送方丟棄。
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// Hub 關閉了通道，優雅關閉連接
				deadline := time.Now().Add(time.Second)
				if err := c.Conn.SetWriteDeadline(deadline); err == nil {
					_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				}
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量發送隊列中的訊息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					c.Hub.logger.Error("發送訊息失敗", "error", err)
					return
				}
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
