// Package connectfour 提供了一個服務端權威的雙人四連棋會話服務。
//
// 實現了一個支援多房間的即時對戰服務器，包含以下核心功能：
//
// 房間與會話管理
//
// 提供完整的對局生命週期管理：
//   - 房間創建與銷毀（短令牌識別，存活期間全域唯一）
//   - 兩位玩家配對入座，第二位加入即開局
//   - waiting → in_progress → finished 的狀態機轉換
//   - 重賽協議：雙方投票後重新開局
//
// # 回合制規則引擎
//
// 服務端強制執行所有對局規則：
//   - 回合歸屬驗證（只有輪到的席位能落子）
//   - 重力落子（棋子落在該列最低的空格）
//   - 四連判定（橫、豎、雙斜向窗口掃描）
//   - 平手判定與終局封鎖（終局後不接受任何棋盤變更）
//
// # WebSocket 通訊
//
// 實現了即時雙向通訊機制：
//   - 支援心跳檢測（Ping/Pong，54s/60s）
//   - 權威棋盤廣播與錯誤單播
//   - 斷線與主動離開走同一條清理路徑
//   - 連線繫結表：連線 → (房間, 席位) 的顯式查詢
//
// 併發安全設計
//
// 採用了多層次的併發控制策略：
//   - 每房間一把鎖：落子、離座、重賽在同一房間內序列化
//   - 跨房間操作完全獨立，可並行執行
//   - 註冊表、繫結表、排行榜各自持鎖
//
// 使用範例
//
// 啟動服務器：
//
//	registry := internal.NewRegistry(logger)
//	leaderboard := internal.NewLeaderboard()
//	hub := internal.NewHub(registry, leaderboard, logger)
//	handler := internal.NewHandler(registry, leaderboard, hub, logger)
//
//	log.Fatal(http.ListenAndServe(":8080", handler.Routes()))
//
// 客戶端連接後依序發送：
//
//	{"type": "setName", "name": "玩家一"}
//	{"type": "createGame"}
//	{"type": "makeMove", "room_id": "ab3x9", "column": 3}
//
// 線路欄位一律為 snake_case：入站 room_id / column，
// 出站 player_number / player_name。
//
// 架構設計
//
// 系統採用分層架構設計：
//   - Handler 層：HTTP 唯讀查詢（健康檢查、統計、排行榜、房間詳情）
//   - Hub 層：連線管理、入站動作分派、事件廣播
//   - Registry 層：房間註冊表與棄置房間清掃
//   - Session 層：封裝單場對局的狀態機與規則
//   - Board 層：純值型別的棋盤與勝負判定
//
// 配置選項
//
// 支援多種運行時配置：
//   - -port：服務監聽端口（預設 8080）
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
//
// 排行榜
//
// 程序級勝場統計，以顯示名稱為持久身份：
//   - 只有獲勝計分，平手與棄局不計
//   - 勝場降序，同勝場比首勝時間再比名稱（確定性排序）
//   - 不做持久化，進程重啟即歸零
package connectfour
