package internal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Handler HTTP 請求處理器
//
// 遊戲動作全部走 WebSocket；HTTP 只提供運維視角：
// 健康檢查、統計、排行榜與房間詳情的唯讀查詢。
type Handler struct {
	registry    *Registry
	leaderboard *Leaderboard
	hub         *Hub
	logger      *slog.Logger
}

// NewHandler 創建 HTTP 處理器
func NewHandler(registry *Registry, leaderboard *Leaderboard, hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{
		registry:    registry,
		leaderboard: leaderboard,
		hub:         hub,
		logger:      logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()

	// 中間件鏈
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.loggerMiddleware(handler))
	}

	// WebSocket 入口
	r.HandleFunc("/ws", h.hub.ServeWS)

	// 唯讀查詢 API
	r.HandleFunc("/api/v1/leaderboard", wrap(h.getLeaderboard)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/rooms/{room_id}", wrap(h.getRoomDetail)).Methods(http.MethodGet)

	// 健康檢查
	r.HandleFunc("/health", wrap(h.health)).Methods(http.MethodGet)
	r.HandleFunc("/stats", wrap(h.stats)).Methods(http.MethodGet)

	return r
}

// getLeaderboard 排行榜視圖（勝場多者在前）
func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"leaderboard": h.leaderboard.SortedView(),
	}, http.StatusOK)
}

// getRoomDetail 獲取房間詳情
func (h *Handler) getRoomDetail(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	session, err := h.registry.Get(roomID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		h.errorResponse(w, err.Error(), status)
		return
	}

	h.jsonResponse(w, session.State(), http.StatusOK)
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}, http.StatusOK)
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats := h.registry.Stats()
	stats["connections"] = h.hub.ClientCount()
	stats["leaderboard_size"] = h.leaderboard.Size()
	h.jsonResponse(w, stats, http.StatusOK)
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// errorResponse 返回錯誤響應
func (h *Handler) errorResponse(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, map[string]any{
		"error": message,
	}, status)
}

// loggerMiddleware 日誌中間件
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 包裝 ResponseWriter 以獲取狀態碼
		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(ww, r)

		h.logger.Info("HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("處理請求時發生 panic",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)

				h.errorResponse(w, "內部伺服器錯誤", http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}

// responseWriter 包裝 ResponseWriter 以獲取狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
