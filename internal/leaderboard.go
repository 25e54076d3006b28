package internal

import (
	"sort"
	"sync"
	"time"
)

// LeaderboardEntry 排行榜條目
//
// 以顯示名稱為鍵：名稱是跨連線、跨房間的持久身份，
// 斷線重連或開新房間不會歸零勝場。
type LeaderboardEntry struct {
	Name string `json:"name"`
	Wins int    `json:"wins"`
}

// Leaderboard 程序級勝場排行榜
//
// 只在對局的獲勝轉換時更新——平手與棄局不計。
// 進程重啟即歸零（不做持久化）。
type Leaderboard struct {
	mu       sync.RWMutex
	wins     map[string]int       // name -> 勝場
	firstWin map[string]time.Time // name -> 首勝時間（排序決勝用）
}

// NewLeaderboard 創建排行榜
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{
		wins:     make(map[string]int),
		firstWin: make(map[string]time.Time),
	}
}

// RecordWin 記一場勝利（首勝時初始化為 1）
func (l *Leaderboard) RecordWin(displayName string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.wins[displayName]; !exists {
		l.firstWin[displayName] = time.Now()
	}
	l.wins[displayName]++
}

// Wins 查詢勝場數
func (l *Leaderboard) Wins(displayName string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.wins[displayName]
}

// SortedView 排行視圖
//
// 勝場多者在前。同勝場時的決勝規則必須確定：
// 先比首勝時間（早者在前），再比名稱——
// 不能依賴 map 迭代順序這種偶然行為。
func (l *Leaderboard) SortedView() []LeaderboardEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]LeaderboardEntry, 0, len(l.wins))
	for name, wins := range l.wins {
		entries = append(entries, LeaderboardEntry{Name: name, Wins: wins})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Wins != entries[j].Wins {
			return entries[i].Wins > entries[j].Wins
		}
		ti, tj := l.firstWin[entries[i].Name], l.firstWin[entries[j].Name]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return entries[i].Name < entries[j].Name
	})

	return entries
}

// Size 排行榜人數
func (l *Leaderboard) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.wins)
}
