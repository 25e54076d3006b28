package internal

// 錯誤分類設計：
//   所有錯誤都是「呼叫者本地」的驗證失敗——不會破壞會話狀態，
//   也不會自動重試，只回報給出錯的那一條連線（對手視角不受影響）。
//
// 為什麼用固定錯誤碼？
//   - 錯誤事件需要在線路上傳遞穩定的代碼（客戶端依代碼分支處理）
//   - errors.Is 可直接比對哨兵值，避免解析錯誤字串

// GameError 帶有穩定錯誤碼的遊戲錯誤
type GameError struct {
	Code    string // 線路上的錯誤代碼
	Message string // 人類可讀的說明
}

func (e *GameError) Error() string {
	return e.Code + ": " + e.Message
}

var (
	ErrNameRequired         = &GameError{Code: "NameRequired", Message: "請先設定玩家名稱"}
	ErrRoomNotFound         = &GameError{Code: "RoomNotFound", Message: "房間不存在"}
	ErrRoomFull             = &GameError{Code: "RoomFull", Message: "房間已滿"}
	ErrNotAPlayer           = &GameError{Code: "NotAPlayer", Message: "你不在這場對局中"}
	ErrNotYourTurn          = &GameError{Code: "NotYourTurn", Message: "還沒輪到你"}
	ErrSessionNotInProgress = &GameError{Code: "SessionNotInProgress", Message: "對局尚未進行中"}
	ErrSessionNotFinished   = &GameError{Code: "SessionNotFinished", Message: "對局尚未結束"}
	ErrInvalidColumn        = &GameError{Code: "InvalidColumn", Message: "無效的列"}
	ErrColumnFull           = &GameError{Code: "ColumnFull", Message: "該列已滿"}
)

// ErrorCode 取出錯誤代碼（非 GameError 一律歸為 InternalError）
func ErrorCode(err error) string {
	if ge, ok := err.(*GameError); ok {
		return ge.Code
	}
	return "InternalError"
}
