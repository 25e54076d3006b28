package internal

// 系統設計問題：
//   如何表示四連棋盤，讓落子與勝負判定既正確又可併發使用？
//
// 設計方案：
//   ✅ 固定大小的值型別 [6][7]Slot - 複製即快照，廣播不會引用到活棋盤
//   ✅ 重力不變式 - 每一列的棋子永遠從底部連續往上堆
//   ✅ 純函數掃描 - 勝負判定不依賴共享狀態，可安全併發呼叫

// 棋盤尺寸：6 行 × 7 列，連成 4 子獲勝
const (
	BoardRows = 6
	BoardCols = 7
	winLength = 4
)

// Slot 玩家席位（同時也是棋盤格的值）
//
// 線路編碼：0 = 空格，1 = 席位一，2 = 席位二
type Slot int

const (
	SlotNone Slot = 0
	Slot1    Slot = 1
	Slot2    Slot = 2
)

// Other 回傳對手席位
func (s Slot) Other() Slot {
	switch s {
	case Slot1:
		return Slot2
	case Slot2:
		return Slot1
	default:
		return SlotNone
	}
}

// Board 四連棋盤
//
// 第 0 行是頂部，第 BoardRows-1 行是底部。
// 值型別：賦值即深拷貝，會話回傳的快照不會與活棋盤共享記憶體。
type Board [BoardRows][BoardCols]Slot

// Reset 清空棋盤
func (b *Board) Reset() {
	*b = Board{}
}

// Drop 重力落子：在指定列由底部往上找第一個空格放入棋子
//
// 這是唯一的棋盤變更操作，絕不更動其他格子。
// 回傳落子的行號；列越界回傳 ErrInvalidColumn，列已滿回傳 ErrColumnFull。
func (b *Board) Drop(column int, s Slot) (int, error) {
	if column < 0 || column >= BoardCols {
		return 0, ErrInvalidColumn
	}

	for row := BoardRows - 1; row >= 0; row-- {
		if b[row][column] == SlotNone {
			b[row][column] = s
			return row, nil
		}
	}

	return 0, ErrColumnFull
}

// IsFull 棋盤是否已滿
//
// 依重力不變式，只需檢查頂行即可。
func (b *Board) IsFull() bool {
	for col := 0; col < BoardCols; col++ {
		if b[0][col] == SlotNone {
			return false
		}
	}
	return true
}

// HasFourInRow 檢查指定席位是否連成四子
//
// 掃描四個方向（橫、豎、右下斜、左下斜）的每一個 4 格窗口。
// 純函數：不修改狀態，多個會話可同時呼叫。
func (b *Board) HasFourInRow(s Slot) bool {
	// 橫向
	for row := 0; row < BoardRows; row++ {
		for col := 0; col <= BoardCols-winLength; col++ {
			if b.lineMatch(row, col, 0, 1, s) {
				return true
			}
		}
	}

	// 縱向
	for col := 0; col < BoardCols; col++ {
		for row := 0; row <= BoardRows-winLength; row++ {
			if b.lineMatch(row, col, 1, 0, s) {
				return true
			}
		}
	}

	// 斜向（右下）
	for row := 0; row <= BoardRows-winLength; row++ {
		for col := 0; col <= BoardCols-winLength; col++ {
			if b.lineMatch(row, col, 1, 1, s) {
				return true
			}
		}
	}

	// 斜向（左下）
	for row := 0; row <= BoardRows-winLength; row++ {
		for col := winLength - 1; col < BoardCols; col++ {
			if b.lineMatch(row, col, 1, -1, s) {
				return true
			}
		}
	}

	return false
}

// lineMatch 檢查從 (row, col) 沿 (dr, dc) 方向的 4 格是否全為 s
func (b *Board) lineMatch(row, col, dr, dc int, s Slot) bool {
	for i := 0; i < winLength; i++ {
		if b[row+i*dr][col+i*dc] != s {
			return false
		}
	}
	return true
}
