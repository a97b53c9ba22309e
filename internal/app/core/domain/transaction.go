package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExternalAccount 帳外交易對手的保留帳號
// 存款的來源、提款的目的地都是這個 sentinel，不對應任何真實帳戶
const ExternalAccount = "EXTERNAL"

// TransactionType 交易類型
type TransactionType string

const (
	// 轉帳
	TransactionTypeTransfer TransactionType = "transfer"
	// 存款
	TransactionTypeDeposit TransactionType = "deposit"
	// 提款
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

// TransactionStatus 交易狀態，只能往前走：pending -> completed / failed
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// CanTransitionTo 檢查狀態轉移是否合法
// pending 是唯一的非終態；completed / failed 之後不得再變動
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	if s != TransactionStatusPending {
		return false
	}
	return next == TransactionStatusCompleted || next == TransactionStatusFailed
}

// Transaction 交易紀錄
// 建立後除了 Status 往前轉移之外，所有欄位皆不可變
type Transaction struct {
	// TransactionID: 外部追蹤號，建立時產生，全局唯一
	TransactionID string
	// FromAccount, ToAccount: 帳號 (其中一方可能是 ExternalAccount)
	FromAccount string
	ToAccount   string
	// Amount: 金額，必為正數
	Amount   decimal.Decimal
	Currency string
	Type     TransactionType
	Status   TransactionStatus
	// Description: 交易描述，空字串時由各操作補上預設值
	Description string
	CreatedAt   time.Time
}

// NewTransactionID 產生交易編號
// "TXN" 前綴 + UUID v4 的 32 個 hex 字元，並發下碰撞機率可忽略
func NewTransactionID() string {
	return "TXN" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// LockAccounts 回傳這筆交易需要鎖定的真實帳號，並固定排序以避免死鎖
// ExternalAccount 不是真實帳戶，不需要鎖
func (t *Transaction) LockAccounts() []string {
	numbers := make([]string, 0, 2)
	if t.FromAccount != ExternalAccount {
		numbers = append(numbers, t.FromAccount)
	}
	if t.ToAccount != ExternalAccount && t.ToAccount != t.FromAccount {
		numbers = append(numbers, t.ToAccount)
	}
	if len(numbers) == 2 && numbers[1] < numbers[0] {
		numbers[0], numbers[1] = numbers[1], numbers[0]
	}
	return numbers
}

// Credits 判斷這筆交易對指定帳號而言是否為入帳
func (t *Transaction) Credits(accountNumber string) bool {
	return t.ToAccount == accountNumber
}

// Debits 判斷這筆交易對指定帳號而言是否為扣帳
func (t *Transaction) Debits(accountNumber string) bool {
	return t.FromAccount == accountNumber
}

// TransactionQuery 交易紀錄查詢條件
//
// 欄位:
//
//	AccountNumbers: 帳號集合，來源或目的其一命中即符合
//	StartTime, EndTime: 時間區間 [start, end]，nil 表示不限制
//	Status: 狀態過濾，空字串表示不限制
//	Ascending: true 依時間遞增 (對帳單重建)，false 遞減 (歷史查詢)
//	Page, PageSize: 分頁，Page 從 1 起算；PageSize <= 0 表示不分頁
type TransactionQuery struct {
	AccountNumbers []string
	StartTime      *time.Time
	EndTime        *time.Time
	Status         TransactionStatus
	Ascending      bool
	Page           int
	PageSize       int
}

// Matches 檢查一筆交易是否符合查詢條件 (記憶體實作使用)
func (q *TransactionQuery) Matches(t *Transaction) bool {
	hit := false
	for _, number := range q.AccountNumbers {
		if t.FromAccount == number || t.ToAccount == number {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	if q.StartTime != nil && t.CreatedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && t.CreatedAt.After(*q.EndTime) {
		return false
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	return true
}
