package usecase

import (
	"context"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// Ledger 是帳務系統的出站介面，由 mysql / memory adapter 實作
type Ledger interface {
	// PostTransaction 在單一原子作業內過帳:
	// 重新讀取涉及的帳戶、重新驗證 (存在/active/餘額)、套用餘額變動、
	// 寫入交易紀錄。成功時補上 tran 的 Currency 與 CreatedAt。
	// 任一前置條件失敗即整體中止，不留任何副作用。
	PostTransaction(ctx context.Context, tran *domain.Transaction) error

	// GetAccountByNumber 依帳號查詢帳戶
	GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	// GetAccountByID 依帳戶 ID 查詢帳戶
	GetAccountByID(ctx context.Context, accountID int64) (*domain.Account, error)

	// QueryTransactions 依條件查詢交易紀錄，回傳該頁資料與符合條件的總筆數
	QueryTransactions(ctx context.Context, query domain.TransactionQuery) ([]*domain.Transaction, int64, error)
	// GetTransaction 依交易編號查詢單筆交易
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
	// UpdateTransactionStatus 交易建立後唯一允許的變動，只接受往前的狀態轉移
	UpdateTransactionStatus(ctx context.Context, transactionID string, status domain.TransactionStatus) error

	// SaveStatement 保存產生完成的對帳單
	SaveStatement(ctx context.Context, statement *domain.Statement) error
	// GetStatement 依對帳單編號查詢
	GetStatement(ctx context.Context, statementID string) (*domain.Statement, error)
	// StatementsByAccount 查詢帳戶的所有對帳單，由新到舊
	StatementsByAccount(ctx context.Context, accountID int64) ([]*domain.Statement, error)
}
