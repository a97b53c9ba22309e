package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
)

// StatementUseCase 對帳單重建
type StatementUseCase struct {
	ledger  Ledger
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewStatementUseCase(ledger Ledger, logger *zap.Logger, m *metrics.Metrics) *StatementUseCase {
	return &StatementUseCase{
		ledger:  ledger,
		logger:  logger,
		metrics: m,
	}
}

// Generate 產生指定帳戶在 [startDate, endDate] 區間的對帳單並保存
//
// 流程: 驗證區間 -> 查帳戶 -> 一次撈出區間內 completed 交易 (時間遞增、
// 單一快照) -> domain.BuildStatement 反向推導期初餘額、正向重放 -> 保存。
// 重建演算法與錨點的限制見 domain.BuildStatement。
//
// 回傳:
//
//	*domain.Statement: 產生完成、已保存的對帳單
//	error: 區間不合法 / 查無帳戶 / 儲存層錯誤
func (u *StatementUseCase) Generate(ctx context.Context, accountID int64, startDate, endDate time.Time) (*domain.Statement, error) {
	if !startDate.Before(endDate) {
		return nil, domain.ErrInvalidDateRange
	}

	account, err := u.ledger.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	transactions, _, err := u.ledger.QueryTransactions(ctx, domain.TransactionQuery{
		AccountNumbers: []string{account.AccountNumber},
		StartTime:      &startDate,
		EndTime:        &endDate,
		Status:         domain.TransactionStatusCompleted,
		Ascending:      true,
	})
	if err != nil {
		return nil, err
	}

	statement := domain.BuildStatement(account, startDate, endDate, transactions)
	if err := u.ledger.SaveStatement(ctx, statement); err != nil {
		return nil, err
	}

	u.logger.Info("statement generated",
		zap.String("statement_id", statement.StatementID),
		zap.String("account_number", statement.AccountNumber),
		zap.Int("transaction_count", statement.TransactionCount),
		zap.String("opening_balance", statement.OpeningBalance.String()),
		zap.String("closing_balance", statement.ClosingBalance.String()),
	)
	u.metrics.StatementGenerated()
	return statement, nil
}

// GetStatement 依對帳單編號查詢
func (u *StatementUseCase) GetStatement(ctx context.Context, statementID string) (*domain.Statement, error) {
	return u.ledger.GetStatement(ctx, statementID)
}

// StatementsByAccount 查詢帳戶的所有對帳單，由新到舊
func (u *StatementUseCase) StatementsByAccount(ctx context.Context, accountID int64) ([]*domain.Statement, error) {
	return u.ledger.StatementsByAccount(ctx, accountID)
}
