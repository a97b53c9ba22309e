package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/metrics"
)

// Config 交易管理器的執行參數
type Config struct {
	// OperationTimeout: 單次過帳的時間上限
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	// MaxAttempts: 遇到寫入衝突時的最大嘗試次數 (含第一次)
	MaxAttempts int `yaml:"max_attempts"`
	// RetryBackoff: 重試間隔基數，第 n 次重試前等待 n * RetryBackoff
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// withDefaults 補全未設定的欄位
func (c Config) withDefaults() Config {
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = 3 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 50 * time.Millisecond
	}
	return c
}

// LedgerUseCase 是核心業務邏輯層：轉帳 / 存款 / 提款 與交易查詢
//
// 靜態驗證 (金額、同帳戶) 在這一層完成，失敗即回傳、零副作用。
// 帳戶存在性、狀態與餘額必須在 adapter 的原子作業內以當下讀到的
// 狀態重新驗證，不依賴這一層先前的讀取。
type LedgerUseCase struct {
	ledger  Ledger
	logger  *zap.Logger
	metrics *metrics.Metrics
	cfg     Config
}

func NewLedgerUseCase(ledger Ledger, logger *zap.Logger, m *metrics.Metrics, cfg Config) *LedgerUseCase {
	return &LedgerUseCase{
		ledger:  ledger,
		logger:  logger,
		metrics: m,
		cfg:     cfg.withDefaults(),
	}
}

// Transfer 轉帳
//
// 前置條件: amount > 0、from != to、雙方帳戶皆存在且 active、
// 來源帳戶在提交當下餘額足夠。三個效果 (扣款、入帳、寫入交易紀錄)
// 同時發生或全不發生。
//
// 回傳:
//
//	*domain.Transaction: 已完成的交易紀錄
//	error: 驗證 / 查無帳戶 / 狀態 / 餘額不足 / 衝突耗盡
func (u *LedgerUseCase) Transfer(ctx context.Context, fromAccount, toAccount string, amount decimal.Decimal, description string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrAmountMustBePositive
	}
	if fromAccount == toAccount {
		return nil, domain.ErrSameAccountTransfer
	}

	tran := &domain.Transaction{
		TransactionID: domain.NewTransactionID(),
		FromAccount:   fromAccount,
		ToAccount:     toAccount,
		Amount:        amount,
		Type:          domain.TransactionTypeTransfer,
		Status:        domain.TransactionStatusCompleted,
		Description:   defaultDescription(description, "Fund transfer"),
	}
	if err := u.post(ctx, tran); err != nil {
		return nil, err
	}
	return tran, nil
}

// Deposit 存款，來源為帳外交易對手 (ExternalAccount)，只有目的帳戶餘額變動
func (u *LedgerUseCase) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal, description string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrAmountMustBePositive
	}

	tran := &domain.Transaction{
		TransactionID: domain.NewTransactionID(),
		FromAccount:   domain.ExternalAccount,
		ToAccount:     accountNumber,
		Amount:        amount,
		Type:          domain.TransactionTypeDeposit,
		Status:        domain.TransactionStatusCompleted,
		Description:   defaultDescription(description, "Cash deposit"),
	}
	if err := u.post(ctx, tran); err != nil {
		return nil, err
	}
	return tran, nil
}

// Withdraw 提款，目的為帳外交易對手，需檢查餘額
func (u *LedgerUseCase) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal, description string) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrAmountMustBePositive
	}

	tran := &domain.Transaction{
		TransactionID: domain.NewTransactionID(),
		FromAccount:   accountNumber,
		ToAccount:     domain.ExternalAccount,
		Amount:        amount,
		Type:          domain.TransactionTypeWithdrawal,
		Status:        domain.TransactionStatusCompleted,
		Description:   defaultDescription(description, "Cash withdrawal"),
	}
	if err := u.post(ctx, tran); err != nil {
		return nil, err
	}
	return tran, nil
}

// post 執行過帳，寫入衝突時做有上限的重試
// 重試只在這一層發生，不會在更外層 (如 HTTP boundary) 自動重試
func (u *LedgerUseCase) post(ctx context.Context, tran *domain.Transaction) error {
	started := time.Now()
	var err error

	for attempt := 1; attempt <= u.cfg.MaxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, u.cfg.OperationTimeout)
		err = u.ledger.PostTransaction(opCtx, tran)
		cancel()

		if err == nil {
			u.logger.Info("transaction posted",
				zap.String("transaction_id", tran.TransactionID),
				zap.String("type", string(tran.Type)),
				zap.String("amount", tran.Amount.String()),
				zap.Int("attempt", attempt),
			)
			u.metrics.ObservePost(string(tran.Type), time.Since(started))
			return nil
		}
		if !errors.Is(err, domain.ErrTransactionConflict) {
			u.logger.Warn("transaction rejected",
				zap.String("transaction_id", tran.TransactionID),
				zap.String("type", string(tran.Type)),
				zap.Error(err),
			)
			return err
		}
		// 衝突: 退避後重來，間隔隨次數遞增；呼叫端取消時立即中止
		if attempt < u.cfg.MaxAttempts {
			u.metrics.ConflictRetried()
			u.logger.Warn("write conflict, retrying",
				zap.String("transaction_id", tran.TransactionID),
				zap.Int("attempt", attempt),
			)
			backoff := time.NewTimer(time.Duration(attempt) * u.cfg.RetryBackoff)
			select {
			case <-ctx.Done():
				backoff.Stop()
				return ctx.Err()
			case <-backoff.C:
			}
		}
	}

	u.logger.Error("transaction conflict, retries exhausted",
		zap.String("transaction_id", tran.TransactionID),
		zap.Int("attempts", u.cfg.MaxAttempts),
	)
	return domain.ErrTransactionConflict
}

// History 查詢交易歷史，由新到舊，回傳該頁資料與總筆數
//
// 參數:
//
//	accountNumbers: 帳號集合，來源或目的其一命中即符合
//	startTime, endTime: 選填的時間區間
//	page, pageSize: 分頁 (預設 1 / 20)
func (u *LedgerUseCase) History(ctx context.Context, accountNumbers []string, startTime, endTime *time.Time, page, pageSize int) ([]*domain.Transaction, int64, error) {
	if len(accountNumbers) == 0 {
		return nil, 0, nil
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return u.ledger.QueryTransactions(ctx, domain.TransactionQuery{
		AccountNumbers: accountNumbers,
		StartTime:      startTime,
		EndTime:        endTime,
		Ascending:      false,
		Page:           page,
		PageSize:       pageSize,
	})
}

// GetTransaction 依交易編號查詢單筆交易
func (u *LedgerUseCase) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return u.ledger.GetTransaction(ctx, transactionID)
}

// MarkTransactionStatus 變更交易狀態，只接受往前的轉移
func (u *LedgerUseCase) MarkTransactionStatus(ctx context.Context, transactionID string, status domain.TransactionStatus) error {
	return u.ledger.UpdateTransactionStatus(ctx, transactionID, status)
}

// GetAccountBalance 取得帳戶餘額
func (u *LedgerUseCase) GetAccountBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	account, err := u.ledger.GetAccountByNumber(ctx, accountNumber)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func defaultDescription(description, fallback string) string {
	if description == "" {
		return fallback
	}
	return description
}
