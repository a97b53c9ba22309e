package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// MySQL error numbers
// 1062: duplicate key, 1213: deadlock, 1205: lock wait timeout
const (
	mysqlErrDuplicateKey    = 1062
	mysqlErrDeadlock        = 1213
	mysqlErrLockWaitTimeout = 1205
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID            int64           `gorm:"primaryKey"`
	AccountNumber string          `gorm:"size:32;uniqueIndex"`
	UserID        int64           `gorm:"index"`
	Balance       decimal.Decimal `gorm:"type:decimal(19,4)"`
	Currency      string          `gorm:"size:3"`
	Status        string          `gorm:"size:16"`
	UpdatedAt     int64           `gorm:"autoUpdateTime:milli"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (a *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		UserID:        a.UserID,
		Balance:       a.Balance,
		Currency:      a.Currency,
		Status:        domain.AccountStatus(a.Status),
	}
}

// sqlTransaction 對應資料庫的 transactions 表
// transaction_id 帶 unique index，重複過帳在這裡被擋下
type sqlTransaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	TransactionID string          `gorm:"size:40;uniqueIndex"`
	FromAccount   string          `gorm:"size:32;index"`
	ToAccount     string          `gorm:"size:32;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(19,4)"`
	Currency      string          `gorm:"size:3"`
	Type          string          `gorm:"size:16"`
	Status        string          `gorm:"size:16;index"`
	Description   string          `gorm:"size:255"`
	CreatedAt     time.Time       `gorm:"index"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func (t *sqlTransaction) toDomain() *domain.Transaction {
	return &domain.Transaction{
		TransactionID: t.TransactionID,
		FromAccount:   t.FromAccount,
		ToAccount:     t.ToAccount,
		Amount:        t.Amount,
		Currency:      t.Currency,
		Type:          domain.TransactionType(t.Type),
		Status:        domain.TransactionStatus(t.Status),
		Description:   t.Description,
		CreatedAt:     t.CreatedAt,
	}
}

// sqlStatement 對應資料庫的 statements 表，明細以 JSON 存放
type sqlStatement struct {
	ID               int64           `gorm:"primaryKey;autoIncrement"`
	StatementID      string          `gorm:"size:40;uniqueIndex"`
	AccountID        int64           `gorm:"index"`
	AccountNumber    string          `gorm:"size:32"`
	StartDate        time.Time       `gorm:""`
	EndDate          time.Time       `gorm:""`
	OpeningBalance   decimal.Decimal `gorm:"type:decimal(19,4)"`
	ClosingBalance   decimal.Decimal `gorm:"type:decimal(19,4)"`
	TotalCredits     decimal.Decimal `gorm:"type:decimal(19,4)"`
	TotalDebits      decimal.Decimal `gorm:"type:decimal(19,4)"`
	TransactionCount int             `gorm:""`
	Lines            []byte          `gorm:"type:json"`
	Currency         string          `gorm:"size:3"`
	GeneratedAt      time.Time       `gorm:"index"`
}

func (*sqlStatement) TableName() string {
	return "statements"
}

func (s *sqlStatement) toDomain() (*domain.Statement, error) {
	var lines []domain.StatementLine
	if len(s.Lines) > 0 {
		if err := json.Unmarshal(s.Lines, &lines); err != nil {
			return nil, fmt.Errorf("unmarshal statement lines: %w", err)
		}
	}
	return &domain.Statement{
		StatementID:      s.StatementID,
		AccountID:        s.AccountID,
		AccountNumber:    s.AccountNumber,
		StartDate:        s.StartDate,
		EndDate:          s.EndDate,
		OpeningBalance:   s.OpeningBalance,
		ClosingBalance:   s.ClosingBalance,
		TotalCredits:     s.TotalCredits,
		TotalDebits:      s.TotalDebits,
		TransactionCount: s.TransactionCount,
		Lines:            lines,
		Currency:         s.Currency,
		GeneratedAt:      s.GeneratedAt,
	}, nil
}

// MySQLLedger 以 GORM 實作 usecase.Ledger
// 過帳的原子性靠資料庫事務 + SELECT ... FOR UPDATE 行鎖，不用應用層鎖
type MySQLLedger struct {
	client *mysql.Client
}

func NewMySQLLedger(client *mysql.Client) *MySQLLedger {
	return &MySQLLedger{
		client: client,
	}
}

// PostTransaction 在單一資料庫事務內過帳
//
// 流程: 以固定排序鎖定涉及的帳戶列 -> 以鎖定當下讀到的狀態重新驗證
// (存在 / active / 餘額) -> 套用餘額變動 -> 寫入交易紀錄 -> commit。
// 任一步失敗整個事務回滾，不留副作用。
// 兩個並發扣款搶同一帳戶時，資料庫的 deadlock / lock timeout
// 會轉成 ErrTransactionConflict，由 usecase 層重試。
func (l *MySQLLedger) PostTransaction(ctx context.Context, tran *domain.Transaction) error {
	err := l.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 取得鎖定帳號，固定排序以避免死鎖 (悲觀鎖)
		lockNumbers := tran.LockAccounts()
		var rows []sqlAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_number IN ?", lockNumbers).
			Order("account_number").
			Find(&rows).Error; err != nil {
			return err
		}

		accounts := make(map[string]*domain.Account, len(rows))
		rowByNumber := make(map[string]*sqlAccount, len(rows))
		for i := range rows {
			accounts[rows[i].AccountNumber] = rows[i].toDomain()
			rowByNumber[rows[i].AccountNumber] = &rows[i]
		}

		// 安全檢查: 涉及的帳戶都存在且為 active
		for _, number := range lockNumbers {
			account, ok := accounts[number]
			if !ok {
				return domain.ErrAccountNotFound
			}
			if !account.IsActive() {
				return domain.ErrAccountNotActive
			}
		}

		// 依 Type 套用餘額變動，扣款方檢查餘額
		switch tran.Type {
		case domain.TransactionTypeDeposit:
			if err := accounts[tran.ToAccount].Credit(tran.Amount); err != nil {
				return err
			}
			tran.Currency = accounts[tran.ToAccount].Currency
		case domain.TransactionTypeWithdrawal:
			if err := accounts[tran.FromAccount].Debit(tran.Amount); err != nil {
				return err
			}
			tran.Currency = accounts[tran.FromAccount].Currency
		case domain.TransactionTypeTransfer:
			if err := accounts[tran.FromAccount].Debit(tran.Amount); err != nil {
				return err
			}
			if err := accounts[tran.ToAccount].Credit(tran.Amount); err != nil {
				return err
			}
			tran.Currency = accounts[tran.FromAccount].Currency
		default:
			return fmt.Errorf("unknown transaction type: %s", tran.Type)
		}

		// 寫回餘額
		for number, row := range rowByNumber {
			row.Balance = accounts[number].Balance
			if err := tx.Save(row).Error; err != nil {
				return err
			}
		}

		// 建立交易紀錄，同一事務內 append
		tran.CreatedAt = time.Now()
		record := sqlTransaction{
			TransactionID: tran.TransactionID,
			FromAccount:   tran.FromAccount,
			ToAccount:     tran.ToAccount,
			Amount:        tran.Amount,
			Currency:      tran.Currency,
			Type:          string(tran.Type),
			Status:        string(tran.Status),
			Description:   tran.Description,
			CreatedAt:     tran.CreatedAt,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return nil
	})
	return translateError(err)
}

// LoadAllAccounts 載入所有帳戶 (記憶體帳本啟動時的初始狀態)
func (l *MySQLLedger) LoadAllAccounts(ctx context.Context) ([]*domain.Account, error) {
	var rows []sqlAccount
	if err := l.client.DB().WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	accounts := make([]*domain.Account, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, rows[i].toDomain())
	}
	return accounts, nil
}

// GetAccountByNumber 依帳號查詢帳戶
func (l *MySQLLedger) GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var row sqlAccount
	err := l.client.DB().WithContext(ctx).
		Where("account_number = ?", accountNumber).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return row.toDomain(), nil
}

// GetAccountByID 依帳戶 ID 查詢帳戶
func (l *MySQLLedger) GetAccountByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	var row sqlAccount
	err := l.client.DB().WithContext(ctx).
		Where("id = ?", accountID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return row.toDomain(), nil
}

// QueryTransactions 依條件查詢交易紀錄
// 單一 SELECT 取得整個結果集，對帳單的兩趟計算走同一份快照
func (l *MySQLLedger) QueryTransactions(ctx context.Context, query domain.TransactionQuery) ([]*domain.Transaction, int64, error) {
	db := l.client.DB().WithContext(ctx).Model(&sqlTransaction{}).
		Where("from_account IN ? OR to_account IN ?", query.AccountNumbers, query.AccountNumbers)

	if query.StartTime != nil {
		db = db.Where("created_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", *query.EndTime)
	}
	if query.Status != "" {
		db = db.Where("status = ?", string(query.Status))
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	// 同一毫秒內的多筆交易以自增主鍵決定先後
	if query.Ascending {
		db = db.Order("created_at ASC").Order("id ASC")
	} else {
		db = db.Order("created_at DESC").Order("id DESC")
	}
	if query.PageSize > 0 {
		page := query.Page
		if page <= 0 {
			page = 1
		}
		db = db.Offset((page - 1) * query.PageSize).Limit(query.PageSize)
	}

	var rows []sqlTransaction
	if err := db.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("query transactions: %w", err)
	}

	transactions := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		transactions = append(transactions, rows[i].toDomain())
	}
	return transactions, total, nil
}

// GetTransaction 依交易編號查詢單筆交易
func (l *MySQLLedger) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var row sqlTransaction
	err := l.client.DB().WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return row.toDomain(), nil
}

// UpdateTransactionStatus 變更交易狀態，事務內先鎖定再檢查轉移是否合法
func (l *MySQLLedger) UpdateTransactionStatus(ctx context.Context, transactionID string, status domain.TransactionStatus) error {
	err := l.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row sqlTransaction
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("transaction_id = ?", transactionID).
			First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTransactionNotFound
			}
			return err
		}

		current := domain.TransactionStatus(row.Status)
		if !current.CanTransitionTo(status) {
			return domain.ErrStatusTransition
		}
		return tx.Model(&row).Update("status", string(status)).Error
	})
	return translateError(err)
}

// SaveStatement 保存對帳單
func (l *MySQLLedger) SaveStatement(ctx context.Context, statement *domain.Statement) error {
	lines, err := json.Marshal(statement.Lines)
	if err != nil {
		return fmt.Errorf("marshal statement lines: %w", err)
	}
	row := sqlStatement{
		StatementID:      statement.StatementID,
		AccountID:        statement.AccountID,
		AccountNumber:    statement.AccountNumber,
		StartDate:        statement.StartDate,
		EndDate:          statement.EndDate,
		OpeningBalance:   statement.OpeningBalance,
		ClosingBalance:   statement.ClosingBalance,
		TotalCredits:     statement.TotalCredits,
		TotalDebits:      statement.TotalDebits,
		TransactionCount: statement.TransactionCount,
		Lines:            lines,
		Currency:         statement.Currency,
		GeneratedAt:      statement.GeneratedAt,
	}
	if err := l.client.DB().WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(translateError(err), domain.ErrDuplicateTransaction) {
			return domain.ErrDuplicateStatement
		}
		return translateError(err)
	}
	return nil
}

// GetStatement 依對帳單編號查詢
func (l *MySQLLedger) GetStatement(ctx context.Context, statementID string) (*domain.Statement, error) {
	var row sqlStatement
	err := l.client.DB().WithContext(ctx).
		Where("statement_id = ?", statementID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStatementNotFound
		}
		return nil, fmt.Errorf("get statement: %w", err)
	}
	return row.toDomain()
}

// StatementsByAccount 查詢帳戶的所有對帳單，由新到舊
func (l *MySQLLedger) StatementsByAccount(ctx context.Context, accountID int64) ([]*domain.Statement, error) {
	var rows []sqlStatement
	err := l.client.DB().WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("generated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	statements := make([]*domain.Statement, 0, len(rows))
	for i := range rows {
		statement, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		statements = append(statements, statement)
	}
	return statements, nil
}

// translateError 把 MySQL 錯誤碼轉成 domain 錯誤
// deadlock / lock wait timeout 代表並發寫入衝突，交由 usecase 重試
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *driver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDuplicateKey:
			return domain.ErrDuplicateTransaction
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
			return domain.ErrTransactionConflict
		}
	}
	return err
}

var _ usecase.Ledger = (*MySQLLedger)(nil)
