package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// MemoryLedger 是以單一 Mutex 保護的記憶體帳本，實作 usecase.Ledger
// 供測試與單機開發模式使用；搭配 WAL 可在重啟後重放恢復狀態
type MemoryLedger struct {
	mu sync.RWMutex

	accountsByNumber map[string]*domain.Account
	accountsByID     map[int64]*domain.Account

	// transactions 依寫入順序排列 (即時間遞增)
	transactions     []*domain.Transaction
	transactionsByID map[string]*domain.Transaction

	statements map[string]*domain.Statement

	// wal 為 nil 時不做持久化
	wal *wal.WAL
}

// NewMemoryLedger 建立記憶體帳本並重放 WAL
//
// 參數:
//
//	accounts: 初始帳戶 (通常由 mysql adapter 的 LoadAllAccounts 提供)
//	w: WAL 實例，nil 表示不持久化
//
// 回傳:
//
//	*MemoryLedger: 帳本實例
//	error: WAL 重放失敗
func NewMemoryLedger(accounts []*domain.Account, w *wal.WAL) (*MemoryLedger, error) {
	ledger := &MemoryLedger{
		accountsByNumber: make(map[string]*domain.Account, len(accounts)),
		accountsByID:     make(map[int64]*domain.Account, len(accounts)),
		transactionsByID: make(map[string]*domain.Transaction),
		statements:       make(map[string]*domain.Statement),
		wal:              w,
	}
	for _, account := range accounts {
		ledger.accountsByNumber[account.AccountNumber] = account
		ledger.accountsByID[account.ID] = account
	}
	if err := ledger.recoverFromWAL(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// recoverFromWAL 重放 WAL 中的交易恢復帳本狀態
// 只在建構時呼叫，單執行緒，不需要鎖
func (m *MemoryLedger) recoverFromWAL() error {
	if m.wal == nil {
		return nil
	}
	return m.wal.Replay(func(raw []byte) error {
		var tran domain.Transaction
		if err := json.Unmarshal(raw, &tran); err != nil {
			return err
		}
		// 重放不再寫 WAL
		return m.apply(&tran)
	})
}

// PostTransaction 過帳
// 驗證全部通過後才寫 WAL、才改記憶體狀態，失敗的操作零副作用
func (m *MemoryLedger) PostTransaction(ctx context.Context, tran *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactionsByID[tran.TransactionID]; ok {
		return domain.ErrDuplicateTransaction
	}
	if err := m.validate(tran); err != nil {
		return err
	}

	tran.CreatedAt = time.Now()
	// 幣別取自涉及的真實帳戶 (提款/轉帳看來源，存款看目的)
	if tran.FromAccount != domain.ExternalAccount {
		tran.Currency = m.accountsByNumber[tran.FromAccount].Currency
	} else {
		tran.Currency = m.accountsByNumber[tran.ToAccount].Currency
	}

	if m.wal != nil {
		if err := m.wal.Append(tran); err != nil {
			return err
		}
	}
	return m.apply(tran)
}

// validate 以當下的帳本狀態檢查前置條件 (存在 / active / 餘額)
func (m *MemoryLedger) validate(tran *domain.Transaction) error {
	for _, number := range tran.LockAccounts() {
		account, ok := m.accountsByNumber[number]
		if !ok {
			return domain.ErrAccountNotFound
		}
		if !account.IsActive() {
			return domain.ErrAccountNotActive
		}
	}
	if tran.FromAccount != domain.ExternalAccount {
		if m.accountsByNumber[tran.FromAccount].Balance.LessThan(tran.Amount) {
			return domain.ErrInsufficientBalance
		}
	}
	return nil
}

// apply 套用餘額變動並寫入交易紀錄 (呼叫端負責驗證與上鎖)
// 過帳前已通過 validate；WAL 重放直接走這裡，涉及的帳戶可能不在
// 初始集合內，所以存在性要再查一次
func (m *MemoryLedger) apply(tran *domain.Transaction) error {
	for _, number := range tran.LockAccounts() {
		if _, ok := m.accountsByNumber[number]; !ok {
			return domain.ErrAccountNotFound
		}
	}
	if tran.FromAccount != domain.ExternalAccount {
		if err := m.accountsByNumber[tran.FromAccount].Debit(tran.Amount); err != nil {
			return err
		}
	}
	if tran.ToAccount != domain.ExternalAccount {
		if err := m.accountsByNumber[tran.ToAccount].Credit(tran.Amount); err != nil {
			return err
		}
	}

	stored := *tran
	m.transactions = append(m.transactions, &stored)
	m.transactionsByID[stored.TransactionID] = &stored
	return nil
}

// GetAccountByNumber 依帳號查詢帳戶 (回傳副本)
func (m *MemoryLedger) GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accountsByNumber[accountNumber]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

// GetAccountByID 依帳戶 ID 查詢帳戶 (回傳副本)
func (m *MemoryLedger) GetAccountByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accountsByID[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

// QueryTransactions 依條件查詢交易紀錄
// 在讀鎖內一次複製出整個結果集，回傳後不受後續寫入影響
func (m *MemoryLedger) QueryTransactions(ctx context.Context, query domain.TransactionQuery) ([]*domain.Transaction, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*domain.Transaction, 0)
	for _, tran := range m.transactions {
		if query.Matches(tran) {
			copied := *tran
			matched = append(matched, &copied)
		}
	}
	total := int64(len(matched))

	// transactions 本身依時間遞增，遞減時反轉
	if !query.Ascending {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	if query.PageSize > 0 {
		page := query.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * query.PageSize
		if start >= len(matched) {
			return []*domain.Transaction{}, total, nil
		}
		end := start + query.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

// GetTransaction 依交易編號查詢單筆交易 (回傳副本)
func (m *MemoryLedger) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tran, ok := m.transactionsByID[transactionID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	copied := *tran
	return &copied, nil
}

// UpdateTransactionStatus 變更交易狀態，只接受往前的轉移
func (m *MemoryLedger) UpdateTransactionStatus(ctx context.Context, transactionID string, status domain.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tran, ok := m.transactionsByID[transactionID]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if !tran.Status.CanTransitionTo(status) {
		return domain.ErrStatusTransition
	}
	tran.Status = status
	return nil
}

// SaveStatement 保存對帳單
func (m *MemoryLedger) SaveStatement(ctx context.Context, statement *domain.Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statements[statement.StatementID]; ok {
		return domain.ErrDuplicateStatement
	}
	m.statements[statement.StatementID] = statement
	return nil
}

// GetStatement 依對帳單編號查詢
func (m *MemoryLedger) GetStatement(ctx context.Context, statementID string) (*domain.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	statement, ok := m.statements[statementID]
	if !ok {
		return nil, domain.ErrStatementNotFound
	}
	return statement, nil
}

// StatementsByAccount 查詢帳戶的所有對帳單，由新到舊
func (m *MemoryLedger) StatementsByAccount(ctx context.Context, accountID int64) ([]*domain.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	statements := make([]*domain.Statement, 0)
	for _, statement := range m.statements {
		if statement.AccountID == accountID {
			statements = append(statements, statement)
		}
	}
	sort.Slice(statements, func(i, j int) bool {
		return statements[i].GeneratedAt.After(statements[j].GeneratedAt)
	})
	return statements, nil
}

var _ usecase.Ledger = (*MemoryLedger)(nil)
