package domain

import "github.com/shopspring/decimal"

// AccountStatus 帳戶狀態
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
	AccountStatusFrozen   AccountStatus = "frozen"
	AccountStatusClosed   AccountStatus = "closed"
)

// Account 帳戶
// Balance 只能透過 Ledger 的原子操作變動，外部不得直接寫入
type Account struct {
	ID            int64
	AccountNumber string
	UserID        int64
	Balance       decimal.Decimal
	Currency      string
	Status        AccountStatus
}

func NewAccount(id int64, number string, userID int64, balance decimal.Decimal, currency string) *Account {
	return &Account{
		ID:            id,
		AccountNumber: number,
		UserID:        userID,
		Balance:       balance,
		Currency:      currency,
		Status:        AccountStatusActive,
	}
}

// IsActive 是否為 active 狀態 (只有 active 帳戶能參與交易)
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// Credit 入帳
//
// 參數:
//
//	amount: 金額，必須為正數
//
// 回傳:
//
//	error: 金額不合法時回傳錯誤
func (a *Account) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountMustBePositive
	}

	a.Balance = a.Balance.Add(amount)
	return nil
}

// Debit 扣帳，扣款前檢查餘額
//
// 參數:
//
//	amount: 金額，必須為正數
//
// 回傳:
//
//	error: 金額不合法或餘額不足時回傳錯誤
func (a *Account) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountMustBePositive
	}

	if a.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}

	a.Balance = a.Balance.Sub(amount)
	return nil
}
