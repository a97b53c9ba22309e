package domain

import "errors"

var (
	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = errors.New("amount must be greater than zero")

	// ErrSameAccountTransfer 不可轉帳給同一個帳戶
	ErrSameAccountTransfer = errors.New("cannot transfer to the same account")

	// ErrInvalidDateRange 日期區間不合法 (start 必須早於 end)
	ErrInvalidDateRange = errors.New("start date must be before end date")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountNotActive 帳戶非 active 狀態 (inactive/frozen/closed)
	ErrAccountNotActive = errors.New("account is not active")

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTransactionNotFound 找不到交易紀錄
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrStatementNotFound 找不到對帳單
	ErrStatementNotFound = errors.New("statement not found")

	// ErrDuplicateTransaction 交易編號已存在 (理論上不該發生，但必須檢查)
	ErrDuplicateTransaction = errors.New("transaction id already exists")

	// ErrDuplicateStatement 對帳單編號已存在
	ErrDuplicateStatement = errors.New("statement id already exists")

	// ErrStatusTransition 交易狀態只能往前走 (pending -> completed/failed)
	ErrStatusTransition = errors.New("invalid transaction status transition")

	// ErrTransactionConflict 並發寫入衝突，重試耗盡後回傳
	ErrTransactionConflict = errors.New("transaction conflict, retries exhausted")
)
