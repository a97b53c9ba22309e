package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatementDirection 對帳單明細相對於帳戶的方向
type StatementDirection string

const (
	StatementCredit StatementDirection = "credit"
	StatementDebit  StatementDirection = "debit"
)

// StatementLine 對帳單的一行明細
type StatementLine struct {
	TransactionID string
	Date          time.Time
	Description   string
	Direction     StatementDirection
	Amount        decimal.Decimal
	// RunningBalance: 套用這行之後的帳戶餘額
	RunningBalance decimal.Decimal
}

// Statement 對帳單，產生後不可變
// 不變式: OpeningBalance + TotalCredits - TotalDebits == ClosingBalance
type Statement struct {
	StatementID      string
	AccountID        int64
	AccountNumber    string
	StartDate        time.Time
	EndDate          time.Time
	OpeningBalance   decimal.Decimal
	ClosingBalance   decimal.Decimal
	TotalCredits     decimal.Decimal
	TotalDebits      decimal.Decimal
	TransactionCount int
	Lines            []StatementLine
	Currency         string
	GeneratedAt      time.Time
}

// NewStatementID 產生對帳單編號 ("STMT" 前綴 + UUID v4 hex)
func NewStatementID() string {
	return "STMT" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// BuildStatement 從交易紀錄重建對帳單
//
// transactions 必須是「狀態 completed、時間落在 [start, end]、且來源或目的
// 為該帳戶」的交易，依時間遞增排序。兩趟計算都走同一份 slice，呼叫端
// 取得資料後不得再修改。
//
// 演算法:
//  1. 以帳戶當前餘額為錨點，反向走訪區間內的交易並逐筆還原
//     (入帳的減回去、扣帳的加回來)，得到期初餘額
//  2. 從期初餘額正向走訪，逐筆套用並記錄每行的餘額，累計入帳/扣帳總額
//
// 注意: 錨點是帳戶的「現在」餘額。當 end 早於現在、且其後另有交易時，
// 區間外的交易不會被還原，推得的期初/期末餘額會整體偏移該淨額。
// 這是沿用的既有行為，不做特殊處理。
//
// 參數:
//
//	account: 目標帳戶 (餘額為錨點)
//	start, end: 對帳區間
//	transactions: 區間內的 completed 交易，時間遞增
//
// 回傳:
//
//	*Statement: 重建完成的對帳單
func BuildStatement(account *Account, start, end time.Time, transactions []*Transaction) *Statement {
	// 反向還原求期初餘額
	opening := account.Balance
	for i := len(transactions) - 1; i >= 0; i-- {
		t := transactions[i]
		if t.Credits(account.AccountNumber) {
			opening = opening.Sub(t.Amount)
		} else if t.Debits(account.AccountNumber) {
			opening = opening.Add(t.Amount)
		}
	}

	// 正向套用，建立逐行餘額
	running := opening
	totalCredits := decimal.Zero
	totalDebits := decimal.Zero
	lines := make([]StatementLine, 0, len(transactions))

	for _, t := range transactions {
		direction := StatementDebit
		if t.Credits(account.AccountNumber) {
			direction = StatementCredit
			totalCredits = totalCredits.Add(t.Amount)
			running = running.Add(t.Amount)
		} else {
			totalDebits = totalDebits.Add(t.Amount)
			running = running.Sub(t.Amount)
		}

		lines = append(lines, StatementLine{
			TransactionID:  t.TransactionID,
			Date:           t.CreatedAt,
			Description:    lineDescription(t, direction),
			Direction:      direction,
			Amount:         t.Amount,
			RunningBalance: running,
		})
	}

	return &Statement{
		StatementID:      NewStatementID(),
		AccountID:        account.ID,
		AccountNumber:    account.AccountNumber,
		StartDate:        start,
		EndDate:          end,
		OpeningBalance:   opening,
		ClosingBalance:   running,
		TotalCredits:     totalCredits,
		TotalDebits:      totalDebits,
		TransactionCount: len(transactions),
		Lines:            lines,
		Currency:         account.Currency,
		GeneratedAt:      time.Now(),
	}
}

// lineDescription 交易描述為空時，補上「類型 - 對手帳號」的預設描述
func lineDescription(t *Transaction, direction StatementDirection) string {
	if t.Description != "" {
		return t.Description
	}
	if direction == StatementCredit {
		return fmt.Sprintf("%s - From %s", t.Type, t.FromAccount)
	}
	return fmt.Sprintf("%s - To %s", t.Type, t.ToAccount)
}
