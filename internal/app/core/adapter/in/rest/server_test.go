package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// newTestServer 以記憶體帳本組出完整的 REST server
func newTestServer(t *testing.T, accounts ...*domain.Account) *httptest.Server {
	t.Helper()
	ledger, err := memory.NewMemoryLedger(accounts, nil)
	require.NoError(t, err)
	logger := zap.NewNop()
	uc := usecase.NewLedgerUseCase(ledger, logger, nil, usecase.Config{RetryBackoff: time.Millisecond})
	statements := usecase.NewStatementUseCase(ledger, logger, nil)
	server := httptest.NewServer(NewServer(uc, statements, logger).Routes())
	t.Cleanup(server.Close)
	return server
}

func active(id int64, number string, balance int64) *domain.Account {
	return domain.NewAccount(id, number, id, decimal.NewFromInt(balance), "USD")
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// TestTransferEndpoint 轉帳成功: 201 與交易紀錄
func TestTransferEndpoint(t *testing.T) {
	server := newTestServer(t, active(1, "ACC-A", 1000), active(2, "ACC-B", 0))

	resp := postJSON(t, server.URL+"/api/transactions/transfer", map[string]any{
		"fromAccount": "ACC-A",
		"toAccount":   "ACC-B",
		"amount":      200,
		"description": "rent",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var tran transactionResponse
	decode(t, resp, &tran)
	assert.NotEmpty(t, tran.TransactionID)
	assert.Equal(t, "ACC-A", tran.FromAccount)
	assert.Equal(t, "ACC-B", tran.ToAccount)
	assert.True(t, tran.Amount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "transfer", tran.Type)
	assert.Equal(t, "completed", tran.Status)
	assert.Equal(t, "rent", tran.Description)
	assert.Equal(t, "USD", tran.Currency)
}

// TestTransferErrors 錯誤對應: 400 / 404
func TestTransferErrors(t *testing.T) {
	server := newTestServer(t, active(1, "ACC-A", 100), active(2, "ACC-B", 0))

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"insufficient balance", map[string]any{"fromAccount": "ACC-A", "toAccount": "ACC-B", "amount": 500}, http.StatusBadRequest},
		{"zero amount", map[string]any{"fromAccount": "ACC-A", "toAccount": "ACC-B", "amount": 0}, http.StatusBadRequest},
		{"negative amount", map[string]any{"fromAccount": "ACC-A", "toAccount": "ACC-B", "amount": -5}, http.StatusBadRequest},
		{"same account", map[string]any{"fromAccount": "ACC-A", "toAccount": "ACC-A", "amount": 10}, http.StatusBadRequest},
		{"unknown account", map[string]any{"fromAccount": "ACC-A", "toAccount": "ACC-X", "amount": 10}, http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp := postJSON(t, server.URL+"/api/transactions/transfer", c.body)
			defer resp.Body.Close()
			require.Equal(t, c.want, resp.StatusCode)
		})
	}
}

// TestDepositWithdrawEndpoints 存款 / 提款與 EXTERNAL sentinel
func TestDepositWithdrawEndpoints(t *testing.T) {
	server := newTestServer(t, active(1, "ACC-A", 100))

	resp := postJSON(t, server.URL+"/api/transactions/deposit", map[string]any{
		"accountNumber": "ACC-A",
		"amount":        50,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var deposit transactionResponse
	decode(t, resp, &deposit)
	assert.Equal(t, domain.ExternalAccount, deposit.FromAccount)
	assert.Equal(t, "Cash deposit", deposit.Description)

	resp = postJSON(t, server.URL+"/api/transactions/withdraw", map[string]any{
		"accountNumber": "ACC-A",
		"amount":        30,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var withdrawal transactionResponse
	decode(t, resp, &withdrawal)
	assert.Equal(t, domain.ExternalAccount, withdrawal.ToAccount)

	// 超額提款
	resp = postJSON(t, server.URL+"/api/transactions/withdraw", map[string]any{
		"accountNumber": "ACC-A",
		"amount":        10000,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestHistoryEndpoint 歷史查詢與分頁
func TestHistoryEndpoint(t *testing.T) {
	server := newTestServer(t, active(1, "ACC-A", 1000))

	for i := 0; i < 3; i++ {
		resp := postJSON(t, server.URL+"/api/transactions/deposit", map[string]any{
			"accountNumber": "ACC-A",
			"amount":        i + 1,
		})
		resp.Body.Close()
	}

	resp, err := http.Get(server.URL + "/api/transactions/history?accounts=ACC-A&page=1&limit=2")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		Transactions []transactionResponse `json:"transactions"`
		Total        int64                 `json:"total"`
	}
	decode(t, resp, &history)
	require.EqualValues(t, 3, history.Total)
	require.Len(t, history.Transactions, 2)
	// 由新到舊
	assert.True(t, history.Transactions[0].Amount.Equal(decimal.NewFromInt(3)))
}

// TestStatementEndpoints 產生對帳單並取回
func TestStatementEndpoints(t *testing.T) {
	server := newTestServer(t, active(1, "ACC-A", 1000), active(2, "ACC-B", 0))

	resp := postJSON(t, server.URL+"/api/transactions/transfer", map[string]any{
		"fromAccount": "ACC-A", "toAccount": "ACC-B", "amount": 250,
	})
	resp.Body.Close()

	start := time.Now().Add(-time.Hour).Format(time.RFC3339)
	end := time.Now().Add(time.Hour).Format(time.RFC3339)
	resp = postJSON(t, server.URL+"/api/statements", map[string]any{
		"accountId": 2, "startDate": start, "endDate": end,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var statement statementResponse
	decode(t, resp, &statement)
	assert.NotEmpty(t, statement.StatementID)
	assert.True(t, statement.OpeningBalance.IsZero())
	assert.True(t, statement.ClosingBalance.Equal(decimal.NewFromInt(250)))
	require.Len(t, statement.Transactions, 1)
	assert.Equal(t, "credit", statement.Transactions[0].Type)

	// 依編號取回
	getResp, err := http.Get(server.URL + "/api/statements/" + statement.StatementID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	getResp.Body.Close()

	// 依帳戶列出
	listResp, err := http.Get(fmt.Sprintf("%s/api/statements/account/%d", server.URL, 2))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var list struct {
		Statements []statementResponse `json:"statements"`
	}
	decode(t, listResp, &list)
	require.Len(t, list.Statements, 1)

	// 不合法的區間
	badResp := postJSON(t, server.URL+"/api/statements", map[string]any{
		"accountId": 2, "startDate": end, "endDate": start,
	})
	defer badResp.Body.Close()
	require.Equal(t, http.StatusBadRequest, badResp.StatusCode)

	// 查無帳戶
	missingResp := postJSON(t, server.URL+"/api/statements", map[string]any{
		"accountId": 99, "startDate": start, "endDate": end,
	})
	defer missingResp.Body.Close()
	require.Equal(t, http.StatusNotFound, missingResp.StatusCode)
}
