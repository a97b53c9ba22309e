package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// Server 是帳務引擎的 REST in-adapter
// 身分驗證與授權由外部的 gateway 處理，進到這裡的請求一律視為已授權
type Server struct {
	ledger     *usecase.LedgerUseCase
	statements *usecase.StatementUseCase
	logger     *zap.Logger
}

func NewServer(ledger *usecase.LedgerUseCase, statements *usecase.StatementUseCase, logger *zap.Logger) *Server {
	return &Server{
		ledger:     ledger,
		statements: statements,
		logger:     logger,
	}
}

// Routes 掛載所有端點
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/transactions/transfer", s.handleTransfer)
	mux.HandleFunc("POST /api/transactions/deposit", s.handleDeposit)
	mux.HandleFunc("POST /api/transactions/withdraw", s.handleWithdraw)
	mux.HandleFunc("GET /api/transactions/history", s.handleHistory)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("POST /api/statements", s.handleGenerateStatement)
	mux.HandleFunc("GET /api/statements/{id}", s.handleGetStatement)
	mux.HandleFunc("GET /api/statements/account/{accountId}", s.handleStatementsByAccount)
	return mux
}

type transferRequest struct {
	FromAccount string          `json:"fromAccount"`
	ToAccount   string          `json:"toAccount"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type accountAmountRequest struct {
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

type statementRequest struct {
	AccountID int64  `json:"accountId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type transactionResponse struct {
	TransactionID string          `json:"transactionId"`
	FromAccount   string          `json:"fromAccount"`
	ToAccount     string          `json:"toAccount"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type statementLineResponse struct {
	TransactionID string          `json:"transactionId"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Balance       decimal.Decimal `json:"balance"`
}

type statementResponse struct {
	StatementID      string                  `json:"statementId"`
	AccountID        int64                   `json:"accountId"`
	AccountNumber    string                  `json:"accountNumber"`
	StartDate        time.Time               `json:"startDate"`
	EndDate          time.Time               `json:"endDate"`
	OpeningBalance   decimal.Decimal         `json:"openingBalance"`
	ClosingBalance   decimal.Decimal         `json:"closingBalance"`
	TotalCredits     decimal.Decimal         `json:"totalCredits"`
	TotalDebits      decimal.Decimal         `json:"totalDebits"`
	TransactionCount int                     `json:"transactionCount"`
	Transactions     []statementLineResponse `json:"transactions"`
	Currency         string                  `json:"currency"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tran, err := s.ledger.Transfer(r.Context(), req.FromAccount, req.ToAccount, req.Amount, req.Description)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tran))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req accountAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tran, err := s.ledger.Deposit(r.Context(), req.AccountNumber, req.Amount, req.Description)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tran))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req accountAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tran, err := s.ledger.Withdraw(r.Context(), req.AccountNumber, req.Amount, req.Description)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tran))
}

// handleHistory 交易歷史查詢: ?accounts=A,B&page=1&limit=20&startDate=&endDate=
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accounts := strings.Split(q.Get("accounts"), ",")
	numbers := make([]string, 0, len(accounts))
	for _, number := range accounts {
		if number = strings.TrimSpace(number); number != "" {
			numbers = append(numbers, number)
		}
	}

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	var startTime, endTime *time.Time
	if raw := q.Get("startDate"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid startDate")
			return
		}
		startTime = &t
	}
	if raw := q.Get("endDate"); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endDate")
			return
		}
		endTime = &t
	}

	transactions, total, err := s.ledger.History(r.Context(), numbers, startTime, endTime, page, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	items := make([]transactionResponse, 0, len(transactions))
	for _, tran := range transactions {
		items = append(items, toTransactionResponse(tran))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": items,
		"total":        total,
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tran, err := s.ledger.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tran))
}

func (s *Server) handleGenerateStatement(w http.ResponseWriter, r *http.Request) {
	var req statementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format")
		return
	}

	statement, err := s.statements.Generate(r.Context(), req.AccountID, start, end)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStatementResponse(statement))
}

func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	statement, err := s.statements.GetStatement(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementResponse(statement))
}

func (s *Server) handleStatementsByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(r.PathValue("accountId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	statements, err := s.statements.StatementsByAccount(r.Context(), accountID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	items := make([]statementResponse, 0, len(statements))
	for _, statement := range statements {
		items = append(items, toStatementResponse(statement))
	}
	writeJSON(w, http.StatusOK, map[string]any{"statements": items})
}

// writeDomainError 把 domain 錯誤對應到 HTTP 狀態碼
// 非預期錯誤記 log 後回傳一般性訊息，不洩漏內部細節
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAmountMustBePositive),
		errors.Is(err, domain.ErrSameAccountTransfer),
		errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrAccountNotActive),
		errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrStatementNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toTransactionResponse(tran *domain.Transaction) transactionResponse {
	return transactionResponse{
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
}

func toStatementResponse(statement *domain.Statement) statementResponse {
	lines := make([]statementLineResponse, 0, len(statement.Lines))
	for _, line := range statement.Lines {
		lines = append(lines, statementLineResponse{
			TransactionID: line.TransactionID,
			Date:          line.Date,
			Description:   line.Description,
			Type:          string(line.Direction),
			Amount:        line.Amount,
			Balance:       line.RunningBalance,
		})
	}
	return statementResponse{
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
		Transactions:     lines,
		Currency:         statement.Currency,
	}
}

// parseDate 接受 RFC3339 或 yyyy-mm-dd
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
