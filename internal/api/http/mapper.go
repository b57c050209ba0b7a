package http

import (
	"time"

	"outstanding-ledger-backend/internal/domain"
	"outstanding-ledger-backend/internal/utils"
)

type outstandingResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	OrderID       string    `json:"orderId,omitempty"`
	InvoiceNumber string    `json:"invoiceNumber,omitempty"`
	Amount        string    `json:"amount"`
	ClearedAmount string    `json:"clearedAmount"`
	PendingAmount string    `json:"pendingAmount"`
	DueDate       *string   `json:"dueDate"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes"`
	Version       int32     `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type paymentHistoryResponse struct {
	ID            string    `json:"id"`
	OutstandingID string    `json:"outstandingId"`
	UserID        string    `json:"userId"`
	Amount        string    `json:"amount"`
	PaymentMethod string    `json:"paymentMethod"`
	TransactionID string    `json:"transactionId,omitempty"`
	Description   string    `json:"description,omitempty"`
	PaymentDate   string    `json:"paymentDate"`
	CreatedAt     time.Time `json:"createdAt"`
}

type paymentResponse struct {
	Outstanding outstandingResponse    `json:"outstanding"`
	Payment     paymentHistoryResponse `json:"payment"`
}

type listOutstandingResponse struct {
	Outstanding []outstandingResponse `json:"outstanding"`
	TotalCount  int                   `json:"totalCount"`
}

type listHistoryResponse struct {
	History    []paymentHistoryResponse `json:"history"`
	TotalCount int                      `json:"totalCount"`
}

type summaryResponse struct {
	TotalAmount  string           `json:"totalAmount"`
	TotalPending string           `json:"totalPending"`
	TotalCleared string           `json:"totalCleared"`
	TotalCount   int32            `json:"totalCount"`
	StatusCount  map[string]int32 `json:"statusCount"`
}

func mapOutstanding(r *domain.OutstandingRecord) outstandingResponse {
	resp := outstandingResponse{
		ID:            r.ID,
		UserID:        r.UserID,
		OrderID:       r.OrderID,
		InvoiceNumber: r.InvoiceNumber,
		Amount:        r.Amount.StringFixed(utils.MoneyPlaces),
		ClearedAmount: r.ClearedAmount.StringFixed(utils.MoneyPlaces),
		PendingAmount: r.PendingAmount.StringFixed(utils.MoneyPlaces),
		Status:        string(r.Status),
		Notes:         r.Notes,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.DueDate != nil {
		due := r.DueDate.Format(utils.DateLayout)
		resp.DueDate = &due
	}
	return resp
}

func mapPaymentHistory(e *domain.PaymentHistoryEntry) paymentHistoryResponse {
	return paymentHistoryResponse{
		ID:            e.ID,
		OutstandingID: e.OutstandingID,
		UserID:        e.UserID,
		Amount:        e.Amount.StringFixed(utils.MoneyPlaces),
		PaymentMethod: string(e.PaymentMethod),
		TransactionID: e.TransactionID,
		Description:   e.Description,
		PaymentDate:   e.PaymentDate.Format(utils.DateLayout),
		CreatedAt:     e.CreatedAt,
	}
}

func mapSummary(s *domain.OutstandingSummary) summaryResponse {
	counts := map[string]int32{
		string(domain.OutstandingStatusPending): 0,
		string(domain.OutstandingStatusPartial): 0,
		string(domain.OutstandingStatusOverdue): 0,
		string(domain.OutstandingStatusCleared): 0,
	}
	for status, n := range s.StatusCount {
		counts[string(status)] = n
	}
	return summaryResponse{
		TotalAmount:  s.TotalAmount.StringFixed(utils.MoneyPlaces),
		TotalPending: s.TotalPending.StringFixed(utils.MoneyPlaces),
		TotalCleared: s.TotalCleared.StringFixed(utils.MoneyPlaces),
		TotalCount:   s.TotalCount,
		StatusCount:  counts,
	}
}
