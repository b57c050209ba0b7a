package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"outstanding-ledger-backend/internal/domain"
	"outstanding-ledger-backend/internal/service"
)

// OutstandingHandler exposes the ledger facade over HTTP/JSON.
type OutstandingHandler struct {
	svc service.OutstandingService
}

func NewOutstandingHandler(svc service.OutstandingService) *OutstandingHandler {
	return &OutstandingHandler{svc: svc}
}

// NewRouter builds the complete API router with logging and panic recovery.
func NewRouter(svc service.OutstandingService) *mux.Router {
	router := mux.NewRouter()
	router.Use(recoverPanics, requestLogger)
	router.HandleFunc("/healthz", handleHealth).Methods("GET")
	RegisterOutstandingRoutes(router, svc)
	return router
}

// RegisterOutstandingRoutes registers the outstanding ledger endpoints.
func RegisterOutstandingRoutes(router *mux.Router, svc service.OutstandingService) {
	h := NewOutstandingHandler(svc)
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/outstanding", h.List).Methods("GET")
	api.HandleFunc("/outstanding", h.Create).Methods("POST")
	api.HandleFunc("/outstanding/summary", h.Summary).Methods("GET")
	api.HandleFunc("/outstanding/{id}", h.Get).Methods("GET")
	api.HandleFunc("/outstanding/{id}", h.Update).Methods("PUT")
	api.HandleFunc("/outstanding/{id}", h.Delete).Methods("DELETE")
	api.HandleFunc("/outstanding/{id}/payments", h.ApplyPayment).Methods("POST")
	api.HandleFunc("/outstanding/{id}/history", h.RecordHistory).Methods("GET")
	api.HandleFunc("/payment-history", h.History).Methods("GET")
	api.HandleFunc("/payment-history/{id}", h.DeleteHistoryEntry).Methods("DELETE")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *OutstandingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := h.svc.List(r.Context(), service.ListOutstandingInput{
		Status: q.Get("status"),
		UserID: q.Get("userId"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]outstandingResponse, len(records))
	for i := range records {
		out[i] = mapOutstanding(&records[i])
	}
	writeJSON(w, http.StatusOK, listOutstandingResponse{Outstanding: out, TotalCount: len(out)})
}

func (h *OutstandingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOutstandingRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.svc.Create(r.Context(), service.CreateOutstandingInput{
		UserID:        req.UserID,
		OrderID:       req.OrderID,
		InvoiceNumber: req.InvoiceNumber,
		Amount:        string(req.Amount),
		DueDate:       req.DueDate,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOutstanding(rec))
}

func (h *OutstandingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := h.svc.GetSummary(r.Context(), service.ListOutstandingInput{
		Status: q.Get("status"),
		UserID: q.Get("userId"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSummary(summary))
}

func (h *OutstandingHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOutstanding(rec))
}

func (h *OutstandingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateOutstandingRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.svc.Update(r.Context(), mux.Vars(r)["id"], service.UpdateOutstandingInput{
		OrderID:       req.OrderID,
		InvoiceNumber: req.InvoiceNumber,
		Notes:         req.Notes,
		DueDate:       req.DueDate,
		Amount:        amountPtr(req.Amount),
		PendingAmount: amountPtr(req.PendingAmount),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOutstanding(rec))
}

func (h *OutstandingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	cascade := false
	if raw := r.URL.Query().Get("cascade"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, domain.NewError(domain.KindValidation, "cascade must be true or false"))
			return
		}
		cascade = v
	}

	if err := h.svc.Delete(r.Context(), mux.Vars(r)["id"], cascade); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OutstandingHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	var req applyPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	rec, entry, err := h.svc.ApplyPayment(r.Context(), service.ApplyPaymentInput{
		OutstandingID: mux.Vars(r)["id"],
		Amount:        string(req.Amount),
		Method:        req.PaymentMethod,
		TransactionID: req.TransactionID,
		Description:   req.Description,
		PaymentDate:   req.PaymentDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{
		Outstanding: mapOutstanding(rec),
		Payment:     mapPaymentHistory(entry),
	})
}

func (h *OutstandingHandler) RecordHistory(w http.ResponseWriter, r *http.Request) {
	h.writeHistory(w, r, service.HistoryInput{OutstandingID: mux.Vars(r)["id"]})
}

func (h *OutstandingHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.writeHistory(w, r, service.HistoryInput{
		OutstandingID: q.Get("outstandingId"),
		UserID:        q.Get("userId"),
		Type:          q.Get("type"),
	})
}

func (h *OutstandingHandler) writeHistory(w http.ResponseWriter, r *http.Request, in service.HistoryInput) {
	entries, err := h.svc.GetHistory(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]paymentHistoryResponse, len(entries))
	for i := range entries {
		out[i] = mapPaymentHistory(&entries[i])
	}
	writeJSON(w, http.StatusOK, listHistoryResponse{History: out, TotalCount: len(out)})
}

func (h *OutstandingHandler) DeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.DeleteHistoryEntry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOutstanding(rec))
}
