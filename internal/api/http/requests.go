package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"outstanding-ledger-backend/internal/domain"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json names so messages match what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Amount accepts either a JSON number (400, 99.5) or a JSON string ("1,250.00").
// The service does the parsing, so the raw text is kept as is.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("amount must be a number or a numeric string")
	}
	*a = Amount(n.String())
	return nil
}

type createOutstandingRequest struct {
	UserID        string `json:"userId" validate:"required,max=128"`
	OrderID       string `json:"orderId" validate:"max=128"`
	InvoiceNumber string `json:"invoiceNumber" validate:"max=128"`
	Amount        Amount `json:"amount" validate:"required"`
	DueDate       string `json:"dueDate"`
	Notes         string `json:"notes" validate:"max=4000"`
}

// updateOutstandingRequest fields are optional; an explicit empty dueDate clears it.
type updateOutstandingRequest struct {
	OrderID       *string `json:"orderId" validate:"omitempty,max=128"`
	InvoiceNumber *string `json:"invoiceNumber" validate:"omitempty,max=128"`
	Notes         *string `json:"notes" validate:"omitempty,max=4000"`
	DueDate       *string `json:"dueDate"`
	Amount        *Amount `json:"amount"`
	PendingAmount *Amount `json:"pendingAmount"`
}

type applyPaymentRequest struct {
	Amount        Amount `json:"amount" validate:"required"`
	PaymentMethod string `json:"paymentMethod"`
	TransactionID string `json:"transactionId" validate:"max=128"`
	Description   string `json:"description" validate:"max=1000"`
	PaymentDate   string `json:"paymentDate"`
}

// decodeAndValidate reads a JSON body into dst and runs the struct tags.
// Every failure is reported as a VALIDATION_ERROR.
func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewError(domain.KindValidation, "request body is required")
		}
		return domain.WrapError(domain.KindValidation, err, "invalid request body")
	}

	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return domain.NewError(domain.KindValidation, "invalid fields: %s", strings.Join(fields, ", "))
		}
		return domain.WrapError(domain.KindValidation, err, "invalid request")
	}
	return nil
}

func amountPtr(a *Amount) *string {
	if a == nil {
		return nil
	}
	s := string(*a)
	return &s
}
