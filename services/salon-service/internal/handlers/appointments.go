package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

type lineItem struct {
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
}

type appointmentItem struct {
	AppointmentID    string     `json:"appointment_id"`
	StaffID          string     `json:"staff_id"`
	CustomerID       string     `json:"customer_id,omitempty"`
	CustomerName     string     `json:"customer_name"`
	CustomerEmail    string     `json:"customer_email,omitempty"`
	StartTime        string     `json:"start_time"`
	EndTime          string     `json:"end_time"`
	Status           string     `json:"status"`
	Total            string     `json:"total"`
	Deposit          string     `json:"deposit"`
	DepositPaid      bool       `json:"deposit_paid"`
	PaymentReference string     `json:"payment_reference,omitempty"`
	CancelReason     string     `json:"cancel_reason,omitempty"`
	Services         []lineItem `json:"services,omitempty"`
	CreatedAt        string     `json:"created_at"`
}

type listAppointmentsResponse struct {
	Appointments []appointmentItem `json:"appointments"`
}

type transitionRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

func toAppointmentItem(a model.Appointment, loc *time.Location) appointmentItem {
	item := appointmentItem{
		AppointmentID:    a.ID,
		StaffID:          a.StaffID,
		CustomerID:       a.Customer.ID,
		CustomerName:     a.Customer.Name,
		CustomerEmail:    a.Customer.Email,
		StartTime:        a.StartTime.In(loc).Format(time.RFC3339),
		EndTime:          a.EndTime.In(loc).Format(time.RFC3339),
		Status:           string(a.Status),
		Total:            a.TotalCents.String(),
		Deposit:          a.DepositCents.String(),
		DepositPaid:      a.DepositPaid,
		PaymentReference: a.PaymentReference,
		CancelReason:     a.CancelReason,
	}
	if !a.CreatedAt.IsZero() {
		item.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	for _, li := range a.Items {
		item.Services = append(item.Services, lineItem{
			ServiceID:       li.ServiceID,
			Name:            li.Name,
			DurationMinutes: li.DurationMinutes,
			Price:           li.PriceCents.String(),
		})
	}
	return item
}

// ListAppointments answers GET /api/v1/appointments?staff_id=&status=&from=&to=&limit=.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request, rc booking.RequestContext) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	f := booking.ListFilter{StaffID: strings.TrimSpace(q.Get("staff_id"))}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := model.ParseStatus(raw)
		if !ok {
			httpx.WriteError(w, http.StatusBadRequest, "invalid status", map[string]any{"field": "status"})
			return
		}
		f.Status = status
	}
	var err error
	if f.From, err = parseOptionalTime(q.Get("from")); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "from must be RFC3339", map[string]any{"field": "from"})
		return
	}
	if f.To, err = parseOptionalTime(q.Get("to")); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "to must be RFC3339", map[string]any{"field": "to"})
		return
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpx.WriteError(w, http.StatusBadRequest, "limit must be a positive integer", map[string]any{"field": "limit"})
			return
		}
		f.Limit = n
	}

	appts, err := h.bookings.List(r.Context(), rc, f)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a, h.loc))
	}
	httpx.WriteJSON(w, http.StatusOK, listAppointmentsResponse{Appointments: items})
}

func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request, rc booking.RequestContext) {
	h.transition(w, r, func(ctx context.Context, req transitionRequest) (model.Appointment, error) {
		return h.bookings.Cancel(ctx, rc, req.AppointmentID, req.Reason)
	})
}

func (h *Handler) CompleteAppointment(w http.ResponseWriter, r *http.Request, rc booking.RequestContext) {
	h.transition(w, r, func(ctx context.Context, req transitionRequest) (model.Appointment, error) {
		return h.bookings.Complete(ctx, rc, req.AppointmentID)
	})
}

func (h *Handler) NoShowAppointment(w http.ResponseWriter, r *http.Request, rc booking.RequestContext) {
	h.transition(w, r, func(ctx context.Context, req transitionRequest) (model.Appointment, error) {
		return h.bookings.MarkNoShow(ctx, rc, req.AppointmentID)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, transitionRequest) (model.Appointment, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body", nil)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AppointmentID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "appointment_id is required", map[string]any{"field": "appointment_id"})
		return
	}
	appt, err := apply(r.Context(), req)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentItem(appt, h.loc))
}

func parseOptionalTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
