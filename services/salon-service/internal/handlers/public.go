package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

type slotsResponse struct {
	StaffID         string     `json:"staff_id"`
	Date            string     `json:"date"`
	DurationMinutes int        `json:"duration_minutes"`
	Total           string     `json:"total"`
	Slots           []slotItem `json:"slots"`
}

type createBookingRequest struct {
	StaffID       string   `json:"staff_id"`
	ServiceIDs    []string `json:"service_ids"`
	StartTime     string   `json:"start_time"`
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	CustomerPhone string   `json:"customer_phone"`
}

type createBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	RedirectURL   string `json:"redirect_url"`
	VerifyToken   string `json:"verify_token"`
	Deposit       string `json:"deposit"`
	Reused        bool   `json:"reused"`
}

type verifyResponse struct {
	Outcome     string          `json:"outcome"`
	Appointment appointmentItem `json:"appointment"`
}

// Slots answers GET /api/v1/public/slots?staff_id=&service_ids=a,b&date=YYYY-MM-DD.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request, rc booking.RequestContext) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	staffID := strings.TrimSpace(q.Get("staff_id"))
	if staffID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "staff_id is required", map[string]any{"field": "staff_id"})
		return
	}
	serviceIDs := splitIDs(q.Get("service_ids"))
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(q.Get("date")), h.loc)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", map[string]any{"field": "date"})
		return
	}

	slots, quote, err := h.bookings.ListAvailableSlots(r.Context(), rc, staffID, serviceIDs, day)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.Start.In(h.loc).Format(time.RFC3339),
			EndTime:   s.End.In(h.loc).Format(time.RFC3339),
			Available: s.Available,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		StaffID:         staffID,
		Date:            day.Format("2006-01-02"),
		DurationMinutes: int(quote.Duration / time.Minute),
		Total:           quote.TotalCents.String(),
		Slots:           items,
	})
}

// CreateBooking answers POST /api/v1/public/bookings. Signed-in customers book
// under their account; everyone else books as a guest.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request, rc booking.RequestContext) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body", nil)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "start_time must be RFC3339", map[string]any{"field": "start_time"})
		return
	}

	res, err := h.bookings.Book(r.Context(), rc, booking.BookingRequest{
		StaffID:    req.StaffID,
		ServiceIDs: req.ServiceIDs,
		Start:      start,
		Customer: model.Customer{
			Name:  req.CustomerName,
			Email: req.CustomerEmail,
			Phone: req.CustomerPhone,
		},
	})
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	code := http.StatusCreated
	if res.Reused {
		code = http.StatusOK
	}
	httpx.WriteJSON(w, code, createBookingResponse{
		AppointmentID: res.AppointmentID,
		Status:        string(res.Appointment.Status),
		RedirectURL:   res.RedirectURL,
		VerifyToken:   res.VerifyToken,
		Deposit:       res.Appointment.DepositCents.String(),
		Reused:        res.Reused,
	})
}

// VerifyBooking answers GET /api/v1/public/bookings/verify?appointment_id=&token=.
// The customer's browser polls it after returning from checkout.
func (h *Handler) VerifyBooking(w http.ResponseWriter, r *http.Request, rc booking.RequestContext) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	id := strings.TrimSpace(q.Get("appointment_id"))
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, "appointment_id is required", map[string]any{"field": "appointment_id"})
		return
	}
	outcome, appt, err := h.bookings.VerifySession(r.Context(), rc, id, strings.TrimSpace(q.Get("token")))
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, verifyResponse{
		Outcome:     string(outcome),
		Appointment: toAppointmentItem(appt, h.loc),
	})
}

func splitIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
