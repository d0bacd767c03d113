package outbox

import "encoding/json"

const (
	AggregateAppointment = "appointment"

	EventAppointmentBooked        = "salon.appointment.booked.v1"
	EventAppointmentConfirmed     = "salon.appointment.confirmed.v1"
	EventAppointmentCancelled     = "salon.appointment.cancelled.v1"
	EventAppointmentCompleted     = "salon.appointment.completed.v1"
	EventAppointmentNoShow        = "salon.appointment.no_show.v1"
	EventAppointmentPaymentOrphan = "salon.appointment.payment_orphaned.v1"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (one topic per event type).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewAppointmentEvent encodes payload as JSON for an appointment aggregate.
func NewAppointmentEvent(appointmentID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   appointmentID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
