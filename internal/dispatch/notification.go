package dispatch

import (
	"encoding/json"
	"time"

	"github.com/medtrack/go-adherence/internal/domain/adherence"
)

// Notification is the payload handed to delivery providers. It deliberately
// carries no wire-format details; provider-specific rendering happens
// downstream of the channel topics.
type Notification struct {
	RecordID       string    `json:"record_id"`
	MedicationID   string    `json:"medication_id"`
	OwnerID        string    `json:"owner_id"`
	MedicationName string    `json:"medication_name"`
	Strength       string    `json:"strength,omitempty"`
	Channel        Channel   `json:"channel"`
	DueAt          time.Time `json:"due_at"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

// NewNotification builds a payload for one record and channel.
func NewNotification(rec *adherence.Record, med adherence.Summary, ch Channel, now time.Time) Notification {
	return Notification{
		RecordID:       rec.ID,
		MedicationID:   rec.MedicationID,
		OwnerID:        med.OwnerID,
		MedicationName: med.Name,
		Strength:       med.Strength,
		Channel:        ch,
		DueAt:          rec.DueAt,
		EnqueuedAt:     now,
	}
}

// Marshal encodes the notification for the outbox.
func (n Notification) Marshal() ([]byte, error) {
	return json.Marshal(n)
}
