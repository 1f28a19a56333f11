package domain

import "time"

// Chat es la conversacion unica entre dos participantes.
// UserID1/UserID2 conservan el orden remitente/destinatario de la creacion.
type Chat struct {
	ID          string
	UserID1     string
	UserID2     string
	LastMessage string
	LastSeq     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasParticipant indica si userID es alguno de los dos participantes.
func (c Chat) HasParticipant(userID string) bool {
	return c.UserID1 == userID || c.UserID2 == userID
}
