package domain

import "time"

// User es la identidad registrada de un participante.
type User struct {
	ID           string    `json:"id"`
	ExternalID   string    `json:"externalId"`
	CustomUserID string    `json:"customUserId"`
	CreatedAt    time.Time `json:"createdAt"`
}
