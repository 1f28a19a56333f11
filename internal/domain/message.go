package domain

import "time"

// Message es un mensaje inmutable dentro de un chat. Seq define el orden.
type Message struct {
	ID          string
	ChatID      string
	Seq         int64
	SenderID    string
	RecipientID string
	Text        string
	Timestamp   time.Time
}
