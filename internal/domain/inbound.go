package domain

// PhotoRef points at a photo held by the chat platform.
type PhotoRef struct {
	FileID string
	Size   int
}

// Inbound is a transport-neutral incoming chat message.
type Inbound struct {
	SenderID   int64
	SenderName string
	ChatID     int64
	MessageID  int
	Text       string
	Caption    string
	Photo      *PhotoRef
}
