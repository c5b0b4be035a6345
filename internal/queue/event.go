// Package queue defines the messages exchanged over RabbitMQ and the
// background consumer that records them.
package queue

// EntrySubmittedQueue is the durable queue entry events are published to.
const EntrySubmittedQueue = "entry.submitted"

// EntrySubmittedEvent is published after the backend accepted a farm record.
// It carries enough for downstream consumers to log or notify without
// calling the backend again.
type EntrySubmittedEvent struct {
	EventID     string `json:"event_id"`
	BatchID     string `json:"batch_id"`
	UserID      string `json:"user_id"`
	UserRole    string `json:"user_role"`
	FarmName    string `json:"farm_name"`
	ProductType string `json:"product_type"`
	HarvestDate string `json:"harvest_date"`
	Status      string `json:"status"`
	TxHash      string `json:"txHash"`
	SubmittedAt string `json:"submitted_at"`
}
