package api

import "time"

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// DeliveryItem is one entry in GET /api/v1/deliveries.
type DeliveryItem struct {
	ID          string    `json:"id"`
	ChatID      int64     `json:"chat_id,omitempty"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash,omitempty"`
	Status      string    `json:"status"` // running, done, failed
	Detail      string    `json:"detail,omitempty"`
	Transcoded  int       `json:"transcoded"`
	Original    int       `json:"original"`
	Failed      int       `json:"failed"`
	Removed     bool      `json:"removed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
