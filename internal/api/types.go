package api

import "time"

// Card is the wire form of a directory card.
type Card struct {
	ID             string    `json:"id"`
	Identity       string    `json:"identity"`
	PublicKey      []byte    `json:"public_key"`
	PreviousCardID string    `json:"previous_card_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// PublishCardRequest represents the POST /v1/cards request.
type PublishCardRequest struct {
	Identity       string `json:"identity"`
	PublicKey      []byte `json:"public_key"`
	PreviousCardID string `json:"previous_card_id,omitempty"`
}

// SearchCardsRequest represents the POST /v1/cards/actions/search request.
type SearchCardsRequest struct {
	Identities []string `json:"identities"`
}

// SearchCardsResponse represents the card search response. Identities
// without a card are absent.
type SearchCardsResponse struct {
	Cards []Card `json:"cards"`
}

// Entry is the wire form of a versioned cloud key entry.
type Entry struct {
	Identity  string    `json:"identity"`
	Name      string    `json:"name"`
	Data      []byte    `json:"data"`
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PutEntryRequest represents the PUT /v1/keyknox/{identity}/{name} request.
// An empty ExpectedVersion makes the write create-only.
type PutEntryRequest struct {
	Data            []byte `json:"data"`
	ExpectedVersion string `json:"expected_version,omitempty"`
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse represents the /healthz response.
type HealthResponse struct {
	Status string `json:"status"`
}
