package dto

// ProfileUpdateRequest rebuilds a user's profile from ratings at or above MinRating.
type ProfileUpdateRequest struct {
	MinRating int `json:"min_rating,omitempty"`
}

// RatingRequest records a user's rating of an item.
type RatingRequest struct {
	ItemID int64 `json:"item_id"`
	Rating int   `json:"rating"`
}

// StatusResponse acknowledges a write.
type StatusResponse struct {
	Status string `json:"status"`
}

// ChatMessage is one earlier turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest asks the assistant for recommendations.
type ChatRequest struct {
	UserID  string        `json:"user_id,omitempty"`
	Message string        `json:"message"`
	History []ChatMessage `json:"history,omitempty"`
}

// ChatResponse is the assistant's reply and the movies it drew on.
type ChatResponse struct {
	Reply  string      `json:"reply"`
	Mood   string      `json:"mood,omitempty"`
	Movies []MovieData `json:"movies"`
}
