package client

import "time"

// Profile mirrors the account view returned by /profile and login.
type Profile struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Avatar      *string `json:"avatar"`
	HasPassword bool    `json:"hasPassword"`
}

type Session struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

// Memory mirrors the memory view. URLs are presigned and expire.
type Memory struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  *string   `json:"description,omitempty"`
	MemoryDate   string    `json:"memoryDate"`
	Location     *string   `json:"location,omitempty"`
	Mood         string    `json:"mood"`
	Visibility   string    `json:"visibility"`
	MediaType    string    `json:"mediaType"`
	MediaURL     string    `json:"mediaURL"`
	AllMediaURLs []string  `json:"allMediaURLs"`
	PhotoCount   int       `json:"photoCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Message struct {
	Message string `json:"message"`
}
