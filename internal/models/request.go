package models

import "time"

type ItemRequest struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	RequesterID int64     `json:"requesterId"`
	Created     time.Time `json:"created"`
}

// RequestDetail is a request decorated with the items created to fulfil it.
type RequestDetail struct {
	ItemRequest
	Items []Item `json:"items"`
}
