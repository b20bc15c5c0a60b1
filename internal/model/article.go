package model

import "time"

// Article is the encyclopedia page a set of claims was extracted from
type Article struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Language  string    `json:"language"`
	FetchedAt time.Time `json:"fetched_at"`
}
