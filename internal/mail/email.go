// Package mail defines the email input record and the content cleaner
// that turns raw (possibly HTML) email bodies into compact plain text
// ready for enrichment and embedding.
package mail

import "time"

// Email is the externally-owned input record. The pipeline never mutates it;
// persistence of the record itself belongs to the surrounding product.
type Email struct {
	// ID uniquely identifies the email. Vector records reuse it.
	ID string `json:"id"`

	// OwnerID identifies the end user who exclusively may read or write
	// anything derived from this email.
	OwnerID string `json:"owner_id"`

	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	From    string   `json:"from"`
	To      []string `json:"to,omitempty"`
	Labels  []string `json:"labels,omitempty"`

	ReceivedAt time.Time `json:"received_at,omitzero"`
}
