package vectorstore

import "fmt"

// Document represents a record to be stored in the vector store.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Content is the text content that gets embedded.
	Content string

	// Metadata contains additional key-value pairs for filtering.
	// Common fields: owner_id, subject, category, priority, summary.
	Metadata map[string]interface{}
}

// SearchResult represents a search result from the vector store.
type SearchResult struct {
	// ID is the document identifier.
	ID string

	// Content is the document text content.
	Content string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Metadata contains the document metadata.
	Metadata map[string]interface{}
}

// metadataRank orders metadata fields by importance for budget trimming.
// Lower rank survives longer. Unlisted keys trim first.
var metadataRank = map[string]int{
	"owner_id":        0,
	"email_id":        1,
	"subject":         2,
	"received_at":     3,
	"from":            4,
	"category":        5,
	"priority":        6,
	"labels":          7,
	"priority_reason": 8,
	"summary":         9,
	"action_items":    10,
	"contact_info":    11,
}

// protectedMetadataKeys are never trimmed regardless of budget.
var protectedMetadataKeys = map[string]bool{
	"owner_id": true,
	"email_id": true,
}

const unrankedMetadata = 100

// BoundMetadata trims a metadata map to fit within budget bytes, measured
// as the sum of key and stringified value lengths. Fields are dropped
// lowest-importance first; owner and identity fields are never dropped.
// The input map is not modified.
func BoundMetadata(metadata map[string]interface{}, budget int) map[string]interface{} {
	if metadata == nil {
		return nil
	}

	result := make(map[string]interface{}, len(metadata))
	size := 0
	for k, v := range metadata {
		result[k] = v
		size += len(k) + len(fmt.Sprint(v))
	}
	if budget <= 0 || size <= budget {
		return result
	}

	for size > budget {
		worstKey := ""
		worstRank := -1
		worstSize := 0
		for k, v := range result {
			if protectedMetadataKeys[k] {
				continue
			}
			rank, ok := metadataRank[k]
			if !ok {
				rank = unrankedMetadata
			}
			entrySize := len(k) + len(fmt.Sprint(v))
			// Highest rank loses; ties broken by size so the biggest
			// offender goes first.
			if rank > worstRank || (rank == worstRank && entrySize > worstSize) {
				worstKey = k
				worstRank = rank
				worstSize = entrySize
			}
		}
		if worstKey == "" {
			break
		}
		delete(result, worstKey)
		size -= worstSize
	}
	return result
}
