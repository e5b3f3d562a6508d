package worker

import "time"

// DocumentIngested is published on config.TopicDocumentIngested once a file
// has been chunked, embedded and indexed.
type DocumentIngested struct {
	DocumentID  string    `json:"document_id"`
	FileName    string    `json:"file_name"`
	FileSize    string    `json:"file_size"`
	TotalChunks int       `json:"total_chunks"`
	Strategy    string    `json:"strategy"`
	Mode        string    `json:"mode"`
	Collection  string    `json:"collection"`
	UploadedAt  time.Time `json:"uploaded_at"`

	CorrelationID string `json:"correlation_id"`
}
