package config

const (
	// TopicDocumentIngested carries metadata for documents whose chunks reached the vector index.
	TopicDocumentIngested = "document.ingested"
)
