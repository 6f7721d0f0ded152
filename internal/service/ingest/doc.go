// Package ingest implements the campaign CSV ingestion pipeline.
//
// An upload flows strictly left to right: intake checks, structural
// validation, record normalization, report registration, batched
// persistence and (for delivery reports) status metrics. Any validation
// failure aborts before the first write. A persistence failure stops further
// writes and reports how many rows were already committed; nothing is
// retried automatically.
//
// The service depends on the Repository interface defined in repository.go
// and never imports net/http or database/sql directly.
package ingest
