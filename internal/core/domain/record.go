package domain

import "time"

// NavRecord is one fund net-asset-value observation. NavDate is an
// 8-digit YYYYMMDD key. Records are immutable once persisted and unique
// per (ProductCode, NavDate).
type NavRecord struct {
	ID            int64     `json:"id,omitempty"`
	ProductName   string    `json:"product_name,omitempty"`
	ProductCode   string    `json:"product_code"`
	NavDate       int       `json:"nav_date"`
	UnitNav       float64   `json:"unit_nav"`
	CumulativeNav *float64  `json:"cumulative_unit_nav,omitempty"`
	SourceID      int64     `json:"source_id,omitempty"`
	IngestedAt    time.Time `json:"ingested_at,omitempty"`
}

// SourceAttribution records where a batch of records came from: one row
// per (message, attachment, sheet).
type SourceAttribution struct {
	ID          int64     `json:"id,omitempty"`
	Subject     string    `json:"subject"`
	Sender      string    `json:"sender"`
	MessageDate string    `json:"message_date"`
	Attachment  string    `json:"attachment"`
	SheetName   string    `json:"sheet_name"`
	IngestedAt  time.Time `json:"ingested_at,omitempty"`
}

// RecordWithSource joins a primary record with its attribution.
// Source is nil for legacy rows ingested before attribution existed.
type RecordWithSource struct {
	Record NavRecord
	Source *SourceAttribution
}

// CleanRecord is a vetted record with its attribution denormalized
// inline, so clean-view consumers never need a join.
type CleanRecord struct {
	NavRecord
	Subject     string `json:"subject,omitempty"`
	Sender      string `json:"sender,omitempty"`
	MessageDate string `json:"message_date,omitempty"`
	Attachment  string `json:"attachment,omitempty"`
	SheetName   string `json:"sheet_name,omitempty"`
}

// MailCursor is the singleton mailbox position: highest processed UID
// within one mailbox incarnation.
type MailCursor struct {
	LastUID     uint32
	UIDValidity string
}

// ExtractionFailure is an append-only triage entry for anything that
// could not be classified, coerced, or persisted.
type ExtractionFailure struct {
	ID          int64     `json:"id,omitempty"`
	Subject     string    `json:"subject"`
	Sender      string    `json:"sender"`
	MessageDate string    `json:"message_date"`
	Attachment  string    `json:"attachment"`
	SheetName   string    `json:"sheet_name"`
	Reason      string    `json:"reason"`
	FailedAt    time.Time `json:"failed_at,omitempty"`
}

// RowDiagnostic reports a single data row skipped during normalization.
type RowDiagnostic struct {
	Row    int
	Reason string
}

// Grid is a raw 2-D cell grid as decoded from one workbook sheet, no
// header inference applied.
type Grid [][]string

// SheetGrid pairs a sheet name with its decoded grid.
type SheetGrid struct {
	Name string
	Grid Grid
}

// InboundMessage is one mail message with its spreadsheet attachments
// already pulled into memory.
type InboundMessage struct {
	UID         uint32
	Subject     string
	Sender      string
	Date        string
	Attachments []Attachment
}

type Attachment struct {
	Filename string
	Data     []byte
}

// MailboxInfo is the live mailbox state read at the start of a run.
type MailboxInfo struct {
	UIDValidity string
	Messages    uint32
}

// SyncSummary is the outcome of one mailbox sync run.
type SyncSummary struct {
	RunID       string `json:"run_id"`
	Mode        string `json:"mode"`
	Messages    int    `json:"messages"`
	Attachments int    `json:"attachments"`
	Inserted    int    `json:"inserted"`
	Duplicates  int    `json:"duplicates"`
	Failures    int    `json:"failures"`
	LastUID     uint32 `json:"last_uid"`
}

const (
	SyncModeFullScan    = "full_scan"
	SyncModeIncremental = "incremental"
)

// BatchEvent announces that a sync run committed new records.
type BatchEvent struct {
	RunID    string `json:"run_id"`
	Inserted int    `json:"inserted"`
}

// ProductSummary is the per-product aggregate exposed by the clean view.
type ProductSummary struct {
	ProductCode string  `json:"product_code"`
	ProductName string  `json:"product_name,omitempty"`
	Records     int     `json:"records"`
	FirstDate   int     `json:"first_date"`
	LastDate    int     `json:"last_date"`
	FirstNav    float64 `json:"first_unit_nav"`
	LastNav     float64 `json:"last_unit_nav"`
}

// IdentityAnomaly reports one product name mapped to multiple codes,
// with attribution samples per code for manual review. Informational
// only: it never excludes records from the clean view.
type IdentityAnomaly struct {
	ProductName string           `json:"product_name"`
	Codes       []CodeProvenance `json:"codes"`
}

type CodeProvenance struct {
	ProductCode string              `json:"product_code"`
	Sources     []SourceAttribution `json:"sources,omitempty"`
}

// CalibrationReport is the outcome of one clean-view rebuild.
type CalibrationReport struct {
	TotalRecords      int               `json:"total_records"`
	CleanRecords      int               `json:"clean_records"`
	ExcludedRecords   int               `json:"excluded_records"`
	RangeAnomalies    []NavRecord       `json:"range_anomalies,omitempty"`
	IdentityAnomalies []IdentityAnomaly `json:"identity_anomalies,omitempty"`
	RebuiltAt         time.Time         `json:"rebuilt_at"`
}
