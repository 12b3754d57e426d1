package api

import (
	"time"

	"berth/internal/queue"
)

// QueueItem is the wire form of one queue row.
type QueueItem struct {
	ID             int64      `json:"id"`
	ClientID       string     `json:"clientId"`
	DownloadID     string     `json:"downloadId"`
	Title          string     `json:"title"`
	Protocol       string     `json:"protocol"`
	Status         string     `json:"status"`
	Progress       float64    `json:"progress"`
	SizeBytes      int64      `json:"sizeBytes"`
	DownloadRate   int64      `json:"downloadRate"`
	ETASeconds     int64      `json:"etaSeconds"`
	OutputPath     string     `json:"outputPath,omitempty"`
	ImportedPath   string     `json:"importedPath,omitempty"`
	Quality        string     `json:"quality,omitempty"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	ImportAttempts int        `json:"importAttempts"`
	AddedAt        time.Time  `json:"addedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	ImportedAt     *time.Time `json:"importedAt,omitempty"`
}

// FromQueueItem converts a queue row for the wire.
func FromQueueItem(item *queue.Item) QueueItem {
	return QueueItem{
		ID:             item.ID,
		ClientID:       item.ClientID,
		DownloadID:     item.DownloadID,
		Title:          item.Title,
		Protocol:       string(item.Protocol),
		Status:         string(item.Status),
		Progress:       item.Progress,
		SizeBytes:      item.SizeBytes,
		DownloadRate:   item.DownloadRate,
		ETASeconds:     item.ETASeconds,
		OutputPath:     item.OutputPath,
		ImportedPath:   item.ImportedPath,
		Quality:        item.Quality,
		ErrorMessage:   item.ErrorMessage,
		ImportAttempts: item.ImportAttempts,
		AddedAt:        item.AddedAt,
		CompletedAt:    item.CompletedAt,
		ImportedAt:     item.ImportedAt,
	}
}

// QueueResponse wraps a queue listing.
type QueueResponse struct {
	Items []QueueItem `json:"items"`
	Total int         `json:"total"`
}

// HistoryRecord is the wire form of one audit entry.
type HistoryRecord struct {
	ID           int64     `json:"id"`
	EventID      string    `json:"eventId"`
	ItemID       int64     `json:"itemId"`
	ClientID     string    `json:"clientId,omitempty"`
	EventType    string    `json:"eventType"`
	Title        string    `json:"title,omitempty"`
	Quality      string    `json:"quality,omitempty"`
	SourcePath   string    `json:"sourcePath,omitempty"`
	ImportedPath string    `json:"importedPath,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FromHistoryRecord converts an audit entry for the wire.
func FromHistoryRecord(record *queue.HistoryRecord) HistoryRecord {
	return HistoryRecord{
		ID:           record.ID,
		EventID:      record.EventID,
		ItemID:       record.ItemID,
		ClientID:     record.ClientID,
		EventType:    string(record.EventType),
		Title:        record.Title,
		Quality:      record.Quality,
		SourcePath:   record.SourcePath,
		ImportedPath: record.ImportedPath,
		ErrorMessage: record.ErrorMessage,
		CreatedAt:    record.CreatedAt,
	}
}

// HistoryResponse wraps a history listing.
type HistoryResponse struct {
	Records []HistoryRecord `json:"records"`
}

// ClientHealth is one back-end's connectivity state.
type ClientHealth struct {
	ClientID string `json:"clientId"`
	Health   string `json:"health"`
}

// DaemonStatus is the /api/status payload.
type DaemonStatus struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	QueueDBPath  string           `json:"queueDbPath"`
	LockFilePath string           `json:"lockFilePath"`
	QueueTotal   int64            `json:"queueTotal"`
	QueueCounts  map[string]int64 `json:"queueCounts"`
	Clients      []ClientHealth   `json:"clients"`
}

// CountResponse reports how many rows an operation touched.
type CountResponse struct {
	Count  int64 `json:"count"`
	DryRun bool  `json:"dryRun"`
}

// OrphanEntry is one untracked completed download.
type OrphanEntry struct {
	ClientID   string `json:"clientId"`
	DownloadID string `json:"downloadId"`
	Title      string `json:"title"`
}

// OrphansResponse wraps an orphan sweep result.
type OrphansResponse struct {
	Orphans []OrphanEntry `json:"orphans"`
	DryRun  bool          `json:"dryRun"`
}

// ErrorResponse carries an API error message.
type ErrorResponse struct {
	Error string `json:"error"`
}
