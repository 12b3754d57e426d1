package queue

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"berth/internal/downloads"
)

const itemColumns = "id, client_id, download_id, content_hash, magnet_uri, title, protocol, movie_id, series_id, season_number, episode_ids, status, progress, size_bytes, download_rate, upload_rate, eta_seconds, ratio, client_path, output_path, output_path_exact, imported_path, quality, release_group, error_message, import_attempts, automatic_grab, is_upgrade, added_at, started_at, completed_at, imported_at, last_attempt_at, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id             int64
		clientID       string
		downloadID     string
		contentHash    sql.NullString
		magnetURI      sql.NullString
		title          string
		protocol       string
		movieID        int64
		seriesID       int64
		seasonNumber   int64
		episodeIDs     sql.NullString
		statusStr      string
		progress       float64
		sizeBytes      int64
		downloadRate   int64
		uploadRate     int64
		etaSeconds     int64
		ratio          float64
		clientPath     sql.NullString
		outputPath     sql.NullString
		outputExact    sql.NullInt64
		importedPath   sql.NullString
		quality        sql.NullString
		releaseGroup   sql.NullString
		errorMessage   sql.NullString
		importAttempts int64
		automaticGrab  sql.NullInt64
		isUpgrade      sql.NullInt64
		addedRaw       string
		startedRaw     sql.NullString
		completedRaw   sql.NullString
		importedRaw    sql.NullString
		lastAttemptRaw sql.NullString
		createdRaw     string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&id,
		&clientID,
		&downloadID,
		&contentHash,
		&magnetURI,
		&title,
		&protocol,
		&movieID,
		&seriesID,
		&seasonNumber,
		&episodeIDs,
		&statusStr,
		&progress,
		&sizeBytes,
		&downloadRate,
		&uploadRate,
		&etaSeconds,
		&ratio,
		&clientPath,
		&outputPath,
		&outputExact,
		&importedPath,
		&quality,
		&releaseGroup,
		&errorMessage,
		&importAttempts,
		&automaticGrab,
		&isUpgrade,
		&addedRaw,
		&startedRaw,
		&completedRaw,
		&importedRaw,
		&lastAttemptRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:          id,
		ClientID:    clientID,
		DownloadID:  downloadID,
		ContentHash: contentHash.String,
		MagnetURI:   magnetURI.String,
		Title:       title,
		Protocol:    downloads.Protocol(protocol),
		Media: MediaRef{
			MovieID:      movieID,
			SeriesID:     seriesID,
			SeasonNumber: int(seasonNumber),
			EpisodeIDs:   decodeEpisodeIDs(episodeIDs.String),
		},
		Status:          Status(statusStr),
		Progress:        ClampProgress(progress),
		SizeBytes:       sizeBytes,
		DownloadRate:    downloadRate,
		UploadRate:      uploadRate,
		ETASeconds:      etaSeconds,
		Ratio:           ratio,
		ClientPath:      clientPath.String,
		OutputPath:      outputPath.String,
		OutputPathExact: outputExact.Int64 != 0,
		ImportedPath:    importedPath.String,
		Quality:         quality.String,
		ReleaseGroup:    releaseGroup.String,
		ErrorMessage:    errorMessage.String,
		ImportAttempts:  int(importAttempts),
		AutomaticGrab:   automaticGrab.Int64 != 0,
		IsUpgrade:       isUpgrade.Int64 != 0,
	}

	if added, err := parseTimeString(addedRaw); err == nil {
		item.AddedAt = added
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	item.StartedAt = parseNullableTime(startedRaw)
	item.CompletedAt = parseNullableTime(completedRaw)
	item.ImportedAt = parseNullableTime(importedRaw)
	item.LastAttemptAt = parseNullableTime(lastAttemptRaw)
	return item, nil
}

func decodeEpisodeIDs(value string) []int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func encodeEpisodeIDs(ids []int64) any {
	if len(ids) == 0 {
		return nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
