package history

import (
	"database/sql"
	"time"
)

const entryColumns = "id, share_id, url, expires_at, size_bytes, artist, title, difficulty, set_dir, server, created_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id         int64
		shareID    string
		url        string
		expiresRaw string
		sizeBytes  int64
		artist     sql.NullString
		title      sql.NullString
		difficulty sql.NullString
		setDir     sql.NullString
		server     sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&id, &shareID, &url, &expiresRaw, &sizeBytes, &artist, &title, &difficulty, &setDir, &server, &createdRaw); err != nil {
		return nil, err
	}
	return &Entry{
		ID:         id,
		ShareID:    shareID,
		URL:        url,
		ExpiresAt:  parseTime(expiresRaw),
		SizeBytes:  sizeBytes,
		Artist:     artist.String,
		Title:      title.String,
		Difficulty: difficulty.String,
		SetDir:     setDir.String,
		Server:     server.String,
		CreatedAt:  parseTime(createdRaw),
	}, nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
