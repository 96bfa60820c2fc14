package database

import (
	"fmt"
	"time"

	"fpshield/models"
)

// InsertFingerprintEvent stores one triggered-feature signal for later
// inspection. Best-effort: callers log failures but never fail the signal.
func InsertFingerprintEvent(ev models.FingerprintEventRequest) error {
	ts := ev.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	_, err := DB.Exec(`INSERT INTO fingerprint_events (tab_id, hostname, feature, url, detected_at)
	                   VALUES (?, ?, ?, ?, ?)`,
		ev.TabID, ev.Hostname, ev.Feature, ev.URL, ts)
	if err != nil {
		return fmt.Errorf("inserting fingerprint event for %s/%s: %w", ev.Hostname, ev.Feature, err)
	}
	return nil
}

// RecentFingerprintEvents returns the newest events, newest first.
func RecentFingerprintEvents(limit int) ([]models.FingerprintEventRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := DB.Query(`SELECT tab_id, hostname, feature, url, detected_at
	                       FROM fingerprint_events ORDER BY detected_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying fingerprint events: %w", err)
	}
	defer rows.Close()

	var events []models.FingerprintEventRequest
	for rows.Next() {
		var ev models.FingerprintEventRequest
		if err := rows.Scan(&ev.TabID, &ev.Hostname, &ev.Feature, &ev.URL, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning fingerprint event row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
