package handlers

import (
	"context"
	"fmt"
	"time"

	"gatescan/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScanStore is the authoritative recording operation. RecordScan must
// classify and insert in one transaction so two near-simultaneous
// submissions of the same identifier can never both come back "first".
type ScanStore interface {
	RecordScan(ctx context.Context, req models.RecordScanRequest, operatorID int64) (models.ScanResult, error)
	LastSeen(ctx context.Context, identifier string, eventLocationID int64, excludeID int64) (models.LastSeenResult, error)
	ScansForLocation(ctx context.Context, eventLocationID int64, limit int) ([]models.Scan, error)
}

// PGScanStore implements ScanStore on Postgres.
type PGScanStore struct {
	db *pgxpool.Pool
}

func NewPGScanStore(db *pgxpool.Pool) *PGScanStore {
	return &PGScanStore{db: db}
}

const (
	msgAccepted      = "Scanned successfully"
	msgDuplicate     = "Already scanned at this location"
	msgNotInRoster   = "Identifier not found in the selected roster"
	msgInvalidConfig = "Entry point does not belong to this event location"
)

// RecordScan validates the identifier against the roster (when one is
// pinned), checks for a prior valid scan at the same event location, and
// inserts the attempt row, all inside one transaction. An advisory lock on
// (identifier, event_location_id) serializes concurrent submissions of the
// same card at the same location.
func (s *PGScanStore) RecordScan(ctx context.Context, req models.RecordScanRequest, operatorID int64) (models.ScanResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return models.ScanResult{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	lockKey := fmt.Sprintf("%s:%d", req.Identifier, req.EventLocationID)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return models.ScanResult{}, fmt.Errorf("advisory lock: %w", err)
	}

	allowed := true
	message := msgAccepted

	// The gate the operator configured must still be a live assignment of
	// this event location; a stale config is a rejection, not a fault.
	var gateOK bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM event_entry_points eep
			JOIN event_locations el ON el.id = eep.event_location_id
			WHERE eep.id = $1 AND eep.event_location_id = $2
			  AND eep.deleted_at IS NULL AND el.deleted_at IS NULL)`,
		req.EventEntryPointID, req.EventLocationID).Scan(&gateOK)
	if err != nil {
		return models.ScanResult{}, fmt.Errorf("checking entry point: %w", err)
	}
	if !gateOK {
		allowed = false
		message = msgInvalidConfig
	}

	if allowed && req.RosterID != nil {
		var member bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM roster_members
				WHERE roster_id = $1 AND identifier = $2 AND deleted_at IS NULL)`,
			*req.RosterID, req.Identifier).Scan(&member)
		if err != nil {
			return models.ScanResult{}, fmt.Errorf("checking roster membership: %w", err)
		}
		if !member {
			allowed = false
			message = msgNotInRoster
		}
	}

	duplicate := false
	if allowed {
		err = tx.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM scans
				WHERE identifier = $1 AND event_location_id = $2
				  AND valid AND deleted_at IS NULL)`,
			req.Identifier, req.EventLocationID).Scan(&duplicate)
		if err != nil {
			return models.ScanResult{}, fmt.Errorf("checking prior scans: %w", err)
		}
		if duplicate {
			message = msgDuplicate
		}
	}

	scannedAt := time.Now()
	if req.ScannedAt != nil {
		scannedAt = *req.ScannedAt
	}

	var recordID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO scans (identifier, event_location_id, event_entry_point_id,
			roster_id, operator_id, device_metadata, scanned_at, valid, duplicate, message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		req.Identifier, req.EventLocationID, req.EventEntryPointID,
		req.RosterID, operatorID, req.DeviceMetadata, scannedAt, allowed, duplicate, message,
	).Scan(&recordID)
	if err != nil {
		return models.ScanResult{}, fmt.Errorf("inserting scan: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.ScanResult{}, fmt.Errorf("commit: %w", err)
	}

	return models.ScanResult{
		RecordID:  recordID,
		Allowed:   allowed,
		Duplicate: duplicate,
		Message:   message,
		ScannedAt: scannedAt,
	}, nil
}

// LastSeen returns the scan time of the most recent valid, non-deleted scan
// for identifier at the location, excluding the record id just created.
func (s *PGScanStore) LastSeen(ctx context.Context, identifier string, eventLocationID int64, excludeID int64) (models.LastSeenResult, error) {
	var scannedAt time.Time
	err := s.db.QueryRow(ctx,
		`SELECT scanned_at FROM scans
		 WHERE identifier = $1 AND event_location_id = $2 AND id <> $3
		   AND valid AND deleted_at IS NULL
		 ORDER BY scanned_at DESC
		 LIMIT 1`,
		identifier, eventLocationID, excludeID).Scan(&scannedAt)
	if err != nil {
		if isNoRows(err) {
			return models.LastSeenResult{Found: false}, nil
		}
		return models.LastSeenResult{}, fmt.Errorf("querying last seen: %w", err)
	}
	return models.LastSeenResult{Found: true, ScannedAt: &scannedAt}, nil
}

// ScansForLocation lists the scan log for a location, newest first.
func (s *PGScanStore) ScansForLocation(ctx context.Context, eventLocationID int64, limit int) ([]models.Scan, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, identifier, event_location_id, event_entry_point_id,
			roster_id, operator_id, device_metadata, scanned_at, valid, duplicate, message
		 FROM scans
		 WHERE event_location_id = $1 AND deleted_at IS NULL
		 ORDER BY scanned_at DESC
		 LIMIT $2`,
		eventLocationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying scans: %w", err)
	}
	defer rows.Close()

	var scans []models.Scan
	for rows.Next() {
		var sc models.Scan
		err := rows.Scan(
			&sc.ID,
			&sc.Identifier,
			&sc.EventLocationID,
			&sc.EventEntryPointID,
			&sc.RosterID,
			&sc.OperatorID,
			&sc.DeviceMetadata,
			&sc.ScannedAt,
			&sc.Valid,
			&sc.Duplicate,
			&sc.Message,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		scans = append(scans, sc)
	}
	return scans, rows.Err()
}
