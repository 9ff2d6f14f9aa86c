package repository

import (
	"database/sql"

	"beacon/core/models"
)

// ActivityLogRepository handles persistence of activity log entries.
type ActivityLogRepository struct {
	db *sql.DB
}

// NewActivityLogRepository creates a new activity log repository.
func NewActivityLogRepository(db *sql.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Create appends an activity log entry.
func (r *ActivityLogRepository) Create(log *models.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (entity_id, entity_name, event_type, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	var entityName *string
	if log.EntityName != "" {
		entityName = &log.EntityName
	}

	result, err := r.db.Exec(
		query,
		log.EntityID,
		entityName,
		log.EventType,
		log.Message,
		log.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	log.ID = id

	return nil
}

// GetRecent retrieves the most recent activity log entries.
func (r *ActivityLogRepository) GetRecent(limit int) ([]*models.ActivityLog, error) {
	query := `
		SELECT id, entity_id, entity_name, event_type, message, created_at
		FROM activity_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.ActivityLog
	for rows.Next() {
		log := &models.ActivityLog{}
		var entityName sql.NullString

		err := rows.Scan(
			&log.ID,
			&log.EntityID,
			&entityName,
			&log.EventType,
			&log.Message,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if entityName.Valid {
			log.EntityName = entityName.String
		}

		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// GetByEntityID retrieves activity log entries for one entity.
func (r *ActivityLogRepository) GetByEntityID(entityID string, limit int) ([]*models.ActivityLog, error) {
	query := `
		SELECT id, entity_id, entity_name, event_type, message, created_at
		FROM activity_logs
		WHERE entity_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.ActivityLog
	for rows.Next() {
		log := &models.ActivityLog{}
		var entityName sql.NullString

		err := rows.Scan(
			&log.ID,
			&log.EntityID,
			&entityName,
			&log.EventType,
			&log.Message,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if entityName.Valid {
			log.EntityName = entityName.String
		}

		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// DeleteOlderThan removes activity log entries older than the specified
// number of days.
func (r *ActivityLogRepository) DeleteOlderThan(days int) (int64, error) {
	query := `DELETE FROM activity_logs WHERE created_at < datetime('now', '-' || ? || ' days')`
	result, err := r.db.Exec(query, days)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
