package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/nodeforge/nodeforge/internal/types"
)

type PostgresDB struct {
	db *sql.DB
}

type Config struct {
	URI string
}

func NewPostgresDB(config Config) (*PostgresDB, error) {
	db, err := sql.Open("postgres", config.URI)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	return &PostgresDB{db: db}, nil
}

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// EnsureSchema creates the preparation tables when they do not exist.
func (p *PostgresDB) EnsureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS server_preparations (
            id UUID PRIMARY KEY,
            server_id TEXT NOT NULL,
            status TEXT NOT NULL,
            current_step TEXT NOT NULL DEFAULT '',
            detected_os TEXT NOT NULL DEFAULT '',
            started_at TIMESTAMPTZ NOT NULL,
            completed_at TIMESTAMPTZ,
            error_message TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE TABLE IF NOT EXISTS preparation_logs (
            id UUID PRIMARY KEY,
            server_id TEXT NOT NULL,
            preparation_id UUID NOT NULL,
            step TEXT NOT NULL,
            status TEXT NOT NULL,
            message TEXT NOT NULL DEFAULT '',
            output TEXT NOT NULL DEFAULT '',
            error TEXT NOT NULL DEFAULT '',
            timestamp TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_preparations_server
            ON server_preparations (server_id, started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_preparation
            ON preparation_logs (preparation_id, timestamp ASC)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.Exec(stmt); err != nil {
			return fmt.Errorf("error ensuring schema: %w", err)
		}
	}
	return nil
}

func (p *PostgresDB) CreatePreparation(prep *types.ServerPreparation) error {
	query := `
        INSERT INTO server_preparations
            (id, server_id, status, current_step, detected_os, started_at, completed_at, error_message)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `

	_, err := p.db.Exec(query,
		prep.ID,
		prep.ServerID,
		prep.Status,
		prep.CurrentStep,
		prep.DetectedOS,
		prep.StartedAt,
		prep.CompletedAt,
		prep.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("error creating preparation: %w", err)
	}
	return nil
}

func (p *PostgresDB) UpdatePreparation(prep *types.ServerPreparation) error {
	query := `
        UPDATE server_preparations
        SET status = $1, current_step = $2, detected_os = $3,
            completed_at = $4, error_message = $5
        WHERE id = $6
    `

	_, err := p.db.Exec(query,
		prep.Status,
		prep.CurrentStep,
		prep.DetectedOS,
		prep.CompletedAt,
		prep.ErrorMessage,
		prep.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating preparation: %w", err)
	}
	return nil
}

func (p *PostgresDB) AppendLog(log *types.PreparationLog) error {
	query := `
        INSERT INTO preparation_logs
            (id, server_id, preparation_id, step, status, message, output, error, timestamp)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	_, err := p.db.Exec(query,
		log.ID,
		log.ServerID,
		log.PreparationID,
		log.Step,
		log.Status,
		log.Message,
		log.Output,
		log.Error,
		log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("error appending preparation log: %w", err)
	}
	return nil
}

func (p *PostgresDB) LatestPreparation(serverID string) (*types.ServerPreparation, error) {
	query := `
        SELECT id, server_id, status, current_step, detected_os,
               started_at, completed_at, error_message
        FROM server_preparations
        WHERE server_id = $1
        ORDER BY started_at DESC
        LIMIT 1
    `

	var prep types.ServerPreparation
	var completedAt sql.NullTime

	err := p.db.QueryRow(query, serverID).Scan(
		&prep.ID,
		&prep.ServerID,
		&prep.Status,
		&prep.CurrentStep,
		&prep.DetectedOS,
		&prep.StartedAt,
		&completedAt,
		&prep.ErrorMessage,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying preparation: %w", err)
	}

	if completedAt.Valid {
		t := completedAt.Time
		prep.CompletedAt = &t
	}

	return &prep, nil
}

func (p *PostgresDB) PreparationLogs(preparationID string) ([]types.PreparationLog, error) {
	query := `
        SELECT id, server_id, preparation_id, step, status, message, output, error, timestamp
        FROM preparation_logs
        WHERE preparation_id = $1
        ORDER BY timestamp ASC
    `

	rows, err := p.db.Query(query, preparationID)
	if err != nil {
		return nil, fmt.Errorf("error querying preparation logs: %w", err)
	}
	defer rows.Close()

	var logs []types.PreparationLog
	for rows.Next() {
		var log types.PreparationLog
		err := rows.Scan(
			&log.ID,
			&log.ServerID,
			&log.PreparationID,
			&log.Step,
			&log.Status,
			&log.Message,
			&log.Output,
			&log.Error,
			&log.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning log row: %w", err)
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}
