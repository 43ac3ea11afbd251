package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vehicle_marketplace_chat/internal/conversation/domain"
)

// DirectoryRepository resolves which conversations exist for a viewer and
// who the participants are. Backed by the marketplace request/offer tables.
type DirectoryRepository interface {
	ListForViewer(ctx context.Context, viewerID string, role domain.Role) ([]domain.DirectoryEntry, error)
	DisplayLabel(ctx context.Context, participantID string) (string, error)
}

type directoryRepository struct {
	db *pgxpool.Pool
}

// NewDirectoryRepository create a DirectoryRepository
func NewDirectoryRepository(db *pgxpool.Pool) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) ListForViewer(ctx context.Context, viewerID string, role domain.Role) ([]domain.DirectoryEntry, error) {
	queryStr := `SELECT r.id, r.requester_id, e.partner_id, r.title, r.created_at
		FROM service_request r
		JOIN request_engagement e ON e.request_id = r.id`
	switch role {
	case domain.RoleRequester:
		queryStr += " WHERE r.requester_id = $1"
	case domain.RolePartner:
		queryStr += " WHERE e.partner_id = $1"
	default:
		return nil, errors.New("unknown viewer role")
	}
	queryStr += " ORDER BY r.created_at DESC"

	rows, err := r.db.Query(ctx, queryStr, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.DirectoryEntry
	for rows.Next() {
		var (
			entry     domain.DirectoryEntry
			createdAt int64
		)
		if err := rows.Scan(
			&entry.Key.RequestID,
			&entry.Key.RequesterID,
			&entry.Key.PartnerID,
			&entry.RequestTitle,
			&createdAt,
		); err != nil {
			return nil, err
		}
		entry.RequestCreatedAt = createdAt
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *directoryRepository) DisplayLabel(ctx context.Context, participantID string) (string, error) {
	row := r.db.QueryRow(ctx, "SELECT display_name FROM account WHERE id = $1", participantID)
	var label string
	if err := row.Scan(&label); err != nil {
		if err == pgx.ErrNoRows {
			return "", errors.New("no account found for participant")
		}
		return "", err
	}
	return label, nil
}
