package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/reelhaus/listingreel/internal/models"
)

func (db *DB) CreateListing(ctx context.Context, listing *models.Listing) error {
	query := `
		INSERT INTO listings (id, source_url, property)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		listing.ID, listing.SourceURL, listing.Property,
	).Scan(&listing.CreatedAt)
}

func (db *DB) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	query := `
		SELECT id, source_url, property, created_at
		FROM listings
		WHERE id = $1
	`

	listing := &models.Listing{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&listing.ID, &listing.SourceURL, &listing.Property, &listing.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("listing not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	return listing, nil
}
