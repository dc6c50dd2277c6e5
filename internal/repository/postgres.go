package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/UnknownOlympus/storemap/internal/models"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// FetchUnresolved retrieves a list of store records that require geocoding.
// It returns records that have no coordinates, fewer than maxAttempts not-found attempts,
// a non-empty address and an id greater than afterID. The results are ordered by id
// so that repeated calls with the last seen id walk the backlog exactly once per run.
//
// Parameters:
// - ctx: The context for the operation, allowing for cancellation and timeout.
// - afterID: The keyset cursor, the id of the last record of the previous batch.
// - limit: The maximum number of records to retrieve.
//
// Returns:
// - A slice of models.Record containing the records that match the criteria.
// - An error if the query fails or if there is an issue scanning the results.
func (r *Repository) FetchUnresolved(ctx context.Context, afterID int64, limit int) ([]models.Record, error) {
	var records []models.Record
	query := `
		SELECT id, address
		FROM public.store
		WHERE
			(longitude IS NULL OR latitude IS NULL)
			AND geocode_attempts < $1
			AND address IS NOT NULL AND address <> ''
			AND id > $2
		ORDER BY id ASC
		LIMIT $3;
	`

	rows, err := r.db.Query(ctx, query, r.maxAttempts, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var record models.Record
		if errScan := rows.Scan(&record.ID, &record.Address); errScan != nil {
			return nil, fmt.Errorf("failed to scan unresolved record: %w", errScan)
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	r.log.DebugContext(ctx, "Fetched unresolved records", "count", len(records), "after_id", afterID)

	return records, nil
}

// CommitResults writes a batch of geocoding results in a single transaction and returns
// the number of records it resolved. Rows that were resolved in the meantime are left
// untouched and not counted. An empty batch is a no-op.
func (r *Repository) CommitResults(ctx context.Context, results []models.GeocodeResult) (int64, error) {
	if len(results) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(results))
	lons := make([]float64, len(results))
	lats := make([]float64, len(results))
	wkts := make([]string, len(results))
	resolvedAt := make([]time.Time, len(results))
	for i, res := range results {
		point, err := PointWKT(res.Coordinates)
		if err != nil {
			return 0, err
		}
		ids[i] = res.RecordID
		lons[i] = res.Coordinates.Longitude
		lats[i] = res.Coordinates.Latitude
		wkts[i] = point
		resolvedAt[i] = res.ResolvedAt
	}

	query := `
		UPDATE public.store AS s
		SET
			longitude = u.longitude,
			latitude = u.latitude,
			location_wkt = u.wkt,
			location = ST_SetSRID(ST_GeomFromText(u.wkt), 4326),
			geocoded_at = u.geocoded_at,
			geocode_error = NULL
		FROM unnest($1::bigint[], $2::float8[], $3::float8[], $4::text[], $5::timestamptz[])
			AS u(id, longitude, latitude, wkt, geocoded_at)
		WHERE
			s.id = u.id
			AND (s.longitude IS NULL OR s.latitude IS NULL);
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin results transaction: %w", err)
	}

	tag, err := tx.Exec(ctx, query, ids, lons, lats, wkts, resolvedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, fmt.Errorf("failed to update store coordinates: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit store coordinates: %w", err)
	}

	updated := tag.RowsAffected()
	if updated != int64(len(results)) {
		r.log.WarnContext(ctx, "Some records were already resolved and were skipped",
			"expected", len(results), "updated", updated)
	}

	return updated, nil
}

// RecordFailures increments the geocoding attempt count and stores the reason for every
// record the provider could not match. All failures of a batch are written in one transaction.
func (r *Repository) RecordFailures(ctx context.Context, failures []models.Failure) error {
	if len(failures) == 0 {
		return nil
	}

	ids := make([]int64, len(failures))
	reasons := make([]string, len(failures))
	for i, f := range failures {
		ids[i] = f.RecordID
		reasons[i] = f.Reason
	}

	query := `
		UPDATE public.store AS s
		SET
			geocode_attempts = s.geocode_attempts + 1,
			geocode_error = u.reason
		FROM unnest($1::bigint[], $2::text[]) AS u(id, reason)
		WHERE s.id = u.id;
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin failures transaction: %w", err)
	}

	if _, err = tx.Exec(ctx, query, ids, reasons); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to update geocoding error and number of attempts: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit geocoding failures: %w", err)
	}

	return nil
}

// CountByState reports how many addressable records are in each coordinate state.
func (r *Repository) CountByState(ctx context.Context) (map[models.RecordState]int64, error) {
	query := `
		SELECT
			count(*) FILTER (WHERE longitude IS NOT NULL AND latitude IS NOT NULL),
			count(*) FILTER (WHERE (longitude IS NULL OR latitude IS NULL) AND geocode_attempts < $1),
			count(*) FILTER (WHERE (longitude IS NULL OR latitude IS NULL) AND geocode_attempts >= $1)
		FROM public.store
		WHERE address IS NOT NULL AND address <> '';
	`

	var resolved, unresolved, failed int64
	if err := r.db.QueryRow(ctx, query, r.maxAttempts).Scan(&resolved, &unresolved, &failed); err != nil {
		return nil, fmt.Errorf("failed to count records by state: %w", err)
	}

	return map[models.RecordState]int64{
		models.StateResolved:          resolved,
		models.StateUnresolved:        unresolved,
		models.StatePermanentlyFailed: failed,
	}, nil
}

// PointWKT encodes coordinates as a WKT point in longitude, latitude order.
func PointWKT(coords models.Coordinates) (string, error) {
	point := geom.NewPointFlat(geom.XY, []float64{coords.Longitude, coords.Latitude})

	text, err := wkt.Marshal(point)
	if err != nil {
		return "", fmt.Errorf("failed to encode point as WKT: %w", err)
	}

	return text, nil
}
