package weatherdir

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/zephyre/internal/domain/weather"
)

const schema = `
CREATE TABLE IF NOT EXISTS weather_places (
	place TEXT PRIMARY KEY,
	temperature_celsius DOUBLE PRECISION NOT NULL,
	humidity_percent DOUBLE PRECISION NOT NULL,
	condition TEXT NOT NULL,
	description TEXT NOT NULL,
	sort_order INT NOT NULL
)`

// PostgresDirectory implements weather.Directory using pgx.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory constructs the directory.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// EnsureSchema creates the table and seeds the default places when it is empty.
func (d *PostgresDirectory) EnsureSchema(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return err
	}
	var count int
	if err := d.pool.QueryRow(ctx, `SELECT count(*) FROM weather_places`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, place := range weather.DefaultPlaces() {
		batch.Queue(`
			INSERT INTO weather_places (place, temperature_celsius, humidity_percent, condition, description, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (place) DO NOTHING
		`, place.Place, place.Temperature, place.Humidity, place.Condition, place.Description, i)
	}
	return d.pool.SendBatch(ctx, batch).Close()
}

// Find returns the first place, in sort order, whose name contains query.
func (d *PostgresDirectory) Find(ctx context.Context, query string) (weather.Observation, bool, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT place, temperature_celsius, humidity_percent, condition, description
		FROM weather_places
		WHERE position(lower($1) IN lower(place)) > 0
		ORDER BY sort_order
		LIMIT 1
	`, query)
	if err != nil {
		return weather.Observation{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return weather.Observation{}, false, rows.Err()
	}
	obs, err := scanObservation(rows)
	if err != nil {
		return weather.Observation{}, false, err
	}
	return obs, true, rows.Err()
}

// List returns every place in sort order.
func (d *PostgresDirectory) List(ctx context.Context) ([]weather.Observation, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT place, temperature_celsius, humidity_percent, condition, description
		FROM weather_places
		ORDER BY sort_order
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	places := make([]weather.Observation, 0)
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, obs)
	}
	return places, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (weather.Observation, error) {
	var obs weather.Observation
	err := row.Scan(&obs.Place, &obs.Temperature, &obs.Humidity, &obs.Condition, &obs.Description)
	return obs, err
}

var _ weather.Directory = (*PostgresDirectory)(nil)
