package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/carpool-companion/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) CreateProfile(ctx context.Context, pr *models.Profile) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO profiles(id, full_name, email, phone, is_premium, is_verified, eco_coins, total_rides, co2_saved, pref_music, pref_pets, pref_smoking, pref_personality, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		pr.ID, pr.FullName, pr.Email, pr.Phone, pr.IsPremium, pr.IsVerified, pr.EcoCoins, pr.TotalRides, pr.CO2SavedKg,
		pr.Preferences.Music, pr.Preferences.Pets, pr.Preferences.Smoking, pr.Preferences.Personality, pr.CreatedAt, pr.UpdatedAt)
	return err
}

func (p *PostgresStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id, full_name, email, phone, is_premium, is_verified, eco_coins, total_rides, co2_saved, pref_music, pref_pets, pref_smoking, pref_personality, created_at, updated_at
		FROM profiles WHERE id=$1`, id)
	var pr models.Profile
	err := row.Scan(&pr.ID, &pr.FullName, &pr.Email, &pr.Phone, &pr.IsPremium, &pr.IsVerified, &pr.EcoCoins, &pr.TotalRides, &pr.CO2SavedKg,
		&pr.Preferences.Music, &pr.Preferences.Pets, &pr.Preferences.Smoking, &pr.Preferences.Personality, &pr.CreatedAt, &pr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (p *PostgresStore) UpdateProfile(ctx context.Context, pr *models.Profile) error {
	res, err := p.db.ExecContext(ctx, `UPDATE profiles SET full_name=$1, phone=$2, is_premium=$3, is_verified=$4, eco_coins=$5, total_rides=$6, co2_saved=$7, pref_music=$8, pref_pets=$9, pref_smoking=$10, pref_personality=$11, updated_at=$12 WHERE id=$13`,
		pr.FullName, pr.Phone, pr.IsPremium, pr.IsVerified, pr.EcoCoins, pr.TotalRides, pr.CO2SavedKg,
		pr.Preferences.Music, pr.Preferences.Pets, pr.Preferences.Smoking, pr.Preferences.Personality, time.Now(), pr.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresStore) TopProfilesByCoins(ctx context.Context, limit int) ([]models.Profile, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, full_name, eco_coins, co2_saved FROM profiles ORDER BY eco_coins DESC, full_name ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Profile
	for rows.Next() {
		var pr models.Profile
		if err := rows.Scan(&pr.ID, &pr.FullName, &pr.EcoCoins, &pr.CO2SavedKg); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CreateRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO rides(id, user_id, type, pickup_location, pickup_lat, pickup_lon, dropoff_location, dropoff_lat, dropoff_lon, departure_time, available_seats, price, preferences, status, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		r.ID, r.UserID, r.Kind, r.PickupLocation, r.Pickup.Lat, r.Pickup.Lon, r.DropoffLocation, r.Dropoff.Lat, r.Dropoff.Lon,
		r.DepartureTime, r.Seats, r.Price, r.Preferences, r.Status, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, rideSelect+` WHERE id=$1`, id)
	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (p *PostgresStore) UpdateRideStatus(ctx context.Context, id string, status models.RideStatus) error {
	res, err := p.db.ExecContext(ctx, `UPDATE rides SET status=$1, updated_at=$2 WHERE id=$3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresStore) ListOpenOffers(ctx context.Context, f OfferFilter) ([]models.Ride, error) {
	q := rideSelect + ` WHERE type='offer' AND status='active'`
	args := []any{}
	if f.Origin != "" {
		args = append(args, "%"+f.Origin+"%")
		q += fmt.Sprintf(" AND pickup_location ILIKE $%d", len(args))
	}
	if f.Destination != "" {
		args = append(args, "%"+f.Destination+"%")
		q += fmt.Sprintf(" AND dropoff_location ILIKE $%d", len(args))
	}
	if f.Day != nil {
		day := f.Day.Truncate(24 * time.Hour)
		args = append(args, day)
		q += fmt.Sprintf(" AND departure_time >= $%d", len(args))
		args = append(args, day.Add(24*time.Hour))
		q += fmt.Sprintf(" AND departure_time < $%d", len(args))
	}
	q += ` ORDER BY created_at DESC`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRides(rows)
}

func (p *PostgresStore) RidesByUser(ctx context.Context, userID string) ([]models.Ride, error) {
	rows, err := p.db.QueryContext(ctx, rideSelect+` WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRides(rows)
}

func (p *PostgresStore) CountCompletedRides(ctx context.Context, userID string) (int, error) {
	var n int
	var err error
	if userID == "" {
		err = p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rides WHERE status='completed'`).Scan(&n)
	} else {
		err = p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rides WHERE status='completed' AND user_id=$1`, userID).Scan(&n)
	}
	return n, err
}

func (p *PostgresStore) CreateMatch(ctx context.Context, m *models.Match) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO matches(id, rider_id, driver_id, ride_id, match_score, status, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.RiderID, m.DriverID, m.RideID, m.Score, m.Status, m.CreatedAt, m.UpdatedAt)
	return err
}

func (p *PostgresStore) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id, rider_id, driver_id, ride_id, match_score, status, created_at, updated_at FROM matches WHERE id=$1`, id)
	var m models.Match
	err := row.Scan(&m.ID, &m.RiderID, &m.DriverID, &m.RideID, &m.Score, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *PostgresStore) UpdateMatchStatus(ctx context.Context, id string, status models.MatchStatus) error {
	res, err := p.db.ExecContext(ctx, `UPDATE matches SET status=$1, updated_at=$2 WHERE id=$3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresStore) MatchesByUser(ctx context.Context, userID string) ([]models.Match, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, rider_id, driver_id, ride_id, match_score, status, created_at, updated_at
		FROM matches WHERE rider_id=$1 OR driver_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.RiderID, &m.DriverID, &m.RideID, &m.Score, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const rideSelect = `SELECT id, user_id, type, pickup_location, pickup_lat, pickup_lon, dropoff_location, dropoff_lat, dropoff_lon, departure_time, available_seats, price, preferences, status, created_at, updated_at FROM rides`

type rowScanner interface{ Scan(dest ...any) error }

func scanRide(row rowScanner) (*models.Ride, error) {
	var r models.Ride
	var price sql.NullFloat64
	err := row.Scan(&r.ID, &r.UserID, &r.Kind, &r.PickupLocation, &r.Pickup.Lat, &r.Pickup.Lon,
		&r.DropoffLocation, &r.Dropoff.Lat, &r.Dropoff.Lon, &r.DepartureTime, &r.Seats, &price,
		&r.Preferences, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if price.Valid {
		v := price.Float64
		r.Price = &v
	}
	return &r, nil
}

func scanRides(rows *sql.Rows) ([]models.Ride, error) {
	var out []models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
