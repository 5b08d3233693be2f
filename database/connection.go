package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"pk55-api/logger"
	"pk55-api/models"
)

const mysqlDuplicateEntry = 1062

// Connection is the MySQL backend.
type Connection struct {
	db *sql.DB
}

func NewConnection(config DatabaseConfig) (*Connection, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC",
		config.User, config.Password, config.Host, config.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	conn := &Connection{db: db}

	if err := conn.ensureConnection(); err != nil {
		db.Close()
		return nil, err
	}

	return conn, nil
}

func (c *Connection) ensureConnection() error {
	for retries := 0; retries < 3; retries++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.db.PingContext(ctx)
		cancel()

		if err == nil {
			return nil
		}

		logger.Warn("Database ping failed", zap.Int("attempt", retries+1), zap.Error(err))
		time.Sleep(time.Second * time.Duration(retries+1))
	}
	return fmt.Errorf("failed to establish database connection after 3 attempts")
}

func (c *Connection) Close(ctx context.Context) error {
	return c.db.Close()
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

const bannerColumns = `id, discount_percentage, date, heading, description,
	image_data, image_content_type, image_filename, created_at, updated_at`

func scanBanner(row interface{ Scan(...any) error }) (*models.Banner, error) {
	var (
		b           models.Banner
		id          int64
		data        []byte
		contentType sql.NullString
		filename    sql.NullString
	)
	err := row.Scan(&id, &b.DiscountPercentage, &b.Date, &b.Heading, &b.Description,
		&data, &contentType, &filename, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.ID = strconv.FormatInt(id, 10)
	if data != nil {
		b.Image = &models.BannerImage{
			Data:        data,
			ContentType: contentType.String,
			Filename:    filename.String,
		}
	}
	return &b, nil
}

func (c *Connection) LatestBanner(ctx context.Context) (*models.Banner, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + bannerColumns + ` FROM banners ORDER BY created_at DESC, id DESC LIMIT 1`
	b, err := scanBanner(c.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching latest banner: %w", err)
	}
	return b, nil
}

func (c *Connection) bannerByID(ctx context.Context, id int64) (*models.Banner, error) {
	query := `SELECT ` + bannerColumns + ` FROM banners WHERE id = ?`
	b, err := scanBanner(c.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching banner: %w", err)
	}
	return b, nil
}

func (c *Connection) CreateBanner(ctx context.Context, banner *models.Banner) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		data        []byte
		contentType sql.NullString
		filename    sql.NullString
	)
	if banner.Image != nil {
		data = banner.Image.Data
		contentType = sql.NullString{String: banner.Image.ContentType, Valid: true}
		filename = sql.NullString{String: banner.Image.Filename, Valid: true}
	}

	now := time.Now().UTC()
	result, err := c.db.ExecContext(ctx, `
		INSERT INTO banners (discount_percentage, date, heading, description,
			image_data, image_content_type, image_filename, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, banner.DiscountPercentage, banner.Date, banner.Heading, banner.Description,
		data, contentType, filename, now, now)
	if err != nil {
		return fmt.Errorf("error creating banner: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error getting banner id: %w", err)
	}

	banner.ID = strconv.FormatInt(id, 10)
	banner.CreatedAt = now
	banner.UpdatedAt = now
	return nil
}

// UpdateBanner builds the SET clause from the fields present in upd, so
// concurrent partial updates never overwrite each other's columns.
func (c *Connection) UpdateBanner(ctx context.Context, id string, upd models.BannerUpdate) (*models.Banner, error) {
	bannerID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.DiscountPercentage != nil {
		sets = append(sets, "discount_percentage = ?")
		args = append(args, *upd.DiscountPercentage)
	}
	if upd.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, *upd.Date)
	}
	if upd.Heading != nil {
		sets = append(sets, "heading = ?")
		args = append(args, *upd.Heading)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.Image != nil {
		sets = append(sets, "image_data = ?", "image_content_type = ?", "image_filename = ?")
		args = append(args, upd.Image.Data, upd.Image.ContentType, upd.Image.Filename)
	}
	args = append(args, bannerID)

	query := `UPDATE banners SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("error updating banner: %w", err)
	}

	return c.bannerByID(ctx, bannerID)
}

func (c *Connection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		u  models.User
		id int64
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT id, username, password, created_at, updated_at
		FROM users WHERE username = ?
	`, username).Scan(&id, &u.Username, &u.Password, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	u.ID = strconv.FormatInt(id, 10)
	return &u, nil
}

func (c *Connection) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC()
	result, err := c.db.ExecContext(ctx, `
		INSERT INTO users (username, password, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, user.Username, user.Password, now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error getting user id: %w", err)
	}

	user.ID = strconv.FormatInt(id, 10)
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (c *Connection) ListImages(ctx context.Context) ([]models.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, image_url, asset_id, date, created_at
		FROM images
		ORDER BY date DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("error listing images: %w", err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.ImageURL, &img.AssetID, &img.Date, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	return images, rows.Err()
}

func (c *Connection) FindImage(ctx context.Context, id string) (*models.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var img models.Image
	err := c.db.QueryRowContext(ctx, `
		SELECT id, image_url, asset_id, date, created_at
		FROM images WHERE id = ?
	`, id).Scan(&img.ID, &img.ImageURL, &img.AssetID, &img.Date, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching image: %w", err)
	}
	return &img, nil
}

func (c *Connection) CreateImage(ctx context.Context, image *models.Image) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now().UTC()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO images (id, image_url, asset_id, date, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, image.ID, image.ImageURL, image.AssetID, image.Date, image.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error creating image: %w", err)
	}
	return nil
}

func (c *Connection) ReplaceImage(ctx context.Context, oldID string, image *models.Image) error {
	old, err := c.FindImage(ctx, oldID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := c.db.ExecContext(ctx, `
		UPDATE images SET id = ?, image_url = ?, asset_id = ?, date = ?
		WHERE id = ?
	`, image.ID, image.ImageURL, image.AssetID, image.Date, oldID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error replacing image: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	image.CreatedAt = old.CreatedAt
	return nil
}

func (c *Connection) UpdateImageDate(ctx context.Context, id, date string) (*models.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, `UPDATE images SET date = ? WHERE id = ?`, date, id); err != nil {
		return nil, fmt.Errorf("error updating image date: %w", err)
	}

	return c.FindImage(ctx, id)
}

func (c *Connection) DeleteImage(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := c.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting image: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Connection) ListSettings(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, "SELECT `key`, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("error listing settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (c *Connection) UpsertSetting(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx, "INSERT INTO settings (`key`, value, updated_at) VALUES (?, ?, ?) "+
		"ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)",
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error saving setting %s: %w", key, err)
	}
	return nil
}
