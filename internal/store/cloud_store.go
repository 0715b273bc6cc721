package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/avoswald/folio/internal/config"
	"github.com/avoswald/folio/internal/events"
	"github.com/avoswald/folio/internal/models"
	"github.com/avoswald/folio/internal/store/migrations"
)

// CloudStore keeps metadata rows in Postgres and document blobs in
// S3-compatible object storage. The row is the source of truth: an
// upload that wrote its blob but failed to insert the row removes the
// blob again and reports failure.
type CloudStore struct {
	db      *sql.DB
	client  *s3.Client
	presign *s3.PresignClient

	endpoint   string
	region     string
	bucket     string
	presignTTL time.Duration

	logger *events.Logger
}

// NewCloudStore connects to Postgres, runs pending schema migrations,
// and prepares the blob client.
func NewCloudStore(ctx context.Context, cfg *config.StoreConfig, logger *events.Logger) (*CloudStore, error) {
	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &CloudStore{
		db:         db,
		client:     client,
		presign:    s3.NewPresignClient(client),
		endpoint:   cfg.S3Endpoint,
		region:     cfg.S3Region,
		bucket:     cfg.S3Bucket,
		presignTTL: cfg.PresignTTL,
		logger:     logger.WithField("component", "cloud_store"),
	}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Upload writes the blob, then inserts the metadata row. A failed
// insert removes the blob again so the bucket does not accumulate
// rows' worth of orphans.
func (s *CloudStore) Upload(ctx context.Context, id, filename string, data []byte, meta Metadata) (*Record, error) {
	if err := validateUpload(id, filename, data); err != nil {
		return nil, &models.StoreError{Op: "upload", Err: err}
	}

	name := meta.Name
	if name == "" {
		name = filename
	}
	key := BlobKey(id, filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(ContentTypePDF),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return nil, &models.StoreError{Op: "upload", Locator: key, Err: err}
	}

	rec := &Record{
		ID:        id,
		Name:      name,
		Size:      int64(len(data)),
		Locator:   key,
		Thumbnail: meta.Thumbnail,
	}

	thumb := sql.NullString{String: meta.Thumbnail, Valid: meta.Thumbnail != ""}
	err = s.db.QueryRowContext(ctx, `
		insert into documents (id, name, size_bytes, storage_path, thumbnail)
		values ($1, $2, $3, $4, $5)
		returning created_at
	`, rec.ID, rec.Name, rec.Size, rec.Locator, thumb).Scan(&rec.CreatedAt)
	if err != nil {
		s.removeBlob(key)
		return nil, &models.StoreError{Op: "insert", Locator: key, Err: err}
	}

	s.logger.WithFields(map[string]interface{}{
		"id":    rec.ID,
		"bytes": rec.Size,
	}).Debug("Uploaded document")

	return rec, nil
}

// List returns all rows, ordered by creation time ascending.
func (s *CloudStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, size_bytes, storage_path, thumbnail, created_at
		from documents
		order by created_at, id
	`)
	if err != nil {
		return nil, &models.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		var (
			rec   Record
			thumb sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Size, &rec.Locator, &thumb, &rec.CreatedAt); err != nil {
			return nil, &models.StoreError{Op: "list", Err: err}
		}
		if thumb.Valid {
			rec.Thumbnail = thumb.String
		}
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "list", Err: err}
	}
	return result, nil
}

// Delete removes the row first, then the blob. A blob that outlives
// its row is invisible to the library; the reverse would not be.
func (s *CloudStore) Delete(ctx context.Context, id string) error {
	var key string
	err := s.db.QueryRowContext(ctx,
		`select storage_path from documents where id = $1`, id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrEntryNotFound
	}
	if err != nil {
		return &models.StoreError{Op: "delete", Err: err}
	}

	if _, err := s.db.ExecContext(ctx, `delete from documents where id = $1`, id); err != nil {
		return &models.StoreError{Op: "delete", Locator: key, Err: err}
	}

	s.removeBlob(key)
	return nil
}

// Download fetches a blob by locator.
func (s *CloudStore) Download(ctx context.Context, locator string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		return nil, &models.StoreError{Op: "download", Locator: locator, Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &models.StoreError{Op: "download", Locator: locator, Err: err}
	}
	return data, nil
}

// PublicURL derives the fetch URL for a locator without touching the
// network. With a custom endpoint the bucket is addressed path-style,
// matching how the client itself is configured.
func (s *CloudStore) PublicURL(locator string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, locator)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, locator)
}

// PresignGet returns a time-limited GET URL for a locator.
func (s *CloudStore) PresignGet(ctx context.Context, locator string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", &models.StoreError{Op: "presign", Locator: locator, Err: err}
	}
	return req.URL, nil
}

// Close releases the database pool.
func (s *CloudStore) Close() error {
	return s.db.Close()
}

// removeBlob deletes an object and only logs on failure; callers use
// it where the row state is already what the user asked for.
func (s *CloudStore) removeBlob(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.WithError(err).WithField("locator", key).Warn("Blob delete failed")
	}
}

var _ Store = (*CloudStore)(nil)
