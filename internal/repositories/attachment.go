package repositories

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/sqlite"
)

var ErrNotFound = errors.NewSentinel("not found")

// AttachmentRepository keeps the photos uploaded during an audit until they are exported.
type AttachmentRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewAttachmentRepository(db *sqlite.Database, logger *slog.Logger) *AttachmentRepository {
	return &AttachmentRepository{
		db:     db,
		logger: logger.With("source", "AttachmentRepository"),
	}
}

type attachmentRow struct {
	ID          string `db:"id"`
	FileName    string `db:"file_name"`
	ContentType string `db:"content_type"`
	Size        int64  `db:"size"`
	Data        []byte `db:"data"`
}

// Put stores the file and returns the reference kept in the answers.
func (r *AttachmentRepository) Put(
	ctx context.Context,
	fileName string,
	contentType string,
	data []byte,
) (models.AttachmentRef, error) {
	row := attachmentRow{
		ID:          uuid.NewString(),
		FileName:    fileName,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
	}
	stmt := `INSERT INTO attachments (id, file_name, content_type, size, data)
VALUES (:id, :file_name, :content_type, :size, :data)`
	if _, err := r.db.ReadWrite.NamedExecContext(ctx, stmt, row); err != nil {
		return models.AttachmentRef{}, errors.Wrap(err, "insert attachment", slog.String("file_name", fileName))
	}
	return models.AttachmentRef{ID: row.ID, FileName: fileName, ContentType: contentType, Size: row.Size}, nil
}

// Get returns the bytes of an attachment.
func (r *AttachmentRepository) Get(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := r.db.ReadOnly.GetContext(ctx, &data, `SELECT data FROM attachments WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(ErrNotFound, "attachment", slog.String("id", id))
	}
	if err != nil {
		return nil, errors.Wrap(err, "select attachment", slog.String("id", id))
	}
	return data, nil
}
