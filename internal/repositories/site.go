package repositories

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/sqlite"
)

type SiteRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewSiteRepository(db *sqlite.Database, logger *slog.Logger) *SiteRepository {
	return &SiteRepository{
		db:     db,
		logger: logger.With("source", "SiteRepository"),
	}
}

type siteRow struct {
	Title    string `db:"title"`
	Position int    `db:"position"`
	Fields   string `db:"fields"`
}

// ListSites returns the site list with its columns in source order.
func (r *SiteRepository) ListSites(ctx context.Context) (models.SiteList, error) {
	var (
		list models.SiteList
		rows []siteRow
	)
	if err := r.db.ReadOnly.SelectContext(ctx, &list.Columns,
		`SELECT name FROM site_columns ORDER BY position`); err != nil {
		return models.SiteList{}, errors.Wrap(err, "select site columns")
	}
	if err := r.db.ReadOnly.SelectContext(ctx, &rows,
		`SELECT title, position, fields FROM sites ORDER BY position`); err != nil {
		return models.SiteList{}, errors.Wrap(err, "select sites")
	}
	list.Sites = make([]models.Project, len(rows))
	for i, row := range rows {
		fields := map[string]string{}
		if err := json.Unmarshal([]byte(row.Fields), &fields); err != nil {
			return models.SiteList{}, errors.Wrap(err, "decode site fields", slog.String("title", row.Title))
		}
		fields[models.TitleColumn] = row.Title
		list.Sites[i] = models.Project{Title: row.Title, Columns: list.Columns, Fields: fields}
	}
	return list, nil
}

// ReplaceSites swaps the whole site list in one transaction.
func (r *SiteRepository) ReplaceSites(ctx context.Context, list models.SiteList) error {
	tx, err := r.db.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM sites`); err != nil {
		return errors.Wrap(err, "delete sites")
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM site_columns`); err != nil {
		return errors.Wrap(err, "delete site columns")
	}
	for i, column := range list.Columns {
		if _, err = tx.ExecContext(ctx, `INSERT INTO site_columns (position, name) VALUES (?, ?)`, i, column); err != nil {
			return errors.Wrap(err, "insert site column", slog.String("column", column))
		}
	}
	for i, site := range list.Sites {
		fields := make(map[string]string, len(site.Fields))
		for k, v := range site.Fields {
			if k != models.TitleColumn {
				fields[k] = v
			}
		}
		encoded, marshalErr := json.Marshal(fields)
		if marshalErr != nil {
			return errors.Wrap(marshalErr, "encode site fields", slog.String("title", site.Title))
		}
		row := siteRow{Title: site.Title, Position: i, Fields: string(encoded)}
		if _, err = tx.NamedExecContext(ctx,
			`INSERT INTO sites (title, position, fields) VALUES (:title, :position, :fields)`, row); err != nil {
			return errors.Wrap(err, "insert site", slog.String("title", site.Title))
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "replaced site list", slog.Int("sites", len(list.Sites)))
	return nil
}
