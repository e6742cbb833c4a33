package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/yusco/siteaudit/internal/errors"
)

// schemaObject is one row of sqlite_schema.
type schemaObject struct {
	Type    string `db:"type"`
	Name    string `db:"name"`
	TblName string `db:"tbl_name"`
	SQL     string `db:"sql"`
}

type schemaObjects map[string]schemaObject

func (s schemaObjects) ofType(objectType string) []schemaObject {
	var out []schemaObject
	for _, name := range sortedNames(s) {
		if s[name].Type == objectType {
			out = append(out, s[name])
		}
	}
	return out
}

func sortedNames(s schemaObjects) []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

const querySchemaObjects = `SELECT type, name, tbl_name, sql
FROM sqlite_schema
WHERE name NOT LIKE 'sqlite_%' AND sql IS NOT NULL`

// migrateTo ensures that the db schema matches the target schema definition.
//
// We employ a very simple declarative schema migration that:
//
// 1. Deletes deleted tables,
// 2. Creates new tables,
// 3. Migrates changed tables using 12-step schema migration https://www.sqlite.org/lang_altertable.html#otheralter,
// 4. Drops and recreates indexes and triggers whose definition changed.
//
// The target schema is materialised in a private in-memory database and compared object by object with the current
// one. Inspired by https://david.rothlis.net/declarative-schema-migration-for-sqlite/
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) error {
	target, err := sqlx.Open(driverName, ":memory:")
	if err != nil {
		return errors.Wrap(err, "open schema target database")
	}
	// A private in-memory database lives as long as its single connection.
	target.SetMaxOpenConns(1)
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close schema target database",
				errors.SlogError(errors.Wrap(closeErr, "close schema target database")))
		}
	}()
	if strings.TrimSpace(schemaDefinition) != "" {
		if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
			return errors.Wrap(err, "create schema target database")
		}
	}
	var targetRows []schemaObject
	if err = target.SelectContext(ctx, &targetRows, querySchemaObjects); err != nil {
		return errors.Wrap(err, "query target schema")
	}

	// Foreign key enforcement can only be toggled outside a transaction, so the whole migration runs on one
	// dedicated connection.
	conn, err := db.ReadWrite.Connx(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire connection")
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to release connection",
				errors.SlogError(errors.Wrap(closeErr, "close connection")))
		}
	}()

	// Step 1: Disable foreign key validation temporarily.
	if _, err = conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign key validation")
	}
	// Step 12: Re-enable foreign key validation.
	defer func() {
		if _, fkErr := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to re-enable foreign key validation",
				errors.SlogError(errors.Wrap(fkErr, "re-enable foreign key validation")))
		}
	}()

	// Step 2: Start transaction.
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "start transaction")
	}
	defer func() {
		// Rollback after a successful commit is a no-op returning sql.ErrTxDone.
		_ = tx.Rollback()
	}()

	m := migration{tx: tx, target: target, logger: db.logger, targetObjects: toObjects(targetRows)}

	// Steps 3-7: migrate tables.
	if err = m.migrateTables(ctx); err != nil {
		return errors.Wrap(err, "migrate tables")
	}

	// Step 8: Recreate indexes and triggers.
	if err = m.migrateIndexesAndTriggers(ctx); err != nil {
		return errors.Wrap(err, "migrate indexes and triggers")
	}

	// Step 10: Check foreign key constraints.
	if err = m.checkForeignKeys(ctx); err != nil {
		return err
	}

	// Step 11: Commit transaction from step 2.
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func toObjects(rows []schemaObject) schemaObjects {
	out := make(schemaObjects, len(rows))
	for _, row := range rows {
		out[row.Name] = row
	}
	return out
}

type migration struct {
	tx            *sqlx.Tx
	target        *sqlx.DB
	logger        *slog.Logger
	targetObjects schemaObjects
}

func (m *migration) currentObjects(ctx context.Context) (schemaObjects, error) {
	var rows []schemaObject
	if err := m.tx.SelectContext(ctx, &rows, querySchemaObjects); err != nil {
		return nil, errors.Wrap(err, "query current schema")
	}
	return toObjects(rows), nil
}

// normalizeSQL ignores identifier quoting and whitespace. SQLite quotes the table name when a table is renamed.
func normalizeSQL(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, `"`, "")), " ")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (m *migration) exec(ctx context.Context, msg string, query string) error {
	m.logger.LogAttrs(ctx, slog.LevelInfo, msg, slog.String("query", query))
	if _, err := m.tx.ExecContext(ctx, query); err != nil {
		return errors.Wrap(err, msg, slog.String("query", query))
	}
	return nil
}

// migrateTables ensures table schema is synchronized between databases.
func (m *migration) migrateTables(ctx context.Context) error {
	current, err := m.currentObjects(ctx)
	if err != nil {
		return err
	}

	// Drop deleted tables.
	for _, table := range current.ofType("table") {
		if target, ok := m.targetObjects[table.Name]; ok && target.Type == "table" {
			continue
		}
		if err = m.exec(ctx, "dropping table", "DROP TABLE "+quoteIdent(table.Name)); err != nil {
			return err
		}
	}

	for _, table := range m.targetObjects.ofType("table") {
		existing, ok := current[table.Name]
		switch {
		case !ok || existing.Type != "table":
			// Create new tables.
			if err = m.exec(ctx, "creating table", table.SQL); err != nil {
				return err
			}
		case normalizeSQL(existing.SQL) != normalizeSQL(table.SQL):
			if err = m.rebuildTable(ctx, existing, table); err != nil {
				return errors.Wrap(err, "rebuild table", slog.String("table", table.Name))
			}
		}
	}
	return nil
}

// rebuildTable carries a changed table over to its new definition, keeping the data of the common columns.
func (m *migration) rebuildTable(ctx context.Context, current, target schemaObject) error {
	m.logger.LogAttrs(ctx, slog.LevelInfo, "migrating table",
		slog.String("table", target.Name),
		slog.String("current_sql", current.SQL),
		slog.String("new_sql", target.SQL))

	// Step 4: Create tables according to new schema on temporary names.
	tempName := target.Name + "_migration_temp"
	tempNameSQL := strings.Replace(target.SQL, target.Name, tempName, 1)
	if err := m.exec(ctx, "create new table to temporary name", tempNameSQL); err != nil {
		return err
	}

	// Step 5: Copy common columns between tables.
	commonColumns, err := m.commonColumns(ctx, target.Name)
	if err != nil {
		return err
	}
	if len(commonColumns) > 0 {
		common := strings.Join(commonColumns, ", ")
		copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s;", //nolint:gosec // identifiers are quoted.
			quoteIdent(tempName), common, common, quoteIdent(target.Name))
		if err = m.exec(ctx, "copying data", copySQL); err != nil {
			return err
		}
	}

	// Step 6: Drop the old table.
	if err = m.exec(ctx, "drop old table", "DROP TABLE "+quoteIdent(target.Name)); err != nil {
		return err
	}

	// Step 7: Rename new table to old table's name.
	return m.exec(ctx, "rename new table",
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(tempName), quoteIdent(target.Name)))
}

func (m *migration) commonColumns(ctx context.Context, table string) ([]string, error) {
	const query = `SELECT name FROM PRAGMA_TABLE_INFO(?)`
	var currentColumns, targetColumns []string
	if err := m.tx.SelectContext(ctx, &currentColumns, query, table); err != nil {
		return nil, errors.Wrap(err, "query current columns")
	}
	if err := m.target.SelectContext(ctx, &targetColumns, query, table); err != nil {
		return nil, errors.Wrap(err, "query target columns")
	}
	var common []string
	for _, column := range currentColumns {
		if slices.Contains(targetColumns, column) {
			// Quoting handles column names that are SQLite keywords.
			common = append(common, quoteIdent(column))
		}
	}
	return common, nil
}

// migrateIndexesAndTriggers runs after the tables are migrated because rebuilt tables lose their indexes and
// triggers.
func (m *migration) migrateIndexesAndTriggers(ctx context.Context) error {
	current, err := m.currentObjects(ctx)
	if err != nil {
		return err
	}
	for _, objectType := range []string{"trigger", "index"} {
		for _, object := range current.ofType(objectType) {
			if target, ok := m.targetObjects[object.Name]; ok && target.Type == objectType && target.SQL == object.SQL {
				continue
			}
			drop := fmt.Sprintf("DROP %s IF EXISTS %s", strings.ToUpper(objectType), quoteIdent(object.Name))
			if err = m.exec(ctx, "dropping "+objectType, drop); err != nil {
				return err
			}
		}
	}
	for _, objectType := range []string{"index", "trigger"} {
		for _, object := range m.targetObjects.ofType(objectType) {
			if existing, ok := current[object.Name]; ok && existing.Type == objectType && existing.SQL == object.SQL {
				continue
			}
			if err = m.exec(ctx, "creating "+objectType, object.SQL); err != nil {
				return err
			}
		}
	}
	return nil
}

type foreignKeyViolation struct {
	Table  string `db:"table"`
	RowID  *int64 `db:"rowid"`
	Parent string `db:"parent"`
	FKID   int    `db:"fkid"`
}

func (m *migration) checkForeignKeys(ctx context.Context) error {
	var violations []foreignKeyViolation
	if err := m.tx.SelectContext(ctx, &violations, "PRAGMA foreign_key_check"); err != nil {
		return errors.Wrap(err, "foreign key check")
	}
	if len(violations) > 0 {
		return errors.New("foreign key violations after migration",
			slog.Int("count", len(violations)),
			slog.String("table", violations[0].Table),
			slog.String("parent", violations[0].Parent))
	}
	return nil
}
