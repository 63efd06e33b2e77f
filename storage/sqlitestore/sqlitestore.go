// Package sqlitestore provides a SQLite implementation of storage.Store.
//
// Examples:
//
//	store := sqlitestore.New("file:carebridge.db")
//
//	store := sqlitestore.New(":memory:")
package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mattn/go-sqlite3"

	"github.com/carebridge/portal/storage"
)

// Option is a functional option for configuring the store.
type Option func(*store)

// WithTableName overrides the default table name of "portal_store".
func WithTableName(tableName string) Option {
	return func(s *store) {
		s.tableName = tableName
	}
}

// New returns a store that provides sqlite backed storage, the table will be
// created optimistically on initialization. Any errors are considered
// non-recoverable and will panic.
func New(conn string, opts ...Option) storage.Store {
	db, err := sql.Open("sqlite3", conn)
	if err != nil {
		panic("failed to open sqlite connection: " + err.Error())
	}
	s := &store{
		db:        db,
		tableName: "portal_store",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ensureTable()
	return s
}

type store struct {
	db *sql.DB

	tableName string
}

func (s *store) ensureTable() {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS ` + s.tableName + ` (
		id TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id, entity_type)
	);`)
	if err != nil {
		panic("failed to create table: " + err.Error())
	}
}

func (s *store) Create(models ...storage.Model) error {
	tx, err := s.db.Begin()
	if err != nil {
		return translateError(err)
	}

	stmt, err := tx.Prepare("INSERT INTO " + s.tableName + " (id, entity_type, value) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return translateError(err)
	}
	defer stmt.Close()

	for _, model := range models {
		id := model.PK()
		entityType := storage.Name(model)
		value, err := json.Marshal(model)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: %s", storage.ErrInvalidModel, err)
		}
		_, err = stmt.Exec(id, entityType, value)
		if err != nil {
			tx.Rollback()
			return translateError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return translateError(err)
	}

	return nil
}

func (s *store) Read(id string, model storage.Model) error {
	if err := storage.ValidateReceiver(model); err != nil {
		return err
	}

	query := "SELECT value FROM " + s.tableName + " WHERE id = ? AND entity_type = ?"
	row := s.db.QueryRow(query, id, storage.Name(model))

	var value []byte
	err := row.Scan(&value)
	if err != nil {
		return translateError(err)
	}

	return json.Unmarshal(value, model)
}

func (s *store) Update(models ...storage.Model) error {
	tx, err := s.db.Begin()
	if err != nil {
		return translateError(err)
	}

	stmt, err := tx.Prepare("UPDATE " + s.tableName + " SET value = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND entity_type = ?")
	if err != nil {
		tx.Rollback()
		return translateError(err)
	}
	defer stmt.Close()

	for _, model := range models {
		value, err := json.Marshal(model)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: %s", storage.ErrInvalidModel, err)
		}
		res, err := stmt.Exec(value, model.PK(), storage.Name(model))
		if err != nil {
			tx.Rollback()
			return translateError(err)
		}
		if i, err := res.RowsAffected(); i == 0 || err != nil {
			tx.Rollback()
			return storage.ErrNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return translateError(err)
	}

	return nil
}

func (s *store) Upsert(models ...storage.Model) error {
	tx, err := s.db.Begin()
	if err != nil {
		return translateError(err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO ` + s.tableName + ` (id, entity_type, value, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id, entity_type) DO UPDATE SET
		value = excluded.value, updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		tx.Rollback()
		return translateError(err)
	}
	defer stmt.Close()

	for _, model := range models {
		value, err := json.Marshal(model)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: %s", storage.ErrInvalidModel, err)
		}
		_, err = stmt.Exec(model.PK(), storage.Name(model), value)
		if err != nil {
			tx.Rollback()
			return translateError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return translateError(err)
	}

	return nil
}

// Merge reads the stored document, overlays the partial's non-zero fields,
// and writes it back within a single transaction.
func (s *store) Merge(id string, partial storage.Model) error {
	patch, err := storage.PartialFields(partial)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return translateError(err)
	}

	entityType := storage.Name(partial)
	row := tx.QueryRow("SELECT value FROM "+s.tableName+" WHERE id = ? AND entity_type = ?", id, entityType)

	var value []byte
	if err := row.Scan(&value); err != nil {
		tx.Rollback()
		return translateError(err)
	}

	doc := map[string]interface{}{}
	if err := json.Unmarshal(value, &doc); err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: %s", storage.ErrInvalidModel, err)
	}
	for k, v := range patch {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: %s", storage.ErrInvalidModel, err)
	}

	if _, err := tx.Exec("UPDATE "+s.tableName+" SET value = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND entity_type = ?", merged, id, entityType); err != nil {
		tx.Rollback()
		return translateError(err)
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return translateError(err)
	}

	return nil
}

func (s *store) Delete(model storage.Model) error {
	res, err := s.db.Exec("DELETE FROM "+s.tableName+" WHERE id = ? AND entity_type = ?", model.PK(), storage.Name(model))
	if err != nil {
		return translateError(err)
	}
	if i, err := res.RowsAffected(); i == 0 || err != nil {
		return storage.ErrNotFound
	}
	return nil
}

func (s *store) Exists(id string, model storage.Model) (bool, error) {
	row := s.db.QueryRow("SELECT 1 FROM "+s.tableName+" WHERE id = ? AND entity_type = ?", id, storage.Name(model))
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, translateError(err)
	}
	return true, nil
}

// List always performs a full scan of the entity type, filtering in memory.
func (s *store) List(models interface{}, filter storage.Model) error {
	modelsVal := reflect.ValueOf(models)
	if modelsVal.Kind() != reflect.Ptr || modelsVal.Elem().Kind() != reflect.Slice {
		return storage.ErrSliceRequired
	}

	sliceVal := modelsVal.Elem()
	elemType := sliceVal.Type().Elem()
	if elemType != reflect.TypeOf(filter) {
		return storage.ErrTypeMismatch
	}

	rows, err := s.db.Query("SELECT value FROM "+s.tableName+" WHERE entity_type = ? ORDER BY id", storage.Name(filter))
	if err != nil {
		return translateError(err)
	}
	defer rows.Close()

	filterValue := reflect.ValueOf(filter)

	for rows.Next() {
		var value []byte
		if err := rows.Scan(&value); err != nil {
			return translateError(err)
		}

		newElemPtr := reflect.New(elemType)
		if err := json.Unmarshal(value, newElemPtr.Interface()); err != nil {
			return fmt.Errorf("%w: %s", storage.ErrInvalidModel, err)
		}
		newElem := newElemPtr.Elem()

		skip := false
		for i := 0; i < newElem.NumField(); i++ {
			if shouldFilter(filterValue.Field(i)) {
				if !reflect.DeepEqual(newElem.Field(i).Interface(), filterValue.Field(i).Interface()) {
					skip = true
					break
				}
			}
		}
		if !skip {
			sliceVal.Set(reflect.Append(sliceVal, newElem))
		}
	}

	return rows.Err()
}

// shouldFilter returns true for non-zero values and non-nil pointers.
func shouldFilter(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return !v.IsNil()
	default:
		return !reflect.DeepEqual(v.Interface(), reflect.Zero(v.Type()).Interface())
	}
}

func translateError(err error) error {
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if sqlErr, ok := err.(sqlite3.Error); ok {
		switch sqlErr.Code {
		case sqlite3.ErrNotFound:
			return storage.ErrNotFound
		case sqlite3.ErrConstraint:
			return storage.ErrAlreadyExists
		}
	}
	return err
}
