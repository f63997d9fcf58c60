// Package sqlstore keeps documents in the application database.
//
// # Usage
//
//	store := sqlstore.New(db.DB)
//	err := store.WriteDocument(ctx, "users", uid, record)
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/healthbook/internal/docstore"
	"github.com/mrlokans/healthbook/internal/entities"
)

// Store writes documents into the documents table.
type Store struct {
	db *gorm.DB
}

// New creates a store. The documents table must already be migrated.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WriteDocument inserts the document or replaces the existing one.
func (s *Store) WriteDocument(ctx context.Context, collection, key string, value any) error {
	if err := docstore.Validate(collection, key); err != nil {
		return &docstore.Error{Op: "write", Collection: collection, Key: key, Err: err}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return &docstore.Error{Op: "encode", Collection: collection, Key: key, Err: err}
	}

	doc := entities.Document{
		Collection: collection,
		Key:        key,
		Data:       string(data),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return &docstore.Error{Op: "write", Collection: collection, Key: key, Err: err}
	}
	return nil
}

// Read decodes a stored document into dst. It reports false if the document does not exist.
// Documents are write-only for the application; Read serves tests and operators.
func (s *Store) Read(ctx context.Context, collection, key string, dst any) (bool, error) {
	var doc entities.Document
	err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_key = ?", collection, key).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &docstore.Error{Op: "read", Collection: collection, Key: key, Err: err}
	}
	if err := json.Unmarshal([]byte(doc.Data), dst); err != nil {
		return false, &docstore.Error{Op: "decode", Collection: collection, Key: key, Err: err}
	}
	return true, nil
}
