package entities

import "time"

// Document is a JSON value stored under (collection, key).
type Document struct {
	Collection string    `gorm:"primaryKey;size:100" json:"collection"`
	Key        string    `gorm:"primaryKey;column:doc_key;size:255" json:"key"`
	Data       string    `gorm:"type:text" json:"data"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}
