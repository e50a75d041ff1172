package models

import "time"

// Client represents a customer record a request is filed for.
type Client struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	Language  string    `db:"language" json:"language"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClientSearchMethod enumerates the supported lookup strategies.
type ClientSearchMethod string

const (
	SearchByPhone ClientSearchMethod = "phone"
	SearchByName  ClientSearchMethod = "name"
	SearchByID    ClientSearchMethod = "id"
)

// ClientCriteria captures a single client lookup request.
type ClientCriteria struct {
	Method ClientSearchMethod `json:"method" validate:"required,oneof=phone name id"`
	Value  string             `json:"value" validate:"required"`
	Limit  int                `json:"limit"`
}
