package db

import "gorm.io/gorm"

// Schema holds every budget table; auth lives in its own schema.
const Schema = "opex"

func EnsureSchema(d *gorm.DB, schema string) error {
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS "` + schema + `"`).Error
}
