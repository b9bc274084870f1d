// Package db opens and migrates the chapel database.
package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN from user/host/port/database. parseTime is required
// so DATETIME columns scan into time.Time.
func DSN(user, host string, port int, database string) string {
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", user, host, port, database)
}

// ConnectSQLite opens a GORM connection to a SQLite database file.
// Transactions begin with BEGIN IMMEDIATE and queued writers wait out the
// lock, so two consent presses landing at once serialize instead of the
// loser failing with "database is locked".
func ConnectSQLite(path string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path+"?_txlock=immediate&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	return gdb, nil
}

// ConnectMySQL opens a GORM connection to a MySQL database.
func ConnectMySQL(user, host string, port int, database string) (*gorm.DB, error) {
	gdb, err := gorm.Open(mysql.Open(DSN(user, host, port, database)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", host, port, database, err)
	}
	return gdb, nil
}
