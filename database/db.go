package database

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/bancore/bancore/cache"
	"github.com/bancore/bancore/config"
)

// Package-level singleton so every caller shares one connection pool.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}

		cacheInstance, errCache := cache.NewCache()
		if errCache != nil {
			log.Printf("Error creating cache: %v", errCache)
			// Continue without cache instead of failing completely.
		}

		instance = &Datasource{Conn: con, Cache: cacheInstance}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createAccountTable(db)
	if err != nil {
		return nil, err
	}
	err = createTransactionTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createAccountTable creates a PostgreSQL table for the Account struct.
// The balance check constraint is the database-level backstop for the
// non-negative invariant enforced by the ledger's atomic units.
func createAccountTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id SERIAL PRIMARY KEY,
			account_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL UNIQUE,
			number TEXT NOT NULL UNIQUE,
			balance NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			account_type TEXT NOT NULL DEFAULT 'checking',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("Error creating accounts table: %v", err)
	}
	return err
}

// createTransactionTable creates a PostgreSQL table for the Transaction
// struct. idempotency_key is globally unique when present; Postgres allows
// multiple NULLs under a UNIQUE constraint.
func createTransactionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id SERIAL PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			source TEXT REFERENCES accounts(account_id),
			destination TEXT REFERENCES accounts(account_id),
			amount NUMERIC(20,2) NOT NULL CHECK (amount > 0),
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			description TEXT,
			idempotency_key TEXT UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("Error creating transactions table: %v", err)
	}
	return err
}
