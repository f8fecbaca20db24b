package database

import (
	"context"
	"database/sql"
	"log"
	"sync"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/internal/cache"
)

// Connection state is process-wide. Every repository funnels through
// the same pool and cache handle.
var (
	instance *Datasource
	once     sync.Once
)

// Datasource bundles the postgres pool with the cache handle the
// repositories share.
type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

// NewDataSource returns the shared datasource, opening it on first use.
func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	return GetDBConnection(configuration)
}

// GetDBConnection opens the pool exactly once per process. A cache
// failure is logged and tolerated so the engine can run without Redis.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var connErr error
	once.Do(func() {
		conn, err := ConnectDB(configuration.DataSource.Dns)
		if err != nil {
			connErr = err
			return
		}
		newCache, err := cache.NewCache()
		if err != nil {
			log.Printf("cache init error, continuing without cache: %v", err)
		}
		instance = &Datasource{Conn: conn, Cache: newCache}
	})
	if connErr != nil {
		return nil, connErr
	}
	return instance, nil
}

// Ping verifies the database connection is alive.
func (d Datasource) Ping(ctx context.Context) error {
	return d.Conn.PingContext(ctx)
}

// ConnectDB opens and verifies the postgres connection. Schema is
// managed by the embedded migrations, not here.
func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		log.Printf("database connection failed: %v", err)
		return nil, err
	}
	return db, nil
}
