package database

import (
	"context"

	"github.com/cometik/assessd/component"
)

const componentName = "database"

// Ensure *DBComponent satisfies component.Component at compile time.
var _ component.Component = (*DBComponent)(nil)

// DBComponent wraps an open DB to implement component.Component.
type DBComponent struct {
	db *DB
}

// NewComponent returns a component.Component backed by the given DB.
func NewComponent(db *DB) *DBComponent {
	return &DBComponent{db: db}
}

// Name returns the component name used for registration.
func (dc *DBComponent) Name() string { return componentName }

// Start verifies connectivity. The connection pool is already open.
func (dc *DBComponent) Start(ctx context.Context) error {
	return dc.db.PingContext(ctx)
}

// Stop closes the connection pool.
func (dc *DBComponent) Stop(ctx context.Context) error {
	return dc.db.Close()
}

// Health pings the database.
func (dc *DBComponent) Health(ctx context.Context) component.Health {
	if err := dc.db.PingContext(ctx); err != nil {
		return component.Health{
			Name:    componentName,
			Status:  component.StatusUnhealthy,
			Message: err.Error(),
		}
	}
	return component.Health{
		Name:   componentName,
		Status: component.StatusHealthy,
	}
}
