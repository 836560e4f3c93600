package neo4jexport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrReservedDatabase is returned for database names that Neo4j keeps for its
// own use.
var ErrReservedDatabase = errors.New("reserved database name")

// BootstrapDatabase creates the named database, if it does not exist, together
// with a uniqueness constraint on the dtId of Twin nodes. The constraint
// prevents duplicate twins caused by concurrent MERGEs and backs the lookups
// made when linking relationships.
//
// Creating databases requires the enterprise edition of Neo4j.
//
// This function is idempotent.
func BootstrapDatabase(ctx context.Context, d neo4j.DriverWithContext, name string) error {
	if err := checkDatabaseName(name); err != nil {
		return err
	}
	if err := createDatabase(ctx, d, name); err != nil {
		return fmt.Errorf("create database: %w", err)
	}

	s := d.NewSession(ctx, neo4j.SessionConfig{DatabaseName: name})
	defer func() { _ = s.Close(ctx) }()

	_, err := s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			CREATE CONSTRAINT `+dtIDConstraint+` IF NOT EXISTS
			FOR (t:`+twinLabel+`)
			REQUIRE t.dtId IS UNIQUE
		`, nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("create constraints: %w", err)
	}
	return s.Close(ctx)
}

// checkDatabaseName rejects names reserved by Neo4j. Other naming rules are
// left to the server.
func checkDatabaseName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("database name must not be empty")
	case name == "neo4j":
		return fmt.Errorf("%w: %q is the default database", ErrReservedDatabase, name)
	case strings.HasPrefix(name, "system"), strings.HasPrefix(name, "_"):
		return fmt.Errorf("%w: %q is reserved for internal use", ErrReservedDatabase, name)
	}
	return nil
}

func createDatabase(ctx context.Context, d neo4j.DriverWithContext, name string) error {
	s := d.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() { _ = s.Close(ctx) }()

	result, err := s.Run(ctx, `
		CREATE DATABASE $name IF NOT EXISTS WAIT
	`, map[string]any{
		"name": name,
	})
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}
