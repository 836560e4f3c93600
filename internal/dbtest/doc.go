/*
Package dbtest runs throwaway database containers for integration tests.

The graph exports of this module are verified against a real Neo4j server:

	func TestSomething(t *testing.T) {
		driver := dbtest.SetupNeo4j(t)
		...
	}

Container-based tests are skipped under -short, so the unit tests of the module
run without Docker. Tests that need a specific customisation of the database
should use the testcontainers-go modules directly.

To keep a container around for manual inspection after a test fails, pass the
Inspect flag:

	go test ./neo4jexport -dbtest.inspect

This package is intended to be used in tests only.
*/
package dbtest
