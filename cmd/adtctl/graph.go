package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielorbach/go-component"
	"github.com/spf13/cobra"

	"github.com/go-digitaltwin/go-adt/ingest"
	"github.com/go-digitaltwin/go-adt/neo4jexport"
)

func newIngestCmd(e env) *cobra.Command {
	var (
		url  string
		name string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Apply property updates received from a subscription until interrupted",
		Long: `Apply property updates received from a subscription until interrupted.

Each message is a JSON object such as

	{"twinId": "Room0", "add": {"Humidity": 20}, "replace": {"Temperature": 42}, "remove": ["Occupied"]}

The subscription URL selects the broker, e.g.
azuresb://topic?subscription=name for Azure Service Bus (configured by
SERVICEBUS_CONNECTION_STRING).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := component.Logger(ctx)

			client, err := e.openClient(cmd)
			if err != nil {
				return err
			}

			logger.Debug("Opening subscription...", slog.String("url", url))
			sub, err := e.openSubscription(ctx, url)
			if err != nil {
				return fmt.Errorf("open subscription: %w", err)
			}
			defer func() {
				if err := sub.Shutdown(context.WithoutCancel(ctx)); err != nil {
					logger.Error("Failed to shut down subscription", slog.Any("error", err))
				}
			}()
			logger.Info("Subscription opened, applying property updates...", slog.String("ingester", name))

			return ingest.New(name, sub, client).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&url, "subscription", "", "`url` of the subscription to receive from")
	cmd.Flags().StringVar(&name, "name", "adtctl", "`name` labelling the logs and metrics of the ingester")
	_ = cmd.MarkFlagRequired("subscription")
	return cmd
}

func newExportCmd(e env) *cobra.Command {
	var (
		uri, user, password string
		database            string
		concurrency         int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy all twins and relationships into a Neo4j database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := e.openClient(cmd)
			if err != nil {
				return err
			}

			driver, err := e.openNeo4j(uri, user, password)
			if err != nil {
				return fmt.Errorf("open neo4j driver: %w", err)
			}
			defer func() { _ = driver.Close(context.WithoutCancel(ctx)) }()

			if err := neo4jexport.BootstrapDatabase(ctx, driver, database); err != nil {
				return fmt.Errorf("bootstrap database: %w", err)
			}
			summary, err := neo4jexport.New(driver, database, neo4jexport.WithConcurrency(concurrency)).Export(ctx, client)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&uri, "neo4j-uri", "", "bolt `uri` of the Neo4j server")
	cmd.Flags().StringVar(&user, "neo4j-user", "", "Neo4j `user`; no authentication when empty")
	cmd.Flags().StringVar(&password, "neo4j-password", "", "Neo4j `password`")
	cmd.Flags().StringVar(&database, "database", "adt", "Neo4j `database` to export to, created if missing")
	cmd.Flags().IntVar(&concurrency, "concurrency", neo4jexport.DefaultConcurrency, "maximum relationship listings in flight")
	_ = cmd.MarkFlagRequired("neo4j-uri")
	return cmd
}
