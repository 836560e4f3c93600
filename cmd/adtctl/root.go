package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/danielorbach/go-component"
	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cobra"
	"gocloud.dev/pubsub"

	"github.com/go-digitaltwin/go-adt"
	"github.com/go-digitaltwin/go-adt/adtrest"

	// Register the pubsub drivers that ingest may subscribe with.
	_ "gocloud.dev/pubsub/azuresb"
	_ "gocloud.dev/pubsub/mempubsub"
)

// env holds the external dependencies of the commands, so that tests can
// replace them.
type env struct {
	dial             adt.Dialer
	openSubscription func(ctx context.Context, url string) (*pubsub.Subscription, error)
	openNeo4j        func(uri, user, password string) (neo4j.DriverWithContext, error)
}

func defaultEnv() env {
	return env{
		dial:             adtrest.Dial,
		openSubscription: pubsub.OpenSubscription,
		openNeo4j: func(uri, user, password string) (neo4j.DriverWithContext, error) {
			auth := neo4j.NoAuth()
			if user != "" {
				auth = neo4j.BasicAuth(user, password, "")
			}
			return neo4j.NewDriverWithContext(uri, auth)
		},
	}
}

func newRootCmd(e env) *cobra.Command {
	var (
		verbose bool
		envFile string
	)
	root := &cobra.Command{
		Use:           "adtctl",
		Short:         "adtctl inspects and edits the twins of an Azure Digital Twins instance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load env file: %w", err)
				}
			}
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			cmd.SetContext(component.InjectLogger(cmd.Context(), logger))
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every remote call")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from a dotenv `file`")

	root.AddCommand(
		newModelsCmd(e),
		newModelCmd(e),
		newGetCmd(e),
		newListCmd(e),
		newQueryCmd(e),
		newUpsertCmd(e),
		newUpdateCmd(e),
		newDeleteCmd(e),
		newRelationshipsCmd(e),
		newIngestCmd(e),
		newExportCmd(e),
	)
	return root
}

// openClient connects to the instance configured by the environment.
func (e env) openClient(cmd *cobra.Command) (*adt.Client, error) {
	cfg, err := adt.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return adt.Open(cmd.Context(), cfg, e.dial)
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
