package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-digitaltwin/go-adt"
)

func newModelsCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the IDs of the models uploaded to the instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := e.openClient(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), client.ModelIDs())
		},
	}
}

func newModelCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "model <model-id>",
		Short: "Show a model together with its DTDL definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := e.openClient(cmd)
			if err != nil {
				return err
			}
			m, err := client.GetModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
}

func newGetCmd(e env) *cobra.Command {
	var names []string
	cmd := &cobra.Command{
		Use:   "get <twin-id>",
		Short: "Show a twin, or only some of its properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := e.openClient(cmd)
			if err != nil {
				return err
			}
			if len(names) > 0 {
				props, err := client.GetTwinProperties(cmd.Context(), args[0], names)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), props)
			}
			twin, err := client.GetTwin(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), twin)
		},
	}
	cmd.Flags().StringArrayVarP(&names, "property", "p", nil, "show only the named `property` (repeatable)")
	return cmd
}

func newListCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all twins of the instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := e.openClient(cmd)
			if err != nil {
				return err
			}
			twins, err := client.ListTwins(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), twins)
		},
	}
}

func newQueryCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "query <query>",
		Short: "List the twins selected by a query, e.g. \"SELECT * FROM digitaltwins T WHERE T.Temperature > 70\"",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := e.openClient(cmd)
			if err != nil {
				return err
			}
			twins, err := client.QueryTwins(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), twins)
		},
	}
}

func newUpsertCmd(e env) *cobra.Command {
	var (
		modelID string
		sets    []string
	)
	cmd := &cobra.Command{
		Use:   "upsert <twin-id>",
		Short: "Create or replace a twin of a known model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			bag := make(adt.PropertyBag, len(props))
			for _, p := range props {
				bag[p.Name] = p.Value
			}
			client, err := e.openClient(cmd)
			if err != nil {
				return err
			}
			twin, err := client.UpsertTwin(cmd.Context(), args[0], modelID, bag)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), twin)
		},
	}
	cmd.Flags().StringVarP(&modelID, "model", "m", "", "`model-id` the twin conforms to")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "initial property as `name=value` (repeatable)")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newUpdateCmd(e env) *cobra.Command {
	var adds, replaces, removes []string
	cmd := &cobra.Command{
		Use:   "update <twin-id>",
		Short: "Patch the properties of a twin",
		Long: `Patch the properties of a twin.

All additions apply first, then all replacements, then all removals, each in
the order given on the command line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			add, err := parseAssignments(adds)
			if err != nil {
				return fmt.Errorf("--add: %w", err)
			}
			replace, err := parseAssignments(replaces)
			if err != nil {
				return fmt.Errorf("--replace: %w", err)
			}
			client, err := e.openClient(cmd)
			if err != nil {
				return err
			}
			return client.UpdateTwin(cmd.Context(), args[0], add, replace, removes)
		},
	}
	cmd.Flags().StringArrayVar(&adds, "add", nil, "add a property as `name=value` (repeatable)")
	cmd.Flags().StringArrayVar(&replaces, "replace", nil, "replace a property as `name=value` (repeatable)")
	cmd.Flags().StringArrayVar(&removes, "remove", nil, "remove the `name`d property (repeatable)")
	return cmd
}

func newDeleteCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <twin-id>...",
		Short: "Delete twins, skipping those that do not exist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := e.openClient(cmd)
			if err != nil {
				return err
			}
			deleted, err := client.DeleteTwins(cmd.Context(), args)
			if deleted == nil {
				deleted = []string{}
			}
			if perr := printJSON(cmd.OutOrStdout(), deleted); perr != nil && err == nil {
				err = perr
			}
			return err
		},
	}
}

func newRelationshipsCmd(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "relationships <twin-id>",
		Short: "List the outgoing relationships of a twin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := e.openClient(cmd)
			if err != nil {
				return err
			}
			rels, err := client.ListRelationships(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rels)
		},
	}
}
