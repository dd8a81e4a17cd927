package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchreq/couchreq"
)

var dbsCmd = &cobra.Command{
	Use:   "dbs",
	Short: "List databases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmdContext(cmd)
		server, err := connect(ctx)
		if err != nil {
			return err
		}
		names, err := server.AllDBs(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var createdbCmd = &cobra.Command{
	Use:   "createdb <name>",
	Short: "Create a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		server, err := connect(ctx)
		if err != nil {
			return err
		}
		if _, err := server.CreateDB(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("created %s\n", args[0])
		return nil
	},
}

var deletedbCmd = &cobra.Command{
	Use:   "deletedb <name>",
	Short: "Delete a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		server, err := connect(ctx)
		if err != nil {
			return err
		}
		if err := server.DeleteDB(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

var (
	replicateContinuous   bool
	replicateCreateTarget bool
	replicateFilter       string
)

var replicateCmd = &cobra.Command{
	Use:   "replicate <source> <target>",
	Short: "Replicate one database to another",
	Long: `Replicate requests a replication on the server. Source and target are
local database names or remote database URLs. Without --continuous the
command waits for the replication to finish.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		server, err := connect(ctx)
		if err != nil {
			return err
		}
		result, err := server.Replicate(ctx, args[0], args[1], &couchreq.ReplicationOptions{
			Continuous:   replicateContinuous,
			CreateTarget: replicateCreateTarget,
			Filter:       replicateFilter,
		})
		if err != nil {
			return err
		}
		switch {
		case result.LocalID != "":
			fmt.Printf("replication started: %s\n", result.LocalID)
		case result.SessionID != "":
			fmt.Printf("replication complete: session %s, source seq %s\n", result.SessionID, result.SourceLastSeq)
		default:
			fmt.Println("replication complete")
		}
		return nil
	},
}

func init() {
	replicateCmd.Flags().BoolVar(&replicateContinuous, "continuous", false, "keep replicating as the source changes")
	replicateCmd.Flags().BoolVar(&replicateCreateTarget, "create-target", false, "create the target database if missing")
	replicateCmd.Flags().StringVar(&replicateFilter, "filter", "", "filter function, as ddoc/filtername")
	rootCmd.AddCommand(dbsCmd, createdbCmd, deletedbCmd, replicateCmd)
}
