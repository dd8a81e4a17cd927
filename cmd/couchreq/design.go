package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchreq/couchreq"
	"github.com/couchreq/couchreq/ddoc"
)

var stageSuffix string

var syncCmd = &cobra.Command{
	Use:   "sync <dir> <db>",
	Short: "Push design documents to a database",
	Long: `Sync loads every design document under dir (one subdirectory per
document, couchapp layout) and pushes them to db, creating the database
if needed. Documents whose stored content already matches are skipped.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		db, docs, err := designTargets(ctx, args)
		if err != nil {
			return err
		}
		results, err := ddoc.Sync(ctx, db, docs...)
		printResults(results)
		return err
	},
}

var stageCmd = &cobra.Command{
	Use:   "stage <dir> <db>",
	Short: "Push design documents under staged IDs and build their views",
	Long: `Stage pushes each design document under a suffixed ID and queries one
of its views, so the server builds the new index while the live design
documents keep serving. Follow with promote once the build finishes.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		db, docs, err := designTargets(ctx, args)
		if err != nil {
			return err
		}
		results, err := ddoc.Stage(ctx, db, stageSuffix, docs...)
		printResults(results)
		return err
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <dir> <db>",
	Short: "Copy staged design documents over the live ones",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		db, docs, err := designTargets(ctx, args)
		if err != nil {
			return err
		}
		results, err := ddoc.Promote(ctx, db, stageSuffix, docs...)
		printResults(results)
		return err
	},
}

func designTargets(ctx context.Context, args []string) (*couchreq.Database, []*ddoc.DesignDoc, error) {
	docs, err := ddoc.LoadDir(args[0])
	if err != nil {
		return nil, nil, err
	}
	server, err := connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	db, err := server.GetOrCreateDB(ctx, args[1])
	if err != nil {
		return nil, nil, err
	}
	return db, docs, nil
}

func printResults(results []ddoc.Result) {
	for _, res := range results {
		if res.Updated {
			fmt.Printf("updated   %s (%s)\n", res.ID, res.Rev)
		} else {
			fmt.Printf("unchanged %s\n", res.ID)
		}
	}
}

func init() {
	for _, cmd := range []*cobra.Command{stageCmd, promoteCmd} {
		cmd.Flags().StringVar(&stageSuffix, "suffix", ddoc.DefaultSuffix, "staged document name suffix")
	}
	rootCmd.AddCommand(syncCmd, stageCmd, promoteCmd)
}
