package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomdb/loom/pkg/core"
	"github.com/loomdb/loom/pkg/loom"
)

var (
	dbPath  string
	backend string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "CLI tool for the loom graph engine",
	Long:  `A command-line interface for inspecting and editing a loom knowledge graph.`,
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage content nodes",
}

var nodeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a node",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeType, _ := cmd.Flags().GetString("type")
		text, _ := cmd.Flags().GetString("text")
		indexText, _ := cmd.Flags().GetString("index-text")
		origin, _ := cmd.Flags().GetString("origin")
		pipeline, _ := cmd.Flags().GetString("pipeline")
		attrPairs, _ := cmd.Flags().GetStringSlice("attr")
		inbound, _ := cmd.Flags().GetStringSlice("in")
		outbound, _ := cmd.Flags().GetStringSlice("out")

		attrs, err := parseAttrs(attrPairs)
		if err != nil {
			return err
		}

		draft := core.NodeDraft{
			Type:      nodeType,
			Text:      text,
			Attrs:     attrs,
			IndexText: indexText,
			Origin:    origin,
			Inbound:   inbound,
			Outbound:  outbound,
		}
		if pipeline != "" {
			draft.Pipeline = &core.Pipeline{Key: pipeline}
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		node, err := db.Nodes().Create(context.Background(), draft)
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			return printJSON(node)
		}
		fmt.Printf("Node '%s' created\n", node.ID)
		return nil
	},
}

var nodeGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a node by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		node, err := db.Nodes().Get(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get node: %w", err)
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			return printJSON(node)
		}
		printNode(node)
		return nil
	},
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List nodes, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		it, err := db.Nodes().Iterate(ctx)
		if err != nil {
			return fmt.Errorf("failed to list nodes: %w", err)
		}

		var nodes []*core.Node
		for {
			node, err := it.Next(ctx)
			if errors.Is(err, core.ErrIteratorDone) {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to list nodes: %w", err)
			}
			nodes = append(nodes, node)
			if limit > 0 && len(nodes) >= limit {
				it.Abort()
				break
			}
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			return printJSON(nodes)
		}
		fmt.Printf("Nodes (%d):\n", len(nodes))
		for _, node := range nodes {
			fmt.Printf("  %s  %-10s %s\n", node.ID, node.Type, node.CreatedAt.Format("2006-01-02 15:04"))
			if verbose && node.Text != "" {
				fmt.Printf("    %s\n", node.Text)
			}
		}
		return nil
	},
}

var nodeUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a node's text fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetBool("keep-timestamp")
		update := core.NodeUpdate{ID: args[0], KeepTimestamp: keep}
		if cmd.Flags().Changed("text") {
			text, _ := cmd.Flags().GetString("text")
			update.Text = &text
		}
		if cmd.Flags().Changed("index-text") {
			indexText, _ := cmd.Flags().GetString("index-text")
			update.IndexText = &indexText
		}
		if update.Text == nil && update.IndexText == nil {
			return fmt.Errorf("nothing to update, pass --text or --index-text")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		node, err := db.Nodes().Update(context.Background(), update)
		if err != nil {
			return fmt.Errorf("failed to update node: %w", err)
		}
		fmt.Printf("Node '%s' updated\n", node.ID)
		return nil
	},
}

var nodeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a node and its edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Nodes().Delete(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete node: %w", err)
		}
		fmt.Printf("Node '%s' deleted\n", args[0])
		return nil
	},
}

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "Manage edges between nodes",
}

var edgeAddCmd = &cobra.Command{
	Use:   "add <from-id> <to-id>",
	Short: "Connect two nodes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		edge, err := db.Edges().Create(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to create edge: %w", err)
		}
		fmt.Printf("Edge '%s' created\n", edge.ID)
		return nil
	},
}

var edgeListCmd = &cobra.Command{
	Use:   "list <node-id>",
	Short: "List a node's edges, partitioned by direction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		all, err := db.Edges().GetAll(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to list edges: %w", err)
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			return printJSON(all)
		}
		fmt.Printf("Incoming (%d):\n", len(all.Incoming))
		for _, e := range all.Incoming {
			fmt.Printf("  %s <- %s\n", e.ID, e.From)
		}
		fmt.Printf("Outgoing (%d):\n", len(all.Outgoing))
		for _, e := range all.Outgoing {
			fmt.Printf("  %s -> %s\n", e.ID, e.To)
		}
		return nil
	},
}

var originCmd = &cobra.Command{
	Use:   "origin",
	Short: "Inspect and annotate origins",
}

var originNodesCmd = &cobra.Command{
	Use:   "nodes <origin>",
	Short: "List the nodes extracted from an origin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		nodes, err := db.Nodes().GetByOrigin(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to list origin nodes: %w", err)
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			return printJSON(nodes)
		}
		fmt.Printf("Nodes from %s (%d):\n", args[0], len(nodes))
		for _, node := range nodes {
			fmt.Printf("  %s  %s\n", node.ID, node.Type)
		}
		return nil
	},
}

var originVisitCmd = &cobra.Command{
	Use:   "visit <origin>",
	Short: "Record a visit to an origin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, _ := cmd.Flags().GetString("pipeline")
		at, err := parseAt(cmd)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Activity().AddVisit(context.Background(), args[0], at, pipeline); err != nil {
			return fmt.Errorf("failed to record visit: %w", err)
		}
		fmt.Printf("Visit to '%s' recorded\n", args[0])
		return nil
	},
}

var originAttentionCmd = &cobra.Command{
	Use:   "attention <origin>",
	Short: "Record an attention span on an origin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spanStr, _ := cmd.Flags().GetString("span")
		span, err := time.ParseDuration(spanStr)
		if err != nil {
			return fmt.Errorf("invalid span: %w", err)
		}
		at, err := parseAt(cmd)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Activity().AddAttention(context.Background(), args[0], at, span); err != nil {
			return fmt.Errorf("failed to record attention: %w", err)
		}
		fmt.Printf("Attention of %s on '%s' recorded\n", span, args[0])
		return nil
	},
}

var originActivityCmd = &cobra.Command{
	Use:   "activity <origin>",
	Short: "Show an origin's visit and attention record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		activity, err := db.Activity().Get(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get activity: %w", err)
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			return printJSON(activity)
		}
		fmt.Printf("Activity for %s:\n", args[0])
		fmt.Printf("  Visits: %d\n", len(activity.Visits))
		for _, v := range activity.Visits {
			if v.Pipeline != "" {
				fmt.Printf("    %s (via %s)\n", v.At.Format(time.RFC3339), v.Pipeline)
			} else {
				fmt.Printf("    %s\n", v.At.Format(time.RFC3339))
			}
		}
		fmt.Printf("  Attention: %d spans, %s total\n", len(activity.Attentions), activity.Total)
		return nil
	},
}

var assocCmd = &cobra.Command{
	Use:   "assoc",
	Short: "Manage origin associations",
}

var assocAddCmd = &cobra.Command{
	Use:   "add <from-origin> <to-origin>",
	Short: "Associate two origins",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		assocType, _ := cmd.Flags().GetString("type")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Associations().Record(context.Background(), args[0], args[1], assocType); err != nil {
			return fmt.Errorf("failed to record association: %w", err)
		}
		fmt.Printf("Origins '%s' and '%s' associated\n", args[0], args[1])
		return nil
	},
}

var assocGetCmd = &cobra.Command{
	Use:   "get <origin>",
	Short: "Show everything associated with an origin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		view, err := db.Associations().Get(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get associations: %w", err)
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			return printJSON(view)
		}
		fmt.Printf("Associations of %s (%d nodes):\n", view.Origin, len(view.NodeIDs))
		fmt.Printf("  From (%d):\n", len(view.From))
		for _, side := range view.From {
			printSide(side)
		}
		fmt.Printf("  To (%d):\n", len(view.To))
		for _, side := range view.To {
			printSide(side)
		}
		return nil
	},
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Manage ingestion pipelines",
}

var pipelinePurgeCmd = &cobra.Command{
	Use:   "purge <key>",
	Short: "Delete everything a pipeline ingested",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Printf("Delete all nodes ingested by '%s'? [y/N]: ", args[0])
			var response string
			fmt.Scanln(&response)
			if response != "y" && response != "Y" {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		p := core.Pipeline{Key: args[0]}
		count, err := db.Nodes().DeleteMany(context.Background(), core.DeleteFilter{Pipeline: &p})
		if err != nil {
			return fmt.Errorf("failed to purge pipeline: %w", err)
		}
		fmt.Printf("Deleted %d nodes\n", count)
		return nil
	},
}

var pipelineProgressCmd = &cobra.Command{
	Use:   "progress <key>",
	Short: "Show a pipeline's ingestion watermark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		mark, err := db.Ingestion().Progress(context.Background(), core.Pipeline{Key: args[0]})
		if err != nil {
			return fmt.Errorf("failed to get progress: %w", err)
		}
		if mark.IsZero() {
			fmt.Printf("Pipeline '%s' has not ingested yet\n", args[0])
			return nil
		}
		fmt.Printf("Pipeline '%s' ingested through %s\n", args[0], mark.Format(time.RFC3339))
		return nil
	},
}

var pipelineAdvanceCmd = &cobra.Command{
	Use:   "advance <key>",
	Short: "Move a pipeline's ingestion watermark forward",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toStr, _ := cmd.Flags().GetString("to")
		mark, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return fmt.Errorf("invalid watermark: %w", err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Ingestion().Advance(context.Background(), core.Pipeline{Key: args[0]}, mark); err != nil {
			return fmt.Errorf("failed to advance watermark: %w", err)
		}
		fmt.Printf("Pipeline '%s' advanced\n", args[0])
		return nil
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the account blob",
}

var accountGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the stored account blob",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		info, err := db.Account().Info(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get account info: %w", err)
		}
		if info == nil {
			fmt.Println("No account info stored")
			return nil
		}
		fmt.Println(string(info))
		return nil
	},
}

var accountSetCmd = &cobra.Command{
	Use:   "set <json>",
	Short: "Replace the stored account blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blob := json.RawMessage(args[0])
		if !json.Valid(blob) {
			return fmt.Errorf("account info must be valid JSON")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Account().SetInfo(context.Background(), blob); err != nil {
			return fmt.Errorf("failed to set account info: %w", err)
		}
		fmt.Println("Account info stored")
		return nil
	},
}

var accountClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored account blob",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Account().SetInfo(context.Background(), nil); err != nil {
			return fmt.Errorf("failed to clear account info: %w", err)
		}
		fmt.Println("Account info cleared")
		return nil
	},
}

func printNode(node *core.Node) {
	fmt.Printf("ID: %s\n", node.ID)
	fmt.Printf("Type: %s\n", node.Type)
	if node.Text != "" {
		fmt.Printf("Text: %s\n", node.Text)
	}
	if node.Origin != "" {
		fmt.Printf("Origin: %s\n", node.Origin)
	}
	if node.Pipeline != "" {
		fmt.Printf("Pipeline: %s\n", node.Pipeline)
	}
	for k, v := range node.Attrs {
		fmt.Printf("Attr %s: %s\n", k, v)
	}
	fmt.Printf("Created: %s\n", node.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated: %s\n", node.UpdatedAt.Format(time.RFC3339))
}

func printSide(side core.AssociationSide) {
	if side.Type != "" {
		fmt.Printf("    %s (%s, %d nodes)\n", side.Origin, side.Type, len(side.NodeIDs))
	} else {
		fmt.Printf("    %s (%d nodes)\n", side.Origin, len(side.NodeIDs))
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func parseAttrs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("invalid attribute %q, want key=value", pair)
		}
		attrs[kv[0]] = kv[1]
	}
	return attrs, nil
}

func parseAt(cmd *cobra.Command) (time.Time, error) {
	atStr, _ := cmd.Flags().GetString("at")
	if atStr == "" {
		return time.Now().UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, atStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	return at, nil
}

func openDB() (*loom.DB, error) {
	if dbPath == "" && backend != string(loom.BackendMemory) {
		return nil, fmt.Errorf("database path not specified")
	}

	level := core.LevelWarn
	if verbose {
		level = core.LevelDebug
	}
	config := loom.Config{
		Path:    dbPath,
		Backend: loom.Backend(backend),
		Logger:  core.NewStdLogger(level),
	}

	db, err := loom.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return db, nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "loom.db", "Database file or directory path")
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "sqlite", "Substrate backend (sqlite/badger/memory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Node commands
	nodeCmd.AddCommand(nodeAddCmd, nodeGetCmd, nodeListCmd, nodeUpdateCmd, nodeDeleteCmd)
	nodeAddCmd.Flags().String("type", "note", "Node type")
	nodeAddCmd.Flags().String("text", "", "Node text")
	nodeAddCmd.Flags().String("index-text", "", "Text prepared for indexing")
	nodeAddCmd.Flags().String("origin", "", "Origin the node was extracted from")
	nodeAddCmd.Flags().String("pipeline", "", "Pipeline key the node was ingested by")
	nodeAddCmd.Flags().StringSlice("attr", nil, "Attributes as key=value")
	nodeAddCmd.Flags().StringSlice("in", nil, "IDs of nodes to link from")
	nodeAddCmd.Flags().StringSlice("out", nil, "IDs of nodes to link to")
	nodeAddCmd.Flags().Bool("json", false, "Output as JSON")

	nodeGetCmd.Flags().Bool("json", false, "Output as JSON")

	nodeListCmd.Flags().Int("limit", 0, "Stop after this many nodes (0 for all)")
	nodeListCmd.Flags().Bool("json", false, "Output as JSON")

	nodeUpdateCmd.Flags().String("text", "", "New node text")
	nodeUpdateCmd.Flags().String("index-text", "", "New indexing text")
	nodeUpdateCmd.Flags().Bool("keep-timestamp", false, "Do not bump the update timestamp")

	// Edge commands
	edgeCmd.AddCommand(edgeAddCmd, edgeListCmd)
	edgeListCmd.Flags().Bool("json", false, "Output as JSON")

	// Origin commands
	originCmd.AddCommand(originNodesCmd, originVisitCmd, originAttentionCmd, originActivityCmd)
	originNodesCmd.Flags().Bool("json", false, "Output as JSON")
	originVisitCmd.Flags().String("pipeline", "", "Pipeline that reported the visit")
	originVisitCmd.Flags().String("at", "", "Visit time as RFC3339 (default now)")
	originAttentionCmd.Flags().String("span", "", "Attention span as a duration, for example 90s")
	originAttentionCmd.Flags().String("at", "", "Span start as RFC3339 (default now)")
	originAttentionCmd.MarkFlagRequired("span")
	originActivityCmd.Flags().Bool("json", false, "Output as JSON")

	// Association commands
	assocCmd.AddCommand(assocAddCmd, assocGetCmd)
	assocAddCmd.Flags().String("type", "", "Association type")
	assocGetCmd.Flags().Bool("json", false, "Output as JSON")

	// Pipeline commands
	pipelineCmd.AddCommand(pipelinePurgeCmd, pipelineProgressCmd, pipelineAdvanceCmd)
	pipelinePurgeCmd.Flags().Bool("force", false, "Skip confirmation prompt")
	pipelineAdvanceCmd.Flags().String("to", "", "New watermark as RFC3339")
	pipelineAdvanceCmd.MarkFlagRequired("to")

	// Account commands
	accountCmd.AddCommand(accountGetCmd, accountSetCmd, accountClearCmd)

	// Add all commands to root
	rootCmd.AddCommand(
		nodeCmd,
		edgeCmd,
		originCmd,
		assocCmd,
		pipelineCmd,
		accountCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
