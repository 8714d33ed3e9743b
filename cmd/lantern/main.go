package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kmorel/lantern"
	"github.com/kmorel/lantern/internal/output"
	"github.com/kmorel/lantern/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configPath   string
	cfg          *storage.Config
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lantern",
		Short: "Consent-aware Discord community index - ingest, cross-reference, and publish messages",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "output format: json, text, human (default: json)")

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(messagesCmd())
	rootCmd.AddCommand(authorMessagesCmd())
	rootCmd.AddCommand(latestCmd())
	rootCmd.AddCommand(solutionCmd())
	rootCmd.AddCommand(consentCmd())
	rootCmd.AddCommand(ignoreCmd())
	rootCmd.AddCommand(deleteMessageCmd())
	rootCmd.AddCommand(deleteChannelCmd())
	rootCmd.AddCommand(initConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	// Check if config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Use default config
		cfg = storage.DefaultConfig()
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg = storage.DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

func openEngine() (*lantern.Engine, error) {
	engine, err := lantern.NewEngine(lantern.EngineConfig{
		DBPath:      cfg.Database.Path,
		SiteBaseURL: cfg.Site.BaseURL,
		CDNBaseURL:  cfg.CDN.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func parseID(arg string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(arg, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", arg, err)
	}
	return id, nil
}

// ingestBatch is the JSON document accepted by `lantern ingest`. It carries
// the index context (servers, accounts, channels) along with the messages so
// a single file can be replayed into an empty database.
type ingestBatch struct {
	Servers  []lantern.Server         `json:"servers,omitempty"`
	Accounts []lantern.DiscordAccount `json:"accounts,omitempty"`
	Channels []lantern.Channel        `json:"channels,omitempty"`
	Messages []lantern.MessageUpsert  `json:"messages"`
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [batch-file]",
		Short: "Ingest a JSON batch of servers, accounts, channels, and messages (stdin when no file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			var data []byte
			var err error
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read batch: %w", err)
			}

			var batch ingestBatch
			if err := json.Unmarshal(data, &batch); err != nil {
				return fmt.Errorf("failed to parse batch: %w", err)
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			for _, s := range batch.Servers {
				if err := engine.UpsertServer(s); err != nil {
					return fmt.Errorf("failed to store server %d: %w", s.ID, err)
				}
			}
			for _, a := range batch.Accounts {
				if err := engine.UpsertAccount(a); err != nil {
					return fmt.Errorf("failed to store account %d: %w", a.ID, err)
				}
			}
			for _, c := range batch.Channels {
				if err := engine.UpsertChannel(c); err != nil {
					return fmt.Errorf("failed to store channel %d: %w", c.ID, err)
				}
			}

			res, err := engine.UpsertMessages(batch.Messages)
			if err != nil {
				return fmt.Errorf("failed to ingest messages: %w", err)
			}

			return formatter.OutputIngestResult(&output.IngestResult{
				Stored:  res.Stored,
				Skipped: res.Skipped,
			})
		},
	}
	return cmd
}

func showCmd() *cobra.Command {
	var viewerID int64
	cmd := &cobra.Command{
		Use:   "show <message-id>",
		Short: "Show one message with author, attachments, solutions, and mention metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			messageID, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			var viewer *int64
			if cmd.Flags().Changed("viewer") {
				viewer = &viewerID
			}

			enriched, err := engine.EnrichMessage(context.Background(), viewer, messageID)
			if err != nil {
				return fmt.Errorf("failed to load message: %w", err)
			}
			return formatter.OutputMessage(enriched)
		},
	}
	cmd.Flags().Int64VarP(&viewerID, "viewer", "v", 0, "viewer account id (omit for anonymous)")
	return cmd
}

func messagesCmd() *cobra.Command {
	var viewerID int64
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "messages <channel-id>",
		Short: "List a channel's messages in order, with private ones redacted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			channelID, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			var viewer *int64
			if cmd.Flags().Changed("viewer") {
				viewer = &viewerID
			}

			page, err := engine.EnrichChannelMessages(context.Background(), viewer, channelID, limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list messages: %w", err)
			}
			return formatter.OutputMessageList(page)
		},
	}
	cmd.Flags().Int64VarP(&viewerID, "viewer", "v", 0, "viewer account id (omit for anonymous)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of messages to show")
	cmd.Flags().IntVarP(&offset, "offset", "o", 0, "number of messages to skip")
	return cmd
}

func authorMessagesCmd() *cobra.Command {
	var viewerID int64
	cmd := &cobra.Command{
		Use:   "author-messages <author-id> <server-id>",
		Short: "List every message an author wrote on a server, with private ones redacted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			authorID, err := parseID(args[0])
			if err != nil {
				return err
			}
			serverID, err := parseID(args[1])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			var viewer *int64
			if cmd.Flags().Changed("viewer") {
				viewer = &viewerID
			}

			messages, err := engine.EnrichAuthorMessages(context.Background(), viewer, authorID, serverID)
			if err != nil {
				return fmt.Errorf("failed to list author messages: %w", err)
			}
			return formatter.OutputMessageList(messages)
		},
	}
	cmd.Flags().Int64VarP(&viewerID, "viewer", "v", 0, "viewer account id (omit for anonymous)")
	return cmd
}

func latestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest <channel-id>",
		Short: "Show the newest message in a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channelID, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			latest, err := engine.LatestChannelMessage(channelID)
			if err != nil {
				return fmt.Errorf("failed to get latest message: %w", err)
			}
			if latest == nil {
				fmt.Println("Channel is empty")
				return nil
			}
			return json.NewEncoder(os.Stdout).Encode(latest)
		},
	}
}

func solutionCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "solution <question-id> [solution-id]",
		Short: "Mark a message as the solution to a question, or clear the link",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			questionID, err := parseID(args[0])
			if err != nil {
				return err
			}

			var solutionID *int64
			if len(args) == 2 {
				id, err := parseID(args[1])
				if err != nil {
					return err
				}
				solutionID = &id
			}
			if clear && solutionID != nil {
				return fmt.Errorf("cannot pass both a solution id and --clear")
			}
			if !clear && solutionID == nil {
				return fmt.Errorf("pass a solution id or --clear")
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.SetSolution(questionID, solutionID); err != nil {
				return fmt.Errorf("failed to set solution: %w", err)
			}
			if solutionID != nil {
				fmt.Printf("Marked message %d as the solution to %d\n", *solutionID, questionID)
			} else {
				fmt.Printf("Cleared the solution for %d\n", questionID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "remove the current solution link")
	return cmd
}

func consentCmd() *cobra.Command {
	var userID, serverID int64
	var disableIndexing, allowPublic bool
	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Update a user's consent flags on a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			settings, deleted, err := engine.UpdateConsentSettings(lantern.UserServerSettings{
				UserID:                     userID,
				ServerID:                   serverID,
				MessageIndexingDisabled:    disableIndexing,
				CanPubliclyDisplayMessages: allowPublic,
			})
			if err != nil {
				return fmt.Errorf("failed to update consent: %w", err)
			}
			return formatter.OutputConsentResult(settings, deleted)
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "user account id")
	cmd.Flags().Int64VarP(&serverID, "server", "s", 0, "server id")
	cmd.Flags().BoolVar(&disableIndexing, "disable-indexing", false, "opt the user out of indexing (deletes their messages)")
	cmd.Flags().BoolVar(&allowPublic, "allow-public", false, "consent to public display")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("server")
	return cmd
}

func ignoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ignore <account-id>",
		Short: "Permanently exclude an account from indexing and delete its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.IgnoreAccount(accountID); err != nil {
				return fmt.Errorf("failed to ignore account: %w", err)
			}
			fmt.Printf("Account %d is now ignored\n", accountID)
			return nil
		},
	}
}

func deleteMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-message <message-id>",
		Short: "Delete a message with its attachments and reactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			messageID, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.DeleteMessage(messageID); err != nil {
				return fmt.Errorf("failed to delete message: %w", err)
			}
			return formatter.OutputDeleteResult("message", 1)
		},
	}
}

func deleteChannelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-channel <channel-id>",
		Short: "Delete a channel, its threads, their settings, and all contained messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			channelID, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			deleted, err := engine.DeleteChannel(channelID)
			if err != nil {
				return fmt.Errorf("failed to delete channel: %w", err)
			}
			return formatter.OutputDeleteResult("channel", deleted)
		},
	}
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = "./config/config.yaml"
			}

			// Create config directory
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			// Check if config already exists
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			// Write default config
			cfg := storage.DefaultConfig()
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if err := os.WriteFile(configPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Printf("Created default config at %s\n", configPath)
			return nil
		},
	}
}
