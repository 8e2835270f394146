package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"chathistory/internal/config"
	"chathistory/internal/history"
	"chathistory/internal/historyclient"
	"chathistory/internal/retry"
	"chathistory/internal/transport"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().String("server", "", "history server URL (default HISTORY_SERVER_URL)")
	rootCmd.PersistentFlags().String("api-key", "", "API key for write requests (default HISTORY_API_KEY)")

	rootCmd.AddCommand(getCmd, listCmd, globalCmd, searchCmd, recordCmd)

	for _, c := range []*cobra.Command{listCmd, globalCmd} {
		c.Flags().Int("limit", 0, "page size (server default when 0)")
		c.Flags().Int("offset", 0, "entries to skip")
	}

	searchCmd.Flags().String("platform", "", "platform filter")
	searchCmd.Flags().String("user", "", "user id (requires --platform)")
	searchCmd.Flags().Int64("start", 0, "inclusive lower bound, unix seconds")
	searchCmd.Flags().Int64("end", 0, "inclusive upper bound, unix seconds")
	searchCmd.Flags().Int("limit", 0, "max results (server default when 0)")

	recordCmd.Flags().String("id", "", "task id (generated by server when empty)")
	recordCmd.Flags().String("platform", "", "platform (required)")
	recordCmd.Flags().String("user", "", "user id (required)")
	recordCmd.Flags().String("chat", "", "chat id")
	recordCmd.Flags().String("request", "", "request text")
	recordCmd.Flags().String("response", "", "response text")
	recordCmd.Flags().String("model", "", "model name")
	recordCmd.Flags().StringSlice("tool", nil, "tool call name, repeatable")
	recordCmd.Flags().Int("tokens", -1, "token usage")
	recordCmd.Flags().Duration("ttl", 0, "entry ttl (server default when 0)")
	_ = recordCmd.MarkFlagRequired("platform")
	_ = recordCmd.MarkFlagRequired("user")
}

var getCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Show one history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		e, err := client.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}
		printEntry(cmd.OutOrStdout(), e)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list <platform> <user-id>",
	Short: "List a user's history, newest first",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		entries, err := client.ListByUser(cmd.Context(), args[0], args[1], limit, offset)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		return printTable(cmd.OutOrStdout(), entries)
	},
}

var globalCmd = &cobra.Command{
	Use:   "global",
	Short: "List the global history feed, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		entries, err := client.ListGlobal(cmd.Context(), limit, offset)
		if err != nil {
			return fmt.Errorf("list global: %w", err)
		}
		return printTable(cmd.OutOrStdout(), entries)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search recent history by platform, user and time range",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		q := history.SearchQuery{}
		q.Platform, _ = cmd.Flags().GetString("platform")
		q.UserID, _ = cmd.Flags().GetString("user")
		q.Limit, _ = cmd.Flags().GetInt("limit")
		if q.UserID != "" && q.Platform == "" {
			return fmt.Errorf("--user requires --platform")
		}
		if cmd.Flags().Changed("start") {
			v, _ := cmd.Flags().GetInt64("start")
			q.StartTime = &v
		}
		if cmd.Flags().Changed("end") {
			v, _ := cmd.Flags().GetInt64("end")
			q.EndTime = &v
		}

		entries, err := client.Search(cmd.Context(), q)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		return printTable(cmd.OutOrStdout(), entries)
	},
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Save one request/response pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		e, ttl, err := entryFromFlags(cmd)
		if err != nil {
			return err
		}
		id, err := client.Save(cmd.Context(), e, ttl)
		if err != nil {
			return fmt.Errorf("record entry: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func newClient(cmd *cobra.Command) (*historyclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return clientFromConfig(cmd, cfg), nil
}

func clientFromConfig(cmd *cobra.Command, cfg config.Config) *historyclient.Client {
	server := cfg.Client.ServerURL
	if v, _ := cmd.Flags().GetString("server"); v != "" {
		server = v
	}
	apiKey := cfg.APIKey
	if v, _ := cmd.Flags().GetString("api-key"); v != "" {
		apiKey = v
	}

	return historyclient.New(
		historyclient.Config{BaseURL: server, APIKey: apiKey},
		transport.NewHTTPClient(cfg.Client.RequestTimeout),
		retry.DefaultPolicy(),
		newLogger(cfg.LogLevel),
	)
}

func entryFromFlags(cmd *cobra.Command) (history.Entry, time.Duration, error) {
	f := cmd.Flags()
	var e history.Entry
	e.ID, _ = f.GetString("id")
	e.Platform, _ = f.GetString("platform")
	e.UserID, _ = f.GetString("user")
	e.ChatID, _ = f.GetString("chat")
	e.Request, _ = f.GetString("request")
	e.Response, _ = f.GetString("response")
	e.ToolCalls, _ = f.GetStringSlice("tool")
	e.Timestamp = time.Now().Unix()

	if model, _ := f.GetString("model"); model != "" {
		e.Model = &model
	}
	if tokens, _ := f.GetInt("tokens"); tokens >= 0 {
		e.TokenUsage = &tokens
	}

	ttl, _ := f.GetDuration("ttl")
	if ttl < 0 {
		return history.Entry{}, 0, fmt.Errorf("--ttl must not be negative")
	}
	return e, ttl, nil
}

func printTable(w io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK ID\tTIME\tPLATFORM\tUSER\tMODEL\tREQUEST")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			time.Unix(e.Timestamp, 0).UTC().Format("2006-01-02 15:04:05"),
			e.Platform,
			e.UserID,
			deref(e.Model),
			truncate(e.Request, 40),
		)
	}
	return tw.Flush()
}

func printEntry(w io.Writer, e history.Entry) {
	fmt.Fprintf(w, "Task ID:   %s\n", e.ID)
	fmt.Fprintf(w, "Time:      %s\n", time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Platform:  %s\n", e.Platform)
	fmt.Fprintf(w, "User:      %s\n", e.UserID)
	fmt.Fprintf(w, "Chat:      %s\n", e.ChatID)
	fmt.Fprintf(w, "Model:     %s\n", deref(e.Model))
	if e.TokenUsage != nil {
		fmt.Fprintf(w, "Tokens:    %d\n", *e.TokenUsage)
	}
	if len(e.ToolCalls) > 0 {
		fmt.Fprintf(w, "Tools:     %s\n", strings.Join(e.ToolCalls, ", "))
	}
	fmt.Fprintf(w, "\nRequest:\n%s\n\nResponse:\n%s\n", e.Request, e.Response)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

