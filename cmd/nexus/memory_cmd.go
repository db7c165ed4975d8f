package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aryannaik/nexus/internal/nexus"
)

func rememberCmd() *cobra.Command {
	var tags []string
	var meta map[string]string
	cmd := &cobra.Command{
		Use:   "remember [text]",
		Short: "Store a memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			metadata := make(nexus.Metadata, len(meta))
			for k, v := range meta {
				metadata[k] = v
			}
			entry, err := a.memory.Remember(cmd.Context(), strings.Join(args, " "), tags, metadata)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entry)
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag to attach (repeatable)")
	cmd.Flags().StringToStringVarP(&meta, "meta", "m", nil, "metadata as key=value (repeatable)")
	return cmd
}

func searchCmd() *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by meaning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			hits, err := a.memory.Search(cmd.Context(), strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("No memories.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SCORE\tID\tCREATED\tTEXT")
			for _, h := range hits {
				it := h.Item()
				fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", h.Score, h.Entry.ID, h.Entry.CreatedAt.Format("2006-01-02 15:04"), it.Title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 10, "maximum number of results")
	return cmd
}

func forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget [id]",
		Short: "Delete a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.memory.Forget(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted memory: %s\n", args[0])
			return nil
		},
	}
}
