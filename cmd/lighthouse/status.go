package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/lighthouse/internal/cluster"
)

type statusOptions struct {
	addr    string
	all     bool
	output  string
	timeout time.Duration
}

func newStatusCommand() *cobra.Command {
	opts := statusOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a node, or of every node it knows",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := fetchStatuses(cmd.Context(), resty.New().SetTimeout(opts.timeout), opts.addr, opts.all)
			if err != nil {
				return err
			}
			return printStatuses(cmd.OutOrStdout(), rows, opts.output)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "127.0.0.1:8000", "address of the node to ask")
	cmd.Flags().BoolVar(&opts.all, "all", false, "list every node the target knows about")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "output format (table, json, yaml)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

// fetchStatuses asks one node for its status, or for the aggregate view when
// all is set. A single status is returned as a one-row table.
func fetchStatuses(ctx context.Context, client *resty.Client, addr string, all bool) ([]cluster.NodeStatus, error) {
	base := cluster.BaseURL(addr)
	if all {
		var rows []cluster.NodeStatus
		if err := cluster.GetJSON(ctx, client, base+cluster.PathAllStatuses, &rows); err != nil {
			return nil, fmt.Errorf("query %s: %w", addr, err)
		}
		return rows, nil
	}

	var resp cluster.StatusResponse
	if err := cluster.GetJSON(ctx, client, base+cluster.PathStatus, &resp); err != nil {
		return nil, fmt.Errorf("query %s: %w", addr, err)
	}
	return []cluster.NodeStatus{{Name: resp.Name, IP: addr, Status: resp.Status}}, nil
}

func printStatuses(w io.Writer, rows []cluster.NodeStatus, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		return yaml.NewEncoder(w).Encode(rows)
	case "", "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ADDRESS\tNAME\tSTATUS")
		for _, r := range rows {
			name := r.Name
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.IP, name, r.Status)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
