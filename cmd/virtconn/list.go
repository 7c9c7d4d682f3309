package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/virtconn/internal/conn"
	"github.com/jbweber/virtconn/internal/objects"
)

var listCmd = &cobra.Command{
	Use:   "list <domains|pools|volumes|nodedevs>",
	Short: "List objects on the connection",
	Long: `List guests, storage pools, storage volumes or node devices.

Volumes are collected from every running pool. Volumes that cannot be
described are skipped and logged.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   YAML list of objects
  -o json   JSON list of objects`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"domains", "pools", "volumes", "nodedevs"},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer closeConnection(c)

		objs, err := fetchObjects(c, args[0])
		if err != nil {
			return err
		}

		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		result, err := formatter.FormatObjects(objs)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

// fetchObjects runs the fetch for category and flattens the result.
func fetchObjects(c *conn.Connection, category string) ([]objects.Object, error) {
	switch category {
	case "domains":
		items, err := c.FetchDomains()
		return asObjects(items), err
	case "pools":
		items, err := c.FetchPools()
		return asObjects(items), err
	case "volumes":
		items, err := c.FetchVolumes()
		return asObjects(items), err
	case "nodedevs":
		items, err := c.FetchNodeDevices()
		return asObjects(items), err
	default:
		return nil, fmt.Errorf("unknown object category %q (valid: domains, pools, volumes, nodedevs)", category)
	}
}

func asObjects[T objects.Object](items []T) []objects.Object {
	out := make([]objects.Object, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}
