package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/avindex"
)

var (
	pruneMaxMB  int64
	pruneMaxAge time.Duration
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the index cache",
}

var cachePathCmd = &cobra.Command{
	Use:   "path FILE...",
	Short: "Print where the index of each file is cached",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			entry, err := avindex.CachePath(path, cfg, avindex.WithLogger(logger))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), entry)
		}
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Evict old and least recently used index cache entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pruneCfg := cfg
		if cmd.Flags().Changed("max-size") {
			pruneCfg.MaxDiskCacheBytes = pruneMaxMB << 20
		}
		if cmd.Flags().Changed("max-age") {
			pruneCfg.MaxDiskCacheAge = pruneMaxAge
		}

		stats, err := avindex.PruneCache(cmd.Context(), pruneCfg, avindex.WithLogger(logger))
		if err != nil {
			return err
		}
		logger.Info("cache pruned",
			"removed", stats.Removed,
			"temp_removed", stats.TempRemoved,
			"freed_bytes", stats.FreedBytes,
			"remaining_bytes", stats.RemainingBytes)
		return nil
	},
}

func init() {
	cachePruneCmd.Flags().Int64Var(&pruneMaxMB, "max-size", 0, "prune the cache to this many megabytes (0 = no limit)")
	cachePruneCmd.Flags().DurationVar(&pruneMaxAge, "max-age", 0, "remove entries unused for longer than this (0 = no limit)")
	cacheCmd.AddCommand(cachePathCmd, cachePruneCmd)
}
