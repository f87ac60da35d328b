// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kmorrow/chatloom/internal/storage"
	"github.com/kmorrow/chatloom/internal/util"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, store, err := openEnvironment()
		if err != nil {
			return err
		}
		defer store.Close()

		metas, err := store.List()
		if err != nil {
			return err
		}
		printSessionTable(cmd, metas)
		return nil
	},
}

var sessionsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find sessions by title or message content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, store, err := openEnvironment()
		if err != nil {
			return err
		}
		defer store.Close()

		metas, err := store.Search(args[0])
		if err != nil {
			return err
		}
		printSessionTable(cmd, metas)
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid session id %q", args[0])
		}

		_, _, store, err := openEnvironment()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(id); err != nil {
			return err
		}
		cmd.Printf("Deleted session %d.\n", id)
		return nil
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirmed, _ := cmd.Flags().GetBool("yes")
		if !confirmed {
			return fmt.Errorf("refusing to clear without --yes")
		}

		_, _, store, err := openEnvironment()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ClearAll(); err != nil {
			return err
		}
		cmd.Println("All sessions deleted.")
		return nil
	},
}

func init() {
	sessionsClearCmd.Flags().Bool("yes", false, "confirm deletion of all sessions")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsSearchCmd, sessionsDeleteCmd, sessionsClearCmd)
}

func printSessionTable(cmd *cobra.Command, metas []storage.SessionMeta) {
	if len(metas) == 0 {
		cmd.Println("No sessions.")
		return
	}
	for _, meta := range metas {
		cmd.Printf("%6d  %s  %s\n",
			meta.ID,
			meta.UpdatedAt.Format("2006-01-02 15:04"),
			util.TruncateRunes(meta.Title, 60))
	}
}
