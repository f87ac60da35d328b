// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kmorrow/chatloom/internal/export"
	"github.com/kmorrow/chatloom/internal/model"
	"github.com/kmorrow/chatloom/internal/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a stored session to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid session id %q", args[0])
		}
		format, _ := cmd.Flags().GetString("format")
		outputDir, _ := cmd.Flags().GetString("out")

		_, settings, store, err := openEnvironment()
		if err != nil {
			return err
		}
		defer store.Close()

		title, stored, err := store.Load(id)
		if err != nil {
			return err
		}
		conv := conversationFromStored(id, title, stored)

		var exporter export.Exporter
		switch format {
		case "txt", "text":
			exporter = export.NewTextExporter()
		case "md", "markdown":
			exporter = export.NewMarkdownExporter(settings.Model)
		case "json":
			path := fmt.Sprintf("chat_%d.json", id)
			if outputDir != "" {
				path = outputDir + "/" + path
			}
			if err := export.SaveChatFile(path, conv, settings.Model); err != nil {
				return err
			}
			cmd.Println(path)
			return nil
		default:
			return fmt.Errorf("unknown format %q (txt, md, json)", format)
		}

		path, err := export.ExportToFile(conv, exporter, outputDir)
		if err != nil {
			return err
		}
		cmd.Println(path)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a chat file into the session store",
	Long:  "Import a JSON chat file (the `export --format json` output) as a new stored session.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, _, err := export.LoadChatFile(args[0])
		if err != nil {
			return err
		}
		if conv.IsEmpty() {
			return fmt.Errorf("no messages in %s", args[0])
		}

		_, _, store, err := openEnvironment()
		if err != nil {
			return err
		}
		defer store.Close()

		stored := make([]storage.StoredMessage, 0, len(conv.Messages))
		for _, msg := range conv.Messages {
			stored = append(stored, storage.StoredMessage{
				Content: msg.Content,
				IsUser:  msg.Role == model.RoleUser,
			})
		}
		id, err := store.Save(conv.TitleHint(), stored)
		if err != nil {
			return err
		}
		cmd.Printf("Imported session %d (%d messages)\n", id, len(stored))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "txt", "output format: txt, md, or json")
	exportCmd.Flags().String("out", ".", "output directory")
}

func conversationFromStored(id int64, title string, stored []storage.StoredMessage) *model.Conversation {
	conv := model.NewConversation()
	conv.SessionID = id
	conv.Title = title
	for _, sm := range stored {
		role := model.RoleAssistant
		if sm.IsUser {
			role = model.RoleUser
		}
		conv.AddMessage(model.NewMessage(role, sm.Content))
	}
	return conv
}
