package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrygo/familycal/plugin/ai/intent"
	"github.com/hrygo/familycal/server"
	"github.com/hrygo/familycal/store"
)

var (
	chatUserID   int32
	chatFamilyID int32

	// chatCmd talks to the assistant from a terminal against the local store.
	// Previews are saved with "yes"; nothing else is written.
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Talk to the calendar assistant from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile := loadProfile()
			instanceProfile.AIEnabled = true
			if err := instanceProfile.Validate(); err != nil {
				return err
			}
			ctx := context.Background()
			storeInstance, err := openStore(ctx, instanceProfile)
			if err != nil {
				return err
			}
			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				storeInstance.Close()
				return err
			}
			defer storeInstance.Close()
			if !s.Calendar.AssistantEnabled() {
				return fmt.Errorf("no completion service configured, set FAMILYCAL_AI_LLM_API_KEY")
			}

			scope := store.OwnerScope{UserID: chatUserID}
			if chatFamilyID != 0 {
				scope.FamilyID = &chatFamilyID
			}
			return runChat(ctx, cmd, s, scope)
		},
	}
)

func init() {
	chatCmd.Flags().Int32Var(&chatUserID, "user", 1, "user id to chat as")
	chatCmd.Flags().Int32Var(&chatFamilyID, "family", 0, "family id; events are shared when set")
}

func runChat(ctx context.Context, cmd *cobra.Command, s *server.Server, scope store.OwnerScope) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	var conversationID *int32
	var pending *intent.EventPreview

	fmt.Fprintln(out, "Type a message, \"yes\" to save the last preview, or \"quit\".")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "yes", "y", "save":
			if pending == nil {
				fmt.Fprintln(out, "Nothing to save yet.")
				continue
			}
			event, err := s.Calendar.ConfirmPreview(ctx, scope, pending)
			if err != nil {
				fmt.Fprintln(out, "Could not save:", err)
				continue
			}
			fmt.Fprintf(out, "Saved %q (#%d).\n", event.Title, event.ID)
			pending = nil
			continue
		}

		start := time.Now()
		result, err := s.Calendar.HandleMessage(ctx, scope, conversationID, line)
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
			continue
		}
		conversationID = &result.ConversationID
		fmt.Fprintln(out, result.Reply)
		fmt.Fprintf(out, "(%s)\n", time.Since(start).Round(time.Millisecond))

		pending = nil
		if result.Action != nil && result.Action.Preview != nil && len(result.Action.Preview.Flags) == 0 {
			pending = result.Action.Preview
		}
	}
}
