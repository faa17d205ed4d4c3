package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var chatID string

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Ask one question about the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().Search(cmd.Context(), strings.Join(args, " "), chatID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Answer)
		fmt.Fprintf(cmd.ErrOrStderr(), "chatId: %s\n", res.ChatID)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, newClient(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// runChat reads one question per line and keeps the conversation id between turns.
func runChat(cmd *cobra.Command, client *Client, in io.Reader, out io.Writer) error {
	id := chatID
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			fmt.Fprint(out, "> ")
			continue
		case "exit", "quit":
			return nil
		}
		res, err := client.Search(cmd.Context(), line, id)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n> ", err)
			continue
		}
		id = res.ChatID
		fmt.Fprintf(out, "%s\n> ", res.Answer)
	}
	return scanner.Err()
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(chatCmd)
	searchCmd.Flags().StringVar(&chatID, "chat-id", "", "continue an existing conversation")
	chatCmd.Flags().StringVar(&chatID, "chat-id", "", "continue an existing conversation")
}
