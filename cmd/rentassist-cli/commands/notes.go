package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"rentassist-backend/lib/util/serviceutil"
)

func init() {
	notesCmd.AddCommand(noteAddCmd)
	rootCmd.AddCommand(notesCmd)
}

var notesCmd = &cobra.Command{
	Use:   "notes <service request id>",
	Short: "Prints the notes of a service request.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()

		notes, err := client.FetchNotes(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to fetch notes", err)
		}
		if len(notes) == 0 {
			fmt.Println("no notes")
			return
		}
		for i, note := range notes {
			fmt.Printf("--- note %d ---\n%s\n", i+1, note)
		}
	},
}

var noteAddCmd = &cobra.Command{
	Use:   "add <service request id> <text>",
	Short: "Attaches a note to a service request.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient()

		err := client.CreateNote(cmd.Context(), args[0], args[1])
		if err != nil {
			serviceutil.Fatal("failed to create note", err)
		}
		fmt.Println("note created")
	},
}
