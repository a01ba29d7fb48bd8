package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/your-org/facerec/internal/models"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Inspect and name identities",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all known identities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		people, err := store.ListPeople(ctx)
		if err != nil {
			return fmt.Errorf("list people: %w", err)
		}
		printPeople(cmd.OutOrStdout(), people)
		return nil
	},
}

var peopleRenameCmd = &cobra.Command{
	Use:   "rename <person_id> <name>",
	Short: "Set the display name of an identity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		return renamePerson(ctx, store, args[0], args[1], cmd.OutOrStdout())
	},
}

func init() {
	peopleCmd.AddCommand(peopleListCmd, peopleRenameCmd)
	rootCmd.AddCommand(peopleCmd)
}

type personRenamer interface {
	UpdatePersonName(ctx context.Context, id int64, name string) error
}

func renamePerson(ctx context.Context, store personRenamer, rawID, name string, out io.Writer) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid person id %q", rawID)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if err := store.UpdatePersonName(ctx, id, name); err != nil {
		return fmt.Errorf("rename person %d: %w", id, err)
	}
	fmt.Fprintf(out, "person %d is now %q\n", id, name)
	return nil
}

func printPeople(out io.Writer, people []models.Person) {
	if len(people) == 0 {
		fmt.Fprintln(out, "No identities found in database.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tFACE COUNT")
	fmt.Fprintln(w, "--\t----\t----------")
	for _, p := range people {
		name := "(unnamed)"
		if p.Name != nil {
			name = *p.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%d\n", p.ID, name, p.Faces)
	}
	w.Flush()
}
