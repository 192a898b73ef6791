package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavelanni/techcert/internal/model"
	"github.com/pavelanni/techcert/internal/store"
	"github.com/pavelanni/techcert/internal/validator"
)

func traineeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trainee",
		Short: "Manage trainee credentials",
	}
	cmd.AddCommand(traineeAddCmd(), traineeRemoveCmd(), traineeListCmd())
	return cmd
}

func traineeAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a trainee",
		RunE:  runTraineeAdd,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("username", "u", "", "Login name")
	f.StringP("password", "p", "", "Password (or set TECHCERT_PASSWORD)")
	f.StringP("name", "n", "", "Full name")
	f.String("email", "", "Email address")
	f.String("id", "", "Trainee ID")
	return cmd
}

func traineeRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove USERNAME",
		Short: "Delete a trainee",
		Args:  cobra.ExactArgs(1),
		RunE:  runTraineeRemove,
	}
	addStoreFlags(cmd)
	return cmd
}

func traineeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trainees",
		RunE:  runTraineeList,
	}
	addStoreFlags(cmd)
	return cmd
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	v := loadConfig(cmd)
	setupLogging(v)
	db, err := store.New(v.GetString("db"), v.GetString("app-id"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runTraineeAdd(cmd *cobra.Command, _ []string) error {
	v := loadConfig(cmd)
	nt := validator.Normalize(model.NewTrainee{
		Username: v.GetString("username"),
		Password: v.GetString("password"),
		Name:     v.GetString("name"),
		Email:    v.GetString("email"),
		ID:       v.GetString("id"),
	})

	val, err := validator.New()
	if err != nil {
		return fmt.Errorf("create validator: %w", err)
	}
	if fields := val.Trainee(nt); len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			parts = append(parts, k+": "+fields[k])
		}
		return fmt.Errorf("invalid trainee: %s", strings.Join(parts, ", "))
	}

	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.AddTrainee(context.Background(), nt); err != nil {
		return fmt.Errorf("add trainee: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added trainee %s\n", nt.Username)
	return nil
}

func runTraineeRemove(cmd *cobra.Command, args []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	t, err := db.GetTrainee(ctx, args[0])
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("trainee %s not found", args[0])
	}
	if err := db.DeleteTrainee(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed trainee %s\n", args[0])
	return nil
}

func runTraineeList(cmd *cobra.Command, _ []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	list, err := db.ListTrainees(context.Background())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-16s %-24s %-28s %s\n", "USERNAME", "NAME", "EMAIL", "ID")
	for _, t := range list {
		fmt.Fprintf(out, "%-16s %-24s %-28s %s\n", t.Username, t.Name, t.Email, t.ID)
	}
	return nil
}
