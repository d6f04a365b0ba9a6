package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/casa/internal/cli"
	"github.com/Veraticus/casa/internal/storage"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create and restore database checkpoints",
		Long: `Checkpoints are full copies of the household database kept in a
"checkpoints" directory next to it. One is taken automatically before every
statement import; the five most recent automatic ones are kept.`,
	}

	cmd.AddCommand(backupCreateCmd())
	cmd.AddCommand(backupListCmd())
	cmd.AddCommand(backupRestoreCmd())
	cmd.AddCommand(backupDeleteCmd())

	return cmd
}

// withCheckpoints opens the configured database and runs fn with its
// checkpoint manager.
func withCheckpoints(cmd *cobra.Command, fn func(ctx context.Context, cm *storage.CheckpointManager) error) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cm, err := store.Checkpoints()
	if err != nil {
		return err
	}
	return fn(ctx, cm)
}

func backupCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [tag]",
		Short: "Snapshot the database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			tag := ""
			if len(args) == 1 {
				tag = args[0]
			}
			return withCheckpoints(cmd, func(ctx context.Context, cm *storage.CheckpointManager) error {
				info, err := cm.Create(ctx, tag, description)
				if err != nil {
					return fmt.Errorf("failed to create checkpoint: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Checkpoint "+info.ID+" criado."))
				return nil
			})
		},
	}
	cmd.Flags().StringP("description", "d", "", "Free-form note stored with the checkpoint")
	return cmd
}

func backupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List checkpoints, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCheckpoints(cmd, func(ctx context.Context, cm *storage.CheckpointManager) error {
				checkpoints, err := cm.List(ctx)
				if err != nil {
					return err
				}
				return printCheckpoints(cmd.OutOrStdout(), checkpoints)
			})
		},
	}
}

func backupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <tag>",
		Short: "Replace the database with a checkpoint",
		Long: `Replace the database with a checkpoint. A new automatic checkpoint of
the current database is taken first, so a restore can itself be undone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpoints(cmd, func(ctx context.Context, cm *storage.CheckpointManager) error {
				if _, err := cm.Get(ctx, args[0]); err != nil {
					return err
				}
				if _, err := cm.AutoCheckpoint(ctx, "restore"); err != nil {
					return err
				}
				if err := cm.Restore(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Banco restaurado de "+args[0]+"."))
				return nil
			})
		},
	}
}

func backupDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <tag>",
		Short: "Delete a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpoints(cmd, func(ctx context.Context, cm *storage.CheckpointManager) error {
				if err := cm.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Checkpoint "+args[0]+" removido."))
				return nil
			})
		},
	}
}

func printCheckpoints(w io.Writer, checkpoints []storage.CheckpointInfo) error {
	if len(checkpoints) == 0 {
		_, err := fmt.Fprintln(w, cli.FormatInfo("Nenhum checkpoint ainda."))
		return err
	}

	rows := make([][]string, 0, len(checkpoints))
	for _, cp := range checkpoints {
		kind := "manual"
		if cp.IsAuto {
			kind = "auto"
		}
		rows = append(rows, []string{
			cp.ID,
			cp.CreatedAt.Local().Format("02/01/2006 15:04"),
			kind,
			fmt.Sprintf("%d", cp.Tasks),
			fmt.Sprintf("%d", cp.Cards),
			fmt.Sprintf("%d", cp.CardTransactions),
			fmt.Sprintf("%d", cp.Facts),
			fmt.Sprintf("%.1f KB", float64(cp.FileSize)/1024),
		})
	}
	_, err := fmt.Fprintln(w, cli.FormatTable(
		[]string{"Tag", "Criado em", "Tipo", "Tarefas", "Cartões", "Lançamentos", "Respostas", "Tamanho"}, rows))
	return err
}

// autoCheckpoint snapshots store before operation. Failures are logged and
// never block the operation.
func autoCheckpoint(ctx context.Context, store *storage.SQLiteStorage, operation string) {
	cm, err := store.Checkpoints()
	if err != nil {
		slog.Debug("Skipping automatic checkpoint", "operation", operation, "error", err)
		return
	}
	info, err := cm.AutoCheckpoint(ctx, operation)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("Automatic checkpoint failed", "operation", operation, "error", err)
		}
		return
	}
	slog.Debug("Automatic checkpoint taken", "id", info.ID)
}
