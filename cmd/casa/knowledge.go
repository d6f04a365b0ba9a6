package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/casa/internal/cli"
	"github.com/Veraticus/casa/internal/knowledge"
	"github.com/Veraticus/casa/internal/service"
)

func knowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Inspect the FAQ and the cache of validated answers",
	}

	cmd.AddCommand(knowledgePurgeCmd())
	cmd.AddCommand(knowledgeAskCmd())

	return cmd
}

func knowledgePurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete cached answers past their validity",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			return purgeKnowledge(ctx, cmd.OutOrStdout(), store)
		},
	}
}

func knowledgeAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Look a question up in the built-in FAQ",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return askFAQ(cmd.OutOrStdout(), knowledge.NewMatcher(knowledge.DefaultCorpus()), strings.Join(args, " "))
		},
	}
}

func purgeKnowledge(ctx context.Context, w io.Writer, store service.KnowledgeStore) error {
	cache := knowledge.NewCache(store, nil, knowledge.DefaultValidator())
	removed, err := cache.Purge(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge knowledge cache: %w", err)
	}
	_, err = fmt.Fprintln(w, cli.FormatSuccess(fmt.Sprintf("%d respostas expiradas removidas em %s.",
		removed, time.Now().Format("02/01/2006 15:04"))))
	return err
}

func askFAQ(w io.Writer, matcher *knowledge.Matcher, question string) error {
	item, ok := matcher.FindBestMatch(question)
	if !ok {
		_, err := fmt.Fprintln(w, cli.FormatWarning("Nenhuma pergunta parecida no FAQ."))
		return err
	}
	_, err := fmt.Fprintln(w, cli.RenderBox(cli.BookIcon+" "+item.Question, item.Answer))
	return err
}
