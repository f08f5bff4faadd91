package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/DerMichael0408/CyberGuide/internal/app"
	"github.com/DerMichael0408/CyberGuide/internal/chat"
	"github.com/DerMichael0408/CyberGuide/internal/config"
	"github.com/DerMichael0408/CyberGuide/internal/httpapi/middleware"
	"github.com/DerMichael0408/CyberGuide/internal/knowledge"
	"github.com/DerMichael0408/CyberGuide/internal/training"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type cli struct {
	config func() config.Config
	log    *zap.Logger

	user string
}

func newRootCmd(cfg func() config.Config, log *zap.Logger) *cobra.Command {
	c := &cli{config: cfg, log: log}

	root := &cobra.Command{
		Use:          "cyberguide",
		Short:        "Security awareness training and expert chat",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&c.user, "user", "u", middleware.DefaultUserID, "user id for training progress")

	root.AddCommand(
		c.indexCmd(),
		c.searchCmd(),
		c.askCmd(),
		c.scenariosCmd(),
		c.trainCmd(),
		c.dashboardCmd(),
		c.passwordCmd(),
	)
	return root
}

func (c *cli) open(ctx context.Context) (*app.App, error) {
	return app.New(ctx, c.config(), c.log)
}

func (c *cli) indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [paths...]",
		Short: "Index PDF or scenarios JSON documents into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			total := 0
			for _, p := range args {
				if (knowledge.Source{Path: p}).Kind() == knowledge.KindUnsupported {
					return fmt.Errorf("index %s: %w", p, knowledge.ErrUnsupportedDocument)
				}
				n, err := a.Indexer.IndexFile(cmd.Context(), p)
				if err != nil {
					return fmt.Errorf("index %s: %w", p, err)
				}
				cmd.Printf("%s: %d new chunks\n", p, n)
				total += n
			}
			cmd.Printf("indexed %d new chunks\n", total)
			return nil
		},
	}
}

func (c *cli) searchCmd() *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Show the knowledge base chunks ranked for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Retriever.Retrieve(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if asJSON {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}
			if res.Empty() {
				cmd.Println(res.Best())
				return nil
			}
			for i, text := range res.Ranked {
				cmd.Printf("[%d] %s\n\n", i+1, text)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of chunks (default RETRIEVER_TOP_K)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func (c *cli) askCmd() *cobra.Command {
	var provider, model string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the cybersecurity expert a one-off question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Registry.Get(cmd.Context(), provider, model)
			if err != nil {
				return err
			}
			adapter := chat.NewAdapter(a.Retriever, p, a.Cfg.ExpertIncludeRankedContext, c.log)

			chunks, errs := adapter.Stream(cmd.Context(), strings.Join(args, " "), nil)
			for ch := range chunks {
				cmd.Print(ch)
			}
			cmd.Println()
			return <-errs
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "ai provider (default AI_PROVIDER)")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	return cmd
}

func (c *cli) scenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List training scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := training.LoadCatalog(c.config().ScenariosFile)
			if err != nil {
				return err
			}
			for _, sc := range catalog.List() {
				cmd.Printf("%-20s %s (%d questions)\n", sc.ID, sc.Title, sc.Len())
			}
			return nil
		},
	}
}

func (c *cli) trainCmd() *cobra.Command {
	var restart bool
	cmd := &cobra.Command{
		Use:   "train [scenario]",
		Short: "Take a training scenario interactively",
		Long: `Runs a training scenario in the terminal. Answer each question on one
line; an unfinished session is resumed. Type /quit to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return c.train(cmd, a.Training, args[0], restart)
		},
	}
	cmd.Flags().BoolVar(&restart, "restart", false, "discard any previous session first")
	return cmd
}

func (c *cli) train(cmd *cobra.Command, svc *training.Service, scenarioID string, restart bool) error {
	ctx := cmd.Context()
	if restart {
		if err := svc.Reset(ctx, c.user, scenarioID); err != nil {
			return err
		}
	}

	sess, msg, err := svc.Start(ctx, c.user, scenarioID)
	if err != nil {
		return err
	}
	cmd.Println(msg)
	if sess.Completed {
		return nil
	}

	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		cmd.Print("\n> ")
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return err
			}
			cmd.Println()
			return nil
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
			continue
		case "/quit":
			cmd.Println("Progress saved.")
			return nil
		}

		reply, err := svc.Answer(ctx, c.user, scenarioID, line)
		if errors.Is(err, training.ErrSessionCompleted) {
			return nil
		}
		if err != nil {
			return err
		}
		cmd.Println()
		cmd.Println(reply.Message)
		if reply.Completed {
			return nil
		}
	}
}

func (c *cli) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show training progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Training.Progress(cmd.Context(), c.user)
			if err != nil {
				return err
			}
			for _, sp := range p.Scenarios {
				status := "not started"
				switch {
				case sp.Completed && sp.Score != nil:
					status = fmt.Sprintf("completed, %d/100", *sp.Score)
				case sp.Started:
					status = fmt.Sprintf("question %d", sp.QuestionIndex+1)
				}
				cmd.Printf("%-40s %s\n", sp.Title, status)
			}
			cmd.Printf("\n%d/%d completed", p.Completed, p.Total)
			if p.Completed > 0 {
				cmd.Printf(", average %.1f", p.AverageScore)
			}
			if p.Certified {
				cmd.Print(", certified")
			}
			cmd.Println()
			return nil
		},
	}
}

func (c *cli) passwordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "password",
		Short: "Rate a password read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1024))
			if err != nil {
				return err
			}
			pw := strings.TrimRight(string(b), "\r\n")
			r := training.EvaluatePassword(pw)
			cmd.Printf("%s: %s (%d/100), crack time %s\n", training.MaskPassword(pw), r.Strength, r.Score, r.CrackTime)
			for _, f := range r.Feedback {
				cmd.Println("  - " + f)
			}
			for _, s := range r.Suggestions {
				cmd.Println("  * " + s)
			}
			return nil
		},
	}
}
