package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nephro-assistant/internal/config"
	"nephro-assistant/internal/db"
	httpserver "nephro-assistant/internal/http"
	"nephro-assistant/internal/patients"
	"nephro-assistant/internal/retrieval"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	Long: `Starts an interactive session.  Each reply is prefixed with the handler
that produced it.  Type "exit" or "quit" to leave.`,
	RunE: runChat,
}

var (
	chatSessionID string
	chatNoWeb     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [passages.jsonl]",
	Short: "Add reference passages to the search index",
	Long: `Reads JSON lines of {"page", "chunk_index", "source", "text"} and adds
them to the index at retrieval.index_path.  Defaults to retrieval.passages_path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and import patient records",
	RunE:  runMigrate,
}

var migratePatientsPath string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print session ids as their turns are saved",
	RunE:  runWatch,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write the default configuration as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInitConfig,
}

var initConfigForce bool

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "resume an existing session id")
	chatCmd.Flags().BoolVar(&chatNoWeb, "no-web", false, "disable web search for this session")
	migrateCmd.Flags().StringVar(&migratePatientsPath, "patients", "", "patients JSON file to import (default patients.path)")
	initConfigCmd.Flags().BoolVarP(&initConfigForce, "force", "f", false, "overwrite an existing file")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	id := chatSessionID
	if id == "" {
		id = httpserver.NewSessionID()
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s. Type 'exit' to quit.\n", id)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		msg := strings.TrimSpace(scanner.Text())
		if msg == "" {
			continue
		}
		if lower := strings.ToLower(msg); lower == "exit" || lower == "quit" {
			return nil
		}

		sess, err := a.sessions.Load(ctx, id)
		if err != nil {
			return err
		}
		if chatNoWeb {
			sess.AllowWeb = false
		}
		turnCtx, cancel := context.WithTimeout(ctx, cfg.Server.RequestTimeout)
		turn, err := a.engine.HandleMessage(turnCtx, sess, msg)
		cancel()
		if err != nil {
			fmt.Fprintf(out, "[error] %v\n", err)
			continue
		}
		if err := a.sessions.Save(ctx, sess); err != nil {
			return err
		}
		fmt.Fprintf(out, "[%s] %s\n", turn.Agent, turn.Reply)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := cfg.Retrieval.PassagesPath
	if len(args) == 1 {
		path = args[0]
	}
	index, err := retrieval.OpenOrCreate(cfg.Retrieval.IndexPath)
	if err != nil {
		return err
	}
	defer index.Close()

	added, err := ingestFile(cmd.Context(), index, path)
	if err != nil {
		return err
	}
	total, err := index.Count()
	if err != nil {
		return err
	}
	logger.Info("ingested passages",
		zap.String("file", path),
		zap.Int("added", added),
		zap.Uint64("total", total))
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL must be set")
	}
	ctx := cmd.Context()
	conn, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn); err != nil {
		return err
	}
	logger.Info("schema applied")

	path := migratePatientsPath
	if path == "" {
		path = cfg.Patients.Path
	}
	records, err := patients.NewJSONStore(path).Load()
	if errors.Is(err, patients.ErrDataSourceMissing) && migratePatientsPath == "" {
		logger.Info("no patients file to import", zap.String("path", path))
		return nil
	}
	if err != nil {
		return err
	}
	repo := db.NewRepository(conn)
	for _, rec := range records {
		if err := repo.UpsertPatient(ctx, rec); err != nil {
			return err
		}
	}
	logger.Info("imported patients", zap.String("file", path), zap.Int("count", len(records)))
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL must be set")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	updates, err := db.Listen(ctx, cfg.Database.URL, cfg.Database.NotifyChannel, logger)
	if err != nil {
		return err
	}
	logger.Info("watching", zap.String("channel", cfg.Database.NotifyChannel))
	out := cmd.OutOrStdout()
	for id := range updates {
		fmt.Fprintln(out, id)
	}
	return nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := "config.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !initConfigForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.WriteFile(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
