package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/campus-widgets/backend/internal/config"
	"github.com/zhouzirui/campus-widgets/backend/internal/model/persona"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/chat"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/reply"
	"github.com/zhouzirui/campus-widgets/backend/internal/service/upload"
	"github.com/zhouzirui/campus-widgets/backend/internal/tui"
)

// =============================================================================
// CHAT - interactive widget
// =============================================================================

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the chat panel in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger()
	ctx := cmd.Context()

	store, replies, err := loadWidgets(ctx)
	if err != nil {
		return err
	}
	p, ok := store.FindByID(personaID)
	if !ok {
		return fmt.Errorf("unknown widget %q", personaID)
	}

	chatSvc := chat.NewService(store, replies, chat.Config{
		MaxSessions: 1,
		DelayScale:  cfg.Chat.DelayScale,
		Random:      replies.Random(),
	}, logger)
	defer chatSvc.Close()

	session, err := chatSvc.CreateSession(ctx, p.ID)
	if err != nil {
		return err
	}
	events, unsubscribe, err := chatSvc.Subscribe(session.ID)
	if err != nil {
		return err
	}
	defer unsubscribe()

	program := tea.NewProgram(tui.NewModel(chatSvc, p, session.ID, events), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// =============================================================================
// ASK - one-shot responder
// =============================================================================

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Answer a single message without the typing delay",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var showRule bool

func init() {
	askCmd.Flags().BoolVar(&showRule, "show-rule", false, "print the matched rule id")
}

func runAsk(cmd *cobra.Command, args []string) error {
	_, replies, err := loadWidgets(cmd.Context())
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	result, err := replies.Reply(cmd.Context(), personaID, text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showRule {
		rule := result.RuleID
		if result.Fallback {
			rule = "fallback"
		}
		fmt.Fprintf(out, "[%s]\n", rule)
	}
	fmt.Fprintln(out, result.Reply)
	return nil
}

// =============================================================================
// RULES - print the rule table
// =============================================================================

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the widget's rules in evaluation order",
	Args:  cobra.NoArgs,
	RunE:  runRules,
}

func runRules(cmd *cobra.Command, args []string) error {
	_, replies, err := loadWidgets(cmd.Context())
	if err != nil {
		return err
	}
	rs, ok := replies.Ruleset(personaID)
	if !ok {
		return fmt.Errorf("unknown widget %q", personaID)
	}

	out := cmd.OutOrStdout()
	for i, rule := range rs.Rules {
		groups := []string{strings.Join(rule.Keywords, "|")}
		for _, group := range rule.And {
			groups = append(groups, strings.Join(group, "|"))
		}
		fmt.Fprintf(out, "%2d. %-14s %s (%d)\n", i+1, rule.ID, strings.Join(groups, " & "), len(rule.Replies))
	}
	fmt.Fprintf(out, "    %-14s %s\n", "fallback", rs.Fallback)
	return nil
}

// =============================================================================
// UPLOAD - acknowledge a local file
// =============================================================================

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Acknowledge a homework upload the way the widget does",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	store := persona.NewMemoryStore(persona.Seed())
	p, ok := store.FindByID(personaID)
	if !ok {
		return fmt.Errorf("unknown widget %q", personaID)
	}
	if !p.UploadEnabled {
		return fmt.Errorf("%s does not accept uploads", p.Name)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	receipt, err := upload.NewService(cfg.Upload.MaxBytes, newLogger()).Accept(filepath.Base(args[0]), f)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), receipt.Message)
	return nil
}

func loadWidgets(ctx context.Context) (persona.Store, *reply.Service, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	seeds := persona.NewMemoryStore(persona.Seed())
	replies, err := reply.NewService(ctx, seeds, reply.NewSource(time.Now().UnixNano()), newLogger())
	if err != nil {
		return nil, nil, err
	}
	return persona.NewMemoryStore(replies.Mounted(seeds.List())), replies, nil
}
