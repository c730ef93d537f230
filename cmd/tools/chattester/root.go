package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/patientsim/patient-sim/internal/config"
	"github.com/patientsim/patient-sim/internal/model/chat"
	"github.com/patientsim/patient-sim/internal/model/persona"
	"github.com/patientsim/patient-sim/internal/service/ai"
	chatservice "github.com/patientsim/patient-sim/internal/service/chat"
)

type completerFactory func(ctx context.Context, cfg config.AIConfig) (chatservice.Completer, error)

func defaultCompleter(ctx context.Context, cfg config.AIConfig) (chatservice.Completer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("provider %q is not configured", cfg.Provider)
	}
	return ai.NewService(ctx, cfg)
}

type options struct {
	persona     string
	contextMode string
	timeout     time.Duration
}

func newRootCmd(newCompleter completerFactory) *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "chattester [flags] MESSAGE...",
		Short: "Run a scripted conversation against a simulated patient",
		Long: "chattester opens one session, sends each MESSAGE as a therapist turn and prints " +
			"the system prompt and the streamed patient reply.",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), newCompleter, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.persona, "persona", "p", persona.DefaultID, "persona id or alias")
	cmd.Flags().StringVar(&opts.contextMode, "context", "", "single or conversation (defaults to CHAT_CONTEXT_MODE)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall deadline")
	return cmd
}

func run(ctx context.Context, out io.Writer, newCompleter completerFactory, opts options, messages []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	if _, _, err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	contextMode := cfg.Chat.ContextMode
	if opts.contextMode != "" {
		if opts.contextMode != config.ContextSingle && opts.contextMode != config.ContextConversation {
			return fmt.Errorf("unknown context mode %q", opts.contextMode)
		}
		contextMode = opts.contextMode
	}

	store, err := persona.OpenStore(cfg.Chat.PersonaFile)
	if err != nil {
		return err
	}
	completer, err := newCompleter(ctx, cfg.AI)
	if err != nil {
		return fmt.Errorf("init completion client: %w", err)
	}

	svc := chatservice.NewService(store, completer, chatservice.Options{
		PersonaFromRequest: true,
		ContextMode:        contextMode,
	})
	session, err := svc.CreateSession(ctx, opts.persona)
	if err != nil {
		return err
	}
	defer svc.EndSession(ctx, session.ID)

	fmt.Fprintf(out, "session %s persona=%s provider=%s model=%s\n",
		session.ID, session.PersonaID, completer.Provider(), completer.Model())

	for _, msg := range messages {
		fmt.Fprintf(out, "\n[therapist] %s\n", msg)

		started := false
		emit := chatservice.EmitterFunc(func(_ context.Context, m chat.Message) error {
			switch m.Role {
			case chat.RoleSystem:
				fmt.Fprintf(out, "[system] %s\n", m.Content)
			default:
				if !started {
					fmt.Fprint(out, "[assistant] ")
					started = true
				}
				fmt.Fprint(out, m.Content)
			}
			return nil
		})

		err := svc.HandleMessage(ctx, session.ID, msg, emit)
		if started {
			fmt.Fprintln(out)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
