package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/ochre/internal/agent"
	"github.com/soyeahso/ochre/internal/config"
	"github.com/soyeahso/ochre/internal/conversation"
	"github.com/soyeahso/ochre/internal/gateway"
	"github.com/soyeahso/ochre/internal/gmail"
	"github.com/soyeahso/ochre/internal/hooks"
	"github.com/soyeahso/ochre/internal/kanban"
	"github.com/soyeahso/ochre/internal/llm"
	"github.com/soyeahso/ochre/internal/logging"
	"github.com/soyeahso/ochre/internal/store"
	"github.com/soyeahso/ochre/internal/todos"
	"github.com/soyeahso/ochre/internal/vfs"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Ochre server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			// Config may be more specific than the --log-level flag default.
			if logLevel == "" && cfg.Logging.Level != "" {
				log = logging.New(nil, cfg.Logging.Level, cfg.Logging.Style)
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := store.Open(paths.Database, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			sessions := store.NewSessionStore(db)
			settings := store.NewSettingsStore(db, map[string]string{
				store.SettingDefaultModel: cfg.Model.Default,
			})
			todosStore := todos.NewStore(paths.Todos)
			kanbanStore := kanban.NewStore(db)

			router, mountNames, err := buildRouter(ctx, cfg, paths.Base, todosStore, kanbanStore, log)
			if err != nil {
				return err
			}

			toolReg := agent.NewToolRegistry()
			vfs.RegisterTools(toolReg, router)

			client := llm.NewOpenRouterClient(cfg.Model.BaseURL, cfg.Model.APIKey)
			runner := agent.NewRunner(agent.RunnerConfig{
				Model:       cfg.Model.Default,
				MaxSteps:    cfg.Agent.MaxSteps,
				MaxTokens:   cfg.Agent.MaxTokens,
				Temperature: cfg.Agent.Temperature,
			}, client, toolReg, log)

			hookMgr := hooks.FromConfig(cfg.Hooks, log)
			hub := gateway.NewSessionHub(log)

			systemPrompt := agent.BuildSystemPrompt(agent.PromptConfig{MountNames: mountNames})
			convs := conversation.NewHub(conversation.Deps{
				Store:     sessions,
				Runner:    runner,
				Publisher: &hookPublisher{next: hub, hooks: hookMgr},
				DefaultModel: func() string {
					model, err := settings.DefaultModel()
					if err != nil || model == "" {
						return cfg.Model.Default
					}
					return model
				},
				BaseMessages: func(sessionID string) ([]llm.Message, error) {
					msgs, err := sessions.MessagesForModel(sessionID, 0)
					if err != nil {
						return nil, err
					}
					return agent.EnsureSystemPrompt(msgs, systemPrompt), nil
				},
				Log: log,
			})

			srv := gateway.New(gateway.Deps{
				Config:   cfg,
				Log:      log,
				Sessions: sessions,
				Settings: settings,
				Todos:    todosStore,
				Router:   router,
				Convs:    convs,
				Hub:      hub,
				Hooks:    hookMgr,
			})

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// buildRouter assembles the virtual filesystem from config. Optional
// providers (mounts, email) are skipped when unconfigured; a Gmail setup
// failure downgrades to a warning so the rest of the server still runs.
func buildRouter(ctx context.Context, cfg config.Config, baseDir string, todosStore *todos.Store, kanbanStore *kanban.Store, log *logging.Logger) (*vfs.Router, []string, error) {
	names := []string{"todos", "kanban", "shortcuts"}
	providers := []vfs.Provider{
		vfs.NewTodosProvider(todosStore),
		vfs.NewKanbanProvider(kanbanStore),
		vfs.NewShortcutsProvider(),
	}

	var mountNames []string
	if len(cfg.Mounts) > 0 {
		mounts, err := vfs.NewMountsProvider(cfg.Mounts, baseDir)
		if err != nil {
			return nil, nil, fmt.Errorf("configuring mounts: %w", err)
		}
		names = append(names, "mnt")
		providers = append(providers, mounts)
		for _, m := range cfg.Mounts {
			mountNames = append(mountNames, m.Name)
		}
	}

	if cfg.Gmail != nil {
		svc, err := gmail.NewService(ctx, cfg.Gmail.CredentialsPath, cfg.Gmail.TokenPath, cfg.Gmail.UserID)
		if err != nil {
			log.Warn().Err(err).Msg("gmail unavailable, /fs/email disabled")
		} else {
			names = append(names, "email")
			providers = append(providers, vfs.NewEmailProvider(cfg.Gmail.AccountName, svc))
		}
	}

	all := append([]vfs.Provider{vfs.NewRootProvider(names...)}, providers...)
	return vfs.NewRouter(log, all...), mountNames, nil
}

// hookPublisher emits run lifecycle hooks as events pass through to the
// delivery hub.
type hookPublisher struct {
	next  conversation.Publisher
	hooks *hooks.Manager
}

func (p *hookPublisher) Publish(sessionID string, ev conversation.Event) {
	switch ev.Type {
	case conversation.TypeChatStarted:
		// Only the initial acceptance ack, not the first-token re-ack.
		if started, ok := ev.Payload.(conversation.StartedPayload); ok && started.MessageID == nil {
			p.hooks.EmitAsync(context.Background(), hooks.EventRunStarted, map[string]any{
				"sessionId": sessionID,
				"requestId": ev.RequestID,
			})
		}
	case conversation.TypeChatDone, conversation.TypeRunError, conversation.TypeRunCancelled:
		p.hooks.EmitAsync(context.Background(), hooks.EventRunFinished, map[string]any{
			"sessionId": sessionID,
			"requestId": ev.RequestID,
			"outcome":   ev.Type,
		})
	}
	p.next.Publish(sessionID, ev)
}
