package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/migrate"
	"gigline/internal/repo"
	"gigline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "gig",
	Short: "Gigline CLI",
	Long: `Gigline runs a freelance marketplace job lifecycle from the command line.
Core concepts:
- Workspace: your .gigline directory with the database; gigline.yml holds the category catalog and defaults.
- Jobs: postings that flow draft -> open -> in_progress -> completed (cancelled is an exit); milestones live inside the job.
- Proposals: freelancer applications on open jobs; accepting one hires the freelancer and rejects the other pending proposals.
- Cancellation: either party on an in-progress job can request it; the other party accepts or rejects.
- Event log: diary of changes, view with 'gig log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GIGLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(milestoneCmd())
	rootCmd.AddCommand(proposalCmd())
	rootCmd.AddCommand(actorCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default gigline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(name)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "local", "marketplace name")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show resolved config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate gigline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			fmt.Printf("Config OK: marketplace %q, %d categories\n", cfg.Marketplace.Name, len(cfg.Categories.Catalog))
			return nil
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show marketplace status",
		Long:  "See the scoreboard: job counts per status for the workspace database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				counts, err := e.Repo.CountJobsByStatus(ctx)
				if err != nil {
					return err
				}
				out := map[string]any{
					"marketplace": e.Config.Marketplace.Name,
					"job_counts":  counts,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Marketplace: %s\n", e.Config.Marketplace.Name)
				fmt.Println("Jobs:")
				for status, c := range counts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				return nil
			})
		},
	}
	return cmd
}

func jobCmd() *cobra.Command {
	job := &cobra.Command{
		Use:   "job",
		Short: "Manage jobs",
		Long:  "Jobs are the marketplace postings. They flow draft -> open -> in_progress -> completed, and cancellation on an in-progress job needs agreement from both parties.",
	}
	job.AddCommand(jobCreateCmd())
	job.AddCommand(jobListCmd())
	job.AddCommand(jobShowCmd())
	job.AddCommand(jobUpdateCmd())
	job.AddCommand(jobPublishCmd())
	job.AddCommand(jobDeleteCmd())
	job.AddCommand(jobCancelCmd())
	return job
}

func jobCreateCmd() *cobra.Command {
	var opts engine.JobCreateOptions
	var budgetMin, budgetMax float64
	var milestones []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.CreatorID = viper.GetString("actor-id")
			if cmd.Flags().Changed("budget-min") {
				opts.BudgetMin = &budgetMin
			}
			if cmd.Flags().Changed("budget-max") {
				opts.BudgetMax = &budgetMax
			}
			parsed, err := parseMilestoneFlags(milestones)
			if err != nil {
				return err
			}
			opts.Milestones = parsed
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.CreateJob(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "job id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category from the catalog")
	cmd.Flags().Float64Var(&budgetMin, "budget-min", 0, "minimum budget")
	cmd.Flags().Float64Var(&budgetMax, "budget-max", 0, "maximum budget")
	cmd.Flags().StringVar(&opts.Status, "status", "", "initial status (draft or open)")
	cmd.Flags().StringArrayVar(&milestones, "milestone", []string{}, "milestone as title=value (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func jobListCmd() *cobra.Command {
	var f repo.JobFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				jobs, err := e.Repo.ListJobs(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(jobs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Category", "Creator", "Proposals"})
				for _, j := range jobs {
					tw.AppendRow(table.Row{j.ID, j.Title, j.Status, j.Category, j.CreatorID, j.ProposalCount})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Category, "category", "", "category filter")
	cmd.Flags().StringVar(&f.CreatorID, "creator-id", "", "creator filter")
	return cmd
}

func jobShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.GetJob(ctx, args[0], false)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	return cmd
}

func jobUpdateCmd() *cobra.Command {
	var title, description, category string
	var budgetMin, budgetMax float64
	var milestones []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a draft or open job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.JobUpdateOptions{
				ID:      args[0],
				ActorID: viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("category") {
				opts.Category = &category
			}
			if cmd.Flags().Changed("budget-min") {
				opts.BudgetMin = &budgetMin
			}
			if cmd.Flags().Changed("budget-max") {
				opts.BudgetMax = &budgetMax
			}
			if cmd.Flags().Changed("milestone") {
				parsed, err := parseMilestoneFlags(milestones)
				if err != nil {
					return err
				}
				opts.Milestones = &parsed
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.UpdateJob(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().Float64Var(&budgetMin, "budget-min", 0, "minimum budget")
	cmd.Flags().Float64Var(&budgetMax, "budget-max", 0, "maximum budget")
	cmd.Flags().StringArrayVar(&milestones, "milestone", []string{}, "replacement milestone as title=value (repeatable)")
	return cmd
}

func jobPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <id>",
		Short: "Publish a draft job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.PublishJob(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	return cmd
}

func jobDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a draft or open job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteJob(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func jobCancelCmd() *cobra.Command {
	cancel := &cobra.Command{Use: "cancel", Short: "Manage job cancellation"}
	cancel.AddCommand(jobCancelRequestCmd())
	cancel.AddCommand(jobCancelRespondCmd())
	return cancel
}

func jobCancelRequestCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "request <job-id>",
		Short: "Request cancellation of an in-progress job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.RequestCancellation(ctx, args[0], viper.GetString("actor-id"), reason)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}

func jobCancelRespondCmd() *cobra.Command {
	var action string
	cmd := &cobra.Command{
		Use:   "respond <job-id>",
		Short: "Accept or reject a pending cancellation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.RespondCancellation(ctx, args[0], viper.GetString("actor-id"), action)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "accept or reject")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func milestoneCmd() *cobra.Command {
	ms := &cobra.Command{
		Use:   "milestone",
		Short: "Manage job milestones",
		Long:  "Milestones live inside a job and are addressed by index. The contractor submits them, the creator approves them; approving the last one completes the job.",
	}
	ms.AddCommand(milestoneSubmitCmd())
	ms.AddCommand(milestoneApproveCmd())
	return ms
}

func milestoneSubmitCmd() *cobra.Command {
	var index int
	var evidence string
	cmd := &cobra.Command{
		Use:   "submit <job-id>",
		Short: "Submit a milestone for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.SubmitMilestone(ctx, args[0], index, viper.GetString("actor-id"), evidence)
				if err != nil {
					return err
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "milestone index")
	cmd.Flags().StringVar(&evidence, "evidence", "", "evidence reference (link, commit, file)")
	return cmd
}

func milestoneApproveCmd() *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "approve <job-id>",
		Short: "Approve a submitted milestone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, completed, err := e.ApproveMilestone(ctx, args[0], index, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if completed && !viper.GetBool("json") {
					fmt.Println("All milestones approved; job completed.")
				}
				return printJSONOrTable(j)
			})
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "milestone index")
	return cmd
}

func proposalCmd() *cobra.Command {
	prop := &cobra.Command{
		Use:   "proposal",
		Short: "Manage proposals",
		Long:  "Proposals are freelancer applications on open jobs. Accepting one hires the freelancer, moves the job in progress, and rejects the remaining pending proposals.",
	}
	prop.AddCommand(proposalCreateCmd())
	prop.AddCommand(proposalListCmd())
	prop.AddCommand(proposalShowCmd())
	prop.AddCommand(proposalAcceptCmd())
	prop.AddCommand(proposalRejectCmd())
	prop.AddCommand(proposalWithdrawCmd())
	return prop
}

func proposalCreateCmd() *cobra.Command {
	var opts engine.ProposalCreateOptions
	var bid float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a proposal on an open job",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.FreelancerID = viper.GetString("actor-id")
			if cmd.Flags().Changed("bid") {
				opts.BidAmount = &bid
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProposal(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "proposal id (optional, UUID if omitted)")
	cmd.Flags().StringVar(&opts.JobID, "job", "", "job id")
	cmd.Flags().StringVar(&opts.CoverLetter, "cover-letter", "", "cover letter")
	cmd.Flags().Float64Var(&bid, "bid", 0, "bid amount")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func proposalListCmd() *cobra.Command {
	var f repo.ProposalFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProposals(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Job", "Freelancer", "Status", "Bid"})
				for _, p := range items {
					bid := ""
					if p.BidAmount != nil {
						bid = fmt.Sprintf("%.2f", *p.BidAmount)
					}
					tw.AppendRow(table.Row{p.ID, p.JobID, p.FreelancerID, p.Status, bid})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.JobID, "job", "", "job filter")
	cmd.Flags().StringVar(&f.FreelancerID, "freelancer-id", "", "freelancer filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func proposalShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProposal(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func proposalAcceptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept a proposal and hire the freelancer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, j, err := e.AcceptProposal(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"proposal": p, "job": j})
			})
		},
	}
	return cmd
}

func proposalRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.RejectProposal(ctx, args[0], viper.GetString("actor-id"), reason)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func proposalWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw <id>",
		Short: "Withdraw a pending proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.WithdrawProposal(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func actorCmd() *cobra.Command {
	actor := &cobra.Command{Use: "actor", Short: "Manage actors and API keys"}
	actor.AddCommand(actorRegisterCmd())
	actor.AddCommand(actorListCmd())
	actor.AddCommand(actorKeyCmd())
	return actor
}

func actorRegisterCmd() *cobra.Command {
	var id, role, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != domain.ActorRoleClient && role != domain.ActorRoleFreelancer {
				return fmt.Errorf("--role must be client or freelancer")
			}
			if id == "" {
				id = viper.GetString("actor-id")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				a := domain.Actor{
					ID:        id,
					Role:      role,
					Name:      name,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.EnsureActor(ctx, nil, a); err != nil {
					return err
				}
				stored, err := r.GetActor(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(stored)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "actor id (defaults to --actor-id)")
	cmd.Flags().StringVar(&role, "role", "", "client or freelancer")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func actorListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListActors(ctx, role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Role", "Name", "Created"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.Role, a.Name, a.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	return cmd
}

func actorKeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "key", Short: "Manage API keys"}
	key.AddCommand(actorKeyCreateCmd())
	key.AddCommand(actorKeyListCmd())
	key.AddCommand(actorKeyDeleteCmd())
	return key
}

func actorKeyCreateCmd() *cobra.Command {
	var name, key string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return fmt.Errorf("--key required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				rec := domain.APIKey{
					ID:        fmt.Sprintf("key-%d", time.Now().UnixNano()),
					ActorID:   viper.GetString("actor-id"),
					Name:      name,
					KeyHash:   repo.HashAPIKey(key),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, nil, rec); err != nil {
					return err
				}
				return printJSONOrTable(rec)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	cmd.Flags().StringVar(&key, "key", "", "plaintext key to hash and store")
	return cmd
}

func actorKeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func actorKeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind (job, proposal)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("GIGLINE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("GIGLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(e)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Gigline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("local")
	}
	return cfg, nil
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseMilestoneFlags(raw []string) ([]engine.MilestoneInput, error) {
	var res []engine.MilestoneInput
	for _, item := range raw {
		parts := strings.SplitN(item, "=", 2)
		m := engine.MilestoneInput{Title: strings.TrimSpace(parts[0])}
		if m.Title == "" {
			return nil, fmt.Errorf("invalid milestone %q: want title=value", item)
		}
		if len(parts) == 2 {
			var value float64
			if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%f", &value); err != nil {
				return nil, fmt.Errorf("invalid milestone value in %q", item)
			}
			m.Value = value
		}
		res = append(res, m)
	}
	return res, nil
}
