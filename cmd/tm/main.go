package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskmaster/internal/app"
	"taskmaster/internal/config"
	"taskmaster/internal/db"
	"taskmaster/internal/domain"
	"taskmaster/internal/logging"
	"taskmaster/internal/manager"
	"taskmaster/internal/server"
	"taskmaster/internal/visibility"
)

var rootCmd = &cobra.Command{
	Use:   "tm",
	Short: "Taskmaster CLI",
	Long: `Taskmaster is a role-aware task and project tracker.
Admins run the place, employees work across all projects, and clients only
see projects owned by them and tasks they are assigned to. Every mutation is
authorized, audited, and pushed to watchers.`,
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
	_ = godotenv.Load()
	viper.SetEnvPrefix("TASKMASTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().StringP("user", "u", "", "acting user (id or email)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(priorityCmd())
	rootCmd.AddCommand(notificationCmd())
	rootCmd.AddCommand(logCmd())
}

// openManager opens the workspace database and wraps it in a manager.
func openManager(ctx context.Context) (*manager.Manager, *sql.DB, *config.Config, error) {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, nil, nil, err
	}
	conn, err := app.Open(workspace)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := app.Seed(ctx, conn, cfg); err != nil {
		conn.Close()
		return nil, nil, nil, err
	}
	return manager.New(conn), conn, cfg, nil
}

// cliIdentity resolves --user to a stored profile. Without the flag the
// seeded admin acts.
func cliIdentity(ctx context.Context, m *manager.Manager, cfg *config.Config) (domain.Identity, error) {
	ref := viper.GetString("user")
	if ref == "" {
		ref = cfg.Seed.AdminEmail
	}
	u, err := m.Repo.GetProfile(ctx, ref)
	if err != nil {
		u, err = m.Repo.GetProfileByEmail(ctx, strings.ToLower(ref))
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("unknown user %q", ref)
	}
	return domain.Identity{UserID: u.ID, Role: u.Role}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			if addr != "" {
				cfg.Server.Addr = addr
			}
			secret := cfg.Auth.JWTSecret
			if secret == "" {
				secret = os.Getenv("TASKMASTER_JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("jwt secret required: set auth.jwt_secret or TASKMASTER_JWT_SECRET")
			}
			log := logging.New(cfg.Log.Level, cfg.Log.File)
			handler, err := server.New(server.Config{
				Manager:  m,
				BasePath: cfg.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret: secret,
					TokenTTL:  time.Duration(cfg.Auth.TokenTTLMin) * time.Minute,
					DevLogin:  cfg.Auth.DevLogin,
					Logger:    log,
				},
				Webhooks: cfg.Webhooks,
				Logger:   log,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Infof("serving Taskmaster API on http://%s%s", cfg.Server.Addr, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Initialize workspace with the admin account and priority ladder",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Printf("workspace ready; admin is %s\n", cfg.Seed.AdminEmail)
			return nil
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			users, err := m.ListUsers(cmd.Context(), ident)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(users)
			}
			tw := newTable("ID", "Name", "Email", "Role")
			for _, u := range users {
				tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role})
			}
			tw.Render()
			return nil
		},
	}

	var name, email, role, phone string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			u, err := m.CreateUser(cmd.Context(), ident, manager.UserCreateOptions{
				Name: name, Email: email, Role: role, Phone: phone,
			})
			if err != nil {
				return err
			}
			return printJSON(u)
		},
	}
	create.Flags().StringVar(&name, "name", "", "full name")
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&role, "role", "client", "role: admin, employee or client")
	create.Flags().StringVar(&phone, "phone", "", "phone number")
	create.MarkFlagRequired("name")
	create.MarkFlagRequired("email")

	var newRole string
	setRole := &cobra.Command{
		Use:   "set-role <user-id>",
		Short: "Change a user's role (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			u, err := m.UpdateUser(cmd.Context(), ident, args[0], manager.UserPatch{Role: &newRole})
			if err != nil {
				return err
			}
			return printJSON(u)
		},
	}
	setRole.Flags().StringVar(&newRole, "role", "", "new role")
	setRole.MarkFlagRequired("role")

	del := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			return m.DeleteUser(cmd.Context(), ident, args[0])
		},
	}

	cmd.AddCommand(list, create, setRole, del)
	return cmd
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}

	var status, clientFilter, search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List visible projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			projects, err := m.ListProjects(cmd.Context(), ident, visibility.ProjectFilters{
				Status: status, ClientID: clientFilter, Search: search,
			})
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(projects)
			}
			tw := newTable("ID", "Name", "Status", "Client", "Deadline")
			for _, p := range projects {
				clientID, deadline := "", ""
				if p.ClientID != nil {
					clientID = *p.ClientID
				}
				if p.Deadline != nil {
					deadline = *p.Deadline
				}
				tw.AppendRow(table.Row{p.ID, p.Name, p.Status, clientID, deadline})
			}
			tw.Render()
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")
	list.Flags().StringVar(&clientFilter, "client", "", "filter by client id")
	list.Flags().StringVar(&search, "search", "", "text search")

	var name, description, clientID, deadline string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			opts := manager.ProjectCreateOptions{Name: name, Description: description}
			if clientID != "" {
				opts.ClientID = &clientID
			}
			if deadline != "" {
				opts.Deadline = &deadline
			}
			p, err := m.CreateProject(cmd.Context(), ident, opts)
			if err != nil {
				return err
			}
			return printJSON(p)
		},
	}
	create.Flags().StringVar(&name, "name", "", "project name")
	create.Flags().StringVar(&description, "description", "", "description")
	create.Flags().StringVar(&clientID, "client", "", "owning client user id")
	create.Flags().StringVar(&deadline, "deadline", "", "deadline (RFC3339)")
	create.MarkFlagRequired("name")

	show := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			p, err := m.GetProject(cmd.Context(), ident, args[0])
			if err != nil {
				return err
			}
			return printJSON(p)
		},
	}

	del := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			return m.DeleteProject(cmd.Context(), ident, args[0])
		},
	}

	cmd.AddCommand(list, create, show, del)
	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}

	var status, priorityID, projectFilter, assignee, search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List visible tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			tasks, err := m.ListTasks(cmd.Context(), ident, visibility.TaskFilters{
				Status: status, PriorityID: priorityID, ProjectID: projectFilter,
				AssigneeID: assignee, Search: search,
			})
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(tasks)
			}
			tw := newTable("ID", "Title", "Status", "Project", "Assignees")
			for _, task := range tasks {
				projectID := ""
				if task.ProjectID != nil {
					projectID = *task.ProjectID
				}
				tw.AppendRow(table.Row{task.ID, task.Title, task.Status, projectID, strings.Join(task.Assignees, ",")})
			}
			tw.Render()
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")
	list.Flags().StringVar(&priorityID, "priority", "", "filter by priority id")
	list.Flags().StringVar(&projectFilter, "project", "", "filter by project id")
	list.Flags().StringVar(&assignee, "assignee", "", "filter by assignee user id")
	list.Flags().StringVar(&search, "search", "", "text search")

	var title, description, projectID, priority string
	var assignees []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			opts := manager.TaskCreateOptions{Title: title, Description: description, Assignees: assignees}
			if projectID != "" {
				opts.ProjectID = &projectID
			}
			if priority != "" {
				opts.PriorityID = &priority
			}
			t, err := m.CreateTask(cmd.Context(), ident, opts)
			if err != nil {
				return err
			}
			return printJSON(t)
		},
	}
	create.Flags().StringVar(&title, "title", "", "task title")
	create.Flags().StringVar(&description, "description", "", "description")
	create.Flags().StringVar(&projectID, "project", "", "project id")
	create.Flags().StringVar(&priority, "priority", "", "priority id")
	create.Flags().StringSliceVar(&assignees, "assignee", nil, "assignee user id (repeatable)")
	create.MarkFlagRequired("title")

	var newStatus string
	setStatus := &cobra.Command{
		Use:   "set-status <task-id>",
		Short: "Update a task's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			t, err := m.UpdateTask(cmd.Context(), ident, args[0], manager.TaskPatch{Status: &newStatus})
			if err != nil {
				return err
			}
			return printJSON(t)
		},
	}
	setStatus.Flags().StringVar(&newStatus, "status", "", "new status")
	setStatus.MarkFlagRequired("status")

	show := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			t, err := m.GetTask(cmd.Context(), ident, args[0])
			if err != nil {
				return err
			}
			return printJSON(t)
		},
	}

	del := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task (staff only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			return m.DeleteTask(cmd.Context(), ident, args[0])
		},
	}

	cmd.AddCommand(list, create, setStatus, show, del)
	return cmd
}

func priorityCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "priority", Short: "Manage priority levels"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List priorities",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			list, err := m.ListPriorities(cmd.Context(), ident)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(list)
			}
			tw := newTable("ID", "Name", "Color", "Order")
			for _, p := range list {
				tw.AppendRow(table.Row{p.ID, p.Name, p.Color, p.Order})
			}
			tw.Render()
			return nil
		},
	}

	var name, color string
	var order int
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a priority (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			p, err := m.CreatePriority(cmd.Context(), ident, manager.PriorityCreateOptions{
				Name: name, Color: color, Order: order,
			})
			if err != nil {
				return err
			}
			return printJSON(p)
		},
	}
	create.Flags().StringVar(&name, "name", "", "priority name")
	create.Flags().StringVar(&color, "color", "#888888", "display color")
	create.Flags().IntVar(&order, "order", 0, "sort rank, lower first")
	create.MarkFlagRequired("name")

	del := &cobra.Command{
		Use:   "delete <priority-id>",
		Short: "Delete a priority (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			return m.DeletePriority(cmd.Context(), ident, args[0])
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}

func notificationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "notification", Short: "Manage own notifications"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List own notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			ns, err := m.ListNotifications(cmd.Context(), ident)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(ns)
			}
			tw := newTable("ID", "Title", "Read", "Created")
			for _, n := range ns {
				tw.AppendRow(table.Row{n.ID, n.Title, n.Read, n.CreatedAt})
			}
			tw.Render()
			return nil
		},
	}

	read := &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			return m.MarkNotificationRead(cmd.Context(), ident, args[0])
		},
	}

	readAll := &cobra.Command{
		Use:   "read-all",
		Short: "Mark all notifications read",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, cfg, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			ident, err := cliIdentity(cmd.Context(), m, cfg)
			if err != nil {
				return err
			}
			return m.MarkAllNotificationsRead(cmd.Context(), ident)
		},
	}

	cmd.AddCommand(list, read, readAll)
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Audit trail"}

	var after int64
	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, conn, _, err := openManager(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			events, err := m.Events.ListSince(cmd.Context(), after, limit)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(events)
			}
			tw := newTable("ID", "TS", "Type", "Entity", "Actor")
			for _, e := range events {
				tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + "/" + e.EntityID, e.ActorID})
			}
			tw.Render()
			return nil
		},
	}
	tail.Flags().Int64Var(&after, "after", 0, "only events after this id")
	tail.Flags().IntVar(&limit, "limit", 50, "max events")

	cmd.AddCommand(tail)
	return cmd
}
