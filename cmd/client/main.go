// cmd/client/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/gurkanbulca/taskdesk/internal/client"
)

type session struct {
	addr      string
	tokenFile string
	timeout   time.Duration
	fs        afero.Fs

	conn *grpc.ClientConn
	api  *client.Client
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	s := &session{fs: afero.NewOsFs()}

	home, _ := os.UserHomeDir()
	root := &cobra.Command{
		Use:          "taskdesk",
		Short:        "Command line client for the taskdesk server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.connect()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if s.conn != nil {
				_ = s.conn.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&s.addr, "addr", "localhost:50051", "server address")
	root.PersistentFlags().StringVar(&s.tokenFile, "token-file", filepath.Join(home, ".taskdesk-token"), "where the access token is kept")
	root.PersistentFlags().DurationVar(&s.timeout, "timeout", 10*time.Second, "per request timeout")

	root.AddCommand(
		loginCmd(s),
		meCmd(s),
		passwordCmd(s),
		tasksCmd(s),
		usersCmd(s),
		statsCmd(s),
	)
	return root
}

func (s *session) connect() error {
	conn, err := grpc.NewClient(s.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect to %s: %w", s.addr, err)
	}
	s.conn = conn
	s.api = client.New(conn)

	token, err := afero.ReadFile(s.fs, s.tokenFile)
	if err == nil {
		s.api.SetToken(strings.TrimSpace(string(token)))
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read token: %w", err)
	}
	return nil
}

func (s *session) call(cmd *cobra.Command, fn func(ctx context.Context) (map[string]any, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), s.timeout)
	defer cancel()

	resp, err := fn(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func loginCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "login USERNAME PASSWORD",
		Short: "Log in and remember the access token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), s.timeout)
			defer cancel()

			resp, err := s.api.Login(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if err := afero.WriteFile(s.fs, s.tokenFile, []byte(s.api.Token()), 0o600); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			user, _ := resp["user"].(map[string]any)
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %v (%v)\n", user["username"], user["userType"])
			return nil
		},
	}
}

func meCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.call(cmd, func(ctx context.Context) (map[string]any, error) {
				return s.api.Auth(ctx, "Me", nil)
			})
		},
	}
}

func passwordCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd OLD NEW",
		Short: "Change your password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.call(cmd, func(ctx context.Context) (map[string]any, error) {
				return s.api.Auth(ctx, "ChangePassword", map[string]any{"oldPassword": args[0], "newPassword": args[1]})
			})
		},
	}
}

func tasksCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and manage tasks",
	}
	cmd.AddCommand(
		taskListCmd(s),
		taskCreateCmd(s),
		taskStatusCmd(s),
		taskSimpleCmd(s, "get", "Show one task", "GetTask"),
		taskSimpleCmd(s, "delete", "Delete a task", "DeleteTask"),
	)
	return cmd
}

func taskListCmd(s *session) *cobra.Command {
	var (
		statusFilter, priority, search, sortBy, order string
		overdue                                       bool
		limit, offset                                 int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks you can see",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := map[string]any{
				"search":      search,
				"overdueOnly": overdue,
				"sortBy":      sortBy,
				"sortOrder":   order,
				"limit":       limit,
				"offset":      offset,
			}
			if statusFilter != "" {
				req["status"] = statusFilter
			}
			if priority != "" {
				req["priority"] = priority
			}
			return s.call(cmd, func(ctx context.Context) (map[string]any, error) {
				return s.api.Tasks(ctx, "ListTasks", req)
			})
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", "", "PENDING, IN_PROGRESS, COMPLETED or CANCELLED")
	cmd.Flags().StringVar(&priority, "priority", "", "LOW, MEDIUM, HIGH or URGENT")
	cmd.Flags().StringVar(&search, "search", "", "match title or description")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "only overdue tasks")
	cmd.Flags().StringVar(&sortBy, "sort", "", "created_date, due_date or priority")
	cmd.Flags().StringVar(&order, "order", "", "asc or desc")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func taskCreateCmd(s *session) *cobra.Command {
	var title, description, assignee, priority, due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task (admin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := map[string]any{
				"title":       title,
				"description": description,
				"assignedTo":  assignee,
				"priority":    priority,
			}
			if due != "" {
				d, err := time.ParseInLocation(time.DateOnly, due, time.Local)
				if err != nil {
					return fmt.Errorf("--due must look like 2006-01-02: %w", err)
				}
				req["dueDate"] = d.UnixMilli()
			}
			return s.call(cmd, func(ctx context.Context) (map[string]any, error) {
				return s.api.Tasks(ctx, "CreateTask", req)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&assignee, "assignee", "", "id of the assigned user")
	cmd.Flags().StringVar(&priority, "priority", "MEDIUM", "LOW, MEDIUM, HIGH or URGENT")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("assignee")
	return cmd
}

func taskStatusCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Move a task to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.call(cmd, func(ctx context.Context) (map[string]any, error) {
				return s.api.Tasks(ctx, "UpdateTaskStatus", map[string]any{"id": args[0], "status": args[1]})
			})
		},
	}
}

func taskSimpleCmd(s *session, use, short, method string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.call(cmd, func(ctx context.Context) (map[string]any, error) {
				return s.api.Tasks(ctx, method, map[string]any{"id": args[0]})
			})
		},
	}
}

func usersCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
	}
	var userType string
	list := &cobra.Command{
		Use:   "list",
		Short: "List users, optionally of one type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := map[string]any{}
			if userType != "" {
				req["userType"] = userType
			}
			return s.call(cmd, func(ctx context.Context) (map[string]any, error) {
				return s.api.Users(ctx, "ListUsers", req)
			})
		},
	}
	list.Flags().StringVar(&userType, "type", "", "ADMIN or EMPLOYEE")
	cmd.AddCommand(list)
	return cmd
}

func statsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [USER_ID]",
		Short: "Task statistics for you or another user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{}
			if len(args) == 1 {
				req["userId"] = args[0]
			}
			return s.call(cmd, func(ctx context.Context) (map[string]any, error) {
				return s.api.Tasks(ctx, "GetUserTaskStatistics", req)
			})
		},
	}
}
