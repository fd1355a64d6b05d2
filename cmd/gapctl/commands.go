package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/gap-pos/internal/api/dto"
	"github.com/spec-kit/gap-pos/internal/auth"
	"github.com/spec-kit/gap-pos/internal/config"
	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/environment"
	"github.com/spec-kit/gap-pos/internal/observability"
	"github.com/spec-kit/gap-pos/internal/persistence"
	"github.com/spec-kit/gap-pos/internal/service"
	"github.com/spec-kit/gap-pos/internal/underwriting"
)

func envCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show or switch the active underwriting environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var status service.EnvironmentStatus
			if err := newAdminClient().get(cmd.Context(), "/admin/environment", nil, &status); err != nil {
				return err
			}
			printEnvironment(cmd.OutOrStdout(), status)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <TEST|PRODUCTION>",
		Short: "Switch the process-wide environment; running flows keep theirs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var status service.EnvironmentStatus
			req := dto.SetEnvironmentRequest{Environment: args[0]}
			if err := newAdminClient().do(cmd.Context(), http.MethodPut, "/admin/environment", req, &status); err != nil {
				return err
			}
			printEnvironment(cmd.OutOrStdout(), status)
			return nil
		},
	})
	return cmd
}

func printEnvironment(w io.Writer, status service.EnvironmentStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Environment:\t%s (%s)\n", status.Label, status.Active)
	fmt.Fprintf(tw, "API:\t%s\n", status.APIURL)
	fmt.Fprintf(tw, "Seller node:\t%s\n", status.SellerNodeCode)
	session := "none"
	if status.SessionCached {
		session = "cached"
		if status.SessionValidUntil != nil {
			session += " until " + status.SessionValidUntil.Local().Format(time.RFC3339)
		}
	}
	fmt.Fprintf(tw, "Upstream session:\t%s\n", session)
	_ = tw.Flush()
}

func portfolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Manage cached portfolio descriptors",
	}

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Refetch portfolio descriptors from the underwriting service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			if env, _ := cmd.Flags().GetString("env"); env != "" {
				query.Set("environment", env)
			}
			path := "/admin/portfolios/refresh"
			if len(query) > 0 {
				path += "?" + query.Encode()
			}
			var resp dto.RefreshResponse
			if err := newAdminClient().do(cmd.Context(), http.MethodPost, path, nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d products for %s\n", resp.Products, resp.Environment)
			return nil
		},
	}
	refresh.Flags().String("env", "", "environment to refresh (default: active)")

	cmd.AddCommand(refresh)
	return cmd
}

func policiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "Browse the policy ledger",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List locked policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			for _, name := range []string{"status", "env", "product", "q", "from", "to"} {
				if val, _ := cmd.Flags().GetString(name); val != "" {
					query.Set(policyQueryParam(name), val)
				}
			}
			if size, _ := cmd.Flags().GetInt("limit"); size > 0 {
				query.Set("page_size", fmt.Sprint(size))
			}

			var items []dto.PolicyResponse
			if err := newAdminClient().get(cmd.Context(), "/admin/policies", query, &items); err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no policies found")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "POLICY\tNUMBER\tSTATUS\tENV\tPRODUCT\tPREMIUM\tHOLDER\tLOCKED")
			for _, p := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
					p.PolicyID, p.PolicyNumber, p.Status, p.Environment, p.ProductCode,
					p.Premium, p.HolderName, p.LockedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	list.Flags().String("status", "", "comma separated statuses")
	list.Flags().String("env", "", "TEST or PRODUCTION")
	list.Flags().String("product", "", "product code")
	list.Flags().String("q", "", "search policy number or holder")
	list.Flags().String("from", "", "locked at or after (RFC3339)")
	list.Flags().String("to", "", "locked at or before (RFC3339)")
	list.Flags().Int("limit", 0, "page size")

	show := &cobra.Command{
		Use:   "show <policy-id>",
		Short: "Show one policy with its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var detail dto.PolicyDetailResponse
			if err := newAdminClient().get(cmd.Context(), "/admin/policies/"+url.PathEscape(args[0]), nil, &detail); err != nil {
				return err
			}
			out, err := json.MarshalIndent(detail, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func policyQueryParam(flag string) string {
	switch flag {
	case "env":
		return "environment"
	case "from":
		return "locked_from"
	case "to":
		return "locked_to"
	default:
		return flag
	}
}

// loginCmd checks upstream credentials locally, using the same environment variables as the server.
func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify underwriting credentials of an environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			resolver, err := environment.NewResolver(cfg.Underwriting)
			if err != nil {
				return err
			}
			env, _ := cmd.Flags().GetString("env")
			target, err := resolver.Target(resolver.Active())
			if env != "" {
				parsed, perr := domain.ParseEnvironment(env)
				if perr != nil {
					return perr
				}
				target, err = resolver.Target(parsed)
			}
			if err != nil {
				return err
			}

			metrics := observability.NewMetrics()
			identity := underwriting.NewIdentityClient(&http.Client{Timeout: cfg.Underwriting.HTTPTimeout}, metrics)
			start := time.Now()
			token, err := identity.Login(cmd.Context(), target)
			if err != nil {
				return err
			}
			logger.Debug("login succeeded", zap.String("environment", string(target.Environment)), zap.Duration("took", time.Since(start)))

			fmt.Fprintf(cmd.OutOrStdout(), "%s: login ok (%s)\n", target.Label, target.BaseURL)
			if show, _ := cmd.Flags().GetBool("show-token"); show {
				fmt.Fprintln(cmd.OutOrStdout(), token)
			}
			return nil
		},
	}
	cmd.Flags().String("env", "", "environment to check (default: UW_ENVIRONMENT)")
	cmd.Flags().Bool("show-token", false, "print the issued bearer token")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply policy ledger migrations to POSTGRES_DSN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("POSTGRES_DSN is not set")
			}
			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()

			if err := persistence.RunMigrations(cmd.Context(), pg.Pool(), logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Produce a bcrypt hash for AUTH_OPERATOR_PASSWORD_HASH",
		Long: `Reads the password from the first argument or, when absent, from stdin.

Example:
  echo -n 's3cret' | gapctl hash-password`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			cost, _ := cmd.Flags().GetInt("cost")
			hash, err := auth.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().Int("cost", 12, "bcrypt cost")
	return cmd
}
