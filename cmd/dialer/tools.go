package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"outbound-dialer/internal/auth"
	"outbound-dialer/internal/config"
	"outbound-dialer/internal/contacts"
	"outbound-dialer/internal/outcome"
	"outbound-dialer/internal/phone"
	"outbound-dialer/internal/rbac"
	"outbound-dialer/internal/reporting"
	"outbound-dialer/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token pair from JWT_* settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !rbac.IsKnownRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := config.LoadAuth()
			if err != nil {
				return err
			}
			m, err := auth.NewManager(cfg)
			if err != nil {
				return err
			}
			pair, err := m.IssuePair(time.Now(), userID, role)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pair)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id carried in the token")
	cmd.Flags().StringVar(&role, "role", rbac.RoleOperator, "viewer, operator or admin")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newReportCmd() *cobra.Command {
	var (
		contactsPath string
		backend      string
		storePath    string
		dsn          string
		outDir       string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a report snapshot from a contact list and the stored outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.New(os.Getenv("APP_ENV"))

			f, err := os.Open(contactsPath)
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := contacts.ReadCSV(f)
			if err != nil {
				return err
			}

			repo, closeRepo, err := openRepo(ctx, backend, storePath, dsn, log)
			if err != nil {
				return err
			}
			defer closeRepo()

			outs, err := outcome.NewStore(repo).ReadAll(ctx)
			if err != nil {
				return err
			}
			rep, err := reporting.NewGenerator(outDir).Generate(ctx, "", rows, outs)
			if err != nil {
				return err
			}
			s := rep.Summary
			fmt.Fprintf(cmd.OutOrStdout(), "%s\ncontacts=%d with_result=%d transferred=%d voicemail=%d no_answer=%d\n",
				rep.Path, s.TotalContacts, s.WithResult, s.Transferred, s.LeftVoicemail, s.NoAnswer)
			return nil
		},
	}
	cmd.Flags().StringVar(&contactsPath, "contacts", "", "uploaded contact CSV (Client, Name, Phone)")
	cmd.Flags().StringVar(&backend, "store", envOr("STORE_BACKEND", config.StoreFile), "outcome store: file, sqlite or postgres")
	cmd.Flags().StringVar(&storePath, "store-path", envOr("STORE_PATH", "call_results.json"), "outcome file or sqlite database")
	cmd.Flags().StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "postgres connection string")
	cmd.Flags().StringVar(&outDir, "out", envOr("REPORT_DIR", "reports"), "report directory")
	_ = cmd.MarkFlagRequired("contacts")
	return cmd
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [phone...]",
		Short: "Print canonical phones (reads stdin when no args are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return normalizeLines(cmd.OutOrStdout(), strings.NewReader(strings.Join(args, "\n")))
			}
			return normalizeLines(cmd.OutOrStdout(), cmd.InOrStdin())
		},
	}
}

func normalizeLines(w io.Writer, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		p := phone.Normalize(raw)
		if p == "" {
			p = "unreachable"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", raw, p); err != nil {
			return err
		}
	}
	return sc.Err()
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
