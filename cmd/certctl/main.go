// Package main is certctl, an operator CLI for the certificate store: it
// checks connectivity, reports stats, lists certificates and renders locally.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kylejryan/course-certificate-generator/internal/app"
	"github.com/kylejryan/course-certificate-generator/internal/config"
	"github.com/kylejryan/course-certificate-generator/internal/logging"
	"github.com/kylejryan/course-certificate-generator/internal/pdfconv"
	"github.com/kylejryan/course-certificate-generator/internal/pipeline"
	"github.com/kylejryan/course-certificate-generator/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var envFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "certctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "certctl",
		Short:        "Certificate generator operations CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading configuration")
	cmd.AddCommand(
		newTestConnectionCmd(),
		newStatsCmd(),
		newListCmd(),
		newRenderCmd(),
		newInspectCmd(),
	)
	return cmd
}

// setup loads configuration and a console logger.
func setup() (config.Env, *zap.Logger, error) {
	env, err := config.Load()
	if err != nil {
		return env, nil, err
	}
	log, err := logging.NewDevelopment(env.LogLevel)
	if err != nil {
		return env, nil, err
	}
	return env, log, nil
}

func openStore(cmd *cobra.Command) (app.Store, error) {
	env, log, err := setup()
	if err != nil {
		return nil, err
	}
	return app.NewStore(cmd.Context(), env, log)
}

func newTestConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Verify the bucket is reachable and writable",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := store.TestConnection(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "connection successful to bucket: %s\n", store.Bucket())
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count stored certificates and their total size",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			st, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), st)
		},
	}
}

type listedCertificate struct {
	storage.KeyParts
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

func newListCmd() *cobra.Command {
	var userID, courseID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored certificates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if courseID != "" && userID == "" {
				return fmt.Errorf("--course requires --user")
			}
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			objs, err := store.List(cmd.Context(), listPrefix(userID, courseID))
			if err != nil {
				return err
			}
			out := make([]listedCertificate, 0, len(objs))
			for _, o := range objs {
				parts, ok := storage.ParseKey(o.Key)
				if !ok {
					continue
				}
				out = append(out, listedCertificate{KeyParts: parts, Key: o.Key, Size: o.Size})
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only certificates issued to this user id")
	cmd.Flags().StringVar(&courseID, "course", "", "only certificates for this course id (requires --user)")
	return cmd
}

func listPrefix(userID, courseID string) string {
	prefix := storage.CertificatePrefix
	if userID != "" {
		prefix += userID + "/"
		if courseID != "" {
			prefix += courseID + "/"
		}
	}
	return prefix
}

func newRenderCmd() *cobra.Command {
	var in, out, format string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a certificate request locally without uploading it",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, log, err := setup()
			if err != nil {
				return err
			}
			switch format {
			case "":
			case config.FormatHTML, config.FormatPDF:
				env.Format = format
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			raw, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			body, err := pipeline.Unwrap(raw)
			if err != nil {
				return err
			}
			p, err := app.NewPipeline(env, nil, log)
			if err != nil {
				return err
			}
			rec, err := p.Prepare(body)
			if err != nil {
				return err
			}
			doc, err := p.Document(rec)
			if err != nil {
				return err
			}
			if out == "" {
				out = "cert-" + rec.CertificateNumber + "." + doc.Ext
			}
			if err := os.WriteFile(out, doc.Body, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (key %s)\n", rec.CertificateNumber, out,
				storage.BuildKey(rec.UserID, rec.CourseID, rec.CertificateNumber, doc.Ext))
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "-", "request JSON file, - for stdin")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default cert-<number>.<ext>)")
	cmd.Flags().StringVar(&format, "format", "", "html or pdf (default from CERTIFICATE_FORMAT)")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.pdf>",
		Short: "Print the text of a generated PDF certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			pages, err := pdfconv.Pages(data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pages: %d\n", len(pages))
			for _, p := range pages {
				fmt.Fprintf(out, "--- page %d ---\n%s\n", p.Number, strings.TrimSpace(p.Text))
			}
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
