package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/techcert/internal/export"
	appI18n "github.com/pavelanni/techcert/internal/i18n"
	"github.com/pavelanni/techcert/internal/store"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam results as CSV or JSON",
		RunE:  runExport,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("format", "f", "csv", "Output format (csv, json)")
	f.StringP("output", "o", "", "Output file path (empty = cfmti_results_<date>.csv, - for stdout)")
	f.String("filter", "", "Only records whose name, email or ID contains this text")
	f.String("sort", "timestamp", "Sort by name, timestamp or totalscore")
	f.Bool("asc", false, "Sort ascending instead of descending")
	f.StringP("lang", "l", "en", "Message language (en, fil)")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := loadConfig(cmd)
	setupLogging(v)
	ctx := context.Background()

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	key, err := export.ParseSortKey(v.GetString("sort"))
	if err != nil {
		return err
	}
	q := export.Query{Filter: v.GetString("filter"), SortBy: key, Desc: !v.GetBool("asc")}

	db, err := store.New(v.GetString("db"), v.GetString("app-id"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	res, err := db.ExportResults(ctx, v.GetString("app-id"))
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	res.Records = export.FilterSort(res.Records, q)
	res.Count = len(res.Records)

	format := strings.ToLower(v.GetString("format"))
	outPath := v.GetString("output")
	if outPath == "" {
		outPath = export.Filename(time.Now())
		if format == "json" {
			outPath = strings.TrimSuffix(outPath, ".csv") + ".json"
		}
	}

	// Render before creating the file so an empty export leaves nothing behind.
	var sb strings.Builder
	switch format {
	case "csv":
		if err := export.WriteCSV(&sb, res.Records, time.Local); err != nil {
			return err
		}
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		sb.Write(data)
		sb.WriteByte('\n')
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	var w io.Writer
	if outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if outPath != "-" {
		fmt.Fprintln(cmd.ErrOrStderr(), appI18n.Tp(ctx, "RecordsExported", res.Count))
	}
	return nil
}
