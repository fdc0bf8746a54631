// Command extract runs the extraction pipeline on local files and prints
// the records.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/bloodbridge/donor-extraction-service/internal/app"
	"github.com/bloodbridge/donor-extraction-service/internal/config"
	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

type output struct {
	Identity      *models.IdentityRecord   `json:"identity,omitempty"`
	IdentityError string                   `json:"identityError,omitempty"`
	Report        *models.ReportRecord     `json:"report,omitempty"`
	ReportError   string                   `json:"reportError,omitempty"`
	Validation    *models.ValidationResult `json:"validation,omitempty"`
}

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML config file")
		identity   = flag.String("identity", "", "Aadhaar card image or PDF")
		report     = flag.String("report", "", "blood report image or PDF")
		asJSON     = flag.Bool("json", false, "print JSON instead of text")
		timeout    = flag.Duration("timeout", 3*time.Minute, "overall deadline")
	)
	flag.Parse()

	if *identity == "" && *report == "" {
		fmt.Fprintln(os.Stderr, "usage: extract [-config file] [-json] -identity card.jpg -report report.pdf")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.LogLevel == "" || cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}
	logger := app.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	deps := app.New(ctx, cfg, logger, app.Options{})
	defer deps.Close()

	var out output
	if *identity != "" {
		rec, err := deps.Pipeline.ExtractIdentityDocument(ctx, *identity)
		if err != nil {
			out.IdentityError = err.Error()
		} else {
			out.Identity = rec
		}
	}
	if *report != "" {
		rec, err := deps.Pipeline.ExtractReportDocument(ctx, *report)
		if err != nil {
			out.ReportError = err.Error()
		} else {
			out.Report = rec
		}
	}
	if out.Identity != nil && out.Report != nil {
		v := deps.Pipeline.CrossValidate(*out.Identity, *out.Report)
		out.Validation = &v
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(out)
	} else {
		printText(out)
	}

	if out.IdentityError != "" || out.ReportError != "" {
		os.Exit(1)
	}
}

func printText(out output) {
	if out.Identity != nil {
		r := out.Identity
		fmt.Printf("Aadhaar card (%s, %s confidence)\n", r.Method, r.Confidence)
		fmt.Printf("  Number:        %s\n", orDash(r.IDNumber))
		fmt.Printf("  Name:          %s\n", orDash(r.Name))
		fmt.Printf("  Date of birth: %s\n", orDash(r.DateOfBirth))
		fmt.Printf("  Gender:        %s\n", orDash(r.Gender))
		if r.Age > 0 {
			fmt.Printf("  Age:           %d\n", r.Age)
		}
	}
	if out.IdentityError != "" {
		fmt.Printf("Aadhaar card: %s\n", out.IdentityError)
	}

	if out.Report != nil {
		r := out.Report
		fmt.Printf("Blood report (%s, %s confidence)\n", r.Method, r.Confidence)
		fmt.Printf("  Blood group:   %s\n", orDash(r.BloodGroup))
		fmt.Printf("  Patient:       %s\n", orDash(r.PatientName))
		fmt.Printf("  Gender:        %s\n", orDash(r.Gender))
		fmt.Printf("  Test date:     %s\n", orDash(r.TestDate))
		if r.PatientAge > 0 {
			fmt.Printf("  Age:           %d\n", r.PatientAge)
		}
	}
	if out.ReportError != "" {
		fmt.Printf("Blood report: %s\n", out.ReportError)
	}

	if out.Validation != nil {
		if out.Validation.IsValid {
			fmt.Println("Cross-validation: documents are consistent")
		}
		for _, w := range out.Validation.Warnings {
			fmt.Printf("Cross-validation warning (%s): %s\n", w.Field, w.Message)
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
