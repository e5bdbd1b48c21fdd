package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-studio/internal/barcode"
	"github.com/zombor/receipt-studio/internal/export"
	"github.com/zombor/receipt-studio/internal/layout"
	"github.com/zombor/receipt-studio/internal/receipt"
	"github.com/zombor/receipt-studio/internal/studio"
	"github.com/zombor/receipt-studio/internal/totals"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-studio")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		downloadsPath = fs.StringLong("downloads", "./downloads", "Directory exported PDFs are written to")
		spoolPath     = fs.StringLong("spool", "./spool", "Directory print jobs are spooled to when no print command is set")
		printCommand  = fs.StringLong("print-command", "", "Command the print page is piped into, e.g. 'lp -d receipts'")
		taxRate       = fs.StringLong("tax-rate", "0.08", "Sales tax rate as a fraction")
		taxBase       = fs.StringLong("tax-base", string(totals.TaxableSubsetOnly), "Tax base: 'taxable' or 'full'")
		symbology     = fs.StringLong("symbology", string(barcode.Code128Numeric), "Barcode symbology: 'code128' or 'code39'")
		rasterDPI     = fs.IntLong("raster-dpi", int(export.DefaultDPI), "Resolution of the PDF capture in dots per inch")
		textWidth     = fs.IntLong("text-width", layout.DefaultWidth, "Column count of the plain text preview")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_STUDIO"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	rate, err := decimal.NewFromString(*taxRate)
	if err != nil || rate.IsNegative() {
		slog.Error("Invalid tax rate", "value", *taxRate, "error", err)
		os.Exit(1)
	}
	base, err := totals.ParseTaxBase(*taxBase)
	if err != nil {
		slog.Error("Invalid tax base", "error", err)
		os.Exit(1)
	}
	sym, err := barcode.ParseSymbology(*symbology)
	if err != nil {
		slog.Error("Invalid symbology", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	slog.Info("Initializing downloads...", "path", *downloadsPath)
	downloads, err := export.NewLocalStorage(*downloadsPath)
	if err != nil {
		slog.Error("Failed to initialize downloads", "error", err)
		os.Exit(1)
	}

	// Initialize printer based on configuration
	var printer export.Printer
	if *printCommand != "" {
		slog.Info("Initializing command printer...", "command", *printCommand)
		printer, err = export.NewCommandPrinter(*printCommand)
		if err != nil {
			slog.Error("Failed to initialize print command", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("Initializing print spool...", "path", *spoolPath)
		spool, err := export.NewLocalStorage(*spoolPath)
		if err != nil {
			slog.Error("Failed to initialize print spool", "error", err)
			os.Exit(1)
		}
		printer = export.NewSpoolPrinter(spool)
	}

	pipeline := export.NewPipeline(export.NewFitzCapturer(float64(*rasterDPI)), export.NewPDFEncoder(), printer, downloads)
	session := studio.NewSession(
		receipt.Default(),
		totals.Policy{Rate: rate, Base: base},
		layout.Options{Symbology: sym},
		pipeline,
	)

	// Initialize server
	basicAuth := studio.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := studio.NewServer(session, basicAuth)
	server.SetTextWidth(*textWidth)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "tax_rate", rate.String(), "tax_base", base, "symbology", sym)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	if err := server.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutting down...")
}
