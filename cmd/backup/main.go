package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"familyphotos/internal/config"
	"familyphotos/internal/database"
	"familyphotos/internal/logger"
	"familyphotos/internal/schema"
	"familyphotos/internal/service"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing data before import (WARNING: destructive)")
	importYes := importCmd.Bool("yes", false, "Skip the confirmation prompt for -clear")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Change events have no subscribers in this process.
	hub := schema.NewHub()
	store := schema.NewStore(db, hub, schema.NewLocalBroker(hub), log)
	if _, err := schema.NewCatalog(store); err != nil {
		log.Fatal("failed to register models", zap.Error(err))
	}
	backupService := service.NewBackupService(db, store, log)

	switch os.Args[1] {
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		handleExport(ctx, log, backupService, *exportOutput)

	case "import":
		_ = importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(ctx, log, backupService, *importInput, *importClear, *importYes)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(ctx context.Context, log *zap.Logger, backupService *service.BackupService, outputPath string) {
	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}

	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal("failed to create output directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	log.Info("exporting database", zap.String("output", outputPath))
	if err := backupService.Export(ctx, outputPath); err != nil {
		log.Fatal("export failed", zap.Error(err))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		log.Fatal("export file missing", zap.Error(err))
	}
	log.Info("export complete", zap.String("output", outputPath), zap.Float64("size_mb", float64(info.Size())/1024/1024))
}

func handleImport(ctx context.Context, log *zap.Logger, backupService *service.BackupService, inputPath string, clearData, skipPrompt bool) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		log.Fatal("input file does not exist", zap.String("input", inputPath))
	}

	if clearData {
		if !skipPrompt && !confirm("WARNING: This will delete all existing data. Type 'yes' to confirm: ") {
			log.Info("import cancelled")
			return
		}
		log.Info("clearing existing data")
		if err := backupService.Clear(ctx); err != nil {
			log.Fatal("failed to clear database", zap.Error(err))
		}
	}

	log.Info("importing database", zap.String("input", inputPath))
	stats, err := backupService.Import(ctx, inputPath)
	if err != nil {
		log.Fatal("import failed", zap.Error(err))
	}

	restored, skipped := 0, 0
	for _, n := range stats.Restored {
		restored += n
	}
	for _, n := range stats.Skipped {
		skipped += n
	}
	log.Info("import complete", zap.Int("restored", restored), zap.Int("skipped", skipped))
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(answer) == "yes"
}

func printUsage() {
	fmt.Println("Family Photos Database Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export database to JSON file")
	fmt.Println("  backup import [options]    Import database from JSON file")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Clear existing data before import (WARNING: destructive)")
	fmt.Println("  -yes              Do not prompt before clearing")
	fmt.Println()
	fmt.Println("Records that already exist are skipped, so importing into a populated")
	fmt.Println("database merges the two. Photo objects are not part of the backup.")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE    Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./familyphotos.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
