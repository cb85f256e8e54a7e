package main

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/conorfennell/mnemo/internal/config"
	"github.com/conorfennell/mnemo/internal/domain"
	"github.com/conorfennell/mnemo/internal/gitsource"
	"github.com/conorfennell/mnemo/internal/ingest"
	"github.com/conorfennell/mnemo/internal/storage"
	"github.com/conorfennell/mnemo/internal/web"
)

func main() {
	flags := pflag.NewFlagSet("mnemo", pflag.ExitOnError)
	configPath := flags.String("config", "mnemo.yaml", "Path to the YAML config file")
	flags.String("db", "mnemo.db", "Path to the SQLite database file")
	flags.String("listen", ":8484", "Address for the web UI")
	ingestPath := flags.String("ingest", "", "Directory or git URL of markdown card sources to ingest")
	deckName := flags.String("deck", "", "Target deck name for --ingest")
	exportPath := flags.String("export", "", "Write a JSON snapshot to this file and exit")
	importPath := flags.String("import", "", "Replace collections from a JSON snapshot file and exit")
	wipe := flags.Bool("wipe", false, "Remove all decks, cards and stats, then exit")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	switch {
	case *wipe:
		if err := db.WipeAll(); err != nil {
			log.Fatalf("Failed to wipe data: %v", err)
		}
		fmt.Println("All data removed.")
	case *exportPath != "":
		if err := writeSnapshot(db, *exportPath); err != nil {
			log.Fatalf("Failed to export snapshot: %v", err)
		}
		fmt.Printf("Snapshot written to %s\n", *exportPath)
	case *importPath != "":
		if err := readSnapshot(db, *importPath); err != nil {
			log.Fatalf("Failed to import snapshot: %v", err)
		}
		fmt.Printf("Snapshot imported from %s\n", *importPath)
	case *ingestPath != "":
		if *deckName == "" {
			log.Fatalf("--deck is required with --ingest")
		}
		report, err := runIngest(db, cfg, *ingestPath, *deckName)
		if err != nil {
			log.Fatalf("Failed to ingest %s: %v", *ingestPath, err)
		}
		fmt.Printf("Parsed %d cards, inserted %d, pruned %d, %d errors.\n",
			report.Parsed, report.Inserted, report.Pruned, len(report.Errors))
		for _, e := range report.Errors {
			fmt.Printf("- %s\n", e)
		}
	default:
		slog.Info("Serving web UI", "addr", cfg.Listen, "db", cfg.DB)
		if err := http.ListenAndServe(cfg.Listen, web.NewServer(db, cfg.Study)); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}
}

// runIngest reconciles a markdown source into the named deck, creating the
// deck on first use. Git remotes are checked out under the repos dir first.
func runIngest(db *storage.DB, cfg config.Config, source, deckName string) (ingest.Report, error) {
	dir := source
	if gitsource.IsGitURL(source) {
		localPath, err := gitsource.LocalPath(cfg.ReposDir, source)
		if err != nil {
			return ingest.Report{}, err
		}
		if err := gitsource.Sync(source, localPath); err != nil {
			return ingest.Report{}, err
		}
		dir = localPath
	}

	deck := findDeckByName(db, deckName)
	if deck == nil {
		created, err := db.CreateDeck(deckName, "Ingested from "+source, "")
		if err != nil {
			return ingest.Report{}, err
		}
		deck = &created
	}

	return ingest.Reconcile(db, deck.ID, dir)
}

func findDeckByName(db *storage.DB, name string) *domain.Deck {
	for _, d := range db.ListDecks() {
		if d.Name == name {
			return &d
		}
	}
	return nil
}

func writeSnapshot(db *storage.DB, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(db.ExportSnapshot())
}

func readSnapshot(db *storage.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var snap domain.Snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return err
	}
	return db.ImportSnapshot(snap)
}
