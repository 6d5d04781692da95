package db

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp()
		return
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		log.Fatalf("Failed to get migrations filesystem: %v", err)
	}

	// Migrations manage the schema, so open without applying them.
	database, err := OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch action {
	case "up":
		handleMigrateUp(database, migrationsFS)
	case "down":
		handleMigrateDown(database, migrationsFS)
	case "status":
		handleMigrateStatus(database, migrationsFS)
	case "version":
		if len(args) < 2 {
			log.Fatal("Usage: zombies-bo migrate version <version_number>")
		}
		handleMigrateVersion(database, migrationsFS, args[1])
	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: zombies-bo migrate force <version_number>")
		}
		handleMigrateForce(database, migrationsFS, args[1])
	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

func handleMigrateUp(database *DB, migrationsFS fs.FS) {
	log.Printf("Running migrations...")
	if err := database.MigrateUp(migrationsFS); err != nil {
		log.Fatalf("Migration up failed: %v", err)
	}
	version, dirty, _ := database.MigrateVersion(migrationsFS)
	log.Printf("All migrations applied, current version: %d (dirty: %v)", version, dirty)
}

func handleMigrateDown(database *DB, migrationsFS fs.FS) {
	log.Printf("Rolling back one migration...")
	if err := database.MigrateDown(migrationsFS); err != nil {
		log.Fatalf("Migration down failed: %v", err)
	}
	version, dirty, _ := database.MigrateVersion(migrationsFS)
	log.Printf("Rolled back, current version: %d (dirty: %v)", version, dirty)
}

func handleMigrateStatus(database *DB, migrationsFS fs.FS) {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get migration status: %v", err)
	}
	latest, err := GetLatestMigrationVersion(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get latest migration version: %v", err)
	}

	fmt.Println("=== Migration Status ===")
	fmt.Printf("Current version: %d\n", version)
	fmt.Printf("Latest available: %d\n", latest)
	fmt.Printf("Dirty: %v\n", dirty)
	switch {
	case dirty:
		fmt.Println("\nA migration failed mid-execution. Inspect the database, then run:")
		fmt.Println("  zombies-bo migrate force <version>")
	case version < latest:
		fmt.Printf("\nDatabase is %d version(s) behind. Run 'zombies-bo migrate up'.\n", latest-version)
	default:
		fmt.Println("\nDatabase is up to date.")
	}
}

func handleMigrateVersion(database *DB, migrationsFS fs.FS, versionStr string) {
	target, err := strconv.ParseUint(versionStr, 10, 32)
	if err != nil {
		log.Fatalf("Invalid version number: %s", versionStr)
	}
	log.Printf("Migrating to version %d...", target)
	if err := database.MigrateTo(migrationsFS, uint(target)); err != nil {
		log.Fatalf("Migration to version %d failed: %v", target, err)
	}
	log.Printf("Migrated to version %d", target)
}

func handleMigrateForce(database *DB, migrationsFS fs.FS, versionStr string) {
	version, err := strconv.Atoi(versionStr)
	if err != nil {
		log.Fatalf("Invalid version number: %s", versionStr)
	}

	fmt.Printf("WARNING: Forcing migration version to %d\n", version)
	fmt.Println("This should only be used to recover from a dirty migration state.")
	fmt.Print("Continue? [y/N]: ")

	var response string
	fmt.Scanln(&response)
	if response != "y" && response != "Y" {
		log.Println("Aborted")
		return
	}
	if err := database.MigrateForce(migrationsFS, version); err != nil {
		log.Fatalf("Force migration failed: %v", err)
	}
	log.Printf("Migration version forced to %d", version)
}

// PrintMigrateHelp displays the help message for the migrate command.
func PrintMigrateHelp() {
	fmt.Println("Database Migration Commands")
	fmt.Println()
	fmt.Println("Usage: zombies-bo migrate <command> [--db <path>]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up              Apply all pending migrations")
	fmt.Println("  down            Rollback one migration")
	fmt.Println("  status          Show current migration status and version")
	fmt.Println("  version <N>     Migrate to specific version N")
	fmt.Println("  force <N>       Force migration version to N (recovery only)")
	fmt.Println("  help            Show this help message")
}
