package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"library-console/library"
)

// import_books rebuilds the database from scratch and seeds it from a books
// file, then prints the first page of the catalogue.
func main() {
	dbPath := flag.String("db", "library.db", "database file to recreate")
	booksPath := flag.String("books", "books.csv", "books file to import")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	fmt.Println("Cleaning up existing database files...")
	for _, file := range []string{*dbPath, *dbPath + "-shm", *dbPath + "-wal"} {
		if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
		}
	}

	manager, err := library.NewLibraryManager(*dbPath, library.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	f, err := os.Open(*booksPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening books file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	ctx := context.Background()
	fmt.Printf("Importing books from %s...\n", *booksPath)
	res, err := manager.Catalog.ImportBooksCSV(ctx, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Rows read: %d\n", res.Processed)
	fmt.Printf("Imported: %d\n", res.Inserted)
	fmt.Printf("Skipped: %d\n", res.Skipped)

	books, err := manager.Catalog.ListBooks(ctx, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing books: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nFirst %d books in library:\n", len(books))
	for _, b := range books {
		fmt.Printf("  %d. %s by %s\n", b.ID, truncateString(b.Title, 50), truncateString(b.Author, 30))
	}
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength-3]) + "..."
}
