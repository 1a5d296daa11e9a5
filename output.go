package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/term"

	"library-console/library"
)

// ValidFormats defines the allowed output formats for one-shot commands.
var ValidFormats = []string{"text", "json"}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OutputFormatter handles JSON vs text output for one-shot commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Success writes data as JSON, or calls text to render it for humans.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	text(f.Writer)
	return nil
}

// ruleWidth is the width of table separators: fallback, shrunk to the
// terminal when stdout is a narrower one.
func ruleWidth(fallback int) int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return fallback
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 || w >= fallback {
		return fallback
	}
	return w
}

func rule(ch string, width int) string {
	return strings.Repeat(ch, ruleWidth(width))
}

func truncateString(s string, maxLength int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxLength {
		return string(r)
	}
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	return string(r[:maxLength-3]) + "..."
}

// userMessage turns a store error into the line shown at the prompt.
func userMessage(err error) string {
	var de *library.DomainError
	if errors.As(err, &de) {
		switch de.Code {
		case library.ErrCodeNotFound:
			return fmt.Sprintf("Not found: %s", de.Message)
		case library.ErrCodeOutOfStock:
			return fmt.Sprintf("Sorry, %s.", de.Message)
		case library.ErrCodeAlreadyReturned:
			return "Book already returned."
		case library.ErrCodeConflict:
			return fmt.Sprintf("Already exists: %s", de.Message)
		case library.ErrCodeInvalidInput:
			return fmt.Sprintf("Invalid input: %s", de.Message)
		case library.ErrCodeTerminalState:
			return fmt.Sprintf("Not allowed: %s", de.Message)
		}
	}
	return fmt.Sprintf("Error: %v", err)
}

func printActiveBorrows(w io.Writer, borrows []library.ActiveBorrow) {
	if len(borrows) == 0 {
		fmt.Fprintln(w, "No books currently issued.")
		return
	}
	fmt.Fprintln(w, rule("=", 90))
	fmt.Fprintf(w, "%-5s %-20s %-30s %-15s %-15s\n", "ID", "Member Name", "Book Title", "Issued", "Due")
	fmt.Fprintln(w, rule("-", 90))
	for _, b := range borrows {
		fmt.Fprintf(w, "%-5d %-20s %-30s %-15s %-15s\n",
			b.BorrowID, truncateString(b.MemberName, 18), truncateString(b.BookTitle, 28), b.BorrowDate, b.DueDate)
	}
	fmt.Fprintln(w, rule("=", 90))
}

func printCategories(w io.Writer, cats []library.Category) {
	fmt.Fprintln(w, "ID  | Name")
	fmt.Fprintln(w, "----|-----")
	for _, c := range cats {
		fmt.Fprintf(w, "%-3d | %s\n", c.ID, c.Name)
	}
}

func printListings(w io.Writer, books []library.BookListing) {
	fmt.Fprintf(w, "%-5s %-30s %-20s %-15s %-6s %-10s\n", "ID", "Title", "Author", "Category", "Avail", "Loc")
	fmt.Fprintln(w, rule("-", 100))
	for _, b := range books {
		cat := "N/A"
		if b.CategoryName.Valid {
			cat = b.CategoryName.String
		}
		fmt.Fprintf(w, "%-5d %-30s %-20s %-15s %-6d %-10s\n",
			b.ID, truncateString(b.Title, 28), truncateString(b.Author, 18), truncateString(cat, 14),
			b.QuantityAvailable, b.ShelfLocation)
	}
}

func printImportResult(w io.Writer, what string, res library.ImportResult) {
	fmt.Fprintf(w, "SUCCESS: Imported %d %s (%d skipped of %d rows).\n", res.Inserted, what, res.Skipped, res.Processed)
}

func printClassifySummary(w io.Writer, out string, s library.ClassifySummary) {
	fmt.Fprintf(w, "Classified %d rows into %s\n", s.Rows, out)
	for _, c := range s.Counts {
		fmt.Fprintf(w, "  %-28s %6d\n", c.Category, c.Count)
	}
}

// parseDelimiter accepts exactly one character; "\t" means a tab.
func parseDelimiter(s string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q: must be a single character", s)
	}
	return r[0], nil
}
