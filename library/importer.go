package library

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ImportResult summarises one CSV batch.
type ImportResult struct {
	BatchID   string `json:"batch_id"`
	Processed int    `json:"processed"`
	Inserted  int    `json:"inserted"`
	Skipped   int    `json:"skipped"`
}

const importProgressEvery = 1000

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Header aliases, tried in order.
var (
	titleHeaders    = []string{"Book-Title", "Title"}
	authorHeaders   = []string{"Book-Author", "Author"}
	isbnHeaders     = []string{"ISBN", "Isbn"}
	yearHeaders     = []string{"Year-Of-Publication", "Publication-Year", "Year"}
	categoryHeaders = []string{"Category", "Book-Category", "Genre"}
)

func newBatchID() string { return uuid.NewString() }

// DetectDelimiter picks ';' when the header line contains one, ',' otherwise.
func DetectDelimiter(headerLine string) rune {
	if strings.Contains(headerLine, ";") {
		return ';'
	}
	return ','
}

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

func field(rec []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// firstField returns the first non-empty value among the aliases.
func firstField(rec []string, idx map[string]int, aliases []string) string {
	for _, col := range aliases {
		if v := field(rec, idx, col); v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// bookFromRecord maps one tolerant CSV row to a Book. CategoryID is resolved
// by the caller.
func bookFromRecord(rec []string, idx map[string]int) *Book {
	year, err := strconv.Atoi(firstField(rec, idx, yearHeaders))
	if err != nil {
		year = 0
	}
	qty, err := strconv.Atoi(field(rec, idx, "Quantity"))
	if err != nil || qty <= 0 {
		qty = 5
	}
	return &Book{
		Title:             truncateRunes(orDefault(firstField(rec, idx, titleHeaders), "Unknown"), 99),
		Author:            truncateRunes(orDefault(firstField(rec, idx, authorHeaders), "Unknown"), 99),
		ISBN:              nullIfBlank(truncateRunes(firstField(rec, idx, isbnHeaders), 19)),
		Publisher:         truncateRunes(orDefault(field(rec, idx, "Publisher"), "Unknown"), 49),
		PublicationYear:   year,
		Language:          orDefault(field(rec, idx, "Language"), "English"),
		QuantityTotal:     qty,
		QuantityAvailable: qty,
		ShelfLocation:     orDefault(field(rec, idx, "Shelf"), "Stack A"),
	}
}

// ImportBooksCSV loads an ISO-8859-1 encoded book file. Row failures (such as
// a duplicate ISBN) are counted and skipped; the batch commits once at the end.
func (c *Catalog) ImportBooksCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	result := ImportResult{BatchID: newBatchID()}
	logger := c.db.logger.With("batch", result.BatchID, "kind", "books")

	raw := bufio.NewReader(r)
	if bom, _ := raw.Peek(len(utf8BOM)); bytes.Equal(bom, utf8BOM) {
		raw.Discard(len(utf8BOM))
	}
	br := bufio.NewReader(transform.NewReader(raw, charmap.ISO8859_1.NewDecoder()))
	headerLine, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return result, fmt.Errorf("read book header: %w", err)
	}
	if strings.TrimSpace(headerLine) == "" {
		return result, NewInvalidInputError("book CSV is empty")
	}

	cr := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), br))
	cr.Comma = DetectDelimiter(headerLine)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return result, fmt.Errorf("parse book header: %w", err)
	}
	idx := indexHeader(header)
	defaultCat := c.db.DefaultCategoryID()
	logger.Info("book import started", "delimiter", string(cr.Comma), "columns", len(header))

	err = c.db.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		stmt := tx.StmtxContext(ctx, c.db.addBookStmt)
		categories := map[string]int64{}
		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				var parseErr *csv.ParseError
				if errors.As(err, &parseErr) {
					logger.Warn("skipping malformed book row", "line", parseErr.Line, "err", parseErr.Err)
					result.Processed++
					result.Skipped++
					continue
				}
				return fmt.Errorf("read book row: %w", err)
			}

			book := bookFromRecord(rec, idx)
			book.CategoryID = sql.NullInt64{Int64: defaultCat, Valid: true}
			if name := firstField(rec, idx, categoryHeaders); name != "" {
				id, ok := categories[name]
				if !ok {
					if id, err = upsertCategory(ctx, tx, name, ""); err != nil {
						logger.Warn("category unresolved, using default", "category", name, "err", err)
						id = defaultCat
					}
					categories[name] = id
				}
				book.CategoryID.Int64 = id
			}

			if _, err := stmt.ExecContext(ctx, bookArgs(book)...); err != nil {
				if !isUniqueViolation(err) {
					logger.Warn("skipping book row", "title", book.Title, "err", err)
				}
				result.Skipped++
			} else {
				result.Inserted++
			}
			result.Processed++
			if result.Processed%importProgressEvery == 0 {
				logger.Info("book import progress", "processed", result.Processed)
			}
		}
	})
	if err != nil {
		return result, err
	}
	logger.Info("book import committed", "processed", result.Processed, "inserted", result.Inserted, "skipped", result.Skipped)
	return result, nil
}
