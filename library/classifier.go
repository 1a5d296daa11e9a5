package library

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// CategoryIDs is the fixed name→id table written to the "Category ID"
// column. Names not listed map to 0.
var CategoryIDs = map[string]int{
	"Fiction":                   1,
	"Mystery & Thriller":        2,
	"Science Fiction & Fantasy": 3,
	"Romance":                   4,
	"Non-Fiction":               5,
	"History & Biography":       6,
	"Children & YA":             7,
	"Cooking & Food":            8,
	"Science & Tech":            9,
	"Religion & Spirituality":   10,
	"Poetry & Drama":            11,
	"Business & Economics":      12,
	"Self-Help":                 13,
	"Travel":                    14,
	"Classics":                  15,
	"General":                   0,
}

// KeywordRule maps keywords to a category name.
type KeywordRule struct {
	Category string
	Keywords []string
}

// KeywordRules is evaluated top to bottom; the first keyword found wins, so
// the order is part of the output contract.
var KeywordRules = []KeywordRule{
	{"Children & YA", []string{"children", "kid", "junior", "baby", "young", "laurel leaf", "scholastic", "animorph", "goosebumps", "narnia", "harperfestival"}},
	{"Science Fiction & Fantasy", []string{"science fiction", "sci-fi", "fantasy", "dragon", "vampire", "hobbit", "dune", "star trek", "halo", "end", "galaxy", "space", "discworld", "david e.", "discworld"}},
	{"Mystery & Thriller", []string{"mystery", "murder", "thriller", "detective", "case", "clancy", "grisham", "patterson", "cornwell", "lecarre", "kellerman", "koontz", "child", "suspense"}},
	{"Romance", []string{"romance", "love", "kissing", "brid", "wedding", "harlequin", "silhouette", "jane austen", "nicholas sparks"}},
	{"Cooking & Food", []string{"cook", "cooking", "recipe", "kitchen", "culinary", "food", "chef"}},
	{"History & Biography", []string{"history", "biography", "memoir", "journal", "war", "diary", "life", "story of", "account"}},
	{"Science & Tech", []string{"science", "physics", "chemistry", "biology", "computer", "programming", "internet", "technology", "engineering", "chemistry", "compu", "linux", "oracle", "cisco"}},
	{"Religion & Spirituality", []string{"bible", "relig", "spirit", "prayer", "god", "christ", "moses", "buddh", "yoga", "church", "catechism"}},
	{"Business & Economics", []string{"business", "finance", "wealth", "money", "investment", "management", "leadership", "econom", "stock", "market"}},
	{"Self-Help", []string{"self", "self-help", "how to", "guide to", "how to be", "habit", "mind", "improve", "motivat"}},
	{"Travel", []string{"travel", "guide", "journey", "adventure", "trip", "road", "tour", "guidebook"}},
	{"Poetry & Drama", []string{"poem", "poetry", "play", "drama", "poet", "verse"}},
	{"Classics", []string{"classic", "penguin", "everyman's", "dover", "wordsworth", "austen", "dickens", "tolstoy", "shakespeare", "homer", "huck"}},
	{"Non-Fiction", []string{"essay", "report", "investig", "study", "manual", "handbook", "reference", "guidebook", "how-to"}},
}

const (
	categoryColumn   = "Category"
	categoryIDColumn = "Category ID"
)

// ClassifyText returns the category of the first rule with a keyword that
// occurs in text (case-insensitive), or "General".
func ClassifyText(text string) string {
	t := strings.ToLower(text)
	for _, rule := range KeywordRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(t, kw) {
				return rule.Category
			}
		}
	}
	return defaultCategoryName
}

// CategoryCount is one line of a classification summary.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ClassifySummary reports what Classify wrote.
type ClassifySummary struct {
	Rows   int             `json:"rows"`
	Counts []CategoryCount `json:"counts"`
}

// Classify copies the delimited file r to w, filling Category for rows that
// lack one and Category ID for every row. Both columns are appended to the
// header when missing.
func Classify(r io.Reader, w io.Writer, delim rune) (ClassifySummary, error) {
	var summary ClassifySummary

	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return summary, NewInvalidInputError("input file is empty")
	}
	if err != nil {
		return summary, fmt.Errorf("read header: %w", err)
	}
	idx := indexHeader(header)
	width := len(header)
	for _, col := range []string{categoryColumn, categoryIDColumn} {
		if _, ok := idx[col]; !ok {
			idx[col] = len(header)
			header = append(header, col)
		}
	}

	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write(header); err != nil {
		return summary, err
	}

	counts := map[string]int{}
	var order []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("read row %d: %w", summary.Rows+1, err)
		}
		if len(rec) > width {
			return summary, NewInvalidInputError("row %d has %d fields, header has %d", summary.Rows+1, len(rec), width)
		}
		row := make([]string, len(header))
		copy(row, rec)

		category := field(row, idx, categoryColumn)
		if category == "" {
			text := strings.Join([]string{
				field(row, idx, "Book-Title"),
				field(row, idx, "Book-Author"),
				field(row, idx, "Publisher"),
			}, " ")
			category = ClassifyText(text)
		}
		row[idx[categoryColumn]] = category
		row[idx[categoryIDColumn]] = strconv.Itoa(CategoryIDs[category])

		if err := cw.Write(row); err != nil {
			return summary, err
		}
		if _, seen := counts[category]; !seen {
			order = append(order, category)
		}
		counts[category]++
		summary.Rows++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return summary, err
	}

	for _, cat := range order {
		summary.Counts = append(summary.Counts, CategoryCount{Category: cat, Count: counts[cat]})
	}
	sort.SliceStable(summary.Counts, func(i, j int) bool {
		return summary.Counts[i].Count > summary.Counts[j].Count
	})
	return summary, nil
}

// ClassifyFile runs Classify from the file at in to a new file at out. The
// output is removed when classification fails.
func ClassifyFile(in, out string, delim rune) (summary ClassifySummary, err error) {
	src, err := os.Open(in)
	if err != nil {
		return summary, NewNotFoundError("input file %s", in)
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return summary, fmt.Errorf("create %s: %w", out, err)
	}
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(out)
		}
	}()

	return Classify(bufio.NewReader(src), dst, delim)
}
