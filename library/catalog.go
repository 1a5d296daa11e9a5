package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
)

const (
	DefaultPageSize    = 100
	DefaultSearchLimit = 20
	categoryViewLimit  = 1000
)

var dialect = goqu.Dialect("sqlite3")

// Catalog manages books and the categories they are shelved under.
type Catalog struct {
	db          *Database
	pageSize    int
	searchLimit int
}

func newCatalog(db *Database, pageSize, searchLimit int) *Catalog {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	return &Catalog{db: db, pageSize: pageSize, searchLimit: searchLimit}
}

// PageSize is the number of rows ListBooks returns per page.
func (c *Catalog) PageSize() int { return c.pageSize }

// DefaultCategoryID returns the fallback category id.
func (c *Catalog) DefaultCategoryID() int64 { return c.db.DefaultCategoryID() }

// ------------------ Categories ------------------

// AddCategory inserts a category unless one with exactly the same name exists.
// It returns the id of whichever row now carries the name.
func (c *Catalog) AddCategory(ctx context.Context, name, description string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, NewInvalidInputError("category name cannot be empty")
	}
	return upsertCategory(ctx, c.db.db, name, description)
}

// upsertCategory is shared with the CSV importer, which runs it inside its
// batch transaction.
func upsertCategory(ctx context.Context, q DBTX, name, description string) (int64, error) {
	if _, err := q.ExecContext(ctx, `INSERT INTO category(category_name, description) VALUES(?, ?)
            ON CONFLICT(category_name) DO NOTHING`, name, description); err != nil {
		return 0, fmt.Errorf("add category %q: %w", name, err)
	}
	var id int64
	if err := q.GetContext(ctx, &id, `SELECT category_id FROM category WHERE category_name=?`, name); err != nil {
		return 0, fmt.Errorf("resolve category %q: %w", name, err)
	}
	return id, nil
}

// ListCategories returns every category ordered by id.
func (c *Catalog) ListCategories(ctx context.Context) ([]Category, error) {
	var cats []Category
	err := c.db.Select(ctx, &cats, `SELECT category_id, category_name, COALESCE(description,'') AS description
        FROM category ORDER BY category_id`)
	return cats, err
}

// GetCategory fetches a single category.
func (c *Catalog) GetCategory(ctx context.Context, id int64) (*Category, error) {
	var cat Category
	err := c.db.Get(ctx, &cat, `SELECT category_id, category_name, COALESCE(description,'') AS description
        FROM category WHERE category_id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("category %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// RenameCategory changes a category's name.
func (c *Catalog) RenameCategory(ctx context.Context, id int64, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return NewInvalidInputError("category name cannot be empty")
	}
	res, err := c.db.Exec(ctx, `UPDATE category SET category_name=? WHERE category_id=?`, newName, id)
	if isUniqueViolation(err) {
		return NewConflictError("category %q already exists", newName)
	}
	if err != nil {
		return err
	}
	return mustAffectOne(res, NewNotFoundError("category %d not found", id))
}

// ------------------ Books ------------------

// AddBook validates and inserts b, filling in its ID. A negative
// QuantityAvailable means "all copies on the shelf"; an unset CategoryID means
// the default category.
func (c *Catalog) AddBook(ctx context.Context, b *Book) error {
	if err := c.normalizeBook(b); err != nil {
		return err
	}
	if _, err := c.GetCategory(ctx, b.CategoryID.Int64); err != nil {
		return err
	}
	res, err := c.db.addBookStmt.ExecContext(ctx, bookArgs(b)...)
	if isUniqueViolation(err) {
		return NewConflictError("ISBN %s already exists", b.ISBN.String)
	}
	if err != nil {
		return fmt.Errorf("add book %q: %w", b.Title, err)
	}
	b.ID, err = res.LastInsertId()
	return err
}

func (c *Catalog) normalizeBook(b *Book) error {
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	if b.Title == "" || b.Author == "" {
		return NewInvalidInputError("title and author cannot be empty")
	}
	if b.QuantityTotal < 0 {
		return NewInvalidInputError("quantity must be >= 0")
	}
	if b.QuantityAvailable < 0 {
		b.QuantityAvailable = b.QuantityTotal
	}
	if b.QuantityAvailable > b.QuantityTotal {
		return NewInvalidInputError("available copies (%d) exceed total (%d)", b.QuantityAvailable, b.QuantityTotal)
	}
	if !b.CategoryID.Valid {
		b.CategoryID = sql.NullInt64{Int64: c.db.DefaultCategoryID(), Valid: true}
	}
	b.ISBN = nullIfBlank(b.ISBN.String)
	return nil
}

func bookArgs(b *Book) []any {
	return []any{b.Title, b.Author, b.CategoryID, b.ISBN, b.Publisher, b.PublicationYear,
		b.Language, b.Pages, b.QuantityTotal, b.QuantityAvailable, b.ShelfLocation}
}

func nullIfBlank(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

const bookColumns = `book_id, title, author, category_id, isbn, COALESCE(publisher,'') AS publisher,
    COALESCE(publication_year,0) AS publication_year, COALESCE(language,'') AS language,
    COALESCE(pages,0) AS pages, quantity_total, quantity_available,
    COALESCE(shelf_location,'') AS shelf_location`

// GetBook fetches a single book.
func (c *Catalog) GetBook(ctx context.Context, id int64) (*Book, error) {
	return getBook(ctx, c.db.db, id)
}

func getBook(ctx context.Context, q DBTX, id int64) (*Book, error) {
	var b Book
	err := q.GetContext(ctx, &b, `SELECT `+bookColumns+` FROM book WHERE book_id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("book %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func listingQuery() *goqu.SelectDataset {
	return dialect.From(goqu.T("book").As("b")).
		LeftJoin(goqu.T("category").As("c"), goqu.On(goqu.I("b.category_id").Eq(goqu.I("c.category_id")))).
		Select(
			goqu.I("b.book_id").As("book_id"),
			goqu.I("b.title").As("title"),
			goqu.I("b.author").As("author"),
			goqu.I("c.category_name").As("category_name"),
			goqu.I("b.quantity_available").As("quantity_available"),
			goqu.COALESCE(goqu.I("b.shelf_location"), "").As("shelf_location"),
		)
}

func (c *Catalog) selectListings(ctx context.Context, ds *goqu.SelectDataset) ([]BookListing, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var books []BookListing
	if err := c.db.Select(ctx, &books, query, args...); err != nil {
		return nil, err
	}
	return books, nil
}

// ListBooks returns the page of books starting at offset, ordered by id. A
// page shorter than PageSize is the last one.
func (c *Catalog) ListBooks(ctx context.Context, offset int) ([]BookListing, error) {
	if offset < 0 {
		offset = 0
	}
	ds := listingQuery().
		Order(goqu.I("b.book_id").Asc()).
		Limit(uint(c.pageSize)).
		Offset(uint(offset))
	return c.selectListings(ctx, ds)
}

// likeEscaper makes '%' and '_' in a keyword match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchBooks matches keyword as a case-insensitive substring of the title or
// the author.
func (c *Catalog) SearchBooks(ctx context.Context, keyword string) ([]BookListing, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []BookListing{}, nil
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(keyword)) + "%"
	ds := listingQuery().
		Where(goqu.Or(
			goqu.L(`unicode_lower(b.title) LIKE ? ESCAPE '\'`, pattern),
			goqu.L(`unicode_lower(b.author) LIKE ? ESCAPE '\'`, pattern),
		)).
		Order(goqu.I("b.book_id").Asc()).
		Limit(uint(c.searchLimit))
	return c.selectListings(ctx, ds)
}

// BooksByCategory lists the books shelved under categoryID ordered by title.
func (c *Catalog) BooksByCategory(ctx context.Context, categoryID int64) ([]BookListing, error) {
	if _, err := c.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	ds := listingQuery().
		Where(goqu.I("b.category_id").Eq(categoryID)).
		Order(goqu.I("b.title").Asc()).
		Limit(categoryViewLimit)
	return c.selectListings(ctx, ds)
}

// AssignBookToCategory moves a book to another category. Both ids must exist.
func (c *Catalog) AssignBookToCategory(ctx context.Context, bookID, categoryID int64) error {
	return c.db.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM category WHERE category_id=?)`, categoryID); err != nil {
			return err
		}
		if !exists {
			return NewNotFoundError("category %d not found", categoryID)
		}
		res, err := tx.ExecContext(ctx, `UPDATE book SET category_id=? WHERE book_id=?`, categoryID, bookID)
		if err != nil {
			return err
		}
		return mustAffectOne(res, NewNotFoundError("book %d not found", bookID))
	})
}
