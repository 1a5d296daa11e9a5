package library

import "database/sql"

// DateLayout is the on-disk format of every date column.
const DateLayout = "2006-01-02"

// Category groups books on the shelf.
type Category struct {
	ID          int64  `db:"category_id" json:"id"`
	Name        string `db:"category_name" json:"name"`
	Description string `db:"description" json:"description"`
}

// Book represents catalogue metadata and current stock of a title.
type Book struct {
	ID                int64          `db:"book_id" json:"id"`
	Title             string         `db:"title" json:"title"`
	Author            string         `db:"author" json:"author"`
	CategoryID        sql.NullInt64  `db:"category_id" json:"-"`
	ISBN              sql.NullString `db:"isbn" json:"-"`
	Publisher         string         `db:"publisher" json:"publisher"`
	PublicationYear   int            `db:"publication_year" json:"publication_year"`
	Language          string         `db:"language" json:"language"`
	Pages             int            `db:"pages" json:"pages"`
	QuantityTotal     int            `db:"quantity_total" json:"quantity_total"`
	QuantityAvailable int            `db:"quantity_available" json:"quantity_available"`
	ShelfLocation     string         `db:"shelf_location" json:"shelf_location"`
}

// BookListing is the lightweight row used by list, search and category views.
type BookListing struct {
	ID                int64          `db:"book_id" json:"id"`
	Title             string         `db:"title" json:"title"`
	Author            string         `db:"author" json:"author"`
	CategoryName      sql.NullString `db:"category_name" json:"-"`
	QuantityAvailable int            `db:"quantity_available" json:"quantity_available"`
	ShelfLocation     string         `db:"shelf_location" json:"shelf_location"`
}

// MemberStatus is the lifecycle state of a member. Deactivated is terminal.
type MemberStatus string

const (
	MemberActive      MemberStatus = "Active"
	MemberDeactivated MemberStatus = "Deactivated"
)

// Member represents a registered library member.
type Member struct {
	ID             int64        `db:"member_id" json:"id"`
	Name           string       `db:"name" json:"name"`
	Address        string       `db:"address" json:"address"`
	ContactNumber  string       `db:"contact_number" json:"contact_number"`
	Email          string       `db:"email" json:"email"`
	IDProofType    string       `db:"id_proof_type" json:"id_proof_type"`
	IDProofNumber  string       `db:"id_proof_number" json:"id_proof_number"`
	MembershipDate string       `db:"membership_date" json:"membership_date"`
	ActiveStatus   MemberStatus `db:"active_status" json:"active_status"`
}

// Employee is a staff record. It has no lifecycle.
type Employee struct {
	ID          int64  `db:"e_id" json:"id"`
	Name        string `db:"name" json:"name"`
	Phone       string `db:"phone" json:"phone"`
	Salary      string `db:"salary" json:"salary"`
	Role        string `db:"role" json:"role"`
	Age         int    `db:"age" json:"age"`
	WorkingFrom string `db:"working_from" json:"working_from"`
	YearsWorked string `db:"year_worked" json:"years_worked"`
}

// BorrowStatus is the state of a Borrow: Issued, then Returned.
type BorrowStatus string

const (
	BorrowIssued   BorrowStatus = "Issued"
	BorrowReturned BorrowStatus = "Returned"
)

// Borrow is one copy of a book lent to a member.
type Borrow struct {
	ID         int64          `db:"borrow_id" json:"id"`
	Ref        string         `db:"borrow_ref" json:"ref"`
	MemberID   int64          `db:"member_id" json:"member_id"`
	BookID     int64          `db:"book_id" json:"book_id"`
	BorrowDate string         `db:"borrow_date" json:"borrow_date"`
	DueDate    string         `db:"due_date" json:"due_date"`
	ReturnDate sql.NullString `db:"return_date" json:"-"`
	FineAmount float64        `db:"fine_amount" json:"fine_amount"`
	Status     BorrowStatus   `db:"borrow_status" json:"status"`

	// BookTitle is filled by IssueBook only.
	BookTitle string `db:"-" json:"book_title,omitempty"`
}

// ActiveBorrow is an Issued borrow joined with the member and book it links.
type ActiveBorrow struct {
	BorrowID   int64  `db:"borrow_id" json:"borrow_id"`
	MemberName string `db:"member_name" json:"member_name"`
	BookTitle  string `db:"book_title" json:"book_title"`
	BorrowDate string `db:"borrow_date" json:"borrow_date"`
	DueDate    string `db:"due_date" json:"due_date"`
}
