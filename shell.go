package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"library-console/library"
)

// Shell is the numbered-menu console. Every failure inside a handler is
// reported and the menu is shown again.
type Shell struct {
	ctx context.Context
	mgr *library.LibraryManager
	cfg *library.Config
	sc  *bufio.Scanner
	out io.Writer
}

// NewShell reads commands from in and writes to out.
func NewShell(ctx context.Context, mgr *library.LibraryManager, cfg *library.Config, in io.Reader, out io.Writer) *Shell {
	return &Shell{ctx: ctx, mgr: mgr, cfg: cfg, sc: bufio.NewScanner(in), out: out}
}

// Run loops over the main menu until Exit or end of input. A panic in a
// handler ends the session with an error.
func (s *Shell) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	for {
		fmt.Fprintln(s.out, "\n=== LIBRARY MANAGEMENT SYSTEM ===")
		fmt.Fprintln(s.out, "1. Employee Module")
		fmt.Fprintln(s.out, "2. Book Module")
		fmt.Fprintln(s.out, "3. Member Module")
		fmt.Fprintln(s.out, "4. Circulation (Issue/Return)")
		fmt.Fprintln(s.out, "5. Exit")

		choice, ok := s.ask("\nEnter choice: ")
		if !ok {
			return nil
		}
		switch choice {
		case "1":
			s.employeeMenu()
		case "2":
			s.bookMenu()
		case "3":
			s.memberMenu()
		case "4":
			s.circulationMenu()
		case "5":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(s.out, "Unknown choice. Enter a number from 1 to 5.")
		}
	}
}

// ------------------ Prompt helpers ------------------

func (s *Shell) ask(prompt string) (string, bool) {
	fmt.Fprint(s.out, prompt)
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

// askID reads a required numeric id. Non-numeric input is reported and
// yields ok=false so the caller returns to its menu.
func (s *Shell) askID(prompt string) (int64, bool) {
	raw, ok := s.ask(prompt)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(s.out, "Invalid ID: %q\n", raw)
		return 0, false
	}
	return id, true
}

// askInt reads an optional integer; blank input keeps def.
func (s *Shell) askInt(prompt string, def int) (int, bool) {
	raw, ok := s.ask(prompt)
	if !ok {
		return 0, false
	}
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid number: %q\n", raw)
		return 0, false
	}
	return n, true
}

// askString reads optional text; blank input keeps def.
func (s *Shell) askString(prompt, def string) (string, bool) {
	raw, ok := s.ask(prompt)
	if !ok {
		return "", false
	}
	if raw == "" {
		return def, true
	}
	return raw, true
}

func (s *Shell) report(err error) {
	fmt.Fprintln(s.out, userMessage(err))
}

func (s *Shell) openFile(prompt, def string) (*os.File, bool) {
	path, ok := s.askString(fmt.Sprintf("%s [%s]: ", prompt, def), def)
	if !ok {
		return nil, false
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		fmt.Fprintf(s.out, "Error: File not found: %s\n", path)
		return nil, false
	}
	return f, true
}

// ------------------ Employees ------------------

func (s *Shell) employeeMenu() {
	fmt.Fprintln(s.out, "\n[Employee Menu]\n1. Import CSV\n2. View All\n3. Add Employee\n4. Update Employee\n5. Remove Employee")
	c, ok := s.ask("Choice: ")
	if !ok {
		return
	}
	switch c {
	case "1":
		s.handleImportEmployees()
	case "2":
		s.handleListEmployees()
	case "3":
		s.handleAddEmployee()
	case "4":
		s.handleUpdateEmployee()
	case "5":
		s.handleDeleteEmployee()
	default:
		fmt.Fprintln(s.out, "Unknown choice.")
	}
}

func (s *Shell) handleImportEmployees() {
	f, ok := s.openFile("Employee CSV", s.cfg.Import.EmployeesCSV)
	if !ok {
		return
	}
	defer f.Close()
	res, err := s.mgr.Staff.ImportEmployeesCSV(s.ctx, f)
	if err != nil {
		s.report(err)
		return
	}
	printImportResult(s.out, "employees", res)
}

func (s *Shell) handleListEmployees() {
	emps, err := s.mgr.Staff.ListEmployees(s.ctx)
	if err != nil {
		s.report(err)
		return
	}
	if len(emps) == 0 {
		fmt.Fprintln(s.out, "No employees found.")
		return
	}
	fmt.Fprintln(s.out, rule("=", 115))
	fmt.Fprintf(s.out, "%-5s %-22s %-22s %-22s %12s %-12s %-10s\n", "ID", "Name", "Role", "Phone", "Salary", "Joined", "Exp")
	fmt.Fprintln(s.out, rule("-", 115))
	for _, e := range emps {
		fmt.Fprintf(s.out, "%-5d %-22s %-22s %-22s %12s %-12s %-10s\n",
			e.ID, truncateString(e.Name, 20), truncateString(e.Role, 20), truncateString(e.Phone, 20),
			e.Salary, e.WorkingFrom, e.YearsWorked)
	}
	fmt.Fprintln(s.out, rule("=", 115))
}

// collectEmployee prompts for every field, offering prev's values as
// defaults.
func (s *Shell) collectEmployee(prev library.Employee) (*library.Employee, bool) {
	e := prev
	var ok bool
	if e.Name, ok = s.askString(fmt.Sprintf("Name (%s): ", prev.Name), prev.Name); !ok {
		return nil, false
	}
	if e.Phone, ok = s.askString(fmt.Sprintf("Phone (%s): ", prev.Phone), prev.Phone); !ok {
		return nil, false
	}
	if e.Salary, ok = s.askString(fmt.Sprintf("Salary (%s): ", prev.Salary), prev.Salary); !ok {
		return nil, false
	}
	if e.Role, ok = s.askString(fmt.Sprintf("Role (%s): ", prev.Role), prev.Role); !ok {
		return nil, false
	}
	if e.Age, ok = s.askInt(fmt.Sprintf("Age (%d): ", prev.Age), prev.Age); !ok {
		return nil, false
	}
	if e.WorkingFrom, ok = s.askString(fmt.Sprintf("Working From (%s): ", prev.WorkingFrom), prev.WorkingFrom); !ok {
		return nil, false
	}
	if e.YearsWorked, ok = s.askString(fmt.Sprintf("Years Worked (%s): ", prev.YearsWorked), prev.YearsWorked); !ok {
		return nil, false
	}
	return &e, true
}

func (s *Shell) handleAddEmployee() {
	e, ok := s.collectEmployee(library.Employee{})
	if !ok {
		return
	}
	if err := s.mgr.Staff.AddEmployee(s.ctx, e); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Employee %s added with ID %d.\n", e.Name, e.ID)
}

func (s *Shell) handleUpdateEmployee() {
	id, ok := s.askID("Employee ID: ")
	if !ok {
		return
	}
	prev, err := s.mgr.Staff.GetEmployee(s.ctx, id)
	if err != nil {
		s.report(err)
		return
	}
	e, ok := s.collectEmployee(*prev)
	if !ok {
		return
	}
	if err := s.mgr.Staff.UpdateEmployee(s.ctx, e); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Employee %d updated.\n", id)
}

func (s *Shell) handleDeleteEmployee() {
	id, ok := s.askID("Employee ID: ")
	if !ok {
		return
	}
	if err := s.mgr.Staff.DeleteEmployee(s.ctx, id); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Employee %d removed.\n", id)
}

// ------------------ Books ------------------

func (s *Shell) bookMenu() {
	fmt.Fprintln(s.out, "\n[Book Menu]")
	fmt.Fprintln(s.out, "1. Import CSV")
	fmt.Fprintln(s.out, "2. Add Manual Book")
	fmt.Fprintln(s.out, "3. View/Search Books")
	fmt.Fprintln(s.out, "4. CATEGORY MANAGEMENT")
	c, ok := s.ask("Choice: ")
	if !ok {
		return
	}
	switch c {
	case "1":
		s.handleImportBooks()
	case "2":
		s.handleAddBook()
	case "3":
		fmt.Fprintln(s.out, "\n1. View All (Paged)\n2. Search by Keyword")
		sc, ok := s.ask("Choice: ")
		if !ok {
			return
		}
		switch sc {
		case "1":
			s.handleListBooks()
		case "2":
			s.handleSearchBooks()
		default:
			fmt.Fprintln(s.out, "Unknown choice.")
		}
	case "4":
		s.categoryMenu()
	default:
		fmt.Fprintln(s.out, "Unknown choice.")
	}
}

func (s *Shell) handleImportBooks() {
	f, ok := s.openFile("Book CSV", s.cfg.Import.BooksCSV)
	if !ok {
		return
	}
	defer f.Close()
	fmt.Fprintln(s.out, "Starting Book Import... Please wait.")
	res, err := s.mgr.Catalog.ImportBooksCSV(s.ctx, f)
	if err != nil {
		s.report(err)
		return
	}
	printImportResult(s.out, "books", res)
}

// handleAddBook collects a book one typed field at a time.
func (s *Shell) handleAddBook() {
	title, ok := s.ask("Title: ")
	if !ok {
		return
	}
	author, ok := s.ask("Author: ")
	if !ok {
		return
	}
	if title == "" || author == "" {
		fmt.Fprintln(s.out, "Title and Author cannot be empty.")
		return
	}

	b := &library.Book{Title: title, Author: author, QuantityAvailable: -1}
	defCat := s.mgr.Catalog.DefaultCategoryID()
	catID, ok := s.askInt(fmt.Sprintf("Category ID (%d): ", defCat), int(defCat))
	if !ok {
		return
	}
	b.CategoryID.Int64, b.CategoryID.Valid = int64(catID), true

	isbn, ok := s.ask("ISBN (blank for none): ")
	if !ok {
		return
	}
	b.ISBN.String = isbn
	if b.Publisher, ok = s.askString("Publisher (Self): ", "Self"); !ok {
		return
	}
	if b.PublicationYear, ok = s.askInt(fmt.Sprintf("Year (%d): ", time.Now().Year()), time.Now().Year()); !ok {
		return
	}
	if b.Language, ok = s.askString("Language (Eng): ", "Eng"); !ok {
		return
	}
	if b.Pages, ok = s.askInt("Pages (100): ", 100); !ok {
		return
	}
	if b.QuantityTotal, ok = s.askInt("Copies (5): ", 5); !ok {
		return
	}
	if b.ShelfLocation, ok = s.askString("Location (Desk): ", "Desk"); !ok {
		return
	}

	if err := s.mgr.Catalog.AddBook(s.ctx, b); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Book '%s' added with ID %d.\n", b.Title, b.ID)
}

// handleListBooks pages through the catalogue, advancing only when asked.
func (s *Shell) handleListBooks() {
	pageSize := s.mgr.Catalog.PageSize()
	for offset := 0; ; offset += pageSize {
		books, err := s.mgr.Catalog.ListBooks(s.ctx, offset)
		if err != nil {
			s.report(err)
			return
		}
		if len(books) == 0 {
			if offset == 0 {
				fmt.Fprintln(s.out, "No books found.")
			} else {
				fmt.Fprintln(s.out, "\n--- End of List ---")
			}
			return
		}

		fmt.Fprintln(s.out, "\n"+rule("=", 100))
		printListings(s.out, books)
		fmt.Fprintln(s.out, rule("=", 100))
		fmt.Fprintf(s.out, "\nDisplaying rows %d - %d\n", offset+1, offset+len(books))

		if len(books) < pageSize {
			fmt.Fprintln(s.out, "--- End of List ---")
			return
		}
		cont, ok := s.ask(fmt.Sprintf("Press [Enter] for next %d, or 'q' to Quit: ", pageSize))
		if !ok || strings.EqualFold(cont, "q") {
			return
		}
	}
}

func (s *Shell) handleSearchBooks() {
	kw, ok := s.ask("Enter Keyword: ")
	if !ok {
		return
	}
	books, err := s.mgr.Catalog.SearchBooks(s.ctx, kw)
	if err != nil {
		s.report(err)
		return
	}
	if len(books) == 0 {
		fmt.Fprintln(s.out, "No matching books found.")
		return
	}
	fmt.Fprintf(s.out, "\nFound %d matches:\n", len(books))
	printListings(s.out, books)
}

func (s *Shell) categoryMenu() {
	fmt.Fprintln(s.out, "\n[Category Manager]")
	fmt.Fprintln(s.out, "1. View Categories")
	fmt.Fprintln(s.out, "2. Add New Category")
	fmt.Fprintln(s.out, "3. Rename Category")
	fmt.Fprintln(s.out, "4. Move Book to Category")
	fmt.Fprintln(s.out, "5. View Books in Category")
	c, ok := s.ask("Choice: ")
	if !ok {
		return
	}
	switch c {
	case "1":
		cats, err := s.mgr.Catalog.ListCategories(s.ctx)
		if err != nil {
			s.report(err)
			return
		}
		printCategories(s.out, cats)
	case "2":
		name, ok := s.ask("New Category Name: ")
		if !ok {
			return
		}
		desc, ok := s.ask("Description (optional): ")
		if !ok {
			return
		}
		id, err := s.mgr.Catalog.AddCategory(s.ctx, name, desc)
		if err != nil {
			s.report(err)
			return
		}
		fmt.Fprintf(s.out, "Category '%s' has ID %d.\n", strings.TrimSpace(name), id)
	case "3":
		id, ok := s.askID("Enter Category ID to Rename: ")
		if !ok {
			return
		}
		name, ok := s.ask("New Name: ")
		if !ok {
			return
		}
		if err := s.mgr.Catalog.RenameCategory(s.ctx, id, name); err != nil {
			s.report(err)
			return
		}
		fmt.Fprintf(s.out, "Category %d updated to '%s'.\n", id, name)
	case "4":
		bookID, ok := s.askID("Enter Book ID: ")
		if !ok {
			return
		}
		catID, ok := s.askID("Enter NEW Category ID: ")
		if !ok {
			return
		}
		if err := s.mgr.Catalog.AssignBookToCategory(s.ctx, bookID, catID); err != nil {
			s.report(err)
			return
		}
		fmt.Fprintf(s.out, "Book %d moved to category %d.\n", bookID, catID)
	case "5":
		catID, ok := s.askID("Enter Category ID to view books: ")
		if !ok {
			return
		}
		books, err := s.mgr.Catalog.BooksByCategory(s.ctx, catID)
		if err != nil {
			s.report(err)
			return
		}
		if len(books) == 0 {
			fmt.Fprintf(s.out, "No books found for category %d.\n", catID)
			return
		}
		printListings(s.out, books)
	default:
		fmt.Fprintln(s.out, "Unknown choice.")
	}
}

// ------------------ Members ------------------

func (s *Shell) memberMenu() {
	fmt.Fprintln(s.out, "\n[Member Menu]")
	fmt.Fprintln(s.out, "1. Add New Member (Full Details)")
	fmt.Fprintln(s.out, "2. Update Member Details")
	fmt.Fprintln(s.out, "3. Deactivate Member")
	fmt.Fprintln(s.out, "4. View All Members")
	c, ok := s.ask("Choice: ")
	if !ok {
		return
	}
	switch c {
	case "1":
		s.handleAddMember()
	case "2":
		s.handleUpdateMember()
	case "3":
		s.handleDeactivateMember()
	case "4":
		s.handleListMembers()
	default:
		fmt.Fprintln(s.out, "Unknown choice.")
	}
}

func (s *Shell) handleAddMember() {
	fmt.Fprintln(s.out, "\n--- Register New Member ---")
	m := &library.Member{}
	prompts := []struct {
		label string
		dst   *string
	}{
		{"Full Name: ", &m.Name},
		{"Address: ", &m.Address},
		{"Contact Number: ", &m.ContactNumber},
		{"Email ID: ", &m.Email},
		{"ID Proof Type (e.g., Student ID/Aadhaar): ", &m.IDProofType},
		{"ID Proof Number: ", &m.IDProofNumber},
	}
	for _, p := range prompts {
		v, ok := s.ask(p.label)
		if !ok {
			return
		}
		*p.dst = v
	}
	if err := s.mgr.Members.AddMember(s.ctx, m); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Success: Member '%s' registered with ID %d.\n", m.Name, m.ID)
}

// handleUpdateMember keeps the stored value of any field left blank.
func (s *Shell) handleUpdateMember() {
	id, ok := s.askID("Enter Member ID to Update: ")
	if !ok {
		return
	}
	old, err := s.mgr.Members.GetMember(s.ctx, id)
	if err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Editing Member: %s\n", old.Name)

	u := library.MemberUpdate{}
	if u.Name, ok = s.askString(fmt.Sprintf("Name (%s): ", old.Name), old.Name); !ok {
		return
	}
	if u.Address, ok = s.askString(fmt.Sprintf("Address (%s): ", old.Address), old.Address); !ok {
		return
	}
	if u.Phone, ok = s.askString(fmt.Sprintf("Phone (%s): ", old.ContactNumber), old.ContactNumber); !ok {
		return
	}
	if u.Email, ok = s.askString(fmt.Sprintf("Email (%s): ", old.Email), old.Email); !ok {
		return
	}
	status, ok := s.askString(fmt.Sprintf("Status (%s): ", old.ActiveStatus), string(old.ActiveStatus))
	if !ok {
		return
	}
	u.Status = library.MemberStatus(status)

	if err := s.mgr.Members.UpdateMember(s.ctx, id, u); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Member %d updated successfully.\n", id)
}

func (s *Shell) handleDeactivateMember() {
	id, ok := s.askID("Enter Member ID to Deactivate: ")
	if !ok {
		return
	}
	confirm, ok := s.ask(fmt.Sprintf("Are you sure you want to block ID %d? (y/n): ", id))
	if !ok || !strings.EqualFold(confirm, "y") {
		return
	}
	if err := s.mgr.Members.DeactivateMember(s.ctx, id); err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Member %d has been Deactivated.\n", id)
}

func (s *Shell) handleListMembers() {
	members, err := s.mgr.Members.ListMembers(s.ctx)
	if err != nil {
		s.report(err)
		return
	}
	if len(members) == 0 {
		fmt.Fprintln(s.out, "No members found.")
		return
	}
	fmt.Fprintln(s.out, rule("=", 100))
	fmt.Fprintf(s.out, "%-5s %-20s %-15s %-25s %-15s %-10s\n", "ID", "Name", "Phone", "Email", "ID Proof", "Status")
	fmt.Fprintln(s.out, rule("-", 100))
	for _, m := range members {
		fmt.Fprintf(s.out, "%-5d %-20s %-15s %-25s %-15s %-10s\n",
			m.ID, truncateString(m.Name, 18), truncateString(m.ContactNumber, 14),
			truncateString(m.Email, 24), truncateString(m.IDProofNumber, 14), m.ActiveStatus)
	}
	fmt.Fprintln(s.out, rule("=", 100))
}

// ------------------ Circulation ------------------

func (s *Shell) circulationMenu() {
	fmt.Fprintln(s.out, "\n[Circulation]\n1. Issue Book\n2. Return Book\n3. View Active")
	c, ok := s.ask("Choice: ")
	if !ok {
		return
	}
	switch c {
	case "1":
		s.handleIssue()
	case "2":
		s.handleReturn()
	case "3":
		borrows, err := s.mgr.Circulation.ListActiveBorrows(s.ctx)
		if err != nil {
			s.report(err)
			return
		}
		printActiveBorrows(s.out, borrows)
	default:
		fmt.Fprintln(s.out, "Unknown choice.")
	}
}

func (s *Shell) handleIssue() {
	memberID, ok := s.askID("Member ID: ")
	if !ok {
		return
	}
	bookID, ok := s.askID("Book ID: ")
	if !ok {
		return
	}
	borrow, err := s.mgr.Circulation.IssueBook(s.ctx, memberID, bookID, 0)
	if err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "SUCCESS: '%s' issued to Member ID %d. Borrow ID: %d. Due: %s\n",
		borrow.BookTitle, memberID, borrow.ID, borrow.DueDate)
}

func (s *Shell) handleReturn() {
	borrowID, ok := s.askID("Borrow ID: ")
	if !ok {
		return
	}
	borrow, err := s.mgr.Circulation.ReturnBook(s.ctx, borrowID)
	if err != nil {
		s.report(err)
		return
	}
	fmt.Fprintf(s.out, "Book returned. Fine: %.2f\n", borrow.FineAmount)
}
