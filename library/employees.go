package library

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Staff is the employee register: plain records with no lifecycle.
type Staff struct {
	db *Database
}

// employeeCSVHeaders must all be present, spelled exactly like this.
var employeeCSVHeaders = []string{"Name", "Phone", "Salary", "Role", "Age", "Working_From", "Years_Worked"}

const employeeColumns = `e_id, name, phone, salary, role, age, working_from, COALESCE(year_worked,'') AS year_worked`

func validateEmployee(e *Employee) error {
	required := []struct{ name, value string }{
		{"name", e.Name},
		{"phone", e.Phone},
		{"salary", e.Salary},
		{"role", e.Role},
		{"working from", e.WorkingFrom},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return NewInvalidInputError("employee %s cannot be empty", f.name)
		}
	}
	if e.Age <= 0 {
		return NewInvalidInputError("employee age must be > 0")
	}
	return nil
}

// AddEmployee inserts e and fills in its ID.
func (s *Staff) AddEmployee(ctx context.Context, e *Employee) error {
	if err := validateEmployee(e); err != nil {
		return err
	}
	res, err := s.db.addEmployeeStmt.ExecContext(ctx, employeeArgs(e)...)
	if err != nil {
		return fmt.Errorf("add employee %q: %w", e.Name, err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

func employeeArgs(e *Employee) []any {
	return []any{e.Name, e.Phone, e.Salary, e.Role, e.Age, e.WorkingFrom, e.YearsWorked}
}

// GetEmployee fetches a single employee.
func (s *Staff) GetEmployee(ctx context.Context, id int64) (*Employee, error) {
	var e Employee
	err := s.db.Get(ctx, &e, `SELECT `+employeeColumns+` FROM employee WHERE e_id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("employee %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEmployees returns all employees ordered by id.
func (s *Staff) ListEmployees(ctx context.Context) ([]Employee, error) {
	var emps []Employee
	err := s.db.Select(ctx, &emps, `SELECT `+employeeColumns+` FROM employee ORDER BY e_id`)
	return emps, err
}

// UpdateEmployee overwrites every field of the employee with e.ID.
func (s *Staff) UpdateEmployee(ctx context.Context, e *Employee) error {
	if err := validateEmployee(e); err != nil {
		return err
	}
	res, err := s.db.Exec(ctx, `UPDATE employee
        SET name=?, phone=?, salary=?, role=?, age=?, working_from=?, year_worked=?
        WHERE e_id=?`, append(employeeArgs(e), e.ID)...)
	if err != nil {
		return err
	}
	return mustAffectOne(res, NewNotFoundError("employee %d not found", e.ID))
}

// DeleteEmployee removes an employee record.
func (s *Staff) DeleteEmployee(ctx context.Context, id int64) error {
	res, err := s.db.Exec(ctx, `DELETE FROM employee WHERE e_id=?`, id)
	if err != nil {
		return err
	}
	return mustAffectOne(res, NewNotFoundError("employee %d not found", id))
}

// ImportEmployeesCSV bulk-loads a comma-delimited employee file in one
// transaction. Rows that fail validation or insertion are skipped.
func (s *Staff) ImportEmployeesCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	result := ImportResult{BatchID: newBatchID()}
	logger := s.db.logger.With("batch", result.BatchID, "kind", "employees")

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return result, NewInvalidInputError("employee CSV is empty")
	}
	if err != nil {
		return result, fmt.Errorf("read employee header: %w", err)
	}
	idx := indexHeader(header)
	for _, h := range employeeCSVHeaders {
		if _, ok := idx[h]; !ok {
			return result, NewInvalidInputError("employee CSV is missing column %q", h)
		}
	}

	err = s.db.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		stmt := tx.StmtxContext(ctx, s.db.addEmployeeStmt)
		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read employee row %d: %w", result.Processed+1, err)
			}
			result.Processed++

			get := func(col string) string { return field(rec, idx, col) }
			age, convErr := strconv.Atoi(get("Age"))
			emp := &Employee{
				Name:        get("Name"),
				Phone:       get("Phone"),
				Salary:      get("Salary"),
				Role:        get("Role"),
				Age:         age,
				WorkingFrom: get("Working_From"),
				YearsWorked: get("Years_Worked"),
			}
			if convErr != nil {
				logger.Warn("skipping employee row", "row", result.Processed, "err", convErr)
				result.Skipped++
				continue
			}
			if err := validateEmployee(emp); err != nil {
				logger.Warn("skipping employee row", "row", result.Processed, "err", err)
				result.Skipped++
				continue
			}
			if _, err := stmt.ExecContext(ctx, employeeArgs(emp)...); err != nil {
				logger.Warn("skipping employee row", "row", result.Processed, "err", err)
				result.Skipped++
				continue
			}
			result.Inserted++
		}
	})
	if err != nil {
		return result, err
	}
	logger.Info("employee import committed", "processed", result.Processed, "inserted", result.Inserted, "skipped", result.Skipped)
	return result, nil
}
