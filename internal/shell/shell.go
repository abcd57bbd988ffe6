// Package shell runs the interactive library menu over a text stream.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mmynk/librarian/internal/middleware"
	"github.com/mmynk/librarian/internal/models"
	"github.com/mmynk/librarian/internal/service"
)

// Catalog is the set of catalog operations the menu drives.
type Catalog interface {
	AddBook(ctx context.Context, title, author, isbn string) (*models.Book, error)
	AddBorrower(ctx context.Context, name, id string) (*models.Borrower, error)
	SearchBooks(ctx context.Context, term string) ([]*models.Book, error)
	CheckoutBook(ctx context.Context, isbn, borrowerID string) (*models.Transaction, error)
	ReturnBook(ctx context.Context, isbn string) (*models.Transaction, error)
	CalculateFine(ctx context.Context, isbn string) (*service.Fine, error)
}

// Ensure CatalogService satisfies Catalog
var _ Catalog = (*service.CatalogService)(nil)

// errEndOfInput ends the session as if the user chose exit.
var errEndOfInput = fmt.Errorf("end of input: %w", io.EOF)

// Shell reads menu choices and field values line by line and prints the
// results. It is not safe for concurrent use.
type Shell struct {
	catalog  Catalog
	in       *bufio.Scanner
	out      *stickyWriter
	commands map[int]command
}

type command struct {
	name string
	run  middleware.Command
}

// initialLineBuffer is the starting capacity of the line buffer. Lines
// longer than this grow the buffer; there is no upper limit.
const initialLineBuffer = 64 * 1024

// New creates a Shell reading from in and writing to out.
func New(catalog Catalog, in io.Reader, out io.Writer) *Shell {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), math.MaxInt)

	s := &Shell{
		catalog: catalog,
		in:      scanner,
		out:     &stickyWriter{w: out},
	}
	s.commands = map[int]command{
		1: {"add book", s.addBook},
		2: {"add borrower", s.addBorrower},
		3: {"search books", s.searchBooks},
		4: {"checkout book", s.checkoutBook},
		5: {"return book", s.returnBook},
		6: {"calculate fine", s.calculateFine},
	}
	for choice, cmd := range s.commands {
		cmd.run = middleware.Logging(cmd.name, cmd.run)
		s.commands[choice] = cmd
	}
	return s
}

// Run shows the menu and dispatches choices until the user picks 0, input
// ends, or ctx is done. A failing command prints a message and the loop
// goes on; only output errors and cancellation end the session early.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.displayMenu()

		line, err := s.readLine()
		if errors.Is(err, errEndOfInput) {
			s.goodbye()
			return s.out.err
		}
		if err != nil {
			return err
		}

		choice, ok := parseChoice(line)
		switch {
		case ok && choice == 0:
			s.goodbye()
			return s.out.err
		case ok && s.commands[choice].run != nil:
			err := s.commands[choice].run(ctx)
			if errors.Is(err, errEndOfInput) {
				s.goodbye()
				return s.out.err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if err != nil {
				s.println("Operation failed. Please try again.")
			}
		default:
			slog.Debug("Invalid menu choice", "input", line)
			s.println("Invalid choice. Please try again.")
		}

		if s.out.err != nil {
			return fmt.Errorf("failed to write output: %w", s.out.err)
		}
	}
}

func (s *Shell) displayMenu() {
	s.print("\n===== Library Management System =====\n")
	s.print("1. Add Book\n")
	s.print("2. Add Borrower\n")
	s.print("3. Search Books\n")
	s.print("4. Checkout Book\n")
	s.print("5. Return Book\n")
	s.print("6. Calculate Fine\n")
	s.print("0. Exit\n")
	s.print("Enter your choice: ")
}

func (s *Shell) goodbye() {
	s.println("Exiting the Library Management System. Goodbye!")
}

func (s *Shell) addBook(ctx context.Context) error {
	fields, err := s.prompt("Enter book title: ", "Enter author: ", "Enter ISBN: ")
	if err != nil {
		return err
	}

	if _, err := s.catalog.AddBook(ctx, fields[0], fields[1], fields[2]); err != nil {
		return err
	}
	s.println("Book added successfully.")
	return nil
}

func (s *Shell) addBorrower(ctx context.Context) error {
	fields, err := s.prompt("Enter borrower name: ", "Enter borrower ID: ")
	if err != nil {
		return err
	}

	if _, err := s.catalog.AddBorrower(ctx, fields[0], fields[1]); err != nil {
		return err
	}
	s.println("Borrower added successfully.")
	return nil
}

func (s *Shell) searchBooks(ctx context.Context) error {
	fields, err := s.prompt("Enter search term: ")
	if err != nil {
		return err
	}

	books, err := s.catalog.SearchBooks(ctx, fields[0])
	if err != nil {
		return err
	}

	s.println("Search Results:")
	for _, book := range books {
		s.print(fmt.Sprintf("Title: %s, Author: %s, ISBN: %s, Availability: %s\n",
			book.Title, book.Author, book.ISBN, book.AvailabilityLabel()))
	}
	return nil
}

func (s *Shell) checkoutBook(ctx context.Context) error {
	fields, err := s.prompt("Enter ISBN: ", "Enter borrower ID: ")
	if err != nil {
		return err
	}

	_, err = s.catalog.CheckoutBook(ctx, fields[0], fields[1])
	if errors.Is(err, service.ErrCheckoutRejected) {
		s.println("Book or borrower not found or book is not available.")
		return nil
	}
	if err != nil {
		return err
	}
	s.println("Book checked out successfully.")
	return nil
}

func (s *Shell) returnBook(ctx context.Context) error {
	fields, err := s.prompt("Enter ISBN: ")
	if err != nil {
		return err
	}

	_, err = s.catalog.ReturnBook(ctx, fields[0])
	if errors.Is(err, service.ErrTransactionNotFound) {
		s.println("Book transaction not found.")
		return nil
	}
	if err != nil {
		return err
	}
	s.println("Book returned successfully.")
	return nil
}

func (s *Shell) calculateFine(ctx context.Context) error {
	fields, err := s.prompt("Enter ISBN: ")
	if err != nil {
		return err
	}

	fine, err := s.catalog.CalculateFine(ctx, fields[0])
	if errors.Is(err, service.ErrTransactionNotFound) {
		s.println("Book transaction not found.")
		return nil
	}
	if err != nil {
		return err
	}
	s.println(fmt.Sprintf("Fine for overdue book: %s %s", FormatAmount(fine.Amount), fine.Currency))
	return nil
}

// FormatAmount renders a money amount with two decimals and thousands
// separators, e.g. 1234.5 -> "1,234.50". Amounts that round to zero
// print as "0.00", never "-0.00".
func FormatAmount(amount float64) string {
	if math.Round(amount*100) == 0 {
		amount = 0
	}
	return humanize.FormatFloat("#,###.##", amount)
}

// prompt asks for each field in order and returns the raw lines.
func (s *Shell) prompt(prompts ...string) ([]string, error) {
	values := make([]string, 0, len(prompts))
	for _, p := range prompts {
		s.print(p)
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		values = append(values, line)
	}
	return values, nil
}

// readLine returns the next input line without its line ending.
func (s *Shell) readLine() (string, error) {
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", errEndOfInput
	}
	return strings.TrimRight(s.in.Text(), "\r"), nil
}

// parseChoice reads the first whitespace-separated token as the choice;
// anything after it on the line is ignored.
func parseChoice(line string) (int, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, false
	}
	choice, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}
	return choice, true
}

func (s *Shell) print(text string) {
	io.WriteString(s.out, text)
}

func (s *Shell) println(text string) {
	io.WriteString(s.out, text+"\n")
}

// stickyWriter remembers the first write error and drops later writes.
type stickyWriter struct {
	w   io.Writer
	err error
}

func (sw *stickyWriter) Write(p []byte) (int, error) {
	if sw.err != nil {
		return 0, sw.err
	}
	n, err := sw.w.Write(p)
	if err != nil {
		sw.err = err
	}
	return n, err
}
