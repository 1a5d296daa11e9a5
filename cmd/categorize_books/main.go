package main

import (
	"flag"
	"fmt"
	"os"

	"library-console/library"
)

// categorize_books fills the Category and Category ID columns of a
// semicolon-separated books file.
func main() {
	in := flag.String("in", "books.csv", "input file")
	out := flag.String("out", "books_categorized.csv", "output file")
	flag.Parse()

	fmt.Printf("Processing %s...\n", *in)
	summary, err := library.ClassifyFile(*in, *out, ';')
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Categorization complete. Saved to '%s'.\n", *out)
	fmt.Println("\n--- Category Breakdown ---")
	for _, c := range summary.Counts {
		fmt.Printf("%-28s %d\n", c.Category, c.Count)
	}
}
