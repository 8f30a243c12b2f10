package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/raine/visual-measurement/internal/urlcheck"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <url> [url...]\n", os.Args[0])
		os.Exit(1)
	}

	validator := urlcheck.NewValidator().WithTimeout(5 * time.Second)

	start := time.Now()
	outcomes := validator.ValidateAll(context.Background(), os.Args[1:])

	valid := 0
	for _, o := range outcomes {
		if o.Valid {
			valid++
			fmt.Printf("OK    %s\n", o.URL)
			continue
		}
		fmt.Printf("FAIL  %s\n      %s: %s\n", o.URL, o.Reason, o.Message)
	}

	fmt.Printf("\n%d/%d valid in %s\n", valid, len(outcomes), time.Since(start).Round(time.Millisecond))
	if valid == 0 {
		os.Exit(1)
	}
}
