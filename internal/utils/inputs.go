package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Confirm asks a yes/no question on w and reads the answer from r. It keeps
// asking until it gets y, yes, n or no. End of input counts as no.
func Confirm(r io.Reader, w io.Writer, question string) (bool, error) {
	reader := bufio.NewReader(r)
	for {
		fmt.Fprintf(w, "%s (y/n): ", question)
		response, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}

		switch strings.ToLower(strings.TrimSpace(response)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(w)
			return false, nil
		}
		fmt.Fprintln(w, "Please enter y or n")
	}
}
