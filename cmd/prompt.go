package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const maxPromptRetries = 3

// askBool asks a yes/no question on w and reads the answer from r. An empty
// answer, end of input or three invalid answers give def.
func askBool(r *bufio.Reader, w io.Writer, prompt string, def bool) bool {
	for attempt := 1; ; attempt++ {
		fmt.Fprint(w, prompt)
		line, err := r.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))

		switch answer {
		case "y", "yes", "t", "true":
			return true
		case "n", "no", "f", "false":
			return false
		case "":
			if err == nil {
				fmt.Fprintf(w, "Using default value: %t\n", def)
			} else {
				fmt.Fprintln(w)
			}
			return def
		}
		if err != nil {
			return def
		}
		if attempt >= maxPromptRetries {
			fmt.Fprintf(w, "Invalid input after %d attempts. Using default: %t\n", maxPromptRetries, def)
			return def
		}
		fmt.Fprintln(w, "Please enter 'y' or 'n' (or leave empty for default)")
	}
}
