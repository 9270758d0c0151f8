package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/dipongkor/maki/cpp"
)

// printDiagnostic shows the offending source line with a caret when
// the error carries a position.
func printDiagnostic(err error) {
	fmt.Fprintln(os.Stderr, err)
	errLoc, ok := err.(cpp.ErrorLoc)
	if !ok {
		return
	}
	pos := errLoc.Pos
	f, err := os.Open(pos.File)
	if err != nil {
		return
	}
	defer f.Close()
	b := bufio.NewReader(f)
	lineno := 1
	for {
		done := false
		line, err := b.ReadString('\n')
		if err != nil {
			done = true
		}
		if lineno == pos.Line {
			fmt.Fprintf(os.Stderr, "%s", line)
			linelen := 0
			for _, v := range line {
				switch v {
				case '\t':
					linelen += 4
				case '\n':
					// nothing.
				default:
					linelen += 1
				}
			}
			for i := 0; i < linelen; i++ {
				if i+1 == pos.Col {
					fmt.Fprintf(os.Stderr, "%c", '^')
				} else {
					fmt.Fprintf(os.Stderr, "%c", ' ')
				}
			}
			fmt.Fprintln(os.Stderr, "")
		}
		lineno += 1
		if done {
			break
		}
	}
}
