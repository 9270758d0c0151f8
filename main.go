package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dipongkor/maki/analysis"
	"github.com/dipongkor/maki/cpp"
	"github.com/dipongkor/maki/parse"
)

func analyzeFile(path string, includePaths []string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source file %s for analysis: %s", path, err)
	}
	defer f.Close()

	lexer := cpp.Lex(path, f)
	pp := cpp.New(lexer, cpp.NewStandardIncludeSearcher(strings.Join(includePaths, ";")))
	if abs, err := filepath.Abs(path); err == nil {
		pp.Files().Register(path, abs)
	}
	consumer := analysis.NewConsumer(pp)

	slog.Debug("analyze.start", "file", path)
	tu, err := parse.Parse(pp)
	if err != nil {
		return err
	}
	if err := consumer.HandleTranslationUnit(tu, out); err != nil {
		return err
	}
	slog.Debug("analyze.done", "file", path)
	return nil
}

func expandPatterns(patterns []string) ([]string, error) {
	var files []string
	for _, pat := range patterns {
		matches, err := doublestar.FilepathGlob(pat)
		if err != nil {
			return nil, fmt.Errorf("bad source pattern %s: %s", pat, err)
		}
		if len(matches) == 0 {
			//A pattern with no metacharacters is just a file path.
			files = append(files, pat)
			continue
		}
		files = append(files, matches...)
	}
	return files, nil
}

func run(c *cli.Context) error {
	if c.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	if c.NArg() == 0 {
		cli.ShowAppHelpAndExit(c, 1)
	}

	files, err := expandPatterns(c.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var out io.Writer = os.Stdout
	if path := c.String("output"); path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open output file: %s", err), 1)
		}
		defer f.Close()
		out = f
	}

	includePaths := c.StringSlice("include")

	//One translation unit per goroutine. Reports are buffered and
	//emitted in argument order so output stays deterministic.
	bufs := make([]bytes.Buffer, len(files))
	var g errgroup.Group
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := analyzeFile(file, includePaths, &bufs[i]); err != nil {
				printDiagnostic(err)
				return err
			}
			return nil
		})
	}
	err = g.Wait()
	for i := range bufs {
		if _, werr := out.Write(bufs[i].Bytes()); werr != nil {
			return cli.Exit(werr.Error(), 1)
		}
	}
	if err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:      "maki",
		Usage:     "analyze C macro expansions against the AST",
		ArgsUsage: "FILE.c|GLOB ...",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "include",
				Aliases: []string{"I"},
				Usage:   "directory to search for headers, may be repeated",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "-",
				Usage:   "file to write the report to, - for stdout",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			if msg := err.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
