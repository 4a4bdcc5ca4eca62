// If you are AI: This script enforces source rules: the 300-line limit on every Go file,
// the AI header on non-test files, and a doc comment on every non-test function.

package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const maxLines = 300

// main walks the given directory and reports every violation.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <directory>\n", os.Args[0])
		os.Exit(1)
	}

	var failures []string
	err := filepath.WalkDir(os.Args[1], func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return skipDir(path, d.Name())
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		failures = append(failures, checkLines(path, data)...)
		if !strings.HasSuffix(path, "_test.go") {
			failures = append(failures, checkComments(path, data)...)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error walking directory: %v\n", err)
		os.Exit(1)
	}

	if len(failures) > 0 {
		fmt.Fprintf(os.Stderr, "Source violations:\n")
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "  %s\n", f)
		}
		os.Exit(1)
	}
	fmt.Println("All Go files pass source checks")
}

// skipDir skips directories the Go tool ignores, plus vendor and testdata.
func skipDir(path, name string) error {
	if path == "." {
		return nil
	}
	if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "vendor" || name == "testdata" {
		return filepath.SkipDir
	}
	return nil
}

// checkLines reports a file over maxLines.
func checkLines(path string, data []byte) []string {
	lines := strings.Count(string(data), "\n")
	if lines > maxLines {
		return []string{fmt.Sprintf("%s: %d lines (max %d)", path, lines, maxLines)}
	}
	return nil
}

// checkComments reports a missing AI header and undocumented functions.
func checkComments(path string, data []byte) []string {
	var failures []string
	content := string(data)
	if !strings.Contains(content, "If you are AI:") {
		failures = append(failures, fmt.Sprintf("%s: missing 'If you are AI:' header", path))
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		// Skip files that don't parse (might be generated)
		return failures
	}

	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if fn.Doc == nil || len(fn.Doc.List) == 0 {
			pos := fset.Position(fn.Pos())
			failures = append(failures, fmt.Sprintf("%s:%d: function %s missing comment", path, pos.Line, fn.Name.Name))
		}
	}
	return failures
}
