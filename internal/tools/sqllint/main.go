// Command sqllint checks that every query constant carries a unique
// "--sql <uuid>" marker line, which infra.SQLRunner requires at run time.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

type marker struct {
	file string
	name string
	line int
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"internal/sqlinline"}
	}

	violations, err := lint(targets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
		os.Exit(1)
	}
	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: SQL marker violations")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "  %s:%d %s (%s)\n", v.file, v.line, v.message, v.name)
		}
		os.Exit(1)
	}
}

// lint walks targets and reports query constants with a missing, malformed
// or duplicated marker. Only constants named Q* are considered queries.
func lint(targets []string) ([]violation, error) {
	var files []string
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if filepath.Ext(target) == ".go" {
				files = append(files, target)
			}
			continue
		}
		err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != target && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)

	seen := map[string]marker{}
	var violations []violation
	for _, path := range files {
		vs, err := lintFile(path, seen)
		if err != nil {
			return nil, err
		}
		violations = append(violations, vs...)
	}
	return violations, nil
}

func lintFile(path string, seen map[string]marker) ([]violation, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	var violations []violation
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			if i >= len(vs.Names) || !strings.HasPrefix(vs.Names[i].Name, "Q") {
				continue
			}
			text, head, ok := queryText(value)
			if !ok || !sqlKeywordPattern.MatchString(text) {
				continue
			}
			name := vs.Names[i].Name
			line := fset.Position(value.Pos()).Line
			if head == nil {
				violations = append(violations, violation{file: path, line: line, name: name, message: "query does not start with a string literal"})
				continue
			}
			line = fset.Position(head.Pos()).Line
			raw, _ := unquote(head.Value)
			m := uuidMarkerPattern.FindStringSubmatch(firstLine(raw))
			if m == nil {
				violations = append(violations, violation{file: path, line: line, name: name, message: "missing or invalid --sql <uuid> marker"})
				continue
			}
			if prev, dup := seen[m[1]]; dup {
				violations = append(violations, violation{
					file:    path,
					line:    line,
					name:    name,
					message: fmt.Sprintf("marker %s already used by %s (%s:%d)", m[1], prev.name, prev.file, prev.line),
				})
				continue
			}
			seen[m[1]] = marker{file: path, name: name, line: line}
		}
		return true
	})
	return violations, nil
}

// queryText joins the string literals of a constant built with "+" and returns
// the leftmost literal, which must carry the marker. Identifiers contribute
// nothing to the text.
func queryText(expr ast.Expr) (string, *ast.BasicLit, bool) {
	var parts []string
	var head *ast.BasicLit
	first := true
	var walk func(ast.Expr) bool
	walk = func(e ast.Expr) bool {
		switch e := e.(type) {
		case *ast.BasicLit:
			if e.Kind != token.STRING {
				return false
			}
			raw, err := unquote(e.Value)
			if err != nil {
				return false
			}
			if first {
				head = e
			}
			first = false
			parts = append(parts, raw)
			return true
		case *ast.BinaryExpr:
			if e.Op != token.ADD {
				return false
			}
			return walk(e.X) && walk(e.Y)
		case *ast.ParenExpr:
			return walk(e.X)
		case *ast.Ident, *ast.SelectorExpr:
			first = false
			return true
		default:
			return false
		}
	}
	if !walk(expr) || len(parts) == 0 {
		return "", nil, false
	}
	return strings.Join(parts, ""), head, true
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
