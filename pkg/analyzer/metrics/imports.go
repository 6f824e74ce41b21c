package metrics

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/panbanda/sieve/pkg/analyzer"
	"github.com/panbanda/sieve/pkg/models"
	"github.com/panbanda/sieve/pkg/syntax"
)

// Imports reports module-level imports whose bound name is never read and
// imports that name the file's own module. Package initializers re-export
// their imports and are skipped.
type Imports struct {
	budget int
}

// NewImports creates the unused-import pass.
func NewImports(opts ...Option) *Imports {
	return &Imports{budget: newSettings(opts).budget}
}

// Name implements analyzer.Pass.
func (im *Imports) Name() string { return "imports" }

// Analyze implements analyzer.Pass.
func (im *Imports) Analyze(tree *syntax.Tree) ([]models.Finding, error) {
	if tree == nil || tree.Root == nil || filepath.Base(tree.Path) == "__init__.py" {
		return nil, nil
	}
	stem := moduleStem(tree.Path)
	return analyzer.Run(im.budget, func(r *analyzer.Reporter) {
		var imported []syntax.Alias
		var bound []string
		var collect func(body []syntax.Stmt)
		collect = func(body []syntax.Stmt) {
			for _, s := range body {
				r.Visit()
				switch n := s.(type) {
				case *syntax.FunctionDef, *syntax.ClassDef:
					continue
				case *syntax.Import:
					if selfImport(n, stem) {
						f := analyzer.Finding(models.RuleSelfImport, models.SeverityWarning, models.CategoryArchitecture, models.ConfidenceMedium,
							fmt.Sprintf("Module '%s' imports itself.", stem))
						f.Symbol = stem
						r.Report(f.At(n.Line, n.Column))
					}
					if n.Wildcard || n.Module == "__future__" {
						continue
					}
					for _, al := range n.Names {
						imported = append(imported, al)
						bound = append(bound, al.Bound(n.From))
					}
				}
				for _, b := range syntax.Blocks(s) {
					collect(b)
				}
			}
		}
		collect(tree.Root.Body)
		if len(imported) == 0 {
			return
		}

		used := readNames(tree.Root)
		for i, al := range imported {
			name := bound[i]
			if used[name] {
				continue
			}
			f := analyzer.Finding(models.RuleUnusedImport, models.SeverityWarning, models.CategoryArchitecture, models.ConfidenceMedium,
				fmt.Sprintf("Imported name '%s' is never used.", name))
			f.Symbol = name
			r.Report(f.At(al.Line, al.Column))
		}
	})
}

// moduleStem returns the module name of a Python file path, or "" when
// the path does not name an importable module.
func moduleStem(path string) string {
	base := filepath.Base(path)
	stem, ok := strings.CutSuffix(base, ".py")
	if !ok || stem == "" || stem == "__main__" {
		return ""
	}
	return stem
}

// selfImport reports whether imp names the module stem itself: the first
// component of an absolute import, or a same-package relative import of a
// module with the same name.
func selfImport(imp *syntax.Import, stem string) bool {
	if stem == "" {
		return false
	}
	if !imp.From {
		for _, al := range imp.Names {
			if first, _, _ := strings.Cut(al.Name, "."); first == stem {
				return true
			}
		}
		return false
	}
	mod := strings.TrimLeft(imp.Module, ".")
	dots := len(imp.Module) - len(mod)
	if dots == 0 {
		first, _, _ := strings.Cut(mod, ".")
		return first == stem
	}
	if dots > 1 {
		return false
	}
	if mod != "" {
		return mod == stem
	}
	for _, al := range imp.Names {
		if al.Name == stem {
			return true
		}
	}
	return false
}

// readNames collects every name referenced in the file, plus the string
// entries of a module-level __all__.
func readNames(root *syntax.Module) map[string]bool {
	used := make(map[string]bool)
	syntax.Inspect(root, func(n syntax.Node) bool {
		if name, ok := n.(*syntax.Name); ok {
			used[name.ID] = true
		}
		return true
	})
	for _, s := range root.Body {
		assign, ok := s.(*syntax.Assign)
		if !ok || len(assign.Targets) != 1 {
			continue
		}
		if t, ok := assign.Targets[0].(*syntax.Name); !ok || t.ID != "__all__" {
			continue
		}
		coll, ok := assign.Value.(*syntax.Collection)
		if !ok {
			continue
		}
		for _, el := range coll.Elts {
			if c, ok := el.(*syntax.Constant); ok && c.Kind == syntax.ConstString {
				used[unquote(c.Value)] = true
			}
		}
	}
	return used
}

// unquote strips the prefix and quotes of a string literal.
func unquote(s string) string {
	s = strings.TrimLeft(s, "rRbBuU")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && s[:len(q)] == q && s[len(s)-len(q):] == q {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}
