package ctaudit

import (
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// Static scan rules.
const (
	RuleBytesEqual   = "bytes-equal"
	RuleByteCompare  = "byte-compare"
	RuleSecretFormat = "secret-format"
)

var secretName = regexp.MustCompile(`(?i)(key|secret|seed|priv|nonce)`)

var formatFuncs = map[string]bool{
	"Printf": true, "Sprintf": true, "Fprintf": true, "Errorf": true, "Appendf": true,
}

// StaticFinding is an advisory result of the source scan. It is not part of
// a run report.
type StaticFinding struct {
	Pos     token.Position
	Rule    string
	Message string
}

func (f StaticFinding) String() string {
	return fmt.Sprintf("%s: %s: %s", f.Pos, f.Rule, f.Message)
}

// Scan loads the packages matching patterns, relative to dir, and flags
// variable-time comparisons of byte data and hex formatting of values whose
// names suggest secrets.
func Scan(dir string, patterns ...string) ([]StaticFinding, error) {
	cfg := &packages.Config{
		Mode: packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedFiles | packages.NeedName,
		Dir:  dir,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	var (
		findings []StaticFinding
		loadErrs []error
	)
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			loadErrs = append(loadErrs, e)
		}
		if pkg.TypesInfo == nil {
			continue
		}
		for _, file := range pkg.Syntax {
			findings = append(findings, scanFile(pkg.Fset, pkg.TypesInfo, file)...)
		}
	}
	if len(loadErrs) > 0 {
		return findings, fmt.Errorf("load packages: %w", errors.Join(loadErrs...))
	}

	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i].Pos, findings[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return findings, nil
}

func scanFile(fset *token.FileSet, info *types.Info, file *ast.File) []StaticFinding {
	var out []StaticFinding
	report := func(n ast.Node, rule, msg string) {
		out = append(out, StaticFinding{Pos: fset.Position(n.Pos()), Rule: rule, Message: msg})
	}

	ast.Inspect(file, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.BinaryExpr:
			if n.Op != token.EQL && n.Op != token.NEQ {
				return true
			}
			if isByteData(info.TypeOf(n.X)) && isByteData(info.TypeOf(n.Y)) {
				report(n, RuleByteCompare, fmt.Sprintf("%s on byte data exits early; use crypto/subtle", n.Op))
			}

		case *ast.CallExpr:
			fn := calledFunc(info, n)
			if fn == nil || fn.Pkg() == nil {
				return true
			}
			switch {
			case fn.Pkg().Path() == "bytes" && fn.Name() == "Equal":
				report(n, RuleBytesEqual, "bytes.Equal exits early; use crypto/subtle.ConstantTimeCompare")
			case fn.Pkg().Path() == "fmt" && formatFuncs[fn.Name()]:
				if name := hexFormattedSecret(info, n); name != "" {
					report(n, RuleSecretFormat, fmt.Sprintf("%s formats %q as hex", fn.Name(), name))
				}
			}
		}
		return true
	})
	return out
}

func calledFunc(info *types.Info, call *ast.CallExpr) *types.Func {
	var id *ast.Ident
	switch fun := call.Fun.(type) {
	case *ast.Ident:
		id = fun
	case *ast.SelectorExpr:
		id = fun.Sel
	default:
		return nil
	}
	fn, _ := info.Uses[id].(*types.Func)
	return fn
}

// hexFormattedSecret returns the name of the first secret-looking argument
// of a call whose constant format string contains a hex verb.
func hexFormattedSecret(info *types.Info, call *ast.CallExpr) string {
	for i, arg := range call.Args {
		tv, ok := info.Types[arg]
		if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
			continue
		}
		format := constant.StringVal(tv.Value)
		if !strings.Contains(format, "%x") && !strings.Contains(format, "%X") {
			return ""
		}
		for _, rest := range call.Args[i+1:] {
			if name := argName(rest); name != "" && secretName.MatchString(name) {
				return name
			}
		}
		return ""
	}
	return ""
}

func argName(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		return e.Sel.Name
	case *ast.SliceExpr:
		return argName(e.X)
	case *ast.IndexExpr:
		return argName(e.X)
	}
	return ""
}

func isByteData(typ types.Type) bool {
	if typ == nil {
		return false
	}
	switch tt := types.Unalias(typ).(type) {
	case *types.Slice:
		return isByte(tt.Elem())
	case *types.Array:
		return isByte(tt.Elem())
	case *types.Pointer:
		return isByteData(tt.Elem())
	case *types.Named:
		return isByteData(tt.Underlying())
	}
	return false
}

func isByte(t types.Type) bool {
	basic, ok := t.(*types.Basic)
	return ok && basic.Kind() == types.Byte
}
