// Command detect-unused-config reports which exported fields of the
// config package's structs are never read outside that package. It is a
// maintenance aid, not something the reasoning loop depends on: run it after
// changing config/types.go to catch fields that got added but never wired
// into a constructor or option.
package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/tools/go/packages"
)

// FieldInfo represents a config field definition
type FieldInfo struct {
	StructName string
	FieldName  string
	YAMLTag    string
	Type       string
	Location   string
	LineNumber int
}

// AccessInfo represents where a field is accessed
type AccessInfo struct {
	Package  string
	File     string
	Line     int
	Function string
}

// AnalysisResult contains the complete analysis
type AnalysisResult struct {
	AllFields        map[string]*FieldInfo // key: StructName.FieldName
	ExternalAccesses map[string][]AccessInfo
	Timestamp        time.Time
}

func main() {
	fmt.Println("detect-unused-config: external access analysis")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()

	result := &AnalysisResult{
		AllFields:        make(map[string]*FieldInfo),
		ExternalAccesses: make(map[string][]AccessInfo),
		Timestamp:        time.Now(),
	}

	fmt.Println("Step 1: scanning config field definitions...")
	if err := scanConfigFields(result); err != nil {
		fmt.Fprintf(os.Stderr, "error scanning config fields: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   found %d config fields in %d structs\n\n", len(result.AllFields), countStructs(result.AllFields))

	fmt.Println("Step 2: scanning external packages for field accesses...")
	if err := scanExternalAccesses(result); err != nil {
		fmt.Fprintf(os.Stderr, "error scanning external accesses: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   scanned packages outside config/\n\n")

	fmt.Println("Step 3: generating report...")
	generateReport(result)
}

// scanConfigFields finds all config struct fields in config/types.go
func scanConfigFields(result *AnalysisResult) error {
	fset := token.NewFileSet()

	file, err := parser.ParseFile(fset, "config/types.go", nil, parser.ParseComments)
	if err != nil {
		return fmt.Errorf("failed to parse types.go: %w", err)
	}

	ast.Inspect(file, func(n ast.Node) bool {
		typeSpec, ok := n.(*ast.TypeSpec)
		if !ok {
			return true
		}

		structType, ok := typeSpec.Type.(*ast.StructType)
		if !ok {
			return true
		}

		structName := typeSpec.Name.Name

		for _, field := range structType.Fields.List {
			if len(field.Names) == 0 {
				continue // embedded field
			}

			fieldName := field.Names[0].Name
			if !ast.IsExported(fieldName) {
				continue
			}

			yamlTag := ""
			if field.Tag != nil {
				yamlTag = extractYAMLTag(field.Tag.Value)
			}

			fieldType := exprToString(field.Type)

			key := fmt.Sprintf("%s.%s", structName, fieldName)
			result.AllFields[key] = &FieldInfo{
				StructName: structName,
				FieldName:  fieldName,
				YAMLTag:    yamlTag,
				Type:       fieldType,
				Location:   "config/types.go",
				LineNumber: fset.Position(field.Pos()).Line,
			}
		}

		return true
	})

	return nil
}

// scanExternalAccesses finds all field accesses OUTSIDE the config package
func scanExternalAccesses(result *AnalysisResult) error {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo,
		Dir:  ".",
	}

	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return fmt.Errorf("failed to load packages: %w", err)
	}

	for _, pkg := range pkgs {
		if strings.HasSuffix(pkg.PkgPath, "/config") || pkg.PkgPath == "github.com/reasoncore/engine/config" {
			continue
		}
		if strings.HasSuffix(pkg.PkgPath, "_test") ||
			strings.Contains(pkg.PkgPath, "/_examples/") ||
			strings.Contains(pkg.PkgPath, "/cmd/") {
			continue
		}

		for _, file := range pkg.Syntax {
			scanFileForAccesses(pkg, file, result)
		}
	}

	return nil
}

// scanFileForAccesses scans a single file for config field accesses
func scanFileForAccesses(pkg *packages.Package, file *ast.File, result *AnalysisResult) {
	filename := pkg.Fset.Position(file.Pos()).Filename

	ast.Inspect(file, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}

		typeInfo := pkg.TypesInfo.TypeOf(sel.X)
		if typeInfo == nil {
			return true
		}

		structName := extractStructName(typeInfo.String())
		if structName == "" {
			return true
		}

		fieldName := sel.Sel.Name
		key := fmt.Sprintf("%s.%s", structName, fieldName)

		if _, exists := result.AllFields[key]; !exists {
			return true
		}

		pos := pkg.Fset.Position(sel.Pos())
		access := AccessInfo{
			Package:  pkg.PkgPath,
			File:     filepath.Base(filename),
			Line:     pos.Line,
			Function: findEnclosingFunction(file, sel),
		}

		result.ExternalAccesses[key] = append(result.ExternalAccesses[key], access)

		return true
	})
}

// generateReport generates the final analysis report
func generateReport(result *AnalysisResult) {
	unused := []string{}
	lightlyUsed := []string{}
	wellUsed := []string{}

	for key := range result.AllFields {
		count := len(result.ExternalAccesses[key])
		switch {
		case count == 0:
			unused = append(unused, key)
		case count <= 2:
			lightlyUsed = append(lightlyUsed, key)
		default:
			wellUsed = append(wellUsed, key)
		}
	}

	sort.Strings(unused)
	sort.Strings(lightlyUsed)
	sort.Strings(wellUsed)

	total := len(result.AllFields)
	var unusedPct, lightlyPct, wellUsedPct float64
	if total > 0 {
		unusedPct = float64(len(unused)) / float64(total) * 100
		lightlyPct = float64(len(lightlyUsed)) / float64(total) * 100
		wellUsedPct = float64(len(wellUsed)) / float64(total) * 100
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("EXTERNAL ACCESS ANALYSIS RESULTS")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()

	fmt.Printf("Total fields:        %d\n", total)
	fmt.Printf("Unused (0 accesses): %d (%.1f%%)\n", len(unused), unusedPct)
	fmt.Printf("Lightly used (1-2):  %d (%.1f%%)\n", len(lightlyUsed), lightlyPct)
	fmt.Printf("Well used (3+):      %d (%.1f%%)\n", len(wellUsed), wellUsedPct)
	fmt.Println()

	if len(unused) > 0 {
		fmt.Println(strings.Repeat("=", 70))
		fmt.Printf("UNUSED FIELDS (%d)\n", len(unused))
		fmt.Println(strings.Repeat("=", 70))
		fmt.Println()

		for _, key := range unused {
			field := result.AllFields[key]
			fmt.Printf("- %s.%s\n", field.StructName, field.FieldName)
			if field.YAMLTag != "" {
				fmt.Printf("  yaml: %s\n", field.YAMLTag)
			}
			fmt.Printf("  type: %s\n", field.Type)
			fmt.Printf("  location: %s:%d\n", field.Location, field.LineNumber)
			fmt.Println()
		}
	}

	if len(lightlyUsed) > 0 {
		fmt.Println(strings.Repeat("=", 70))
		fmt.Printf("LIGHTLY USED FIELDS (%d)\n", len(lightlyUsed))
		fmt.Println(strings.Repeat("=", 70))
		fmt.Println()

		for _, key := range lightlyUsed {
			field := result.AllFields[key]
			accesses := result.ExternalAccesses[key]
			fmt.Printf("- %s.%s (%d access(es))\n", field.StructName, field.FieldName, len(accesses))
			for _, access := range accesses {
				fmt.Printf("  -> %s (%s:%d)\n", access.Package, access.File, access.Line)
			}
			fmt.Println()
		}
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()
	fmt.Println("Only fields accessed outside config/ are counted;")
	fmt.Println("Validate and SetDefaults methods are excluded.")
	fmt.Println()
}

func extractYAMLTag(tag string) string {
	tag = strings.Trim(tag, "`")
	for _, part := range strings.Split(tag, " ") {
		if strings.HasPrefix(part, "yaml:") {
			yamlPart := strings.TrimPrefix(part, "yaml:")
			yamlPart = strings.Trim(yamlPart, "\"")
			return strings.Split(yamlPart, ",")[0]
		}
	}
	return ""
}

func exprToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprToString(t.X)
	case *ast.ArrayType:
		return "[]" + exprToString(t.Elt)
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", exprToString(t.Key), exprToString(t.Value))
	case *ast.SelectorExpr:
		return exprToString(t.X) + "." + t.Sel.Name
	default:
		return "unknown"
	}
}

func extractStructName(typeName string) string {
	typeName = strings.TrimPrefix(typeName, "*")
	if !strings.Contains(typeName, "config.") {
		return ""
	}
	parts := strings.Split(typeName, ".")
	return parts[len(parts)-1]
}

func findEnclosingFunction(file *ast.File, node ast.Node) string {
	var funcName string
	ast.Inspect(file, func(n ast.Node) bool {
		if n == nil {
			return false
		}
		if fn, ok := n.(*ast.FuncDecl); ok {
			if fn.Pos() <= node.Pos() && node.End() <= fn.End() {
				funcName = fn.Name.Name
				return false
			}
		}
		return true
	})
	return funcName
}

func countStructs(fields map[string]*FieldInfo) int {
	structs := make(map[string]bool)
	for _, field := range fields {
		structs[field.StructName] = true
	}
	return len(structs)
}
