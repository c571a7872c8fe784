package knowledge

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Language names returned by LanguageFor
const (
	LangGo         = "go"
	LangPython     = "python"
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangJava       = "java"
	LangC          = "c"
	LangCPP        = "cpp"
)

var extensions = map[string]string{
	".go":   LangGo,
	".py":   LangPython,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".mjs":  LangJavaScript,
	".ts":   LangTypeScript,
	".tsx":  LangTypeScript,
	".java": LangJava,
	".c":    LangC,
	".h":    LangC,
	".cc":   LangCPP,
	".cpp":  LangCPP,
	".hpp":  LangCPP,
}

// LanguageFor maps a file path to a language name, or "" when unsupported
func LanguageFor(path string) string {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// Concept names produced by Extract
const (
	ConceptLoops         = "loops"
	ConceptConditionals  = "conditionals"
	ConceptErrorHandling = "error-handling"
	ConceptFunctions     = "functions"
	ConceptClasses       = "classes"
	ConceptRecursion     = "recursion"
	ConceptAsync         = "async"
	ConceptCollections   = "collections"
	ConceptStrings       = "string-manipulation"
	ConceptIO            = "io"
	ConceptDebug         = "debug" // Breakpoints and debugger statements left in the code
)

var conceptPatterns = map[string]*regexp.Regexp{
	ConceptLoops:         regexp.MustCompile(`\b(for|while|do)\b|\.forEach\(`),
	ConceptConditionals:  regexp.MustCompile(`\b(if|elif|else|switch|case)\b`),
	ConceptErrorHandling: regexp.MustCompile(`\b(try|catch|except|finally|throw|throws|raise|panic|recover)\b|if err != nil`),
	ConceptClasses:       regexp.MustCompile(`\b(class|struct|interface)\b`),
	ConceptAsync:         regexp.MustCompile(`\b(async|await|Promise|Thread|chan|goroutine)\b|\bgo\s+(func\b|\w+\()`),
	ConceptCollections:   regexp.MustCompile(`\b(map|dict|list|set|HashMap|ArrayList|vector|append)\b|\[\]\w+`),
	ConceptStrings:       regexp.MustCompile(`\.(split|join|replace|substring|substr|trim|strip|toUpperCase|toLowerCase|upper|lower)\(|\bstrings\.\w+\(|\bSprintf\(`),
	ConceptDebug:         regexp.MustCompile(`\bdebugger\s*;|\bbreakpoint\(\)|\bpdb\.set_trace\(|\bruntime\.Breakpoint\(|console\.(debug|trace)\(`),
	ConceptIO:            regexp.MustCompile(`\b(print|println|printf|scanf|input|open|readFile|writeFile|ReadFile|WriteFile)\s*\(|console\.log\(|fmt\.(Print|Fprint|Scan)\w*\(|System\.out\.`),
}

type grammar struct {
	imports   []*regexp.Regexp
	functions []*regexp.Regexp
	variables []*regexp.Regexp
}

var (
	goImportBlock = regexp.MustCompile(`(?s)import\s*\((.*?)\)`)
	goImportLine  = regexp.MustCompile(`(?m)^\s*(?:[\w.]+\s+)?"([^"]+)"`)
	goImportOne   = regexp.MustCompile(`(?m)^import\s+(?:[\w.]+\s+)?"([^"]+)"`)
)

var grammars = map[string]grammar{
	LangGo: {
		functions: []*regexp.Regexp{regexp.MustCompile(`(?m)^func\s+(?:\([^)]*\)\s*)?(\w+)\s*[\[(]`)},
		variables: []*regexp.Regexp{
			regexp.MustCompile(`(?m)\bvar\s+(\w+)`),
			regexp.MustCompile(`(?m)^\s*(\w+)(?:\s*,\s*\w+)*\s*:=`),
		},
	},
	LangPython: {
		imports: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`),
			regexp.MustCompile(`(?m)^\s*from\s+([\w.]+)\s+import\b`),
		},
		functions: []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*(?:async\s+)?def\s+(\w+)\s*\(`)},
		variables: []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*(\w+)\s*=[^=]`)},
	},
	LangJavaScript: {
		imports: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^\s*import\s+(?:[\w*{}\s,]+\s+from\s+)?['"]([^'"]+)['"]`),
			regexp.MustCompile(`\brequire\(\s*['"]([^'"]+)['"]\s*\)`),
		},
		functions: []*regexp.Regexp{
			regexp.MustCompile(`\bfunction\s+(\w+)\s*\(`),
			regexp.MustCompile(`\b(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?(?:\([^)]*\)|\w+)\s*=>`),
		},
		variables: []*regexp.Regexp{regexp.MustCompile(`\b(?:const|let|var)\s+(\w+)\s*=`)},
	},
	LangJava: {
		imports:   []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*import\s+(?:static\s+)?([\w.]+)(?:\.\*)?\s*;`)},
		functions: []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*(?:(?:public|private|protected|static|final|abstract|synchronized)\s+)+[\w<>\[\],\s]+?\s+(\w+)\s*\([^;]*?\)\s*(?:throws\s+[\w.,\s]+)?\{`)},
		variables: []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*(?:final\s+)?(?:int|long|double|float|boolean|char|String|var|[A-Z]\w*(?:<[^>]*>)?)\s+(\w+)\s*=`)},
	},
	LangC: {
		imports:   []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*#\s*include\s*[<"]([^>"]+)[>"]`)},
		functions: []*regexp.Regexp{regexp.MustCompile(`(?m)^[\w\s\*]*?\b(\w+)\s*\([^;{]*\)\s*\{`)},
		variables: []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*(?:const\s+|static\s+|unsigned\s+)*(?:int|long|short|char|float|double|bool|size_t|auto|std::\w+(?:<[^>]*>)?)\s*\*?\s*(\w+)\s*[=;\[]`)},
	},
}

func init() {
	grammars[LangTypeScript] = grammars[LangJavaScript]
	grammars[LangCPP] = grammars[LangC]
}

// C-family keywords that the function pattern would otherwise pick up
var notFunctions = map[string]bool{"if": true, "for": true, "while": true, "switch": true, "return": true, "catch": true, "sizeof": true}

// Extract scans content with regular expressions and returns the facts for path.
// Unsupported languages yield facts with an empty Language and no extracted names.
func Extract(path, content string) FileFacts {
	facts := FileFacts{
		Path:         path,
		Language:     LanguageFor(path),
		Concepts:     make(map[string]int),
		LastModified: time.Now(),
	}
	if facts.Language == "" {
		return facts
	}

	g := grammars[facts.Language]
	if facts.Language == LangGo {
		facts.Imports = goImports(content)
	} else {
		facts.Imports = collect(content, g.imports)
	}
	facts.Functions = filter(collect(content, g.functions), notFunctions)
	facts.Variables = collect(content, g.variables)

	for name, re := range conceptPatterns {
		if n := len(re.FindAllStringIndex(content, -1)); n > 0 {
			facts.Concepts[name] = n
		}
	}
	if n := len(facts.Functions); n > 0 {
		facts.Concepts[ConceptFunctions] = n
	}
	if n := countRecursive(content, g.functions); n > 0 {
		facts.Concepts[ConceptRecursion] = n
	}

	facts.UnusedImports = unusedImports(facts.Language, content)
	return facts
}

func goImports(content string) []string {
	var imports []string
	for _, block := range goImportBlock.FindAllStringSubmatch(content, -1) {
		for _, m := range goImportLine.FindAllStringSubmatch(block[1], -1) {
			imports = append(imports, m[1])
		}
	}
	for _, m := range goImportOne.FindAllStringSubmatch(content, -1) {
		imports = append(imports, m[1])
	}
	return dedupe(imports)
}

func collect(content string, patterns []*regexp.Regexp) []string {
	var out []string
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			if len(m) > 1 && m[1] != "" {
				out = append(out, m[1])
			}
		}
	}
	return dedupe(out)
}

func filter(names []string, drop map[string]bool) []string {
	out := names[:0]
	for _, n := range names {
		if !drop[n] {
			out = append(out, n)
		}
	}
	return out
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	sort.Strings(out)
	return out
}

type definition struct {
	name       string
	start, end int
}

// countRecursive counts functions that call themselves between their definition and the
// next definition in the file
func countRecursive(content string, patterns []*regexp.Regexp) int {
	var defs []definition
	for _, re := range patterns {
		for _, loc := range re.FindAllStringSubmatchIndex(content, -1) {
			if len(loc) < 4 || loc[2] < 0 {
				continue
			}
			name := content[loc[2]:loc[3]]
			if notFunctions[name] {
				continue
			}
			defs = append(defs, definition{name: name, start: loc[0], end: loc[1]})
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].start < defs[j].start })

	count := 0
	for i, d := range defs {
		bodyEnd := len(content)
		if i+1 < len(defs) {
			bodyEnd = defs[i+1].start
		}
		if d.end >= bodyEnd {
			continue
		}
		call := regexp.MustCompile(`\b` + regexp.QuoteMeta(d.name) + `\s*\(`)
		if call.MatchString(content[d.end:bodyEnd]) {
			count++
		}
	}
	return count
}

var (
	goAliasedImport  = regexp.MustCompile(`(?m)^\s*(?:import\s+)?([\w.]+)\s+"([^"]+)"`)
	pyImportAs       = regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)(?:\s+as\s+(\w+))?\s*$`)
	pyFromImport     = regexp.MustCompile(`(?m)^\s*from\s+[\w.]+\s+import\s+([\w \t,]+)$`)
	jsDefaultImport  = regexp.MustCompile(`(?m)^\s*import\s+(\w+)\s*(?:,\s*\{[^}]*\})?\s*from\s+['"]`)
	jsNamedImport    = regexp.MustCompile(`(?m)^\s*import\s+(?:\w+\s*,\s*)?\{([^}]*)\}\s*from\s+['"]`)
	importLineFilter = regexp.MustCompile(`(?m)^\s*(import|from)\b.*$`)
)

// unusedImports reports imported names that are never referenced outside import lines
func unusedImports(language, content string) []string {
	names := map[string]string{} // referenced name -> import as written

	switch language {
	case LangGo:
		body := goImportBlock.ReplaceAllString(content, "")
		for _, imp := range goImports(content) {
			names[goImportName(content, imp)] = imp
		}
		return unreferenced(names, importLineFilter.ReplaceAllString(body, ""))
	case LangPython:
		for _, m := range pyImportAs.FindAllStringSubmatch(content, -1) {
			if m[2] != "" {
				names[m[2]] = m[1]
			} else {
				names[strings.Split(m[1], ".")[0]] = m[1]
			}
		}
		for _, m := range pyFromImport.FindAllStringSubmatch(content, -1) {
			for _, part := range strings.Split(m[1], ",") {
				if n := strings.TrimSpace(part); n != "" && n != "*" {
					names[n] = n
				}
			}
		}
	case LangJavaScript, LangTypeScript:
		for _, m := range jsDefaultImport.FindAllStringSubmatch(content, -1) {
			names[m[1]] = m[1]
		}
		for _, m := range jsNamedImport.FindAllStringSubmatch(content, -1) {
			for _, part := range strings.Split(m[1], ",") {
				fields := strings.Fields(part)
				if len(fields) == 0 {
					continue
				}
				names[fields[len(fields)-1]] = fields[0] // handles "a as b"
			}
		}
	default:
		return nil
	}

	return unreferenced(names, importLineFilter.ReplaceAllString(content, ""))
}

// goImportName returns the identifier a Go import is referenced by
func goImportName(content, path string) string {
	for _, m := range goAliasedImport.FindAllStringSubmatch(content, -1) {
		if m[2] == path && m[1] != "import" {
			return m[1]
		}
	}
	name := path[strings.LastIndex(path, "/")+1:]
	if strings.HasPrefix(name, "v") && len(name) > 1 && strings.Trim(name[1:], "0123456789") == "" {
		// Major version suffix: github.com/x/y/v2 is referenced as y
		trimmed := strings.TrimSuffix(path, "/"+name)
		name = trimmed[strings.LastIndex(trimmed, "/")+1:]
	}
	return strings.ReplaceAll(name, "-", "")
}

func unreferenced(names map[string]string, body string) []string {
	var unused []string
	for name, imp := range names {
		if name == "_" || name == "." {
			continue
		}
		ref := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
		if !ref.MatchString(body) {
			unused = append(unused, imp)
		}
	}
	sort.Strings(unused)
	return unused
}
