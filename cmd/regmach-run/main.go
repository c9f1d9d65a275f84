package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/wasm-runtime/engine/regmach"
	"github.com/wippyai/wasm-runtime/wasm"
)

var (
	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#3C8DAD")).
			Padding(0, 1)

	traceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))
	trapStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to a core wasm module")
		funcName    = flag.String("func", "", "Exported function to call (optional)")
		argsStr     = flag.String("args", "", "Comma-separated int64 arguments")
		list        = flag.Bool("list", false, "List exported functions and exit")
		trace       = flag.Bool("trace", false, "Disassemble the called function before running it")
		interactive = flag.Bool("i", false, "Color trap/error output when stderr is a terminal")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: regmach-run -wasm <file.wasm> [-func name] [-args 1,2,3] [-trace]")
		fmt.Fprintln(os.Stderr, "       regmach-run -wasm <file.wasm> -list")
		os.Exit(1)
	}

	color := *interactive && term.IsTerminal(int(os.Stderr.Fd()))

	if err := run(*wasmFile, *funcName, *argsStr, *list, *trace); err != nil {
		if color {
			fmt.Fprintln(os.Stderr, trapStyle.Render("Error: "+err.Error()))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(wasmFile, funcName, argsStr string, listOnly, trace bool) error {
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	m, err := wasm.ParseModuleValidate(data)
	if err != nil {
		return fmt.Errorf("parse module: %w", err)
	}

	limits := regmach.DefaultLimits()
	code, err := regmach.Compile(m, limits)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	var exportedFuncs []string
	for _, exp := range m.Exports {
		if exp.Kind == wasm.KindFunc {
			exportedFuncs = append(exportedFuncs, exp.Name)
		}
	}

	summary := fmt.Sprintf("module %s: %d compiled functions, %d exports", wasmFile, len(code.Funcs), len(exportedFuncs))
	fmt.Println(summaryStyle.Render(summary))

	if listOnly {
		fmt.Println("\nExported functions:")
		for _, name := range exportedFuncs {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}

	inst, err := regmach.Instantiate(m, code, noImportsResolver{})
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}

	if funcName == "" {
		for _, name := range []string{"_start", "run", "main"} {
			for _, f := range exportedFuncs {
				if f == name {
					funcName = name
				}
			}
			if funcName != "" {
				break
			}
		}
		if funcName == "" && len(exportedFuncs) == 1 {
			funcName = exportedFuncs[0]
		}
		if funcName == "" {
			fmt.Println("\nNo function specified and no common entry point found.")
			fmt.Println("Use -func to specify a function to call.")
			return nil
		}
	}

	funcIdx, ok := findExportFunc(m, funcName)
	if !ok {
		return fmt.Errorf("no exported function %q", funcName)
	}

	var args []uint64
	if argsStr != "" {
		for _, s := range strings.Split(argsStr, ",") {
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return fmt.Errorf("parse argument %q: %w", s, err)
			}
			args = append(args, uint64(n))
		}
	}

	if trace {
		if fn := code.Get(int(funcIdx) - m.NumImportedFuncs()); fn != nil {
			fmt.Println(traceStyle.Render(fmt.Sprintf("-- disassembly of %s --", funcName)))
			if err := fn.Disassemble(os.Stdout); err != nil {
				return fmt.Errorf("disassemble: %w", err)
			}
			fmt.Println()
		}
	}

	fmt.Printf("Calling %s%v...\n", funcName, args)
	results, err := regmach.NewExecutor(inst, limits).Call(funcIdx, args)
	if err != nil {
		return err
	}

	fmt.Printf("Result: %v\n", results)
	return nil
}

func findExportFunc(m *wasm.Module, name string) (uint32, bool) {
	for _, exp := range m.Exports {
		if exp.Kind == wasm.KindFunc && exp.Name == name {
			return exp.Idx, true
		}
	}
	return 0, false
}

// noImportsResolver rejects every import: regmach-run is a standalone
// harness for self-contained modules, with no host module to bind
// against (unlike runtime.Runtime, which bridges HostRegistry).
type noImportsResolver struct{}

func (noImportsResolver) ResolveFunc(module, name string, sig *wasm.FuncType) (regmach.HostFunc, error) {
	return nil, fmt.Errorf("no host binding for import %s.%s", module, name)
}

func (noImportsResolver) ResolveMemory(module, name string, typ wasm.MemoryType) (*regmach.MemoryInstance, error) {
	return nil, fmt.Errorf("no host binding for import %s.%s", module, name)
}

func (noImportsResolver) ResolveTable(module, name string, typ wasm.TableType) (*regmach.TableInstance, error) {
	return nil, fmt.Errorf("no host binding for import %s.%s", module, name)
}

func (noImportsResolver) ResolveGlobal(module, name string, typ wasm.GlobalType) (*regmach.GlobalInstance, error) {
	return nil, fmt.Errorf("no host binding for import %s.%s", module, name)
}
