// Command mdrun compiles and runs a single Machine Dialect program file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/machine-dialect/compiler/config"
	"github.com/machine-dialect/compiler/mdpipeline"
)

func main() {
	optimizeLevel := flag.String("O", "", "optimisation level override: none, basic, aggressive")
	disasm := flag.Bool("disasm", false, "print the compiled module's disassembly instead of running it")
	dir := flag.String("dir", ".", "project directory to load machine-dialect.toml from")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mdrun [options] <file.md>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdrun: %v\n", err)
		os.Exit(1)
	}
	if *optimizeLevel != "" {
		cfg.Optimize.Level = *optimizeLevel
	}

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdrun: %v\n", err)
		os.Exit(1)
	}

	module, diags, err := mdpipeline.Compile(string(src), mdpipeline.CompileOptions{
		ModuleName: path,
		Config:     cfg,
	})
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, d.Kind, d.Pos, d.Message)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdrun: %v\n", err)
		os.Exit(1)
	}
	if module == nil {
		os.Exit(1)
	}

	if *disasm {
		fmt.Println(module.Disassemble())
		return
	}

	cache := config.NewModuleCache(cfg)
	if err := cache.Store(module); err != nil {
		fmt.Fprintf(os.Stderr, "mdrun: warning: cache store: %v\n", err)
	}

	result, err := mdpipeline.Run(module, mdpipeline.RunOptions{Config: cfg})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdrun: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(result.Value.String())
}
