package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/term"

	"github.com/wippyai/wasm-jit/runtime"
)

func main() {
	var (
		argA        = flag.Int("a", 0, "First argument passed to every function")
		argB        = flag.Int("b", 0, "Second argument passed to every function")
		configFile  = flag.String("config", "", "Path to a TOML runtime config")
		logLevel    = flag.String("log", "", "Log level (debug, info, warn, error); overrides the config")
		watch       = flag.Bool("watch", false, "Recompile and rerun files when they change")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: jitrun [-a n] [-b n] [-config file.toml] <func.wat|func.wasm>...")
		fmt.Fprintln(os.Stderr, "       jitrun -watch <file>...  (rerun on change)")
		fmt.Fprintln(os.Stderr, "       jitrun -i <file>...      (interactive mode)")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *interactive:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		err = runInteractive(cfg, files, int32(*argA), int32(*argB))
	case *watch:
		err = runWatch(ctx, cfg, files, int32(*argA), int32(*argB))
	default:
		err = run(ctx, cfg, files, int32(*argA), int32(*argB))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path, level string) (*runtime.Config, error) {
	cfg := runtime.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = runtime.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if level != "" {
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg *runtime.Config, files []string, a, b int32) error {
	s, err := newSession(ctx, cfg, files)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	failed := 0
	for i := range s.funcs {
		if err := s.load(ctx, i); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", s.funcs[i].file, err)
			failed++
		}
	}

	for _, f := range s.funcs {
		if !s.rt.Exists(f.handle) {
			continue
		}
		fmt.Printf("%s [%d]: run(%d, %d) = %d\n", f.file, f.handle, a, b, s.rt.Invoke(ctx, f.handle, a, b))
	}
	s.printGuards()

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to compile", failed, len(files))
	}
	return nil
}
