// Command bptreectl is an interactive shell over a single on-disk B+
// tree index: insert, delete, scan and print commands against one
// named index file, backed by a buffer pool and a flat-file directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/adbkit/bptreefile/internal/bptree"
	"github.com/adbkit/bptreefile/internal/bufferpool"
	"github.com/adbkit/bptreefile/internal/config"
	"github.com/adbkit/bptreefile/internal/storage"
)

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".bptreectl_history"
	}
	return filepath.Join(home, ".bptreectl_history")
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a bptreectl YAML config file")
		indexName  = flag.String("index", "default", "index name within the storage directory")
		histPath   = flag.String("history", defaultHistoryPath(), "readline history file path")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	slog.SetLogLoggerLevel(cfg.SlogLevel())

	sm := storage.NewStorageManager()
	fs := storage.LocalFileSet{Dir: cfg.Storage.Dir, Base: "bptreectl"}
	pool, err := bufferpool.NewPool(sm, fs, cfg.BufferPool.Capacity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "buffer pool: %v\n", err)
		os.Exit(1)
	}

	dir, err := storage.NewFileDirectory(cfg.Storage.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "directory: %v\n", err)
		os.Exit(1)
	}

	tree, err := bptree.Open(pool, dir, *indexName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open index %q: %v\n", *indexName, err)
		os.Exit(1)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bptree> ",
		HistoryFile:     *histPath,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	fmt.Printf("index %q under %s\n", *indexName, cfg.Storage.Dir)
	fmt.Println("type help for a list of commands")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Println("^C")
			continue
		}
		if err != nil {
			if err := pool.FlushAll(); err != nil {
				fmt.Fprintf(os.Stderr, "flush: %v\n", err)
			}
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := dispatch(tree, pool, line); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			fmt.Printf("error: %v\n", err)
		}
	}
}

// errQuit signals the "quit"/"exit" commands: dispatch returns it instead
// of calling os.Exit directly, so the REPL loop returns normally and the
// deferred rl.Close() in main runs the same way it does on EOF.
var errQuit = errors.New("quit")

func dispatch(tree *bptree.Tree, pool *bufferpool.Pool, line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		printHelp()
		return nil

	case "quit", "exit":
		if err := pool.FlushAll(); err != nil {
			return err
		}
		return errQuit

	case "insert":
		if len(args) != 3 {
			return errors.New("usage: insert <key> <page_no> <slot_no>")
		}
		key, err := parseInt32(args[0])
		if err != nil {
			return err
		}
		pageNo, err := parseInt32(args[1])
		if err != nil {
			return err
		}
		slotNo, err := parseInt32(args[2])
		if err != nil {
			return err
		}
		if err := tree.Insert(key, bptree.RecordID{PageNo: pageNo, SlotNo: slotNo}); err != nil {
			return err
		}
		return pool.FlushAll()

	case "delete":
		if len(args) != 3 {
			return errors.New("usage: delete <key> <page_no> <slot_no>")
		}
		key, err := parseInt32(args[0])
		if err != nil {
			return err
		}
		pageNo, err := parseInt32(args[1])
		if err != nil {
			return err
		}
		slotNo, err := parseInt32(args[2])
		if err != nil {
			return err
		}
		if err := tree.Delete(key, bptree.RecordID{PageNo: pageNo, SlotNo: slotNo}); err != nil {
			return err
		}
		return pool.FlushAll()

	case "scan":
		var lo, hi *int32
		switch len(args) {
		case 0:
		case 1:
			k, err := parseInt32(args[0])
			if err != nil {
				return err
			}
			lo, hi = &k, &k
		case 2:
			l, err := parseInt32(args[0])
			if err != nil {
				return err
			}
			h, err := parseInt32(args[1])
			if err != nil {
				return err
			}
			lo, hi = &l, &h
		default:
			return errors.New("usage: scan [key | lo hi]")
		}
		return runScan(tree, lo, hi)

	case "print":
		return tree.Print(os.Stdout)

	case "stats":
		stats, err := tree.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("height=%d leaves=%d index_nodes=%d entries=%d min_fill=%d max_fill=%d\n",
			stats.Height, stats.LeafCount, stats.IndexCount, stats.EntryCount, stats.MinFillBytes, stats.MaxFillBytes)
		return nil

	case "destroy":
		if err := tree.Destroy(); err != nil {
			return err
		}
		return pool.FlushAll()

	default:
		return fmt.Errorf("unknown command: %s (try help)", cmd)
	}
}

func runScan(tree *bptree.Tree, lo, hi *int32) error {
	s, err := tree.OpenScan(lo, hi)
	if err != nil {
		return err
	}
	n := 0
	for {
		key, rid, err := s.GetNext()
		if errors.Is(err, bptree.ErrDone) {
			break
		}
		if err != nil {
			return err
		}
		fmt.Printf("key=%d rid=(%d,%d)\n", key, rid.PageNo, rid.SlotNo)
		n++
	}
	fmt.Printf("(%d entries)\n", n)
	return nil
}

func parseInt32(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	return int32(n), nil
}

func printHelp() {
	fmt.Print(`commands:
  insert <key> <page_no> <slot_no>   insert (key, rid)
  delete <key> <page_no> <slot_no>   delete the exact (key, rid) pair
  scan [key | lo hi]                 scan the whole index, one key, or a range
  print                              dump the tree's page structure
  stats                              report height/fill statistics
  destroy                            free the whole index
  quit | exit                        flush and quit
`)
}
