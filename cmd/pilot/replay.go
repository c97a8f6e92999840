package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vinayprograms/pilot/internal/audit"
	"github.com/vinayprograms/pilot/internal/replay"
)

// runReplay resolves the trail argument and replays it.
func runReplay(cmd *ReplayCmd) error {
	paths, err := resolveTrails(cmd)
	if err != nil {
		return err
	}

	if cmd.Stats {
		for _, path := range paths {
			data, err := audit.LoadTrail(path)
			if err != nil {
				return err
			}
			replay.PrintStats(os.Stdout, replay.ComputeStats(data))
		}
		return nil
	}

	if cmd.Follow {
		if len(paths) != 1 {
			return fmt.Errorf("--follow works on a single trail")
		}
		return replay.New(os.Stdout, cmd.Verbose).ReplayFileLive(paths[0])
	}

	// Use the interactive pager when stdout is a TTY and not disabled.
	interactive := !cmd.NoPager && isTerminal(os.Stdout)

	if len(paths) > 1 {
		m := replay.NewMulti(os.Stdout, cmd.Verbose)
		if interactive {
			return m.ReplayFilesInteractive(paths)
		}
		return m.ReplayFiles(paths)
	}

	r := replay.New(os.Stdout, cmd.Verbose)
	if interactive {
		return r.ReplayFileInteractive(paths[0])
	}
	return r.ReplayFile(paths[0])
}

// resolveTrails maps the trail argument to concrete file paths. The
// argument may be a trail file, a glob over trail files, or a run ID
// prefix from the index; omitted entirely it means the last run.
func resolveTrails(cmd *ReplayCmd) ([]string, error) {
	arg := cmd.Trail

	if arg != "" {
		// A path that exists wins over every other interpretation.
		if _, err := os.Stat(arg); err == nil {
			return []string{arg}, nil
		}
		if strings.ContainsAny(arg, "*?[") {
			matches, err := filepath.Glob(arg)
			if err != nil {
				return nil, fmt.Errorf("bad glob %q: %w", arg, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no trails match %q", arg)
			}
			sort.Strings(matches)
			return matches, nil
		}
	}

	// Fall back to the run index: an explicit ID prefix, or the last run.
	cfg, err := loadConfig(cmd.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Audit.DB == "" {
		if arg == "" {
			return nil, fmt.Errorf("no trail given and the run index is disabled")
		}
		return nil, fmt.Errorf("trail not found: %s", arg)
	}

	store, err := audit.NewSQLiteStore(expandHome(cfg.Audit.DB))
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if arg == "" {
		last, err := store.LastRun()
		if err != nil {
			return nil, err
		}
		return []string{last.TrailPath}, nil
	}

	path, err := store.Lookup(arg)
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}
