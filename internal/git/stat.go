package git

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// FileStat holds line-change counts for a single file. Binary files carry
// -1 for both counts (git prints "-" in numstat output).
type FileStat struct {
	Path    string
	Added   int
	Removed int
}

// DiffStat aggregates numstat output across the change set.
type DiffStat struct {
	Files []FileStat
	Total FileStat
}

// DiffStat returns machine-readable line-change stats of worktree and index
// against HEAD.
func (r *Repo) DiffStat() (*DiffStat, error) {
	out, err := r.runGit([]string{"diff", "HEAD", "--numstat"}, true, "git diff --numstat")
	if err != nil {
		return nil, err
	}
	return parseNumstat(out), nil
}

func parseNumstat(out string) *DiffStat {
	stat := &DiffStat{}
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) != 3 {
			continue
		}
		added, removed := -1, -1
		if parts[0] != "-" {
			added, _ = strconv.Atoi(parts[0])
		}
		if parts[1] != "-" {
			removed, _ = strconv.Atoi(parts[1])
		}
		fs := FileStat{Path: parts[2], Added: added, Removed: removed}
		stat.Files = append(stat.Files, fs)
		if added > 0 {
			stat.Total.Added += added
		}
		if removed > 0 {
			stat.Total.Removed += removed
		}
	}
	return stat
}

// LocalChanges summarizes whether the worktree or the index carry changes.
type LocalChanges struct {
	HasWorktree bool
	HasStaged   bool
}

// LocalChangesStatus inspects "git status --porcelain=v2".
func (r *Repo) LocalChangesStatus() (LocalChanges, error) {
	out, err := r.runGit([]string{"status", "--porcelain=v2"}, false, "git status")
	if err != nil {
		return LocalChanges{}, err
	}
	return parseStatusPorcelainV2(strings.NewReader(out))
}

func parseStatusPorcelainV2(rd io.Reader) (LocalChanges, error) {
	var res LocalChanges
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 2 {
			continue
		}
		switch line[0] {
		case '1', '2', 'u':
			if len(line) < 4 {
				continue
			}
			if line[2] != '.' {
				res.HasStaged = true
			}
			if line[3] != '.' && line[3] != '?' {
				res.HasWorktree = true
			}
		case '?':
			res.HasWorktree = true
		default:
			// '!' ignored, headers, etc.
		}
		if res.HasWorktree && res.HasStaged {
			break
		}
	}
	return res, scanner.Err()
}
