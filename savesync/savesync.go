// Package savesync mirrors save-game data between an install's local
// save directory and a remote (synced) directory. Direction is decided
// per file by modification time; the newer side wins and nothing is
// ever deleted.
package savesync

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Op is the direction of one planned transfer.
type Op int

const (
	// Skip means both sides already agree.
	Skip Op = iota
	// Push copies local over remote.
	Push
	// Pull copies remote over local.
	Pull
)

func (o Op) String() string {
	switch o {
	case Push:
		return "push"
	case Pull:
		return "pull"
	default:
		return "skip"
	}
}

// mtimeSlack absorbs filesystem timestamp granularity differences.
const mtimeSlack = time.Second

// Action is one file's planned transfer.
type Action struct {
	Rel string
	Op  Op
}

// Plan is the full comparison of one local/remote directory pair.
type Plan struct {
	LocalDir  string
	RemoteDir string
	Actions   []Action
}

// Result collects what Apply actually did. Per-file failures are
// recorded rather than aborting the rest.
type Result struct {
	Pushed []string
	Pulled []string
	Failed map[string]error
}

// Mode restricts which directions Apply executes.
type Mode int

const (
	Both Mode = iota
	PushOnly
	PullOnly
)

// BuildPlan compares the two directories file by file. A file present
// on only one side counts as newer on that side; equal timestamps
// (within filesystem slack) are skipped. The plan never proposes a
// deletion. A missing directory on either side is treated as empty.
func BuildPlan(localDir, remoteDir string) (*Plan, error) {
	local, err := scanTree(localDir)
	if err != nil {
		return nil, err
	}
	remote, err := scanTree(remoteDir)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	plan := &Plan{LocalDir: localDir, RemoteDir: remoteDir}

	for rel, localTime := range local {
		seen[rel] = true
		remoteTime, onRemote := remote[rel]
		switch {
		case !onRemote:
			plan.Actions = append(plan.Actions, Action{Rel: rel, Op: Push})
		case localTime.Sub(remoteTime) > mtimeSlack:
			plan.Actions = append(plan.Actions, Action{Rel: rel, Op: Push})
		case remoteTime.Sub(localTime) > mtimeSlack:
			plan.Actions = append(plan.Actions, Action{Rel: rel, Op: Pull})
		default:
			plan.Actions = append(plan.Actions, Action{Rel: rel, Op: Skip})
		}
	}
	for rel := range remote {
		if !seen[rel] {
			plan.Actions = append(plan.Actions, Action{Rel: rel, Op: Pull})
		}
	}

	sort.Slice(plan.Actions, func(a, b int) bool {
		return plan.Actions[a].Rel < plan.Actions[b].Rel
	})
	return plan, nil
}

// Apply executes the plan's transfers, filtered by mode. Failures are
// collected per file in the result and never abort the rest.
func Apply(plan *Plan, mode Mode) *Result {
	result := &Result{Failed: map[string]error{}}
	for _, action := range plan.Actions {
		switch {
		case action.Op == Push && mode != PullOnly:
			src := filepath.Join(plan.LocalDir, action.Rel)
			dst := filepath.Join(plan.RemoteDir, action.Rel)
			if err := copyPreservingMtime(src, dst); err != nil {
				log.Warn().Err(err).Str("file", action.Rel).Msg("Push failed")
				result.Failed[action.Rel] = err
				continue
			}
			result.Pushed = append(result.Pushed, action.Rel)
		case action.Op == Pull && mode != PushOnly:
			src := filepath.Join(plan.RemoteDir, action.Rel)
			dst := filepath.Join(plan.LocalDir, action.Rel)
			if err := copyPreservingMtime(src, dst); err != nil {
				log.Warn().Err(err).Str("file", action.Rel).Msg("Pull failed")
				result.Failed[action.Rel] = err
				continue
			}
			result.Pulled = append(result.Pulled, action.Rel)
		}
	}
	return result
}

// scanTree maps relative file paths to modification times. A missing
// root yields an empty map.
func scanTree(root string) (map[string]time.Time, error) {
	files := map[string]time.Time{}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return files, nil
	}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[rel] = info.ModTime()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// copyPreservingMtime copies src to dst and carries the modification
// time over so a re-plan sees the two sides as equal.
func copyPreservingMtime(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if err := in.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close source file")
		}
	}()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
