package index

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/asyrjasalo/augent/pkg/cache"
	"github.com/asyrjasalo/augent/pkg/errors"
	"github.com/asyrjasalo/augent/pkg/logging"
	"github.com/asyrjasalo/augent/pkg/merge"
	"github.com/asyrjasalo/augent/pkg/transaction"
	"github.com/asyrjasalo/augent/pkg/transform"
	"github.com/asyrjasalo/augent/pkg/types"
	"github.com/asyrjasalo/augent/pkg/workspace"
)

// Applier reconciles the workspace's installed artifacts with a
// lockfile: it writes each (universal path, platform) pair's effective
// content, removes artifacts no surviving bundle provides, and rebuilds
// the workspace index to match.
type Applier struct {
	store  *cache.Store
	engine *transform.Engine
	merger *merge.Merger
	logger zerolog.Logger
}

// NewApplier creates an Applier over the given cache store.
func NewApplier(store *cache.Store) *Applier {
	return &Applier{
		store:  store,
		engine: transform.NewEngine(),
		merger: merge.New(),
		logger: logging.GetLogger("index"),
	}
}

// pathKey identifies one (universal path, platform) pair.
type pathKey struct {
	path     string
	platform string
}

// plannedWrite is one non-composite output: the last bundle in lock
// order providing the path wins.
type plannedWrite struct {
	key      pathKey
	output   string // workspace-relative
	strategy types.MergeStrategy
	bundle   string
	content  []byte
}

// contribution is one bundle's composite block for an output file.
type contribution struct {
	bundle  string
	content []byte
}

// compositeTarget collects every contribution to one composite output,
// in lock order.
type compositeTarget struct {
	key           pathKey
	output        string
	contributions []contribution
}

// Apply installs the lockfile's content for every active platform and
// replaces the workspace index accordingly. All filesystem writes go
// through the transaction. Entries for platforms not in the active set
// are carried over untouched.
func (a *Applier) Apply(tx *transaction.Transaction, ws *workspace.State, lock *types.Lockfile, snaps map[string]*types.Snapshot, platforms []types.Platform) error {
	defer logging.LogOperationStart(a.logger, "index.apply")()

	writes, composites, err := a.plan(lock, snaps, platforms)
	if err != nil {
		return err
	}

	newIndex := &types.WorkspaceIndex{Version: types.IndexVersion}

	// Entries of inactive platforms survive as-is.
	activeIDs := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		activeIDs[p.ID] = true
	}
	for _, entry := range ws.Index.Entries {
		if !activeIDs[entry.Platform] {
			newIndex.Entries = append(newIndex.Entries, entry)
		}
	}

	// Bundles present before but absent now: their composite blocks
	// must come out of shared files.
	removed := removedBundles(ws.Lockfile, lock)

	if err := a.writeWinners(tx, ws, writes, newIndex); err != nil {
		return err
	}
	if err := a.writeComposites(tx, ws, composites, removed, newIndex); err != nil {
		return err
	}
	if err := a.removeOrphans(tx, ws, writes, composites, platforms, newIndex); err != nil {
		return err
	}

	newIndex.Sort()
	ws.Index = newIndex
	return nil
}

// plan computes, per (universal path, platform), the surviving write
// and the composite contribution lists, walking bundles in lock order
// so later bundles override earlier ones.
func (a *Applier) plan(lock *types.Lockfile, snaps map[string]*types.Snapshot, platforms []types.Platform) (map[pathKey]*plannedWrite, map[pathKey]*compositeTarget, error) {
	writes := make(map[pathKey]*plannedWrite)
	composites := make(map[pathKey]*compositeTarget)

	for _, platform := range platforms {
		for _, lb := range lock.Bundles {
			snap, ok := snaps[lb.Name]
			if !ok {
				return nil, nil, errors.Newf(errors.ErrInternal, "no snapshot for locked bundle %q", lb.Name)
			}
			for _, universal := range lb.Files {
				results, err := a.engine.Resolve(universal, platform)
				if err != nil {
					return nil, nil, err
				}
				for _, r := range results {
					content, err := a.store.ReadFile(snap, universal)
					if err != nil {
						return nil, nil, err
					}
					key := pathKey{path: universal, platform: platform.ID}
					if r.Strategy == types.MergeComposite {
						target, exists := composites[key]
						if !exists {
							target = &compositeTarget{key: key, output: r.Output}
							composites[key] = target
						}
						target.contributions = append(target.contributions, contribution{bundle: lb.Name, content: content})
					} else {
						writes[key] = &plannedWrite{
							key:      key,
							output:   r.Output,
							strategy: r.Strategy,
							bundle:   lb.Name,
							content:  content,
						}
					}
				}
			}
		}
	}
	return writes, composites, nil
}

// writeWinners merges and writes every non-composite output, sorted by
// key for deterministic write order.
func (a *Applier) writeWinners(tx *transaction.Transaction, ws *workspace.State, writes map[pathKey]*plannedWrite, newIndex *types.WorkspaceIndex) error {
	for _, w := range sortedWrites(writes) {
		outputAbs := filepath.Join(ws.Paths.WorkspaceRoot(), w.output)

		existing, err := readIfExists(ws.FS, outputAbs)
		if err != nil {
			return err
		}
		merged, err := a.merger.Apply(w.strategy, existing, w.content, w.bundle)
		if err != nil {
			return errors.Wrapf(err, errors.ErrMergeFailure,
				"cannot merge %s for platform %s", w.key.path, w.key.platform)
		}
		if existing == nil || !bytes.Equal(existing, merged) {
			if err := tx.WriteFile(outputAbs, merged, 0644); err != nil {
				return err
			}
		}

		newIndex.Put(types.IndexEntry{
			Path:     w.key.path,
			Platform: w.key.platform,
			Bundle:   w.bundle,
			Output:   w.output,
		})

		a.logger.Debug().
			Str("path", w.key.path).
			Str("platform", w.key.platform).
			Str("bundle", w.bundle).
			Str("output", w.output).
			Msg("Installed artifact")
	}
	return nil
}

// writeComposites applies every contribution in lock order and strips
// blocks of bundles that no longer exist. The index entry for a
// composite path belongs to the last contributing bundle.
func (a *Applier) writeComposites(tx *transaction.Transaction, ws *workspace.State, composites map[pathKey]*compositeTarget, removed []string, newIndex *types.WorkspaceIndex) error {
	for _, target := range sortedComposites(composites) {
		outputAbs := filepath.Join(ws.Paths.WorkspaceRoot(), target.output)

		original, err := readIfExists(ws.FS, outputAbs)
		if err != nil {
			return err
		}
		content := original
		for _, name := range removed {
			content, _ = merge.RemoveBlock(content, name)
		}
		for _, c := range target.contributions {
			content, err = a.merger.Apply(types.MergeComposite, content, c.content, c.bundle)
			if err != nil {
				return err
			}
		}
		if original == nil || !bytes.Equal(original, content) {
			if err := tx.WriteFile(outputAbs, content, 0644); err != nil {
				return err
			}
		}

		last := target.contributions[len(target.contributions)-1]
		newIndex.Put(types.IndexEntry{
			Path:     target.key.path,
			Platform: target.key.platform,
			Bundle:   last.bundle,
			Output:   target.output,
		})
	}
	return nil
}

// removeOrphans deletes artifacts whose (path, platform) pair no
// surviving bundle provides, then prunes empty directories. Platform
// and workspace roots are never deleted.
func (a *Applier) removeOrphans(tx *transaction.Transaction, ws *workspace.State, writes map[pathKey]*plannedWrite, composites map[pathKey]*compositeTarget, platforms []types.Platform, newIndex *types.WorkspaceIndex) error {
	roots := protectedRoots(ws, platforms)

	for _, entry := range ws.Index.Entries {
		key := pathKey{path: entry.Path, platform: entry.Platform}
		if _, live := writes[key]; live {
			continue
		}
		if _, live := composites[key]; live {
			continue
		}
		active := false
		for _, p := range platforms {
			if p.ID == entry.Platform {
				active = true
				break
			}
		}
		if !active {
			continue
		}

		outputAbs := filepath.Join(ws.Paths.WorkspaceRoot(), entry.Output)

		// A formerly composite output may still carry other bundles'
		// blocks; only this bundle's block comes out.
		if existing, err := readIfExists(ws.FS, outputAbs); err == nil && merge.HasBlock(existing, entry.Bundle) {
			remaining, _ := merge.RemoveBlock(existing, entry.Bundle)
			if len(strings.TrimSpace(string(remaining))) > 0 {
				if err := tx.WriteFile(outputAbs, remaining, 0644); err != nil {
					return err
				}
				continue
			}
		}

		if err := tx.Remove(outputAbs); err != nil {
			return err
		}
		a.logger.Debug().
			Str("path", entry.Path).
			Str("platform", entry.Platform).
			Str("output", entry.Output).
			Msg("Removed orphaned artifact")

		if err := pruneEmptyDirs(tx, filepath.Dir(outputAbs), roots); err != nil {
			return err
		}
	}
	return nil
}

// protectedRoots returns the directories pruning must never remove:
// the workspace root, every platform root, and the workspace bundle dir.
func protectedRoots(ws *workspace.State, platforms []types.Platform) map[string]bool {
	roots := map[string]bool{
		ws.Paths.WorkspaceRoot(): true,
		ws.Paths.BundleDir():     true,
	}
	for _, p := range platforms {
		roots[filepath.Join(ws.Paths.WorkspaceRoot(), p.Root)] = true
	}
	return roots
}

// pruneEmptyDirs removes empty directories upward from dir until a
// protected root or a non-empty directory stops it.
func pruneEmptyDirs(tx *transaction.Transaction, dir string, roots map[string]bool) error {
	for !roots[dir] {
		removed, err := tx.RemoveDirIfEmpty(dir)
		if err != nil {
			return err
		}
		if !removed {
			return nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
	return nil
}

// removedBundles lists bundles present in the previous lockfile but not
// in the new one.
func removedBundles(prev, next *types.Lockfile) []string {
	if prev == nil {
		return nil
	}
	var out []string
	for _, lb := range prev.Bundles {
		if next.Find(lb.Name) == nil {
			out = append(out, lb.Name)
		}
	}
	return out
}

func readIfExists(fsys types.FS, path string) ([]byte, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFilesystem, "cannot read %s", path)
	}
	return data, nil
}

func sortedWrites(writes map[pathKey]*plannedWrite) []*plannedWrite {
	out := make([]*plannedWrite, 0, len(writes))
	for _, w := range writes {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.platform != out[j].key.platform {
			return out[i].key.platform < out[j].key.platform
		}
		return out[i].key.path < out[j].key.path
	})
	return out
}

func sortedComposites(composites map[pathKey]*compositeTarget) []*compositeTarget {
	out := make([]*compositeTarget, 0, len(composites))
	for _, c := range composites {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.platform != out[j].key.platform {
			return out[i].key.platform < out[j].key.platform
		}
		return out[i].key.path < out[j].key.path
	})
	return out
}
