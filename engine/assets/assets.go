package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/meshfallback/engine/assets/loaders"
	"github.com/spaghettifunk/meshfallback/engine/core"
	"github.com/spaghettifunk/meshfallback/engine/renderer/metadata"
	"github.com/spaghettifunk/meshfallback/engine/systems"
)

var ErrClosed = errors.New("asset manager already closed")

type AssetInfo struct {
	Path       string
	Name       string
	LastLoaded time.Time
}

// ReloadFunc is called with the reloaded shader after its file changed on disk.
type ReloadFunc func(blob *metadata.ShaderBlob)

// AssetManager indexes the shader files of a directory and, when watching,
// reloads them as they change.
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[string]Loader

	mutex     sync.RWMutex
	callbacks []ReloadFunc

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	watching bool
	isClosed bool

	// Compiles shaders in parallel for LoadShaders.
	jobs *systems.JobSystem
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	jobs, err := systems.NewJobSystem(runtime.NumCPU(), 16)
	if err != nil {
		_ = fsWatch.Close()
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[string]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		jobs:     jobs,
	}
	am.registerLoader(&loaders.ShaderLoader{})
	return am, nil
}

// Initialize indexes every shader under assetsDir. With watch set, changes
// are picked up until Shutdown.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	am.mutex.RLock()
	closed, watching := am.isClosed, am.watching
	am.mutex.RUnlock()
	if closed {
		return ErrClosed
	}
	if err := am.watchRecursive(assetsDir, watch); err != nil {
		return err
	}
	if watch && !watching {
		am.mutex.Lock()
		am.watching = true
		am.mutex.Unlock()
		go am.start()
	}
	core.LogInfo("Indexed %d shaders under %s", len(am.Names()), assetsDir)
	return nil
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	watching := am.watching
	am.mutex.Unlock()

	close(am.done)
	if watching {
		<-am.stopped
	}
	_ = am.jobs.Shutdown()
	return am.fsnotify.Close()
}

// OnReload registers fn to run after a watched shader was reloaded.
func (am *AssetManager) OnReload(fn ReloadFunc) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.callbacks = append(am.callbacks, fn)
}

// Register loaders for each file extension
func (am *AssetManager) registerLoader(loader Loader) {
	for _, ext := range loader.Extensions() {
		am.loaders[ext] = loader
	}
}

// Names returns the indexed shader names, sorted.
func (am *AssetManager) Names() []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	names := make([]string, 0, len(am.assets))
	for _, a := range am.assets {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

// LoadShader loads the shader indexed under name, e.g. "meshlet.comp".
func (am *AssetManager) LoadShader(name string) (*metadata.ShaderBlob, error) {
	am.mutex.RLock()
	var asset AssetInfo
	found := false
	for _, a := range am.assets {
		if a.Name == name {
			asset, found = a, true
			break
		}
	}
	am.mutex.RUnlock()
	if !found {
		return nil, fmt.Errorf("asset not found: %s", name)
	}
	return am.load(asset.Path)
}

// LoadShaders loads every named shader concurrently. It fails with the
// first error in names order.
func (am *AssetManager) LoadShaders(names ...string) (map[string]*metadata.ShaderBlob, error) {
	am.mutex.RLock()
	closed := am.isClosed
	am.mutex.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	blobs := make([]*metadata.ShaderBlob, len(names))
	errs := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		am.jobs.Submit(systems.Job{
			Name: name,
			Run: func() error {
				blob, err := am.LoadShader(name)
				blobs[i] = blob
				return err
			},
			OnComplete: wg.Done,
			OnFailure: func(err error) {
				errs[i] = err
				wg.Done()
			},
		})
	}
	wg.Wait()

	out := make(map[string]*metadata.ShaderBlob, len(names))
	for i, name := range names {
		if errs[i] != nil {
			return nil, errs[i]
		}
		out[name] = blobs[i]
	}
	return out, nil
}

func (am *AssetManager) load(path string) (*metadata.ShaderBlob, error) {
	loader, ok := am.loaders[filepath.Ext(path)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, core.ErrUnknownShaderFormat)
	}
	blob, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	if asset, exists := am.assets[path]; exists {
		// Update the loaded time
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	am.mutex.Unlock()
	return blob, nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("Shader watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	s, err := os.Stat(e.Name)
	if err == nil && s.IsDir() {
		if e.Op&fsnotify.Create != 0 {
			if err := am.watchRecursive(e.Name, true); err != nil {
				core.LogWarn("failed to watch %s: %s", e.Name, err)
			}
		}
		return
	}
	// Handle create or modify events
	if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		if !am.handleFileEvent(e.Name) {
			return
		}
		blob, err := am.load(e.Name)
		if err != nil {
			// Editors write partial files, the next write event retries.
			core.LogWarn("failed to reload %s: %s", e.Name, err)
			return
		}
		core.LogInfo("Shader %s reloaded", blob.Name)
		am.mutex.RLock()
		callbacks := append([]ReloadFunc(nil), am.callbacks...)
		am.mutex.RUnlock()
		for _, fn := range callbacks {
			fn(blob)
		}
	}
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		am.removeAsset(e.Name)
	}
}

// watchRecursive indexes every file under path and, with watch set, adds all
// directories to the watch list.
func (am *AssetManager) watchRecursive(path string, watch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if watch {
				return am.fsnotify.Add(walkPath)
			}
			return nil
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// handleFileEvent indexes path if a loader handles it and reports whether it did.
func (am *AssetManager) handleFileEvent(path string) bool {
	if _, ok := am.loaders[filepath.Ext(path)]; !ok {
		return false
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if _, exists := am.assets[path]; !exists {
		am.assets[path] = AssetInfo{
			Path: path,
			Name: loaders.ShaderName(path),
		}
	}
	return true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, path)
}
