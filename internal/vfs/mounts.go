package vfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/soyeahso/ochre/internal/config"
)

// Mount is a named host directory exposed under /fs/mnt/<name>.
type Mount struct {
	Name     string
	Root     string
	ReadOnly bool
}

// MountsProvider serves config-declared host directories. All paths are
// resolved under the mount root; escapes via .. or symlink-free lexical
// tricks are rejected.
type MountsProvider struct {
	mounts map[string]Mount
}

// NewMountsProvider builds the provider from config mount entries. Relative
// mount paths are resolved against baseDir.
func NewMountsProvider(entries []config.MountEntry, baseDir string) (*MountsProvider, error) {
	mounts := make(map[string]Mount, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		root := e.Path
		if strings.HasPrefix(root, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("resolving mount %s: %w", name, err)
			}
			root = filepath.Join(home, root[2:])
		}
		if !filepath.IsAbs(root) {
			root = filepath.Join(baseDir, root)
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving mount %s: %w", name, err)
		}
		mounts[name] = Mount{Name: name, Root: abs, ReadOnly: e.ReadOnly}
	}
	return &MountsProvider{mounts: mounts}, nil
}

// CanHandle claims /fs/mnt and everything under it.
func (p *MountsProvider) CanHandle(path string) bool {
	return path == "/fs/mnt" || strings.HasPrefix(path, "/fs/mnt/")
}

// splitMountPath extracts the mount name and relative subpath from
// /fs/mnt/<name>/rest.
func splitMountPath(path string) (name, subpath string, err error) {
	rest := strings.TrimPrefix(path, "/fs/mnt/")
	if rest == path || rest == "" {
		return "", "", fmt.Errorf("missing mount name in %s", path)
	}
	parts := strings.SplitN(rest, "/", 2)
	name = parts[0]
	if len(parts) == 2 {
		subpath = parts[1]
	}
	return name, subpath, nil
}

// safeJoin resolves subpath under root and rejects escapes.
func safeJoin(root, subpath string) (string, error) {
	candidate := filepath.Clean(filepath.Join(root, subpath))
	if candidate != root && !strings.HasPrefix(candidate, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes mount root")
	}
	return candidate, nil
}

func (p *MountsProvider) resolve(path string) (Mount, string, error) {
	name, subpath, err := splitMountPath(path)
	if err != nil {
		return Mount{}, "", err
	}
	mount, ok := p.mounts[name]
	if !ok {
		return Mount{}, "", fmt.Errorf("unknown mount: %s", name)
	}
	host, err := safeJoin(mount.Root, subpath)
	if err != nil {
		return Mount{}, "", err
	}
	return mount, host, nil
}

// virtualPath maps a host path back into the /fs/mnt namespace.
func (p *MountsProvider) virtualPath(mount Mount, host string) string {
	rel, err := filepath.Rel(mount.Root, host)
	if err != nil || rel == "." {
		return "/fs/mnt/" + mount.Name
	}
	return "/fs/mnt/" + mount.Name + "/" + filepath.ToSlash(rel)
}

// List lists the mount roots at /fs/mnt, or a directory inside a mount.
func (p *MountsProvider) List(_ context.Context, path string) (*Listing, error) {
	if path == "/fs/mnt" {
		names := make([]string, 0, len(p.mounts))
		for name := range p.mounts {
			names = append(names, name)
		}
		sort.Strings(names)
		entries := make([]Entry, 0, len(names))
		for _, name := range names {
			entries = append(entries, Entry{Name: name, Path: "/fs/mnt/" + name, Kind: "dir"})
		}
		return &Listing{Path: "/fs/mnt", Entries: entries}, nil
	}

	mount, host, err := p.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(host)
	if err != nil {
		return nil, fmt.Errorf("path does not exist")
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is a file; expected directory")
	}

	children, err := os.ReadDir(host)
	if err != nil {
		return nil, fmt.Errorf("listing directory: %w", err)
	}
	// Directories first, then case-insensitive by name.
	sort.Slice(children, func(i, j int) bool {
		di, dj := children[i].IsDir(), children[j].IsDir()
		if di != dj {
			return di
		}
		return strings.ToLower(children[i].Name()) < strings.ToLower(children[j].Name())
	})

	entries := make([]Entry, 0, len(children))
	for _, c := range children {
		e := Entry{
			Name: c.Name(),
			Path: p.virtualPath(mount, filepath.Join(host, c.Name())),
			Kind: "file",
		}
		if c.IsDir() {
			e.Kind = "dir"
		} else if fi, err := c.Info(); err == nil {
			size := fi.Size()
			e.Size = &size
		}
		entries = append(entries, e)
	}
	return &Listing{Path: path, Entries: entries}, nil
}

// Read returns a UTF-8 file's content, refusing files over maxBytes.
func (p *MountsProvider) Read(_ context.Context, path string, maxBytes int) (*FileContent, error) {
	_, host, err := p.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(host)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("file does not exist")
	}
	if info.Size() > int64(maxBytes) {
		return nil, fmt.Errorf("file too large (%d bytes > %d)", info.Size(), maxBytes)
	}
	data, err := os.ReadFile(host)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return &FileContent{Path: path, Content: string(data)}, nil
}

// Write writes a file, creating parent directories as needed.
func (p *MountsProvider) Write(_ context.Context, path, content string) (*WriteResult, error) {
	mount, host, err := p.resolve(path)
	if err != nil {
		return nil, err
	}
	if mount.ReadOnly {
		return nil, fmt.Errorf("mount is read-only")
	}
	if err := os.MkdirAll(filepath.Dir(host), 0o700); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.WriteFile(host, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}
	return &WriteResult{Path: path, OK: true}, nil
}

// Move renames a path within a single writable mount.
func (p *MountsProvider) Move(_ context.Context, fromPath, toPath string) (*MoveResult, error) {
	srcMount, src, err := p.resolve(fromPath)
	if err != nil {
		return nil, err
	}
	dstMount, dst, err := p.resolve(toPath)
	if err != nil {
		return nil, err
	}
	if srcMount.Name != dstMount.Name {
		return nil, fmt.Errorf("cannot move across mounts")
	}
	if srcMount.ReadOnly {
		return nil, fmt.Errorf("mount is read-only")
	}
	if _, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("source does not exist")
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return nil, fmt.Errorf("moving: %w", err)
	}
	return &MoveResult{FromPath: fromPath, ToPath: toPath, OK: true}, nil
}
