// Package filetree lists a directory as a tree of api.FileNode.
package filetree

import (
	"os"
	"path"
	"path/filepath"
	"sort"

	"nereus/pkg/api"
)

// NotFoundName is the name of the node returned for a missing root
const NotFoundName = "Directory not found"

// Build returns the tree rooted at root.
// Children are sorted by name, node paths are relative to root and slash separated.
// Only directories and regular files are listed, symlinks are not followed.
// A missing root yields a single error node.
func Build(root string) api.FileNode {
	fi, err := os.Stat(root)
	if err != nil {
		return api.FileNode{
			Name:     NotFoundName,
			Path:     "",
			Type:     api.NodeError,
			Children: []api.FileNode{},
		}
	}
	return build(root, "", fi)
}

func build(abs, rel string, fi os.FileInfo) api.FileNode {
	name := fi.Name()
	if rel == "" {
		name = filepath.Base(abs)
	}
	n := api.FileNode{
		Name:     name,
		Path:     rel,
		Children: []api.FileNode{},
	}
	if !fi.IsDir() {
		n.Type = api.NodeFile
		n.Size = fi.Size()
		return n
	}

	n.Type = api.NodeDirectory
	entries, err := os.ReadDir(abs)
	if err != nil {
		n.Type = api.NodeError
		return n
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		// symlinks and special files are left out, as in the download archive
		if !e.IsDir() && !e.Type().IsRegular() {
			continue
		}
		childAbs := filepath.Join(abs, e.Name())
		childRel := path.Join(rel, e.Name())
		cfi, err := e.Info()
		if err != nil {
			n.Children = append(n.Children, api.FileNode{
				Name:     e.Name(),
				Path:     childRel,
				Type:     api.NodeError,
				Children: []api.FileNode{},
			})
			continue
		}
		n.Children = append(n.Children, build(childAbs, childRel, cfi))
	}
	return n
}

// Count returns the number of files in the tree.
func Count(n api.FileNode) int {
	c := 0
	n.Walk(func(f api.FileNode) {
		if f.Type == api.NodeFile {
			c++
		}
	})
	return c
}
