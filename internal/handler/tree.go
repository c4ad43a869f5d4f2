// Package handler provides HTTP handlers for the filesource REST API.
package handler

import (
	"net/http"
	"strings"

	"github.com/CageChen/filesource/internal/source"
	"github.com/CageChen/filesource/internal/walker"
	"github.com/gin-gonic/gin"
)

// TreeNode represents a file or directory in the tree
type TreeNode struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Path     string      `json:"path,omitempty"`
	Sha      string      `json:"sha,omitempty"`
	Hash     string      `json:"hash,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// SourceInfo describes a configured source
type SourceInfo struct {
	Name      string `json:"name"`
	Root      string `json:"root"`
	Writable  bool   `json:"writable"`
	Watchable bool   `json:"watchable"`
}

// TreeHandler handles source listing API requests
type TreeHandler struct {
	sources []*source.Source
	byName  map[string]*source.Source
	onPut   []func(name string, written []string)
}

// NewTreeHandler creates a new tree handler over the given sources
func NewTreeHandler(sources []*source.Source) *TreeHandler {
	byName := make(map[string]*source.Source, len(sources))
	for _, s := range sources {
		byName[s.Name()] = s
	}
	return &TreeHandler{sources: sources, byName: byName}
}

// OnPut registers a callback run after every write batch
func (h *TreeHandler) OnPut(cb func(name string, written []string)) {
	h.onPut = append(h.onPut, cb)
}

// lookup resolves the :name parameter, answering 404 when it is unknown.
func (h *TreeHandler) lookup(c *gin.Context) (*source.Source, bool) {
	src, ok := h.byName[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "source not found",
		})
	}
	return src, ok
}

// GetSources returns the configured sources in configuration order
func (h *TreeHandler) GetSources(c *gin.Context) {
	resp := make([]SourceInfo, len(h.sources))
	for i, s := range h.sources {
		resp[i] = SourceInfo{
			Name:      s.Name(),
			Root:      s.Root(),
			Writable:  s.Writable(),
			Watchable: s.Watchable(),
		}
	}
	c.JSON(http.StatusOK, gin.H{"sources": resp})
}

// GetList returns the crawl of a source as a flat list of descriptors
func (h *TreeHandler) GetList(c *gin.Context) {
	src, ok := h.lookup(c)
	if !ok {
		return
	}
	list, err := src.List(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": list})
}

// GetTree returns the crawl of a source nested by directory
func (h *TreeHandler) GetTree(c *gin.Context) {
	src, ok := h.lookup(c)
	if !ok {
		return
	}
	list, err := src.List(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	tree := buildTree(list)
	tree.Name = src.Name()
	c.JSON(http.StatusOK, tree)
}

// buildTree nests descriptors under directory nodes. Crawl order is kept:
// every subtree is contiguous in a crawl, so children are appended in the
// order they first appear.
func buildTree(list []walker.Descriptor) *TreeNode {
	root := &TreeNode{Type: "directory", Path: "/"}
	dirs := map[string]*TreeNode{"": root}

	for _, d := range list {
		segments := strings.Split(strings.TrimPrefix(d.Path, "/"), "/")
		parent := root
		dirPath := ""
		for _, seg := range segments[:len(segments)-1] {
			dirPath += "/" + seg
			node, ok := dirs[dirPath]
			if !ok {
				node = &TreeNode{Name: seg, Type: "directory", Path: dirPath}
				dirs[dirPath] = node
				parent.Children = append(parent.Children, node)
			}
			parent = node
		}
		parent.Children = append(parent.Children, &TreeNode{
			Name: segments[len(segments)-1],
			Type: "file",
			Path: d.Path,
			Sha:  d.Sha,
			Hash: d.Hash,
		})
	}
	return root
}
