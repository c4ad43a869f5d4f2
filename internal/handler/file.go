package handler

import (
	"errors"
	"net/http"

	mfs "github.com/CageChen/filesource/internal/fs"
	"github.com/CageChen/filesource/internal/queue"
	"github.com/CageChen/filesource/internal/source"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// PutResponse reports which files a write batch stored
type PutResponse struct {
	Written []string `json:"written"`
	Error   string   `json:"error,omitempty"`
}

// GetFiles returns every file of a source with its content
func (h *TreeHandler) GetFiles(c *gin.Context) {
	src, ok := h.lookup(c)
	if !ok {
		return
	}
	files, err := src.Get(c.Request.Context())
	if err != nil {
		// partial results are still useful to the caller
		writeError(c, err, gin.H{"files": files})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

// PutFiles writes a batch of files to a writable source
func (h *TreeHandler) PutFiles(c *gin.Context) {
	src, ok := h.lookup(c)
	if !ok {
		return
	}

	var files []source.File
	if err := c.ShouldBindJSON(&files); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request: " + err.Error(),
		})
		return
	}

	written, err := src.Put(c.Request.Context(), files)
	for _, cb := range h.onPut {
		cb(src.Name(), written)
	}
	if written == nil {
		written = []string{}
	}
	if err != nil {
		writeError(c, err, gin.H{"written": written})
		return
	}
	c.JSON(http.StatusOK, PutResponse{Written: written})
}

// writeError maps source errors to HTTP statuses and echoes extra fields,
// typically the partial results of a batch.
func writeError(c *gin.Context, err error, extra gin.H) {
	status := http.StatusInternalServerError
	var (
		cfgErr     *source.ConfigError
		timeoutErr *queue.TimeoutError
	)
	switch {
	case errors.Is(err, source.ErrNotWritable):
		status = http.StatusForbidden
	case errors.As(err, &cfgErr):
		status = http.StatusBadRequest
	case errors.Is(err, mfs.ErrGuardedRoot):
		status = http.StatusForbidden
	case errors.As(err, &timeoutErr):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.Request.URL.Path).Warn("request failed")
	}

	body := gin.H{"error": err.Error()}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}
