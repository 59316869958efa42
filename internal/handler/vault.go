// Package handler provides HTTP handlers for the CloverDrive REST API.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/CageChen/cloverdrive/internal/logging"
	"github.com/CageChen/cloverdrive/internal/metrics"
	"github.com/CageChen/cloverdrive/internal/vault"
)

// itemResponse is a FileRecord plus display labels for the GUI
type itemResponse struct {
	vault.FileRecord
	SizeLabel string `json:"sizeLabel"`
	DateLabel string `json:"dateLabel"`
}

func newItemResponse(r vault.FileRecord) itemResponse {
	return itemResponse{
		FileRecord: r,
		SizeLabel:  formatSize(r.Size),
		DateLabel:  r.ModifiedAt.Format("Jan 2, 2006"),
	}
}

func formatSize(n int64) string {
	return fmt.Sprintf("%.1f KB", float64(n)/1024)
}

type pathRequest struct {
	Path string `json:"path" binding:"required"`
}

type uploadRequest struct {
	Paths []string `json:"paths"`
}

type downloadRequest struct {
	Path        string `json:"path" binding:"required"`
	Name        string `json:"name"`
	Destination string `json:"destination"`
}

// requestDialog answers the save dialog with the destination the GUI already
// picked. An empty destination is a cancelled dialog.
type requestDialog struct {
	destination string
}

func (d requestDialog) SaveLocation(string) (string, bool) {
	return d.destination, d.destination != ""
}

// VaultHandler handles vault API requests. Calls into the vault are
// serialised so one command finishes before the next starts.
type VaultHandler struct {
	mu     sync.Mutex
	vault  *vault.Vault
	opener vault.Opener
}

// NewVaultHandler creates a new vault handler
func NewVaultHandler(v *vault.Vault, opener vault.Opener) *VaultHandler {
	return &VaultHandler{
		vault:  v,
		opener: opener,
	}
}

// Register mounts the vault routes on api.
func (h *VaultHandler) Register(api gin.IRoutes) {
	api.GET("/items", h.ListItems)
	api.POST("/upload", h.Upload)
	api.POST("/download", h.Download)
	api.POST("/open", h.Open)
	api.POST("/delete", h.Delete)
	api.POST("/trash", h.MoveToTrash)
	api.POST("/restore", h.Restore)
	api.POST("/wipe", h.Wipe)
	api.GET("/preview", h.Preview)
}

// ListItems returns the vault entries followed by the trash entries
func (h *VaultHandler) ListItems(c *gin.Context) {
	h.mu.Lock()
	records := h.vault.Items()
	h.mu.Unlock()

	items := make([]itemResponse, 0, len(records))
	for _, r := range records {
		items = append(items, newItemResponse(r))
	}
	c.JSON(http.StatusOK, items)
}

// Upload copies the given external files into the vault
func (h *VaultHandler) Upload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	h.mu.Lock()
	ok, err := h.vault.Upload(req.Paths)
	h.mu.Unlock()

	h.respond(c, "upload", ok, err)
}

// Download copies a vault entry to the destination chosen by the GUI
func (h *VaultHandler) Download(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	h.mu.Lock()
	ok, err := h.vault.Download(req.Path, req.Name, requestDialog{destination: req.Destination})
	h.mu.Unlock()

	h.respond(c, "download", ok, err)
}

// Open hands an entry to the OS default application
func (h *VaultHandler) Open(c *gin.Context) {
	h.withPath(c, "open", func(path string) (bool, error) {
		return h.vault.Open(path, h.opener)
	})
}

// Delete permanently removes an entry from either root
func (h *VaultHandler) Delete(c *gin.Context) {
	h.withPath(c, "delete", h.vault.Delete)
}

// MoveToTrash moves a vault entry into the trash
func (h *VaultHandler) MoveToTrash(c *gin.Context) {
	h.withPath(c, "trash", h.vault.MoveToTrash)
}

// Restore moves a trash entry back into the vault
func (h *VaultHandler) Restore(c *gin.Context) {
	h.withPath(c, "restore", h.vault.RestoreFromTrash)
}

// Wipe empties both roots
func (h *VaultHandler) Wipe(c *gin.Context) {
	h.mu.Lock()
	ok, err := h.vault.Wipe()
	h.mu.Unlock()

	h.respond(c, "wipe", ok, err)
}

// Preview returns an image entry as a data URL
func (h *VaultHandler) Preview(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	h.mu.Lock()
	url, err := h.vault.DataURL(path)
	h.mu.Unlock()

	if err != nil {
		status := http.StatusInternalServerError
		msg := "preview failed"
		switch {
		case errors.Is(err, vault.ErrUnsupported):
			status, msg = http.StatusUnsupportedMediaType, "not an image"
		case errors.Is(err, vault.ErrNotFound):
			status, msg = http.StatusNotFound, "file not found"
		case errors.Is(err, vault.ErrOutsideVault):
			status, msg = http.StatusForbidden, "access denied"
		default:
			logging.WithContext(c.Request.Context()).Error("preview failed", logging.Path(path), logging.Err(err))
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"dataUrl": url})
}

func (h *VaultHandler) withPath(c *gin.Context, op string, fn func(string) (bool, error)) {
	var req pathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	h.mu.Lock()
	ok, err := fn(req.Path)
	h.mu.Unlock()

	h.respond(c, op, ok, err)
}

// respond answers {"ok": bool}. Failures are logged here and never surface
// as HTTP errors.
func (h *VaultHandler) respond(c *gin.Context, op string, ok bool, err error) {
	result := metrics.ResultOK
	switch {
	case err != nil:
		result = metrics.ResultError
		logging.WithContext(c.Request.Context()).Warn("vault operation failed",
			logging.String("op", op), logging.Err(err))
	case !ok:
		result = metrics.ResultNoop
	}
	metrics.RecordOperation(op, result)

	c.JSON(http.StatusOK, gin.H{"ok": ok && err == nil})
}
