package rows

import (
	"database/sql/driver"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"rowshare-backend/internal/shared/server/middleware"
	"rowshare-backend/internal/shared/server/respond"
	"rowshare-backend/internal/shared/telemetry"
)

// maxBodyBytes leaves room for base64 expansion of a MaxUploadBytes file.
const maxBodyBytes = 16 << 20

var connectionHints = []string{
	"Check that the database is running and reachable from this host",
	"Verify DATABASE_URL (host, port, credentials, database name)",
	"If the server requires TLS, add sslmode=require to DATABASE_URL",
	"For local development, unset DATABASE_URL or set STORE=sqlite",
}

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
	// Dev exposes read-path failures to the caller instead of hiding them.
	Dev        bool
	CronSecret string
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, dev bool, cronSecret string) *Handler {
	return &Handler{Svc: svc, Dev: dev, CronSecret: cronSecret}
}

// RegisterRoutes attaches row-share routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload", h.upload)
	rg.GET("/data", h.data)
	rg.GET("/data/search", h.search)
	rg.GET("/data/filter-values", h.filterValues)
	rg.GET("/tables", h.tables)
	rg.DELETE("/delete", h.delete)
	rg.GET("/share/:rowId", h.share)

	cron := middleware.CronSecret(h.CronSecret)
	rg.GET("/cron/auto-delete", cron, h.sweep)
	rg.POST("/cron/auto-delete", cron, h.sweep)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	filename, data, err := readUpload(c)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Fail(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		respond.Fail(c, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.Svc.Upload(c.Request.Context(), filename, data)
	if err != nil {
		switch {
		case errors.Is(err, ErrTooLarge):
			respond.Fail(c, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ErrInvalidInput):
			respond.Fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotConfigured):
			respond.Fail(c, http.StatusInternalServerError, "Database not configured")
		default:
			telemetry.Error("upload.failed", map[string]any{"err": err, "filename": filename})
			respond.Fail(c, http.StatusInternalServerError, "Failed to process file")
		}
		return
	}

	c.Set(middleware.LogUploadIDKey, u.UploadID)
	c.Set(middleware.LogTableIDKey, u.TableName)
	respond.JSON(c, http.StatusOK, uploadResponse{
		Success:   true,
		Message:   fmt.Sprintf("Uploaded \"%s\" with %d rows and %d columns.", u.TableName, len(u.Rows), len(u.Columns)),
		Count:     len(u.Rows),
		Columns:   len(u.Columns),
		TableName: u.TableName,
	})
}

// readUpload accepts a JSON body carrying base64 file bytes, or a multipart
// form with a "file" part.
func readUpload(c *gin.Context) (string, []byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return "", nil, err
			}
			return "", nil, errors.New("No file provided")
		}
		f, err := fh.Open()
		if err != nil {
			return "", nil, errors.New("Unable to read file")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", nil, err
		}
		name := c.PostForm("filename")
		if name == "" {
			name = fh.Filename
		}
		return name, data, nil
	}

	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", nil, err
		}
		return "", nil, errors.New("Invalid request body")
	}
	encoded := req.File
	if encoded == "" {
		encoded = req.Data
	}
	if strings.TrimSpace(encoded) == "" {
		return "", nil, errors.New("No file provided")
	}
	data, err := decodeBase64(encoded)
	if err != nil {
		return "", nil, errors.New("Invalid file encoding")
	}
	return req.Filename, data, nil
}

// decodeBase64 strips an optional data-URL prefix before decoding.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func (h *Handler) data(c *gin.Context) {
	tableID := c.Query("tableId")
	c.Set(middleware.LogTableIDKey, tableID)
	ds, err := h.Svc.Data(c.Request.Context(), tableID, showAll(c))
	if err != nil {
		h.readFailure(c, err, func(msg string) any {
			resp := toDataResponse(EmptyDataset())
			resp.Error = msg
			return resp
		})
		return
	}
	respond.JSON(c, http.StatusOK, toDataResponse(ds))
}

func (h *Handler) search(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	q := Query{
		Column: c.Query("column"),
		Value:  c.Query("value"),
		Text:   c.Query("q"),
		Page:   page,
	}
	ds, p, err := h.Svc.Search(c.Request.Context(), c.Query("tableId"), showAll(c), q)
	if err != nil {
		h.readFailure(c, err, func(msg string) any {
			resp := searchResponse{dataResponse: toDataResponse(EmptyDataset()), Page: 1}
			resp.Error = msg
			return resp
		})
		return
	}
	ds.Rows = p.Rows
	respond.JSON(c, http.StatusOK, searchResponse{
		dataResponse: toDataResponse(ds),
		Total:        p.Total,
		Page:         p.Page,
		TotalPages:   p.TotalPages,
	})
}

func (h *Handler) filterValues(c *gin.Context) {
	values, err := h.Svc.FilterValues(c.Request.Context(), c.Query("tableId"), showAll(c), c.Query("column"))
	if err != nil {
		h.readFailure(c, err, func(msg string) any {
			return filterValuesResponse{Values: []string{}, Error: msg}
		})
		return
	}
	respond.JSON(c, http.StatusOK, filterValuesResponse{Values: values})
}

func (h *Handler) tables(c *gin.Context) {
	tables, err := h.Svc.Tables(c.Request.Context(), showAll(c))
	if err != nil {
		h.readFailure(c, err, func(msg string) any {
			return tablesResponse{Tables: []tableResponse{}, Error: msg}
		})
		return
	}
	respond.JSON(c, http.StatusOK, toTablesResponse(tables))
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Query("id")
	c.Set(middleware.LogRowIDKey, id)
	msg, err := h.Svc.Delete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			respond.Fail(c, http.StatusInternalServerError, "Database not configured")
			return
		}
		telemetry.Error("rows.delete_failed", map[string]any{"err": err, "row_id": id})
		respond.Fail(c, http.StatusInternalServerError, "Failed to delete data")
		return
	}
	respond.JSON(c, http.StatusOK, deleteResponse{Success: true, Message: msg})
}

func (h *Handler) share(c *gin.Context) {
	rowID := c.Param("rowId")
	c.Set(middleware.LogRowIDKey, rowID)
	text, link, err := h.Svc.Share(c.Request.Context(), rowID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Fail(c, http.StatusNotFound, "Row not found")
		case errors.Is(err, ErrNotConfigured):
			respond.Fail(c, http.StatusInternalServerError, "Database not configured")
		default:
			telemetry.Error("rows.share_failed", map[string]any{"err": err, "row_id": rowID})
			respond.Fail(c, http.StatusInternalServerError, "Failed to share row")
		}
		return
	}
	respond.JSON(c, http.StatusOK, shareResponse{Text: text, URL: link})
}

func (h *Handler) sweep(c *gin.Context) {
	res, err := h.Svc.Sweep(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			respond.Fail(c, http.StatusInternalServerError, "Database not configured")
			return
		}
		telemetry.Error("sweep.failed", map[string]any{"err": err})
		respond.Fail(c, http.StatusInternalServerError, "Failed to check auto-delete")
		return
	}
	respond.JSON(c, http.StatusOK, sweepResponse{Success: true, Message: res.Message, DeletedCount: res.Deleted})
}

// readFailure degrades a read to an empty 200. In development a connection
// failure becomes a 500 with hints and other errors are echoed in the body.
func (h *Handler) readFailure(c *gin.Context, err error, empty func(msg string) any) {
	if errors.Is(err, ErrNotConfigured) {
		respond.JSON(c, http.StatusOK, empty(""))
		return
	}
	telemetry.Error("rows.read_failed", map[string]any{
		"err":    err,
		"path":   c.Request.URL.Path,
		"dev":    h.Dev,
		"conn":   isConnectionError(err),
		"method": c.Request.Method,
	})
	if !h.Dev {
		respond.JSON(c, http.StatusOK, empty(""))
		return
	}
	if isConnectionError(err) {
		respond.FailWithHints(c, http.StatusInternalServerError, "Database connection error: "+err.Error(), connectionHints)
		return
	}
	respond.JSON(c, http.StatusOK, empty(err.Error()))
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{"SSL", "TLS", "tls:", "connection refused", "failed to connect", "no such host"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func showAll(c *gin.Context) bool {
	return c.Query("showAll") == "true"
}
