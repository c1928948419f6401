package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rowshare-backend/internal/shared/server/respond"
	"rowshare-backend/internal/shared/telemetry"
)

// Handler wires catalog HTTP handlers to the service.
type Handler struct {
	Svc *Service
	// Admin guards every write route.
	Admin gin.HandlerFunc
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, admin gin.HandlerFunc) *Handler {
	return &Handler{Svc: svc, Admin: admin}
}

// RegisterRoutes attaches catalog routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/catalog")
	g.GET("/products", h.listProducts)
	g.GET("/products/:id", h.getProduct)
	g.GET("/categories", h.listCategories)
	g.GET("/images/*key", h.image)

	admin := g.Group("")
	if h.Admin != nil {
		admin.Use(h.Admin)
	}
	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)
	admin.POST("/categories", h.createCategory)
	admin.PUT("/categories/:id", h.renameCategory)
	admin.DELETE("/categories/:id", h.deleteCategory)
	admin.POST("/images", h.uploadImage)
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.Svc.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		writeError(c, err, "failed to list products")
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, h.toProductResponse(c.Request.Context(), p))
	}
	respond.JSON(c, http.StatusOK, gin.H{"products": out})
}

func (h *Handler) getProduct(c *gin.Context) {
	p, err := h.Svc.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch product")
		return
	}
	respond.JSON(c, http.StatusOK, h.toProductResponse(c.Request.Context(), p))
}

func (h *Handler) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.Price == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "price is required", nil)
		return
	}
	p, err := h.Svc.CreateProduct(c.Request.Context(), req.input())
	if err != nil {
		writeError(c, err, "failed to create product")
		return
	}
	respond.JSON(c, http.StatusCreated, h.toProductResponse(c.Request.Context(), p))
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.Price == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "price is required", nil)
		return
	}
	p, err := h.Svc.UpdateProduct(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		writeError(c, err, "failed to update product")
		return
	}
	respond.JSON(c, http.StatusOK, h.toProductResponse(c.Request.Context(), p))
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.Svc.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err, "failed to delete product")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"success": true})
}

func (h *Handler) listCategories(c *gin.Context) {
	cats, err := h.Svc.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to list categories")
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, cat := range cats {
		out = append(out, toCategoryResponse(cat))
	}
	respond.JSON(c, http.StatusOK, gin.H{"categories": out})
}

func (h *Handler) createCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	cat, err := h.Svc.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err, "failed to create category")
		return
	}
	respond.JSON(c, http.StatusCreated, toCategoryResponse(cat))
}

func (h *Handler) renameCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	cat, err := h.Svc.RenameCategory(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		writeError(c, err, "failed to rename category")
		return
	}
	respond.JSON(c, http.StatusOK, toCategoryResponse(cat))
}

func (h *Handler) deleteCategory(c *gin.Context) {
	if err := h.Svc.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err, "failed to delete category")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"success": true})
}

func (h *Handler) uploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImageBytes+(1<<20))

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "validation_error", "image size must be less than 2 MiB", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	img, err := h.Svc.UploadImage(c.Request.Context(), fh.Filename, data)
	if err != nil {
		writeError(c, err, "failed to store image")
		return
	}
	respond.JSON(c, http.StatusCreated, imageResponse{Key: img.Key, URL: img.URL})
}

func (h *Handler) image(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	rc, err := h.Svc.OpenImage(c.Request.Context(), key)
	if err != nil {
		writeError(c, err, "failed to read image")
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, -1, "image/jpeg", rc, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}

func (h *Handler) toProductResponse(ctx context.Context, p Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Title:     p.Title,
		Size:      p.Size,
		Color:     p.Color,
		Price:     p.Price,
		Category:  p.Category,
		Image:     p.Image,
		ImageURL:  h.Svc.ImageURL(ctx, p.Image),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", err.Error(), nil)
	default:
		telemetry.Error("catalog.failed", map[string]any{"err": err, "path": c.FullPath()})
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
