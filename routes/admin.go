package routes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/figma-chunkstore/chunkstore/internal/storage"
	"github.com/figma-chunkstore/chunkstore/models"
	"github.com/figma-chunkstore/chunkstore/services"
	"github.com/figma-chunkstore/chunkstore/utils"
)

// SetupAdminRoutes wires the chunk store's HTTP inspection surface:
// health, document ingest, and chunk listing/retrieval/deletion.
func SetupAdminRoutes(router *gin.Engine, chunker *services.Chunker, manager *storage.Manager) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"adapters":  manager.Names(),
		})
	})

	admin := router.Group("/admin")

	// -------------------------
	// Ingest a document inline (synchronous chunking)
	// -------------------------
	admin.POST("/ingest", func(c *gin.Context) {
		var req struct {
			FileKey        string      `json:"fileKey" binding:"required"`
			Type           models.Type `json:"type,omitempty"`
			Data           any         `json:"data" binding:"required"`
			StorageAdapter string      `json:"storageAdapter,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "invalid request body", gin.H{"error": err.Error()})
			return
		}

		result, err := chunker.Chunk(req.Data, req.FileKey, req.Type)
		if err != nil {
			utils.RespondWithChunkError(c, err)
			return
		}

		adapterName := storage.Name(req.StorageAdapter)
		for _, chunk := range result.Chunks {
			if err := manager.Save(c.Request.Context(), adapterName, chunk); err != nil {
				utils.RespondWithChunkError(c, err)
				return
			}
		}

		c.JSON(http.StatusCreated, gin.H{
			"primaryChunkId": result.PrimaryChunkID,
			"chunkCount":     len(result.Chunks),
			"references":     result.References,
			"warnings":       chunker.Warnings,
		})
	})

	// -------------------------
	// List chunks
	// -------------------------
	admin.GET("/chunks", func(c *gin.Context) {
		filter := models.ChunkFilter{
			FileKey:        c.Query("fileKey"),
			IncludeExpired: c.Query("includeExpired") == "true",
			SortBy:         models.SortField(c.DefaultQuery("sortBy", string(models.SortByCreated))),
			SortDirection:  models.SortDirection(c.DefaultQuery("sortDirection", string(models.SortDesc))),
		}
		if t := c.Query("type"); t != "" {
			filter = filter.WithType(models.Type(t))
		}
		if limitStr := c.Query("limit"); limitStr != "" {
			if limit, err := strconv.Atoi(limitStr); err == nil {
				filter.Limit = limit
			}
		}

		adapterName := storage.Name(c.Query("adapter"))
		summaries, err := manager.List(c.Request.Context(), adapterName, filter)
		if err != nil {
			utils.RespondWithChunkError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chunks": summaries, "total": len(summaries)})
	})

	// -------------------------
	// Get a single chunk
	// -------------------------
	admin.GET("/chunks/:id", func(c *gin.Context) {
		adapterName := storage.Name(c.Query("adapter"))
		chunk, found, err := manager.Get(c.Request.Context(), adapterName, c.Param("id"))
		if err != nil {
			utils.RespondWithChunkError(c, err)
			return
		}
		if !found {
			utils.RespondWithNotFound(c, "chunk not found")
			return
		}
		c.JSON(http.StatusOK, chunk)
	})

	// -------------------------
	// Chunk summary (size and link info without the payload)
	// -------------------------
	admin.GET("/chunks/:id/summary", func(c *gin.Context) {
		adapterName := storage.Name(c.Query("adapter"))
		chunk, found, err := manager.Get(c.Request.Context(), adapterName, c.Param("id"))
		if err != nil {
			utils.RespondWithChunkError(c, err)
			return
		}
		if !found {
			utils.RespondWithNotFound(c, "chunk not found")
			return
		}
		estimator := services.NewEstimator()
		c.JSON(http.StatusOK, gin.H{
			"id":           chunk.ID,
			"fileKey":      chunk.FileKey,
			"type":         chunk.Type,
			"created":      chunk.Created,
			"lastAccessed": chunk.LastAccessed,
			"size":         estimator.Estimate(chunk.Data),
			"links":        chunk.Links,
		})
	})

	// -------------------------
	// Delete a chunk
	// -------------------------
	admin.DELETE("/chunks/:id", func(c *gin.Context) {
		adapterName := storage.Name(c.Query("adapter"))
		deleted, err := manager.Delete(c.Request.Context(), adapterName, c.Param("id"))
		if err != nil {
			utils.RespondWithChunkError(c, err)
			return
		}
		if !deleted {
			utils.RespondWithNotFound(c, "chunk not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "chunk deleted", "id": c.Param("id")})
	})

	// -------------------------
	// Trigger an immediate cleanup sweep across every adapter
	// -------------------------
	admin.POST("/cleanup", func(c *gin.Context) {
		if err := manager.CleanupAll(c.Request.Context()); err != nil {
			utils.RespondWithChunkError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "cleanup complete"})
	})
}
