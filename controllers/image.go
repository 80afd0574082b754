package controllers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"labelscope/autolabel"
	"labelscope/images"
	"labelscope/utils"
	"labelscope/workspace"
)

// FindImages Find all images of a project, optionally filtered
func FindImages(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		filter, err := images.ParseFilter(c.Query("filter"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":    session.Images(filter, c.Query("search")),
			"deleted": session.DeletedImages(),
		})
	}
	return fn
}

// CreateImages Upload images as multipart "images" files
func CreateImages(cache *workspace.Cache, config *utils.Config) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		if config.Server.MaxUploadSize > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.Server.MaxUploadSize)
		}
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		files := form.File["images"]
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no images uploaded"})
			return
		}
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}

		uploads := make([]workspace.Upload, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			uploads = append(uploads, workspace.Upload{Name: fh.Filename, Data: data})
		}
		log.Info(fmt.Sprintf("Importing %d images into %s", len(uploads), session.Project()))
		c.JSON(http.StatusOK, gin.H{"data": session.Upload(uploads)})
	}
	return fn
}

// SelectImage Make an image the active one
func SelectImage(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := session.SelectImage(c.Param("name")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": session.Snapshot()})
	}
	return fn
}

// DeleteImage Delete an image and its regions
func DeleteImage(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := session.RemoveImage(c.Param("name")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": true})
	}
	return fn
}

// AutoLabel Ask the detector for regions on the active image
func AutoLabel(cache *workspace.Cache, detector autolabel.Detector) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		if detector == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auto-labeling is not configured"})
			return
		}
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		added, err := session.AutoLabel(c.Request.Context(), detector)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": added})
	}
	return fn
}
