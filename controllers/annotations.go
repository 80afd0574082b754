package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"labelscope/annotations"
	"labelscope/utils"
	"labelscope/workspace"
)

// FindRegions List the regions of an image, the active one by default
func FindRegions(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		rs, err := session.Regions(c.Query("image"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rs})
	}
	return fn
}

type UpdateRegionInput struct {
	Class       *string `json:"class"`
	Description *string `json:"description"`
}

// UpdateRegion Save the attributes of a region on the active image
func UpdateRegion(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		var input UpdateRegionInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		r, err := session.EditRegion(c.Param("id"), input.Class, input.Description)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": r})
	}
	return fn
}

// DeleteRegion Delete a region of the active image
func DeleteRegion(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := session.DeleteRegion(c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": true})
	}
	return fn
}

// GetAnnotations Get the annotation document
func GetAnnotations(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		c.IndentedJSON(http.StatusOK, session.Document())
	}
	return fn
}

// PreviewAnnotations Get the annotations as the flat csv row table
func PreviewAnnotations(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		rows, err := annotations.Preview(session.Document())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"header": annotations.CSVHeader, "data": rows})
	}
	return fn
}

// ImportAnnotations Replace the annotations with an uploaded document
func ImportAnnotations(cache *workspace.Cache, config *utils.Config) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		if config.Server.MaxUploadSize > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.Server.MaxUploadSize)
		}
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := session.Import(data); err != nil {
			writeError(c, err)
			return
		}
		log.Info(fmt.Sprintf("Imported annotations into %s", session.Project()))
		c.JSON(http.StatusOK, gin.H{"data": session.Snapshot()})
	}
	return fn
}

// ExportAnnotations Download the annotations as json, csv or coco
func ExportAnnotations(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		format, err := annotations.ParseFormat(c.Param("format"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "formats": annotations.GetAvailableFormats()})
			return
		}
		exporter, err := annotations.NewExporter(format)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}

		var buf bytes.Buffer
		if err := session.Export(&buf, format); err != nil {
			writeError(c, err)
			return
		}
		filename := session.Project() + exporter.GetFileExtension()
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, exporter.GetContentType(), buf.Bytes())
	}
	return fn
}

// SaveProject Write the session to the database now
func SaveProject(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		if _, err := parseSession(c, cache); err != nil {
			writeError(c, err)
			return
		}
		if err := cache.Save(c.Param("project")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": true})
	}
	return fn
}
