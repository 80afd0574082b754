package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	uuid "github.com/twinj/uuid"

	"labelscope/models"
	"labelscope/workspace"
)

// FindProjects Find all projects
func FindProjects(c *gin.Context) {
	projects, err := models.FindProjects(models.DB)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": projects})
}

type CreateProjectInput struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title" binding:"required"`
}

// CreateProject Create a new project. A random identifier is used when none is given.
func CreateProject(c *gin.Context) {
	var input CreateProjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Identifier == "" {
		input.Identifier = uuid.NewV4().String()
	}
	if _, err := models.FindProject(models.DB, input.Identifier); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("project %s already exists", input.Identifier)})
		return
	}

	project, err := models.CreateProject(models.DB, input.Identifier, input.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	log.Info(fmt.Sprintf("Created project %s", project.Identifier))
	c.JSON(http.StatusOK, gin.H{"data": project})
}

// FindProject Find a project
func FindProject(c *gin.Context) {
	project, err := models.FindProject(models.DB, c.Param("project"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": project})
}

type UpdateProjectInput struct {
	Title string `json:"title" binding:"required"`
}

// UpdateProject Update the title of a project
func UpdateProject(c *gin.Context) {
	var input UpdateProjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	project, err := models.UpdateProject(models.DB, c.Param("project"), input.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": project})
}

// DeleteProject Delete a project and drop its live session
func DeleteProject(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		identifier := c.Param("project")
		if err := models.DeleteProject(models.DB, identifier); err != nil {
			writeError(c, err)
			return
		}
		cache.Delete(identifier)
		c.JSON(http.StatusOK, gin.H{"data": true})
	}
	return fn
}
