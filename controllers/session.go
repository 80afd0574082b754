package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"labelscope/annotations"
	"labelscope/autolabel"
	"labelscope/editor"
	"labelscope/geometry"
	"labelscope/images"
	"labelscope/interaction"
	"labelscope/models"
	"labelscope/regions"
	"labelscope/workspace"
)

// loadSession Restore a session from the database
func loadSession(project string) (*workspace.Session, error) {
	doc, classes, err := models.LoadDocument(models.DB, project)
	if err != nil {
		return nil, err
	}
	log.Info(fmt.Sprintf("Restored project %s with %d files", project, len(doc.Files)))
	return workspace.Restore(project, doc, classes), nil
}

// parseSession Find the session of the project in the route.
func parseSession(c *gin.Context, cache *workspace.Cache) (*workspace.Session, error) {
	return cache.GetOrLoad(c.Param("project"), loadSession)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrProjectNotFound),
		errors.Is(err, images.ErrImageNotFound),
		errors.Is(err, regions.ErrRegionNotFound),
		errors.Is(err, editor.ErrUnknownClass):
		return http.StatusNotFound
	case errors.Is(err, interaction.ErrNoClassSelected),
		errors.Is(err, interaction.ErrNoImage),
		errors.Is(err, regions.ErrDegenerateRegion),
		errors.Is(err, editor.ErrClassRequired),
		errors.Is(err, images.ErrImageNotReady),
		errors.Is(err, workspace.ErrNoActiveImage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, autolabel.ErrDetectorFailed),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	case errors.Is(err, annotations.ErrMalformedDocument),
		errors.Is(err, editor.ErrDuplicateClass),
		errors.Is(err, editor.ErrEmptyClassName),
		errors.Is(err, images.ErrUnsupportedImage):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Warn(fmt.Sprintf("Error handling %s %s: %s", c.Request.Method, c.FullPath(), err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// GetView Get the render state of the active image
func GetView(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": session.Snapshot()})
	}
	return fn
}

type SetToolInput struct {
	Tool string `json:"tool"`
}

// SetTool Activate an annotation tool
func SetTool(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		var input SetToolInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tool, err := interaction.ParseTool(input.Tool)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := session.SetTool(tool); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": session.Snapshot()})
	}
	return fn
}

// EventInput is one pointer, keyboard or wheel event in screen coordinates.
type EventInput struct {
	Type   string  `json:"type" binding:"required"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button"`
	Key    string  `json:"key"`
	DeltaY float64 `json:"delta_y"`
}

func (in EventInput) event() (interaction.Event, error) {
	screen := geometry.Point{X: in.X, Y: in.Y}
	switch in.Type {
	case "pointerdown":
		return interaction.PointerDown{Screen: screen, Button: in.Button}, nil
	case "pointermove":
		return interaction.PointerMove{Screen: screen}, nil
	case "pointerup":
		return interaction.PointerUp{}, nil
	case "pointerleave":
		return interaction.PointerLeave{}, nil
	case "keydown":
		if in.Key == "" {
			return nil, errors.New("keydown needs a key")
		}
		return interaction.KeyDown{Key: in.Key}, nil
	case "wheel":
		return interaction.Wheel{DeltaY: in.DeltaY}, nil
	}
	return nil, fmt.Errorf("unknown event type: %s", in.Type)
}

// DispatchEvent Feed an input event to the active image
func DispatchEvent(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		var input EventInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ev, err := input.event()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := session.Dispatch(ev); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": session.Snapshot()})
	}
	return fn
}

// FindClasses List the classes of a project
func FindClasses(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": session.Classes()})
	}
	return fn
}

type ClassInput struct {
	Name string `json:"name"`
}

// CreateClass Add a class
func CreateClass(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		var input ClassInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		class, err := session.AddClass(input.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": class})
	}
	return fn
}

// UpdateClass Rename a class and the regions labeled with it
func UpdateClass(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		var input ClassInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		class, err := session.RenameClass(c.Param("name"), input.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": class})
	}
	return fn
}

// DeleteClass Remove a class
func DeleteClass(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := session.RemoveClass(c.Param("name")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": true})
	}
	return fn
}

// SelectClass Set the class stamped onto new regions. An empty name clears it.
func SelectClass(cache *workspace.Cache) gin.HandlerFunc {
	fn := func(c *gin.Context) {
		var input ClassInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session, err := parseSession(c, cache)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := session.SelectClass(input.Name); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": session.Snapshot()})
	}
	return fn
}
