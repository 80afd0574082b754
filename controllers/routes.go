package controllers

import (
	"github.com/gin-gonic/gin"

	"labelscope/autolabel"
	"labelscope/utils"
	"labelscope/workspace"
)

// RegisterRoutes Attach the REST API to a router group
// Currently no authentication is used
func RegisterRoutes(rg *gin.RouterGroup, cache *workspace.Cache, detector autolabel.Detector, config *utils.Config) {
	rg.GET("/projects", FindProjects)
	rg.POST("/projects", CreateProject)
	rg.GET("/projects/:project", FindProject)
	rg.PATCH("/projects/:project", UpdateProject)
	rg.DELETE("/projects/:project", DeleteProject(cache))

	p := rg.Group("/projects/:project")
	{
		p.GET("/images", FindImages(cache))
		p.POST("/images", CreateImages(cache, config))
		p.POST("/images/:name/select", SelectImage(cache))
		p.DELETE("/images/:name", DeleteImage(cache))

		p.GET("/classes", FindClasses(cache))
		p.POST("/classes", CreateClass(cache))
		p.PATCH("/classes/:name", UpdateClass(cache))
		p.DELETE("/classes/:name", DeleteClass(cache))
		p.PUT("/active-class", SelectClass(cache))

		p.PUT("/tool", SetTool(cache))
		p.POST("/events", DispatchEvent(cache))
		p.GET("/view", GetView(cache))

		p.GET("/regions", FindRegions(cache))
		p.PATCH("/regions/:id", UpdateRegion(cache))
		p.DELETE("/regions/:id", DeleteRegion(cache))
		p.POST("/autolabel", AutoLabel(cache, detector))

		p.GET("/annotations", GetAnnotations(cache))
		p.PUT("/annotations", ImportAnnotations(cache, config))
		p.GET("/preview", PreviewAnnotations(cache))
		p.GET("/export/:format", ExportAnnotations(cache))
		p.POST("/save", SaveProject(cache))
	}
}
