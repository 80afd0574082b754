package models

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrProjectNotFound = errors.New("project not found")

// Project is one labeling project with its images and classes.
type Project struct {
	gorm.Model
	Identifier string  `json:"identifier" gorm:"uniqueIndex;size:64"`
	Title      string  `json:"title"`
	Files      []File  `json:"files,omitempty" gorm:"foreignKey:ProjectID"`
	Classes    []Class `json:"classes,omitempty" gorm:"foreignKey:ProjectID"`
}

// File is an image entry of the annotation file table.
type File struct {
	gorm.Model
	ProjectID uint     `json:"project_id" gorm:"index"`
	Key       string   `json:"key"`
	Name      string   `json:"fname"`
	Size      int64    `json:"size"`
	Regions   []Region `json:"regions,omitempty" gorm:"foreignKey:FileID"`
}

// FindProjects Find all projects
func FindProjects(db *gorm.DB) ([]Project, error) {
	var projects []Project
	err := db.Order("id").Find(&projects).Error
	return projects, err
}

// FindProject Find a project by identifier
func FindProject(db *gorm.DB, identifier string) (Project, error) {
	var project Project
	err := db.Where("identifier = ?", identifier).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, identifier)
	}
	return project, err
}

// CreateProject Create a new project
func CreateProject(db *gorm.DB, identifier, title string) (Project, error) {
	project := Project{Identifier: identifier, Title: title}
	if err := db.Create(&project).Error; err != nil {
		return Project{}, err
	}
	return project, nil
}

// UpdateProject Rename a project
func UpdateProject(db *gorm.DB, identifier, title string) (Project, error) {
	project, err := FindProject(db, identifier)
	if err != nil {
		return Project{}, err
	}
	if err := db.Model(&project).Update("title", title).Error; err != nil {
		return Project{}, err
	}
	return project, nil
}

// DeleteProject Delete a project and everything stored for it
func DeleteProject(db *gorm.DB, identifier string) error {
	project, err := FindProject(db, identifier)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := clearProject(tx, project.ID); err != nil {
			return err
		}
		return tx.Unscoped().Delete(&project).Error
	})
}
