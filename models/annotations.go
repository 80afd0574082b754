package models

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"labelscope/annotations"
	"labelscope/editor"
	"labelscope/regions"
)

// Region is one persisted region of a file.
type Region struct {
	gorm.Model
	FileID      uint   `json:"file_id" gorm:"index"`
	Key         string `json:"key"`
	RegionID    string `json:"region_id"`
	Shape       string `json:"shape"`
	Geometry    string `json:"shape_attributes" gorm:"type:text"`
	Class       string `json:"class"`
	Description string `json:"description" gorm:"type:text"`
}

// Class is a project class with its ordinal.
type Class struct {
	gorm.Model
	ProjectID uint   `json:"project_id" gorm:"index"`
	Name      string `json:"name"`
	Ordinal   int    `json:"count"`
}

// SaveDocument replaces everything stored for a project with doc and classes
// in one transaction. The project is created when it does not exist.
func SaveDocument(db *gorm.DB, identifier string, doc *annotations.Document, classes []editor.Class) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var project Project
		if err := tx.Where(Project{Identifier: identifier}).FirstOrCreate(&project).Error; err != nil {
			return err
		}
		if err := clearProject(tx, project.ID); err != nil {
			return err
		}

		files := make(map[string]*File, len(doc.Files))
		var ordered []*File
		for _, key := range doc.FileKeys() {
			f := doc.Files[key]
			file := &File{ProjectID: project.ID, Key: key, Name: f.Name, Size: f.Size}
			files[key] = file
			ordered = append(ordered, file)
		}
		for key, m := range doc.Metadata {
			file, ok := files[m.ImageID]
			if !ok {
				continue
			}
			geometry, err := json.Marshal(m.Shape)
			if err != nil {
				return err
			}
			file.Regions = append(file.Regions, Region{
				Key:         key,
				RegionID:    m.RegionID,
				Shape:       m.Shape.Name,
				Geometry:    string(geometry),
				Class:       m.Attributes.Class,
				Description: m.Attributes.Description,
			})
		}
		for _, file := range ordered {
			if err := tx.Create(file).Error; err != nil {
				return err
			}
		}

		for _, c := range classes {
			if err := tx.Create(&Class{ProjectID: project.ID, Name: c.Name, Ordinal: c.Ordinal}).Error; err != nil {
				return err
			}
		}
		log.Info(fmt.Sprintf("Saved project %s: %d files, %d regions, %d classes", identifier, len(doc.Files), len(doc.Metadata), len(classes)))
		return nil
	})
}

// LoadDocument rebuilds the annotation document and class names of a project.
func LoadDocument(db *gorm.DB, identifier string) (*annotations.Document, []string, error) {
	var project Project
	err := db.Where("identifier = ?", identifier).
		Preload("Files.Regions").
		Preload("Classes", func(tx *gorm.DB) *gorm.DB { return tx.Order("ordinal") }).
		First(&project).Error
	if err != nil {
		if _, findErr := FindProject(db, identifier); findErr != nil {
			return nil, nil, findErr
		}
		return nil, nil, err
	}

	doc := annotations.New()
	for _, f := range project.Files {
		doc.Files[f.Key] = annotations.File{Name: f.Name, Size: f.Size}
		for _, r := range f.Regions {
			var shape annotations.ShapeAttributes
			if err := json.Unmarshal([]byte(r.Geometry), &shape); err != nil {
				log.Warn(fmt.Sprintf("Skipping region %s of %s: %v", r.RegionID, f.Name, err))
				continue
			}
			doc.Metadata[r.Key] = annotations.Metadata{
				RegionID:   r.RegionID,
				ImageID:    f.Key,
				Shape:      shape,
				Attributes: regions.Attributes{Class: r.Class, Description: r.Description},
			}
		}
	}
	names := make([]string, 0, len(project.Classes))
	for _, c := range project.Classes {
		names = append(names, c.Name)
	}
	return doc, names, nil
}

// Flusher persists session state through a database handle.
type Flusher struct {
	DB *gorm.DB
}

func (f Flusher) Flush(identifier string, doc *annotations.Document, classes []editor.Class) error {
	return SaveDocument(f.DB, identifier, doc, classes)
}

func clearProject(tx *gorm.DB, projectID uint) error {
	files := tx.Model(&File{}).Select("id").Where("project_id = ?", projectID)
	if err := tx.Unscoped().Where("file_id IN (?)", files).Delete(&Region{}).Error; err != nil {
		return err
	}
	if err := tx.Unscoped().Where("project_id = ?", projectID).Delete(&File{}).Error; err != nil {
		return err
	}
	return tx.Unscoped().Where("project_id = ?", projectID).Delete(&Class{}).Error
}
