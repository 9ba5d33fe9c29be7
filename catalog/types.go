package catalog

// SortDirection orders find results.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// FindFilter is the shared pagination and search filter for find
// queries. Page numbers are 1-based.
type FindFilter struct {
	Page      int           `json:"page"`
	PerPage   int           `json:"per_page"`
	Sort      string        `json:"sort,omitempty"`
	Direction SortDirection `json:"direction,omitempty"`
	Query     string        `json:"q,omitempty"`
}

// ScenePaths carries the media URLs for a scene.
type ScenePaths struct {
	Screenshot string `json:"screenshot"`
	Preview    string `json:"preview"`
}

// SceneFile describes one file backing a scene.
type SceneFile struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Size     int64   `json:"size"`
}

// StudioRef is the embedded studio reference on a scene.
type StudioRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Scene is one catalogued scene.
type Scene struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Date      string      `json:"date"`
	Rating    int         `json:"rating100"`
	Organized bool        `json:"organized"`
	Paths     ScenePaths  `json:"paths"`
	Studio    *StudioRef  `json:"studio"`
	Files     []SceneFile `json:"files"`
}

// Performer is one catalogued performer.
type Performer struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Disambiguation string `json:"disambiguation"`
	Gender         string `json:"gender"`
	Favorite       bool   `json:"favorite"`
	Rating         int    `json:"rating100"`
	ImagePath      string `json:"image_path"`
	SceneCount     int    `json:"scene_count"`
}

// Studio is one catalogued studio.
type Studio struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ImagePath  string `json:"image_path"`
	SceneCount int    `json:"scene_count"`
}

// GalleryPaths carries the media URLs for a gallery.
type GalleryPaths struct {
	Cover string `json:"cover"`
}

// Gallery is one catalogued gallery.
type Gallery struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Date       string       `json:"date"`
	Rating     int          `json:"rating100"`
	ImageCount int          `json:"image_count"`
	Paths      GalleryPaths `json:"paths"`
}

// Tag is one catalogued tag.
type Tag struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ImagePath  string `json:"image_path"`
	SceneCount int    `json:"scene_count"`
}

// SystemStatus reports server health and schema state.
type SystemStatus struct {
	DatabaseSchema int    `json:"databaseSchema"`
	DatabasePath   string `json:"databasePath"`
	AppSchema      int    `json:"appSchema"`
	Status         string `json:"status"`
}

// Version reports the server build.
type Version struct {
	Version   string `json:"version"`
	Hash      string `json:"hash"`
	BuildTime string `json:"build_time"`
}
