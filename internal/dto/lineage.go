package dto

// ── 血缘模块 DTO ──

// LineageNode 血缘树节点（派生视图，每次请求重新构建，不持久化、不缓存）
type LineageNode struct {
	CourseID    string         `json:"course_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	AuthorName  string         `json:"author_name"`
	Children    []*LineageNode `json:"children"`
}

// LineageMetadata 血缘树派生指标
type LineageMetadata struct {
	// TotalForks 根节点可达的后代总数（不含根节点自身）
	TotalForks int `json:"total_forks"`
	// Depth 最长根到叶路径的边数；无子节点的根为 0
	Depth int `json:"depth"`
	// GeneratedAt 本次构建时间
	GeneratedAt string `json:"generated_at"`
}

// LineageTreeResponse 血缘树响应
type LineageTreeResponse struct {
	Tree     *LineageNode    `json:"tree"`
	Metadata LineageMetadata `json:"metadata"`
}

// LineageRootResponse 根祖先响应
type LineageRootResponse struct {
	CourseID     string `json:"course_id"`
	RootCourseID string `json:"root_course_id"`
}
