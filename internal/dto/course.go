package dto

// ── 课程模块 DTO ──

// CreateCourseRequest 创建课程请求
type CreateCourseRequest struct {
	Title          string   `json:"title"           binding:"required,min=2,max=255"`
	Description    string   `json:"description"     binding:"omitempty,max=5000"`
	KeyTakeaways   []string `json:"key_takeaways"   binding:"omitempty,max=20,dive,max=500"`
	Prerequisites  []string `json:"prerequisites"   binding:"omitempty,max=20,dive,max=500"`
	EstimatedHours int      `json:"estimated_hours" binding:"omitempty,min=0,max=1000"`
	Interests      []string `json:"interests"       binding:"omitempty,max=10,dive,min=1,max=100"`
	Modules        []CreateModuleRequest `json:"modules" binding:"omitempty,max=100,dive"`
}

// CreateModuleRequest 创建模块请求（嵌套于课程创建）
type CreateModuleRequest struct {
	Title           string `json:"title"            binding:"required,min=1,max=255"`
	Content         string `json:"content"          binding:"omitempty"`
	DurationMinutes int    `json:"duration_minutes" binding:"omitempty,min=0,max=6000"`
	IsAIGenerated   bool   `json:"is_ai_generated"`
}

// UpdateCourseRequest 更新课程请求（乐观锁：携带当前版本号）
type UpdateCourseRequest struct {
	Title          *string  `json:"title"           binding:"omitempty,min=2,max=255"`
	Description    *string  `json:"description"     binding:"omitempty,max=5000"`
	KeyTakeaways   []string `json:"key_takeaways"   binding:"omitempty,max=20,dive,max=500"`
	Prerequisites  []string `json:"prerequisites"   binding:"omitempty,max=20,dive,max=500"`
	EstimatedHours *int     `json:"estimated_hours" binding:"omitempty,min=0,max=1000"`
	Version        int      `json:"version"         binding:"required,min=1"`
}

// CourseListRequest 已发布课程列表查询参数
type CourseListRequest struct {
	PaginationRequest
}

// ModuleResponse 模块响应
type ModuleResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Content         string `json:"content,omitempty"`
	Position        int    `json:"position"`
	DurationMinutes int    `json:"duration_minutes"`
	IsAIGenerated   bool   `json:"is_ai_generated"`
}

// CourseResponse 课程摘要响应（列表项）
type CourseResponse struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Status         string   `json:"status"`
	AuthorName     string   `json:"author_name"`
	EstimatedHours int      `json:"estimated_hours"`
	Interests      []string `json:"interests,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

// CourseDetailResponse 课程详细响应
type CourseDetailResponse struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Status         string           `json:"status"`
	AuthorID       string           `json:"author_id"`
	AuthorName     string           `json:"author_name"`
	MarketScore    float64          `json:"market_score"`
	TrendScore     float64          `json:"trend_score"`
	KeyTakeaways   []string         `json:"key_takeaways,omitempty"`
	Prerequisites  []string         `json:"prerequisites,omitempty"`
	EstimatedHours int              `json:"estimated_hours"`
	Interests      []string         `json:"interests,omitempty"`
	Modules        []ModuleResponse `json:"modules"`
	ForkCount      int64            `json:"fork_count"`
	Version        int              `json:"version"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}
